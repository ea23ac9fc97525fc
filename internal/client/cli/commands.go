package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nrana15/clio/internal/client/client"
	"github.com/nrana15/clio/internal/client/session"
)

var (
	errNoPendingCode = errors.New("no code requested, use 'login' first")
	errNotSignedIn   = errors.New("not signed in")
)

func (a *App) state() session.State {
	return a.machine.Current().State
}

// Login asks for a code for the identifier in args, prompting when absent.
func (a *App) Login(ctx context.Context, args []string) error {
	input := strings.Join(args, "")
	if input == "" {
		var err error
		input, err = GetSimpleText(a.reader, "Enter phone number or email", a.out)
		if err != nil {
			return err
		}
	}
	return a.machine.Dispatch(ctx, session.LoginRequested{Identifier: client.ParseIdentifier(input)})
}

// SubmitCode sends the code in args, or reads it without echo.
func (a *App) SubmitCode(ctx context.Context, args []string) error {
	var code string
	if len(args) > 0 {
		code = args[0]
	} else {
		if a.state() != session.OtpPending {
			return errNoPendingCode
		}
		var err error
		if code, err = GetCode(a.reader, a.out); err != nil {
			return err
		}
	}
	return a.machine.Dispatch(ctx, session.OtpSubmitted{Code: code})
}

func (a *App) Logout(ctx context.Context) error {
	return a.machine.Dispatch(ctx, session.LogoutRequested{})
}

func (a *App) Status(ctx context.Context) error {
	s := a.machine.Current()
	fmt.Fprintln(a.out, a.statusLine())
	if s.State == session.Authenticated && !s.ExpiresAt.IsZero() {
		fmt.Fprintf(a.out, "Access token expires at %s\n", s.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
	}
	if s.State == session.OtpPending && s.Challenge != nil {
		fmt.Fprintf(a.out, "Attempts remaining: %d\n", s.Challenge.AttemptsRemaining)
	}
	return nil
}

// Whoami fetches the profile through the refreshing transport.
func (a *App) Whoami(ctx context.Context) error {
	if a.state() != session.Authenticated {
		return errNotSignedIn
	}
	u, err := a.auth.Profile(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "User ID: %s\n", u.ID)
	if u.PhoneNumber != "" {
		fmt.Fprintf(a.out, "Phone:   %s\n", u.PhoneNumber)
	}
	if u.Email != "" {
		fmt.Fprintf(a.out, "Email:   %s\n", u.Email)
	}
	if u.FullName != "" {
		fmt.Fprintf(a.out, "Name:    %s\n", u.FullName)
	}
	return nil
}

// Biometric handles "biometric on|off" and reports the current setting
// without arguments.
func (a *App) Biometric(ctx context.Context, args []string) error {
	if len(args) == 0 {
		enabled, err := a.gate.IsEnabled(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Biometric unlock: %s\n", onOff(enabled))
		return nil
	}

	switch args[0] {
	case "on":
		res := a.gate.Enable(ctx, "Enable biometric unlock for clio")
		if !res.OK() {
			return fmt.Errorf("biometric unlock not enabled: %s", res.Reason)
		}
		fmt.Fprintln(a.out, "Biometric unlock enabled")
	case "off":
		if err := a.gate.Disable(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Biometric unlock disabled")
	default:
		return fmt.Errorf("usage: biometric [on|off]")
	}
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

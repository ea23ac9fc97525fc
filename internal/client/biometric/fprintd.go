package biometric

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"os/user"
	"strings"
)

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Fprintd authenticates with the Linux fprintd daemon through its command
// line tools.
type Fprintd struct {
	run  Runner
	user string
}

func NewFprintd() *Fprintd {
	name := ""
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	return &Fprintd{run: execRunner, user: name}
}

func (f *Fprintd) args() []string {
	if f.user == "" {
		return nil
	}
	return []string{f.user}
}

func (f *Fprintd) AvailableTypes(ctx context.Context) ([]Type, error) {
	out, err := f.run(ctx, "fprintd-list", f.args()...)
	if errors.Is(err, exec.ErrNotFound) {
		return nil, ErrNotAvailable
	}
	text := string(out)
	if err != nil {
		if strings.Contains(text, "No devices available") {
			return nil, ErrNotAvailable
		}
		return nil, fmt.Errorf("fprintd-list: %w", err)
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "- #") {
			return []Type{Fingerprint}, nil
		}
	}
	return nil, nil
}

// Authenticate blocks until fprintd reports a result. reason is not shown
// by fprintd; callers print it before the prompt.
func (f *Fprintd) Authenticate(ctx context.Context, reason string) error {
	out, err := f.run(ctx, "fprintd-verify", f.args()...)
	if errors.Is(err, exec.ErrNotFound) {
		return ErrNotAvailable
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	text := string(out)
	switch {
	case strings.Contains(text, "verify-match"):
		return nil
	case strings.Contains(text, "verify-no-match"):
		return ErrNotRecognised
	case strings.Contains(text, "No devices available"), strings.Contains(text, "no enrolled prints"):
		return ErrNotAvailable
	}
	if err != nil {
		return fmt.Errorf("fprintd-verify: %w", err)
	}
	return fmt.Errorf("fprintd-verify: unexpected output %q", strings.TrimSpace(text))
}

// Unavailable is the Authenticator for hosts without a sensor.
type Unavailable struct{}

func (Unavailable) Authenticate(context.Context, string) error { return ErrNotAvailable }

func (Unavailable) AvailableTypes(context.Context) ([]Type, error) { return nil, nil }

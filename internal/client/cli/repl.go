package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nrana15/clio/internal/client/session"
)

// execIface is the command surface the REPL dispatches to. App satisfies
// it; tests provide a stub.
type execIface interface {
	state() session.State
	Login(ctx context.Context, args []string) error
	SubmitCode(ctx context.Context, args []string) error
	Logout(ctx context.Context) error
	Status(ctx context.Context) error
	Whoami(ctx context.Context) error
	Biometric(ctx context.Context, args []string) error
	Trust(ctx context.Context) error
}

// runREPL reads commands line by line and dispatches them to a until the
// user types exit or quit, input ends, or ctx is cancelled.
//
//	help                 show available commands
//	login [phone|email]  request a code
//	code [digits]        submit the code (hidden input when omitted)
//	logout               sign out
//	status               show the session state
//	whoami               fetch the signed-in profile
//	biometric [on|off]   show or change biometric unlock
//	trust                run the device trust check
//	exit | quit          leave the program
//
// Command errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, w io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprintf(w, "clio (%s)> ", statusFn())

		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			fmt.Fprintln(w)
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			if a.state() == session.Authenticated {
				fmt.Fprintln(w, "Available commands: status, whoami, biometric [on|off], trust, logout, exit")
			} else {
				fmt.Fprintln(w, "Available commands: login [phone|email], code [digits], status, biometric [on|off], trust, exit")
			}
		case "login":
			cmdErr = a.Login(ctx, args)
		case "code":
			cmdErr = a.SubmitCode(ctx, args)
		case "logout":
			cmdErr = a.Logout(ctx)
		case "status":
			cmdErr = a.Status(ctx)
		case "whoami":
			cmdErr = a.Whoami(ctx)
		case "biometric":
			cmdErr = a.Biometric(ctx, args)
		case "trust":
			cmdErr = a.Trust(ctx)
		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return
		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
		}

		if cmdErr != nil {
			fmt.Fprintln(w, errorStyle.Render("Error: "+cmdErr.Error()))
		}
	}
}

package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/nrana15/clio/internal/client/session"
)

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	stateStyles = map[session.State]lipgloss.Style{
		session.Authenticated:   okStyle,
		session.OtpPending:      warnStyle,
		session.CheckingSession: mutedStyle,
		session.Unauthenticated: mutedStyle,
		session.Initial:         mutedStyle,
	}
)

// statusLine renders the current state for the prompt.
func (a *App) statusLine() string {
	s := a.machine.Current()
	line := stateStyles[s.State].Render(s.State.String())
	if !s.Identifier.IsZero() {
		line += " " + s.Identifier.String()
	}
	return line
}

// render prints every transition until the channel is closed.
func (a *App) render(transitions <-chan session.Transition) {
	for t := range transitions {
		if t.Err != nil {
			fmt.Fprintln(a.out, errorStyle.Render(t.Err.Message))
		}

		switch t.State {
		case session.OtpPending:
			if t.Err != nil || t.Challenge == nil {
				continue
			}
			fmt.Fprintf(a.out, "Code sent to %s, valid for %ds. Type 'code' to enter it.\n",
				t.Identifier, t.Challenge.ExpiresInSeconds)
			if t.Challenge.DevCode != "" {
				fmt.Fprintln(a.out, mutedStyle.Render("(development code: "+t.Challenge.DevCode+")"))
			}
		case session.Authenticated:
			fmt.Fprintln(a.out, okStyle.Render("Signed in as "+t.Identifier.String()))
		case session.Unauthenticated:
			if t.Err == nil {
				fmt.Fprintln(a.out, mutedStyle.Render("Signed out"))
			}
		}
	}
}

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/nrana15/clio/internal/client/devicetrust"
)

// checkDevice runs the device trust check once before the session starts.
// A blocking result can be overridden by the user.
func (a *App) checkDevice(ctx context.Context) error {
	report := a.checker.Check(ctx)
	d := a.policy.Decide(report)

	if d.Warn {
		fmt.Fprintln(a.out, warnStyle.Render("Warning: "+joinThreats(d.Warnings)+" detected"))
	}
	if !d.Block {
		return nil
	}

	fmt.Fprintln(a.out, errorStyle.Render("This device is not trusted: "+joinThreats(d.Blocking)+" detected"))
	if Confirm(a.reader, "Continue anyway?", a.out) {
		a.logger.Warn(ctx, "device trust overridden by user", "threats", joinThreats(d.Blocking))
		return nil
	}
	return d.Err()
}

// Trust prints a fresh report without affecting the session.
func (a *App) Trust(ctx context.Context) error {
	report := a.checker.Check(ctx)
	if report.IsSecure {
		fmt.Fprintln(a.out, okStyle.Render("No threats detected"))
		return nil
	}

	d := a.policy.Decide(report)
	for _, k := range d.Blocking {
		fmt.Fprintln(a.out, errorStyle.Render(fmt.Sprintf("  %s (blocking)", k)))
	}
	for _, k := range d.Warnings {
		fmt.Fprintln(a.out, warnStyle.Render(fmt.Sprintf("  %s", k)))
	}
	return nil
}

func joinThreats(kinds []devicetrust.ThreatKind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

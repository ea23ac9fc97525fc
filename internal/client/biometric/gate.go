// Package biometric guards session resume behind a local biometric check.
//
// The platform capability sits behind Authenticator. Gate wraps it so that
// no error or panic crosses the boundary: every call yields a Result. The
// "enabled" preference lives in the credential store.
package biometric

import (
	"context"
	"errors"
	"fmt"

	"github.com/nrana15/clio/internal/logging"
)

type Type string

const (
	Fingerprint Type = "fingerprint"
	Face        Type = "face"
	Iris        Type = "iris"
)

var (
	ErrNotAvailable  = errors.New("biometric: no enrolled sensor available")
	ErrNotRecognised = errors.New("biometric: not recognised")
	ErrCancelled     = errors.New("biometric: cancelled")
)

// Authenticator is the platform capability.
type Authenticator interface {
	Authenticate(ctx context.Context, reason string) error
	AvailableTypes(ctx context.Context) ([]Type, error)
}

// FlagStore persists the enabled preference.
type FlagStore interface {
	BiometricEnabled(ctx context.Context) (bool, error)
	SetBiometricEnabled(ctx context.Context, enabled bool) error
}

type Outcome int

const (
	Success Outcome = iota
	Failure
	Error
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failure:
		return "failure"
	}
	return "error"
}

// Result is what every Gate call returns. Reason is human readable and
// empty on Success.
type Result struct {
	Outcome Outcome
	Reason  string
}

func (r Result) OK() bool { return r.Outcome == Success }

type Gate struct {
	auth  Authenticator
	flags FlagStore
	log   logging.Logger
}

func NewGate(auth Authenticator, flags FlagStore, log logging.Logger) *Gate {
	return &Gate{auth: auth, flags: flags, log: log.With("module", "biometric")}
}

func (g *Gate) Authenticate(ctx context.Context, reason string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error(ctx, "authenticator panicked", "panic", fmt.Sprint(r))
			res = Result{Outcome: Error, Reason: "Biometric check crashed"}
		}
	}()

	g.log.Debug(ctx, "biometric prompt", "reason", reason)
	err := g.auth.Authenticate(ctx, reason)
	switch {
	case err == nil:
		return Result{Outcome: Success}
	case errors.Is(err, ErrNotRecognised):
		return Result{Outcome: Failure, Reason: "Not recognised"}
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return Result{Outcome: Failure, Reason: "Cancelled"}
	case errors.Is(err, ErrNotAvailable):
		return Result{Outcome: Error, Reason: "No biometric sensor available"}
	case errors.Is(err, context.DeadlineExceeded):
		return Result{Outcome: Error, Reason: "Biometric check timed out"}
	}
	g.log.Warn(ctx, "biometric check failed", "error", err)
	return Result{Outcome: Error, Reason: "Biometric check failed: " + err.Error()}
}

// AuthenticateIfEnabled succeeds without prompting when the user has not
// enabled the biometric lock.
func (g *Gate) AuthenticateIfEnabled(ctx context.Context, reason string) Result {
	enabled, err := g.flags.BiometricEnabled(ctx)
	if err != nil {
		return Result{Outcome: Error, Reason: "Cannot read biometric setting"}
	}
	if !enabled {
		return Result{Outcome: Success}
	}
	return g.Authenticate(ctx, reason)
}

// Enable turns the lock on after a successful check.
func (g *Gate) Enable(ctx context.Context, reason string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Outcome: Error, Reason: "Biometric check crashed"}
		}
	}()

	types, err := g.auth.AvailableTypes(ctx)
	if err != nil || len(types) == 0 {
		return Result{Outcome: Error, Reason: "No biometric sensor available"}
	}

	if res := g.Authenticate(ctx, reason); !res.OK() {
		return res
	}
	if err := g.flags.SetBiometricEnabled(ctx, true); err != nil {
		return Result{Outcome: Error, Reason: "Cannot save biometric setting"}
	}
	g.log.Info(ctx, "biometric lock enabled", "types", types)
	return Result{Outcome: Success}
}

func (g *Gate) Disable(ctx context.Context) error {
	return g.flags.SetBiometricEnabled(ctx, false)
}

func (g *Gate) IsEnabled(ctx context.Context) (bool, error) {
	return g.flags.BiometricEnabled(ctx)
}

// Unlock runs the resume check and reports anything but Success as an
// error carrying the Result's reason.
func (g *Gate) Unlock(ctx context.Context) error {
	res := g.AuthenticateIfEnabled(ctx, "Unlock clio")
	if res.OK() {
		return nil
	}
	return errors.New(res.Reason)
}

package session

import (
	"errors"
	"time"

	"github.com/nrana15/clio/internal/client/client"
	"github.com/nrana15/clio/internal/common"
)

type State int

const (
	Initial State = iota
	CheckingSession
	Unauthenticated
	OtpPending
	Authenticated
)

func (s State) String() string {
	switch s {
	case Initial:
		return "Initial"
	case CheckingSession:
		return "CheckingSession"
	case Unauthenticated:
		return "Unauthenticated"
	case OtpPending:
		return "OtpPending"
	case Authenticated:
		return "Authenticated"
	}
	return "Unknown"
}

// Session is the machine's in-memory view. Tokens are present only while
// Authenticated.
type Session struct {
	State        State
	UserID       string
	Identifier   client.Identifier
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time

	// Challenge is set while OtpPending.
	Challenge *client.OtpChallenge
}

// Transition is one applied step as seen by subscribers. Err, when set, is
// the one-shot error signal of the step; State is where the machine rests.
type Transition struct {
	State      State
	UserID     string
	Identifier client.Identifier
	Challenge  *client.OtpChallenge
	Err        *Error
}

// Error is a displayable failure. Message is meant for the user; Err keeps
// the cause for errors.Is.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

func newError(err error) *Error {
	return &Error{Message: errorMessage(err), Err: err}
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, client.ErrInvalidCode):
		return "Invalid OTP"
	case errors.Is(err, client.ErrMalformedCode):
		return "Enter the 6-digit code"
	case errors.Is(err, errChallengeExpired), errors.Is(err, client.ErrOtpExpired):
		return "Code expired, request a new one"
	case errors.Is(err, client.ErrAttemptsExceeded):
		return "Too many attempts, request a new code"
	case errors.Is(err, client.ErrRateLimited):
		return "Too many requests, try again later"
	case errors.Is(err, client.ErrMalformedIdentifier), errors.Is(err, client.ErrInvalidIdentifier):
		return "Invalid phone number or email"
	case errors.Is(err, errNoChallenge):
		return "No code was requested"
	case errors.Is(err, errNotStarted):
		return "Session not started"
	case errors.Is(err, client.ErrRefreshFailed), errors.Is(err, errRevoked):
		return "Session expired, please sign in again"
	case errors.Is(err, errLocked):
		return "Biometric unlock failed"
	case errors.Is(err, common.ErrRemoteUnavailable):
		return "Service unavailable, try again"
	case errors.Is(err, common.ErrCredentialCorrupt):
		return "Stored session unreadable"
	}
	return "Something went wrong"
}

var (
	ErrClosed = errors.New("session: machine closed")

	errChallengeExpired = errors.New("otp challenge expired")
	errNoChallenge      = errors.New("no otp challenge")
	errNotStarted       = errors.New("session not started")
	errRevoked          = errors.New("session revoked")
	errLocked           = errors.New("biometric unlock failed")
)

package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidIdentifier = errors.New("invalid phone number or email")
	ErrRateLimited       = errors.New("too many code requests")
	ErrNoChallenge       = errors.New("invalid or expired OTP")
	ErrInvalidCode       = errors.New("invalid OTP")
	ErrOtpExpired        = errors.New("OTP expired")
	ErrAttemptsExceeded  = errors.New("too many attempts")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrUserNotFound      = errors.New("user not found")
)

// RateLimitError wraps ErrRateLimited with the time the caller should wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%v, retry after %s", ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

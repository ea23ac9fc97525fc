package client

import (
	"errors"
	"fmt"

	"github.com/nrana15/clio/internal/common"
)

var (
	ErrMalformedIdentifier = fmt.Errorf("%w: provide exactly one valid phone number or email", common.ErrInputInvalid)
	ErrMalformedCode       = fmt.Errorf("%w: otp code must be %d digits", common.ErrInputInvalid, common.OtpLength)

	ErrInvalidIdentifier = fmt.Errorf("%w: identifier not accepted", common.ErrRemoteRejected)
	ErrRateLimited       = fmt.Errorf("%w: too many otp requests", common.ErrRemoteRejected)
	ErrInvalidCode       = fmt.Errorf("%w: invalid otp", common.ErrRemoteRejected)
	ErrOtpExpired        = fmt.Errorf("%w: otp expired", common.ErrRemoteRejected)
	ErrAttemptsExceeded  = fmt.Errorf("%w: otp attempts exceeded", common.ErrRemoteRejected)
	ErrUnauthorized      = fmt.Errorf("%w: unauthorized", common.ErrRemoteRejected)

	ErrUnavailable = fmt.Errorf("%w: request failed", common.ErrRemoteUnavailable)

	// ErrRefreshFailed wraps every refresh failure, whatever its cause. The
	// session treats it as a revoked refresh token.
	ErrRefreshFailed = errors.New("token refresh failed")
)

// HTTPError represents a non-2xx HTTP response from the identity service.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsStatus returns true if err (or any wrapped error) is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}

// statusErrors maps response codes to sentinels for one endpoint.
type statusErrors map[int]error

// mapError translates a transport error. Listed codes map to their
// sentinel, 5xx and network failures to ErrUnavailable, and any other 4xx
// to a generic rejection. The original error stays in the chain.
func (m statusErrors) mapError(err error) error {
	if err == nil {
		return nil
	}

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		if errors.Is(err, common.ErrRemoteUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if sentinel, ok := m[httpErr.StatusCode]; ok {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	if httpErr.StatusCode >= 500 {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return fmt.Errorf("%w: %w", common.ErrRemoteRejected, err)
}

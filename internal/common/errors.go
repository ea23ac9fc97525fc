// Package common defines shared constants and sentinel errors used across
// client and identity layers of clio. Callers should use errors.Is to
// match these values.
package common

import "errors"

// Error taxonomy. Component errors wrap exactly one of these so callers can
// decide how to recover without knowing every concrete failure.
var (
	// ErrInputInvalid marks a bad identifier or code shape, rejected before
	// any network call.
	ErrInputInvalid = errors.New("invalid input")

	// ErrRemoteRejected marks a semantic 4xx failure: wrong OTP, expired
	// code, rate limiting.
	ErrRemoteRejected = errors.New("rejected by identity service")

	// ErrRemoteUnavailable marks a timeout, network failure or 5xx.
	ErrRemoteUnavailable = errors.New("identity service unavailable")

	// ErrCredentialCorrupt marks a stored credential that cannot be decoded.
	ErrCredentialCorrupt = errors.New("credential store corrupt")

	// ErrDeviceUntrusted marks a device trust check with blocking threats.
	ErrDeviceUntrusted = errors.New("device untrusted")
)

// ErrNotFound is returned by identity service repositories for a missing
// row. It is not part of the taxonomy above.
var ErrNotFound = errors.New("not found")

// Kind returns the taxonomy sentinel err belongs to, or nil when err does not
// wrap any of them.
func Kind(err error) error {
	for _, kind := range []error{
		ErrInputInvalid,
		ErrRemoteRejected,
		ErrRemoteUnavailable,
		ErrCredentialCorrupt,
		ErrDeviceUntrusted,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

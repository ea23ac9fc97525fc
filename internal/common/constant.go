// Package common contains shared constants and sentinel errors used across
// clio components.
package common

const (
	// AuthorizationHeaderName carries the bearer access token on outbound
	// requests to the identity service.
	AuthorizationHeaderName = "Authorization"

	// BearerPrefix precedes the access token in the Authorization header.
	BearerPrefix = "Bearer "

	// RequestIDHeaderName correlates a client request with identity service logs.
	RequestIDHeaderName = "X-Request-ID"

	// OtpLength is the number of digits in a one-time code.
	OtpLength = 6

	// OtpLifetimeSeconds is how long an issued one-time code stays valid.
	OtpLifetimeSeconds = 300

	// OtpMaxAttempts is how many wrong codes a challenge tolerates.
	OtpMaxAttempts = 5
)

// Package client talks to the clio identity service over HTTP/JSON.
//
// # Overview
//
// The package provides:
//  1. The Client contract used by the auth service: RequestOtp, VerifyOtp,
//     Refresh, Logout and Do for authenticated calls.
//  2. HTTPClient, the concrete implementation. It tags every request with an
//     X-Request-ID, traces it with OpenTelemetry and enforces a per-call
//     timeout.
//  3. The refresh interceptor behind Do: a 401 triggers one refresh, shared
//     by every caller that saw the same stale token, followed by one retry.
//     A failed refresh clears the TokenSource and fires the OnRevoked hook.
//
// # Error Handling
//
// Failures are sentinel errors matched with errors.Is. Each one wraps a
// taxonomy error from package common, so callers can also branch on
// common.Kind. Non-2xx responses are additionally reachable as *HTTPError.
package client

package session

import "github.com/nrana15/clio/internal/client/client"

// Event is accepted by Machine.Dispatch.
type Event interface {
	event()
}

// Start begins the stored-session check. Ignored outside Initial.
type Start struct{}

// LoginRequested asks for a code for Identifier. Exactly one of its fields
// must be set; Dispatch rejects anything else before queueing.
type LoginRequested struct {
	Identifier client.Identifier
}

type OtpSubmitted struct {
	Code string
}

type LogoutRequested struct{}

type PeriodicCheckRequested struct{}

// sessionRevoked is posted when the transport failed a refresh closed.
type sessionRevoked struct{}

func (Start) event()                  {}
func (LoginRequested) event()         {}
func (OtpSubmitted) event()           {}
func (LogoutRequested) event()        {}
func (PeriodicCheckRequested) event() {}
func (sessionRevoked) event()         {}

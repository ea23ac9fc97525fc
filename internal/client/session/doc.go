// Package session runs the client's authentication state machine.
//
// A Machine owns the one live Session of the process. Callers post events
// with Dispatch; a single goroutine started by Run applies them in arrival
// order, awaiting any network call before taking the next event. Every
// applied step publishes a Transition to subscribers. A failed step carries
// its error in the same Transition as the state the machine falls back to,
// so observers never see an error without a resting state.
package session

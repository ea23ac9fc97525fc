// Package cli provides the interactive clio command-line client.
//
// It wires configuration, the encrypted credential store, the identity
// transport, the biometric gate and the session machine, then drives the
// machine from a small REPL. Transitions are rendered as they are
// published, so asynchronous outcomes such as a revoked session show up
// without a command.
//
// The device trust check runs once before the machine starts; a blocking
// result needs an explicit user override.
package cli

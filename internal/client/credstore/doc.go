// Package credstore persists the session credentials on this device.
//
// The store is a flat map from a fixed set of keys to opaque values. A Vault
// combines a Backend, which gives per-key atomic writes plus multi-key
// transactions, with a Sealer that encrypts each value before it reaches
// the backend. OpenEncrypted wires the production pair (SQLite with
// AES-GCM); NewMemory is the unencrypted in-process variant used by tests
// and ephemeral runs.
package credstore

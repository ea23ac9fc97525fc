package models

import "time"

// OtpChallenge is the pending code for one identifier. Only the sha256 of
// the code is stored.
type OtpChallenge struct {
	Identifier string
	CodeHash   []byte
	Attempts   int
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

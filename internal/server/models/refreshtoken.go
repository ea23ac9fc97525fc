package models

import "time"

// RefreshToken is the server side of an issued refresh JWT, keyed by its
// jti. Deleting the row revokes the token.
type RefreshToken struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Package models holds the identity service's persisted records.
package models

import "time"

// User is created on the first successful OTP verification for an
// identifier. Exactly one of PhoneNumber and Email is set.
type User struct {
	ID          string
	PhoneNumber string
	Email       string
	FullName    string
	IsVerified  bool
	CreatedAt   time.Time
	LastLoginAt *time.Time
}

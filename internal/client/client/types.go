package client

import (
	"context"
	"time"
)

// Client is the identity service contract.
type Client interface {
	RequestOtp(ctx context.Context, id Identifier) (*OtpChallenge, error)
	VerifyOtp(ctx context.Context, id Identifier, code string) (*Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)
	Logout(ctx context.Context, accessToken string)
	Do(ctx context.Context, method, path string, body, out any) error
}

// TokenSource holds the live token pair used by Do. Update is called after
// a successful refresh and Clear after a failed one.
type TokenSource interface {
	Tokens(ctx context.Context) (access, refresh string, err error)
	Update(ctx context.Context, access, refresh string) error
	Clear(ctx context.Context) error
}

// OtpChallenge exists between a code request and its verification.
type OtpChallenge struct {
	Identifier        Identifier
	RequestedAt       time.Time
	ExpiresInSeconds  int
	AttemptsRemaining int

	// DevCode is echoed by identity services running in development mode.
	DevCode string
}

func (c *OtpChallenge) ExpiresAt() time.Time {
	return c.RequestedAt.Add(time.Duration(c.ExpiresInSeconds) * time.Second)
}

func (c *OtpChallenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt())
}

// Tokens is a verified or refreshed credential set.
type Tokens struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// User is the profile returned by GET /users/me and embedded in verify
// responses.
type User struct {
	ID          string `json:"id"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Email       string `json:"email,omitempty"`
	FullName    string `json:"full_name,omitempty"`
	IsVerified  bool   `json:"is_verified"`
}

type otpStartResponse struct {
	Message          string `json:"message,omitempty"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
	OtpCode          string `json:"otp_code,omitempty"`
}

type otpVerifyRequest struct {
	Identifier
	OtpCode string `json:"otp_code"`
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
}

type otpVerifyResponse struct {
	User   User      `json:"user"`
	Tokens tokenPair `json:"tokens"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

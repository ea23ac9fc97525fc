package client

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims reads the expiry and subject of a JWT access token without
// verifying its signature. The client never holds the signing key; the
// identity service is the authority and a forged token only fails there.
// ok is false for opaque or malformed tokens.
func TokenClaims(token string) (expiresAt time.Time, subject string, ok bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, "", false
	}
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return expiresAt, claims.Subject, true
}

func (p tokenPair) toTokens(userID string, now time.Time) *Tokens {
	t := &Tokens{
		UserID:       userID,
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
	}
	exp, sub, ok := TokenClaims(p.AccessToken)
	if p.ExpiresIn > 0 {
		t.ExpiresAt = now.Add(time.Duration(p.ExpiresIn) * time.Second)
	} else if ok {
		t.ExpiresAt = exp
	}
	if t.UserID == "" && ok {
		t.UserID = sub
	}
	return t
}

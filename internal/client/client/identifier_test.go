package client

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifier_Validate(t *testing.T) {
	tests := []struct {
		name    string
		id      Identifier
		wantErr bool
	}{
		{"phone with plus", Phone("+886912345678"), false},
		{"phone without plus", Phone("0912345678"), false},
		{"email", Email("someone@example.com"), false},
		{"neither", Identifier{}, true},
		{"both", Identifier{PhoneNumber: "+886912345678", Email: "someone@example.com"}, true},
		{"short phone", Phone("+12345"), true},
		{"phone with letters", Phone("+88691234567a"), true},
		{"email without at", Email("someone.example.com"), true},
		{"email with trailing at", Email("someone@"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.id.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedIdentifier)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestParseIdentifier(t *testing.T) {
	assert.Equal(t, Email("a@b.io"), ParseIdentifier(" a@b.io "))
	assert.Equal(t, Phone("+886912345678"), ParseIdentifier("+886912345678"))
	assert.Equal(t, "+886912345678", Phone("+886912345678").String())
	assert.Equal(t, "a@b.io", Email("a@b.io").String())
	assert.True(t, Identifier{}.IsZero())
}

func TestValidateCode(t *testing.T) {
	require.NoError(t, ValidateCode("000000"))
	require.NoError(t, ValidateCode("123456"))
	require.ErrorIs(t, ValidateCode("12345"), ErrMalformedCode)
	require.ErrorIs(t, ValidateCode("abcdef"), ErrMalformedCode)
}

func TestTokenClaims(t *testing.T) {
	exp := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("any-key"))
	require.NoError(t, err)

	gotExp, sub, ok := TokenClaims(signed)
	require.True(t, ok)
	assert.Equal(t, "u1", sub)
	assert.True(t, exp.Equal(gotExp))

	_, _, ok = TokenClaims("opaque-token")
	assert.False(t, ok)
}

func TestTokenPair_ExpiryFallsBackToClaims(t *testing.T) {
	exp := fixedNow.Add(10 * time.Minute)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u9",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	tok := tokenPair{AccessToken: signed, RefreshToken: "r"}.toTokens("", fixedNow)
	assert.Equal(t, "u9", tok.UserID)
	assert.True(t, exp.Equal(tok.ExpiresAt))
}

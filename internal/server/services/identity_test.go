package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nrana15/clio/internal/logging"
	"github.com/nrana15/clio/internal/server/config"
	"github.com/nrana15/clio/internal/server/repositories/repomanager"
	"github.com/nrana15/clio/internal/server/repositories/sqlitetest"
)

const phone = "+886912345678"

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

func newService(t *testing.T, db *sql.DB) (*IdentityService, *testClock) {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "k"

	s := NewIdentityService(db, repomanager.NewSQLiteRepositoryManager(), cfg, logging.Discard())
	clock := &testClock{t: time.Unix(1_700_000_000, 0)}
	s.now = clock.now
	return s, clock
}

func start(t *testing.T, s *IdentityService, id Identifier) string {
	t.Helper()
	issued, err := s.StartOtp(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, issued.Code, 6)
	return issued.Code
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestStartOtp(t *testing.T) {
	s, _ := newService(t, sqlitetest.Open(t))
	ctx := context.Background()

	issued, err := s.StartOtp(ctx, Identifier{PhoneNumber: phone})
	require.NoError(t, err)
	assert.Equal(t, 300, issued.ExpiresIn)
	assert.Len(t, issued.Code, 6)

	s.devMode = false
	issued, err = s.StartOtp(ctx, Identifier{Email: "me@example.com"})
	require.NoError(t, err)
	assert.Empty(t, issued.Code, "codes are only echoed in development")
}

func TestStartOtp_InvalidIdentifier(t *testing.T) {
	s, _ := newService(t, sqlitetest.Open(t))

	for _, id := range []Identifier{
		{},
		{PhoneNumber: "123"},
		{Email: "nope"},
		{PhoneNumber: phone, Email: "a@b"},
	} {
		_, err := s.StartOtp(context.Background(), id)
		assert.ErrorIs(t, err, ErrInvalidIdentifier, "%+v", id)
	}
}

func TestStartOtp_RateLimited(t *testing.T) {
	s, _ := newService(t, sqlitetest.Open(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.StartOtp(ctx, Identifier{PhoneNumber: phone})
		require.NoError(t, err)
	}
	_, err := s.StartOtp(ctx, Identifier{PhoneNumber: phone})
	require.ErrorIs(t, err, ErrRateLimited)

	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Positive(t, rl.RetryAfter)
}

func TestVerifyOtp_Success(t *testing.T) {
	s, _ := newService(t, sqlitetest.Open(t))
	ctx := context.Background()
	id := Identifier{PhoneNumber: phone}

	code := start(t, s, id)
	user, pair, err := s.VerifyOtp(ctx, id, code)
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, phone, user.PhoneNumber)
	assert.True(t, user.IsVerified)
	assert.Equal(t, "bearer", pair.TokenType)
	assert.Equal(t, 1800, pair.ExpiresIn)

	userID, err := s.Authenticate(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)

	_, _, err = s.VerifyOtp(ctx, id, code)
	assert.ErrorIs(t, err, ErrNoChallenge, "a code is single use")

	code = start(t, s, id)
	again, _, err := s.VerifyOtp(ctx, id, code)
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID, "second login reuses the account")
}

func TestVerifyOtp_WrongCodeThenAttemptsExceeded(t *testing.T) {
	s, _ := newService(t, sqlitetest.Open(t))
	ctx := context.Background()
	id := Identifier{Email: "me@example.com"}

	code := start(t, s, id)
	for i := 0; i < 5; i++ {
		_, _, err := s.VerifyOtp(ctx, id, wrongCode(code))
		require.ErrorIs(t, err, ErrInvalidCode, "attempt %d", i+1)
	}

	_, _, err := s.VerifyOtp(ctx, id, code)
	assert.ErrorIs(t, err, ErrAttemptsExceeded, "even the right code is refused after 5 misses")

	code = start(t, s, id)
	_, _, err = s.VerifyOtp(ctx, id, code)
	assert.NoError(t, err, "a new code resets the counter")
}

func TestVerifyOtp_Expired(t *testing.T) {
	s, clock := newService(t, sqlitetest.Open(t))
	ctx := context.Background()
	id := Identifier{PhoneNumber: phone}

	code := start(t, s, id)
	clock.t = clock.t.Add(301 * time.Second)

	_, _, err := s.VerifyOtp(ctx, id, code)
	assert.ErrorIs(t, err, ErrOtpExpired)

	_, _, err = s.VerifyOtp(ctx, id, code)
	assert.ErrorIs(t, err, ErrNoChallenge, "expired challenge is removed")
}

func TestVerifyOtp_MalformedInput(t *testing.T) {
	s, _ := newService(t, sqlitetest.Open(t))

	_, _, err := s.VerifyOtp(context.Background(), Identifier{PhoneNumber: phone}, "12ab56")
	assert.ErrorIs(t, err, ErrInvalidCode)

	_, _, err = s.VerifyOtp(context.Background(), Identifier{}, "123456")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func login(t *testing.T, s *IdentityService) *TokenPair {
	t.Helper()
	id := Identifier{PhoneNumber: phone}
	_, pair, err := s.VerifyOtp(context.Background(), id, start(t, s, id))
	require.NoError(t, err)
	return pair
}

func TestRefresh_RotatesAndRevokes(t *testing.T) {
	s, clock := newService(t, sqlitetest.Open(t))
	ctx := context.Background()
	pair := login(t, s)

	clock.t = clock.t.Add(time.Hour)
	next, err := s.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, next.AccessToken)

	_, err = s.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized, "the old refresh token is revoked")

	_, err = s.Refresh(ctx, next.RefreshToken)
	assert.NoError(t, err)
}

func TestRefresh_Rejects(t *testing.T) {
	s, clock := newService(t, sqlitetest.Open(t))
	ctx := context.Background()
	pair := login(t, s)

	_, err := s.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized, "access token is not a refresh token")

	_, err = s.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, ErrUnauthorized)

	clock.t = clock.t.Add(8 * 24 * time.Hour)
	_, err = s.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLogout(t *testing.T) {
	s, _ := newService(t, sqlitetest.Open(t))
	ctx := context.Background()
	first := login(t, s)
	second := login(t, s)

	require.NoError(t, s.Logout(ctx, second.AccessToken, ""))

	_, err := s.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized, "logout revokes every session of the user")
	_, err = s.Refresh(ctx, second.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)

	assert.ErrorIs(t, s.Logout(ctx, "bad", "bad"), ErrUnauthorized)
}

func TestLogout_RefreshTokenOnly(t *testing.T) {
	s, clock := newService(t, sqlitetest.Open(t))
	ctx := context.Background()
	pair := login(t, s)

	clock.t = clock.t.Add(2 * time.Hour)
	require.NoError(t, s.Logout(ctx, pair.AccessToken, pair.RefreshToken), "expired access token still revokes by refresh token")

	_, err := s.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestMe(t *testing.T) {
	s, _ := newService(t, sqlitetest.Open(t))
	ctx := context.Background()
	pair := login(t, s)

	userID, err := s.Authenticate(pair.AccessToken)
	require.NoError(t, err)
	u, err := s.Me(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, phone, u.PhoneNumber)

	_, err = s.Me(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestPurgeExpiredOtps(t *testing.T) {
	s, clock := newService(t, sqlitetest.Open(t))
	ctx := context.Background()

	start(t, s, Identifier{PhoneNumber: phone})
	n, err := s.PurgeExpiredOtps(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.t = clock.t.Add(10 * time.Minute)
	n, err = s.PurgeExpiredOtps(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestVerifyOtp_DBErrorRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s, _ := newService(t, db)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM otp_challenges`).WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	_, _, err = s.VerifyOtp(context.Background(), Identifier{PhoneNumber: phone}, "123456")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	require.NoError(t, mock.ExpectationsWereMet())
}

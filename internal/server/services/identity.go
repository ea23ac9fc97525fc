// Package services holds the identity service's business logic: OTP
// challenges, user accounts and token issuance.
package services

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nrana15/clio/internal/common"
	"github.com/nrana15/clio/internal/dbx"
	"github.com/nrana15/clio/internal/logging"
	"github.com/nrana15/clio/internal/server/auth"
	"github.com/nrana15/clio/internal/server/config"
	"github.com/nrana15/clio/internal/server/models"
	"github.com/nrana15/clio/internal/server/ratelimit"
	"github.com/nrana15/clio/internal/server/repositories/repomanager"
)

// Identifier is the login channel. Exactly one field is set.
type Identifier struct {
	PhoneNumber string
	Email       string
}

func (id Identifier) Validate() error {
	hasPhone, hasEmail := id.PhoneNumber != "", id.Email != ""
	switch {
	case hasPhone == hasEmail:
		return ErrInvalidIdentifier
	case hasPhone && !common.ValidPhone(id.PhoneNumber):
		return ErrInvalidIdentifier
	case hasEmail && !common.ValidEmail(id.Email):
		return ErrInvalidIdentifier
	}
	return nil
}

// Key is the storage and rate limit key. Phone numbers and emails cannot
// collide because only emails contain '@'.
func (id Identifier) Key() string {
	if id.PhoneNumber != "" {
		return id.PhoneNumber
	}
	return id.Email
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int
}

type OtpIssued struct {
	ExpiresIn int
	// Code is only set in development mode.
	Code string
}

type IdentityService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	limiter     *ratelimit.Limiter
	log         logging.Logger

	jwtSecret       []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	otpLifetime     time.Duration
	maxAttempts     int
	devMode         bool
	now             func() time.Time
}

func NewIdentityService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *IdentityService {
	return &IdentityService{
		db:              db,
		repomanager:     m,
		limiter:         ratelimit.New(cfg.StartRate, cfg.StartBurst),
		log:             log.With("module", "identity"),
		jwtSecret:       []byte(cfg.SecretKey),
		accessTokenTTL:  cfg.AccessTokenTTL,
		refreshTokenTTL: cfg.RefreshTokenTTL,
		otpLifetime:     cfg.OtpLifetime,
		maxAttempts:     cfg.OtpMaxAttempts,
		devMode:         cfg.DevMode(),
		now:             time.Now,
	}
}

func hashCode(code string) []byte {
	sum := sha256.Sum256([]byte(code))
	return sum[:]
}

// StartOtp issues a fresh code for id, replacing any pending one.
func (s *IdentityService) StartOtp(ctx context.Context, id Identifier) (*OtpIssued, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if ok, retry := s.limiter.Allow(id.Key()); !ok {
		return nil, &RateLimitError{RetryAfter: retry}
	}

	code, err := common.GenerateDigits(common.OtpLength)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	now := s.now()
	err = s.repomanager.Otps(s.db).Put(ctx, &models.OtpChallenge{
		Identifier: id.Key(),
		CodeHash:   hashCode(code),
		ExpiresAt:  now.Add(s.otpLifetime),
		CreatedAt:  now,
	})
	if err != nil {
		return nil, err
	}

	issued := &OtpIssued{ExpiresIn: int(s.otpLifetime.Seconds())}
	if s.devMode {
		issued.Code = code
		s.log.Info(ctx, "dev otp issued", "identifier", id.Key(), "otp_code", code)
	} else {
		s.log.Info(ctx, "otp issued", "identifier", id.Key())
	}
	return issued, nil
}

// VerifyOtp checks code against the pending challenge for id. On success
// the challenge is consumed, the user is created on first login and a
// token pair is issued. Failed attempts are counted even though an error
// is returned.
func (s *IdentityService) VerifyOtp(ctx context.Context, id Identifier, code string) (*models.User, *TokenPair, error) {
	if err := id.Validate(); err != nil {
		return nil, nil, err
	}
	if !common.ValidOtpCode(code) {
		return nil, nil, ErrInvalidCode
	}

	var (
		user *models.User
		pair *TokenPair
	)
	now := s.now()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		otps := s.repomanager.Otps(tx)

		challenge, err := otps.Find(ctx, id.Key())
		if errors.Is(err, common.ErrNotFound) {
			return ErrNoChallenge
		}
		if err != nil {
			return err
		}

		if !now.Before(challenge.ExpiresAt) {
			if err := otps.Delete(ctx, id.Key()); err != nil {
				return err
			}
			return dbx.Commit(ErrOtpExpired)
		}
		if challenge.Attempts >= s.maxAttempts {
			return ErrAttemptsExceeded
		}
		if subtle.ConstantTimeCompare(challenge.CodeHash, hashCode(code)) != 1 {
			if _, err := otps.IncrementAttempts(ctx, id.Key()); err != nil {
				return err
			}
			return dbx.Commit(ErrInvalidCode)
		}

		if err := otps.Delete(ctx, id.Key()); err != nil {
			return err
		}
		if user, err = s.loginUser(ctx, tx, id, now); err != nil {
			return err
		}
		pair, err = s.issueTokenPair(ctx, tx, user.ID, now)
		return err
	})
	if err != nil {
		if rejected(err) {
			s.log.Info(ctx, "otp rejected", "identifier", id.Key(), "reason", err)
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("verify otp: %w", err)
	}

	s.log.Info(ctx, "user signed in", "user_id", user.ID)
	return user, pair, nil
}

func (s *IdentityService) loginUser(ctx context.Context, tx dbx.DBTX, id Identifier, now time.Time) (*models.User, error) {
	users := s.repomanager.Users(tx)

	user, err := users.FindByIdentifier(ctx, id.PhoneNumber, id.Email)
	if errors.Is(err, common.ErrNotFound) {
		user, err = users.Create(ctx, &models.User{
			PhoneNumber: id.PhoneNumber,
			Email:       id.Email,
			CreatedAt:   now,
		})
	}
	if err != nil {
		return nil, err
	}

	if err := users.MarkLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.IsVerified = true
	user.LastLoginAt = &now
	return user, nil
}

func (s *IdentityService) issueTokenPair(ctx context.Context, tx dbx.DBTX, userID string, now time.Time) (*TokenPair, error) {
	access, _, err := auth.GenerateToken(auth.Access, userID, s.jwtSecret, now, s.accessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, jti, err := auth.GenerateToken(auth.Refresh, userID, s.jwtSecret, now, s.refreshTokenTTL)
	if err != nil {
		return nil, err
	}

	err = s.repomanager.RefreshTokens(tx).Create(ctx, &models.RefreshToken{
		ID:        jti,
		UserID:    userID,
		ExpiresAt: now.Add(s.refreshTokenTTL),
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(s.accessTokenTTL.Seconds()),
	}, nil
}

// Refresh rotates refreshToken: the presented token is revoked and a new
// pair is issued. A revoked or unknown token is ErrUnauthorized.
func (s *IdentityService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	now := s.now()
	claims, err := auth.ParseToken(refreshToken, auth.Refresh, s.jwtSecret, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	var pair *TokenPair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.RefreshTokens(tx)

		stored, err := repo.Find(ctx, claims.ID)
		if errors.Is(err, common.ErrNotFound) {
			return ErrUnauthorized
		}
		if err != nil {
			return err
		}
		if stored.UserID != claims.Subject {
			return ErrUnauthorized
		}

		if err := repo.Delete(ctx, claims.ID); err != nil {
			return err
		}
		pair, err = s.issueTokenPair(ctx, tx, claims.Subject, now)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			s.log.Info(ctx, "refresh token rejected", "user_id", claims.Subject)
			return nil, err
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}
	return pair, nil
}

func rejected(err error) bool {
	for _, target := range []error{ErrNoChallenge, ErrOtpExpired, ErrAttemptsExceeded, ErrInvalidCode} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Authenticate returns the user ID carried by a valid access token.
func (s *IdentityService) Authenticate(accessToken string) (string, error) {
	claims, err := auth.ParseToken(accessToken, auth.Access, s.jwtSecret, s.now())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return claims.Subject, nil
}

// Logout revokes refreshToken if it is valid and, when the access token is
// valid, every other refresh token of the user.
func (s *IdentityService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	now := s.now()
	repo := s.repomanager.RefreshTokens(s.db)
	revoked := false

	if refreshToken != "" {
		if claims, err := auth.ParseToken(refreshToken, auth.Refresh, s.jwtSecret, now); err == nil {
			if err := repo.Delete(ctx, claims.ID); err != nil {
				return err
			}
			revoked = true
		}
	}

	if userID, err := s.Authenticate(accessToken); err == nil {
		if err := repo.DeleteByUser(ctx, userID); err != nil {
			return err
		}
		s.log.Info(ctx, "user signed out", "user_id", userID)
		revoked = true
	}

	if !revoked {
		return ErrUnauthorized
	}
	return nil
}

func (s *IdentityService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).Get(ctx, userID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// PurgeExpiredOtps drops challenges whose lifetime has passed.
func (s *IdentityService) PurgeExpiredOtps(ctx context.Context) (int64, error) {
	return s.repomanager.Otps(s.db).DeleteExpired(ctx, s.now().Unix())
}

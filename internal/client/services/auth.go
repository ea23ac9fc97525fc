// Package services contains application services for the clio client.
// This file defines the authentication service: OTP login, session resume
// with refresh, logout and the local liveness check the session machine
// relies on.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nrana15/clio/internal/client/client"
	"github.com/nrana15/clio/internal/client/credstore"
	"github.com/nrana15/clio/internal/common"
	"github.com/nrana15/clio/internal/logging"
)

// expirySkew treats a token that expires within this window as expired, so
// a resumed session does not start with a token about to lapse.
const expirySkew = 30 * time.Second

// Grant is an established session.
type Grant struct {
	credstore.Record
	ExpiresAt time.Time
}

func (g *Grant) Identifier() client.Identifier {
	return client.Identifier{PhoneNumber: g.PhoneNumber, Email: g.Email}
}

// AuthService defines authentication operations for the session machine.
//
// Contract:
//   - StartLogin: ask the identity service to send a code.
//   - CompleteLogin: verify the code and persist the credentials before
//     returning.
//   - Resume: restore a stored session, refreshing an expired access token.
//     Returns (nil, nil) when there is nothing to resume.
//   - Logout: best-effort remote revoke, then wipe local credentials.
//   - IsLoggedIn: local liveness only.
//   - Profile: fetch the signed-in user through the refresh interceptor.
//
// All methods must honor context cancellation/timeouts.
type AuthService interface {
	StartLogin(ctx context.Context, id client.Identifier) (*client.OtpChallenge, error)
	CompleteLogin(ctx context.Context, id client.Identifier, code string) (*Grant, error)
	Resume(ctx context.Context) (*Grant, error)
	Logout(ctx context.Context) error
	IsLoggedIn(ctx context.Context) (bool, error)
	Profile(ctx context.Context) (*client.User, error)
}

// authService is the concrete AuthService backed by a remote Client
// and the local credential store.
type authService struct {
	client client.Client
	store  credstore.Store
	log    logging.Logger
	now    func() time.Time
}

// NewAuthService constructs an AuthService bound to the given API client and store.
func NewAuthService(c client.Client, store credstore.Store, log logging.Logger) AuthService {
	return &authService{
		client: c,
		store:  store,
		log:    log.With("module", "auth"),
		now:    time.Now,
	}
}

func (a *authService) StartLogin(ctx context.Context, id client.Identifier) (*client.OtpChallenge, error) {
	ch, err := a.client.RequestOtp(ctx, id)
	if err != nil {
		return nil, err
	}
	a.log.Info(ctx, "otp requested", "identifier", id.String(), "expires_in", ch.ExpiresInSeconds)
	return ch, nil
}

// CompleteLogin verifies code and stores the resulting session in one
// transaction. A failed save fails the login; the caller never sees a
// session that is not on disk.
func (a *authService) CompleteLogin(ctx context.Context, id client.Identifier, code string) (*Grant, error) {
	t, err := a.client.VerifyOtp(ctx, id, code)
	if err != nil {
		return nil, err
	}

	rec := credstore.Record{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		UserID:       t.UserID,
		PhoneNumber:  id.PhoneNumber,
		Email:        id.Email,
	}
	if err := a.store.Save(ctx, &rec); err != nil {
		return nil, fmt.Errorf("save credentials: %w", err)
	}

	a.log.Info(ctx, "login completed", "user_id", t.UserID)
	return &Grant{Record: rec, ExpiresAt: t.ExpiresAt}, nil
}

func (a *authService) Resume(ctx context.Context) (*Grant, error) {
	rec, err := a.store.Load(ctx)
	if errors.Is(err, common.ErrCredentialCorrupt) {
		a.log.Warn(ctx, "stored credentials unreadable, starting signed out", "error", err)
		return nil, a.store.ClearAll(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if rec.AccessToken == "" {
		return nil, nil
	}

	exp, _, _ := client.TokenClaims(rec.AccessToken)
	// Opaque tokens and tokens without exp are taken as live; a stale one
	// is discovered on the first authenticated call.
	if exp.IsZero() || a.now().Add(expirySkew).Before(exp) {
		return &Grant{Record: *rec, ExpiresAt: exp}, nil
	}

	a.log.Info(ctx, "access token expired, refreshing", "user_id", rec.UserID)
	t, err := a.client.Refresh(ctx, rec.RefreshToken)
	if err != nil {
		if clearErr := a.store.ClearAll(ctx); clearErr != nil {
			return nil, errors.Join(err, clearErr)
		}
		return nil, err
	}

	rec.AccessToken, rec.RefreshToken = t.AccessToken, t.RefreshToken
	if err := a.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save refreshed credentials: %w", err)
	}
	return &Grant{Record: *rec, ExpiresAt: t.ExpiresAt}, nil
}

// Logout never fails because of the network. Only a local store error is
// returned.
func (a *authService) Logout(ctx context.Context) error {
	access, err := a.store.Get(ctx, credstore.KeyAccessToken)
	if err == nil && access != "" {
		a.client.Logout(ctx, access)
	}

	if err := a.store.ClearAll(ctx); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	a.log.Info(ctx, "logged out")
	return nil
}

// IsLoggedIn reports a corrupt store as signed out.
func (a *authService) IsLoggedIn(ctx context.Context) (bool, error) {
	ok, err := a.store.IsLoggedIn(ctx)
	if errors.Is(err, common.ErrCredentialCorrupt) {
		return false, nil
	}
	return ok, err
}

func (a *authService) Profile(ctx context.Context) (*client.User, error) {
	var u client.User
	if err := a.client.Do(ctx, http.MethodGet, "/users/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

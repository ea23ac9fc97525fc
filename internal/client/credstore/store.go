package credstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/nrana15/clio/internal/client/repositories/credentials"
	"github.com/nrana15/clio/internal/common"
)

type Key string

const (
	KeyAccessToken      Key = "access_token"
	KeyRefreshToken     Key = "refresh_token"
	KeyUserID           Key = "user_id"
	KeyPhoneNumber      Key = "phone_number"
	KeyEmail            Key = "email"
	KeyBiometricEnabled Key = "biometric_enabled"
)

// sessionKeys are the keys written by Save. The biometric flag is a device
// preference and is only changed through SetBiometricEnabled or ClearAll.
var sessionKeys = []Key{KeyAccessToken, KeyRefreshToken, KeyUserID, KeyPhoneNumber, KeyEmail}

var allKeys = []Key{KeyAccessToken, KeyRefreshToken, KeyUserID, KeyPhoneNumber, KeyEmail, KeyBiometricEnabled}

var ErrCorrupt = fmt.Errorf("%w: stored value cannot be opened", common.ErrCredentialCorrupt)

// Record is the persisted credential set.
type Record struct {
	AccessToken      string
	RefreshToken     string
	UserID           string
	PhoneNumber      string
	Email            string
	BiometricEnabled bool
}

func (r *Record) value(k Key) string {
	switch k {
	case KeyAccessToken:
		return r.AccessToken
	case KeyRefreshToken:
		return r.RefreshToken
	case KeyUserID:
		return r.UserID
	case KeyPhoneNumber:
		return r.PhoneNumber
	case KeyEmail:
		return r.Email
	case KeyBiometricEnabled:
		return strconv.FormatBool(r.BiometricEnabled)
	}
	return ""
}

func (r *Record) assign(k Key, v string) {
	switch k {
	case KeyAccessToken:
		r.AccessToken = v
	case KeyRefreshToken:
		r.RefreshToken = v
	case KeyUserID:
		r.UserID = v
	case KeyPhoneNumber:
		r.PhoneNumber = v
	case KeyEmail:
		r.Email = v
	case KeyBiometricEnabled:
		r.BiometricEnabled, _ = strconv.ParseBool(v)
	}
}

// Store is what the rest of the client needs from credential persistence.
type Store interface {
	Get(ctx context.Context, key Key) (string, error)
	Set(ctx context.Context, key Key, value string) error
	Delete(ctx context.Context, key Key) error

	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	ClearAll(ctx context.Context) error
	IsLoggedIn(ctx context.Context) (bool, error)

	BiometricEnabled(ctx context.Context) (bool, error)
	SetBiometricEnabled(ctx context.Context, enabled bool) error
}

// Backend stores sealed blobs. Update runs fn against a repository whose
// writes become visible together or not at all.
type Backend interface {
	credentials.Repository
	Update(ctx context.Context, fn func(repo credentials.Repository) error) error
}

// Sealer encrypts a value bound to its key name.
type Sealer interface {
	Seal(name string, plaintext []byte) ([]byte, error)
	Open(name string, sealed []byte) ([]byte, error)
}

// Vault implements Store over a Backend and a Sealer.
type Vault struct {
	backend Backend
	sealer  Sealer
}

var _ Store = (*Vault)(nil)

func NewVault(backend Backend, sealer Sealer) *Vault {
	return &Vault{backend: backend, sealer: sealer}
}

// Get returns "" for an absent key.
func (v *Vault) Get(ctx context.Context, key Key) (string, error) {
	raw, err := v.backend.Get(ctx, string(key))
	if err != nil {
		return "", err
	}
	if raw == nil {
		return "", nil
	}
	pt, err := v.sealer.Open(string(key), raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrCorrupt, key)
	}
	return string(pt), nil
}

// Set stores value under key. An empty value deletes the key so that a
// cleared field reads back exactly like one never written.
func (v *Vault) Set(ctx context.Context, key Key, value string) error {
	return v.set(ctx, v.backend, key, value)
}

func (v *Vault) set(ctx context.Context, repo credentials.Repository, key Key, value string) error {
	if value == "" {
		return repo.Delete(ctx, string(key))
	}
	sealed, err := v.sealer.Seal(string(key), []byte(value))
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}
	return repo.Set(ctx, string(key), sealed)
}

func (v *Vault) Delete(ctx context.Context, key Key) error {
	return v.backend.Delete(ctx, string(key))
}

// Load reads every known key in one pass. Unknown keys are ignored.
func (v *Vault) Load(ctx context.Context) (*Record, error) {
	all, err := v.backend.List(ctx)
	if err != nil {
		return nil, err
	}

	rec := &Record{}
	for _, k := range allKeys {
		raw, ok := all[string(k)]
		if !ok || raw == nil {
			continue
		}
		pt, err := v.sealer.Open(string(k), raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrCorrupt, k)
		}
		rec.assign(k, string(pt))
	}
	return rec, nil
}

// Save writes the session fields of rec in one transaction. Empty fields
// are removed.
func (v *Vault) Save(ctx context.Context, rec *Record) error {
	if rec == nil {
		return errors.New("credstore: nil record")
	}
	return v.backend.Update(ctx, func(repo credentials.Repository) error {
		for _, k := range sessionKeys {
			if err := v.set(ctx, repo, k, rec.value(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (v *Vault) ClearAll(ctx context.Context) error {
	return v.backend.Clear(ctx)
}

// IsLoggedIn reports whether a non-empty access token is present. It says
// nothing about whether the identity service still accepts it.
func (v *Vault) IsLoggedIn(ctx context.Context) (bool, error) {
	tok, err := v.AccessToken(ctx)
	if err != nil {
		return false, err
	}
	return tok != "", nil
}

func (v *Vault) AccessToken(ctx context.Context) (string, error) {
	return v.Get(ctx, KeyAccessToken)
}

func (v *Vault) SetAccessToken(ctx context.Context, token string) error {
	return v.Set(ctx, KeyAccessToken, token)
}

func (v *Vault) RefreshToken(ctx context.Context) (string, error) {
	return v.Get(ctx, KeyRefreshToken)
}

func (v *Vault) UserID(ctx context.Context) (string, error) {
	return v.Get(ctx, KeyUserID)
}

func (v *Vault) PhoneNumber(ctx context.Context) (string, error) {
	return v.Get(ctx, KeyPhoneNumber)
}

func (v *Vault) Email(ctx context.Context) (string, error) {
	return v.Get(ctx, KeyEmail)
}

func (v *Vault) BiometricEnabled(ctx context.Context) (bool, error) {
	s, err := v.Get(ctx, KeyBiometricEnabled)
	if err != nil || s == "" {
		return false, err
	}
	enabled, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%w: %s", ErrCorrupt, KeyBiometricEnabled)
	}
	return enabled, nil
}

// SetBiometricEnabled stores the flag. Disabling removes the key.
func (v *Vault) SetBiometricEnabled(ctx context.Context, enabled bool) error {
	if !enabled {
		return v.Delete(ctx, KeyBiometricEnabled)
	}
	return v.Set(ctx, KeyBiometricEnabled, strconv.FormatBool(enabled))
}

package cryptox

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	secret := []byte("device-secret")
	salt := []byte("fixed-salt-16byt")

	key1 := DeriveKey(secret, salt)
	key2 := DeriveKey(secret, salt)

	if !bytes.Equal(key1, key2) {
		t.Errorf("expected same result for same inputs, got different")
	}
	assert.Len(t, key1, KeySize)
}

func TestDeriveKey_DifferentSalts(t *testing.T) {
	secret := []byte("device-secret")

	key1 := DeriveKey(secret, []byte("salt-1"))
	key2 := DeriveKey(secret, []byte("salt-2"))

	if bytes.Equal(key1, key2) {
		t.Errorf("expected different results for different salts, got same")
	}
}

func TestLoadOrCreateKey_CreatesOnceThenReuses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "device.key")

	key1, err := LoadOrCreateKey(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.Equal(t, int64(SaltSize+SecretSize), info.Size())

	key2, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Equal(t, key1, key2)
}

func TestLoadOrCreateKey_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.key")
	require.NoError(t, os.WriteFile(path, []byte("short"), 0o600))

	_, err := LoadOrCreateKey(path)
	require.ErrorIs(t, err, ErrKeyFile)
}

func newTestAEAD(t *testing.T) *AEAD {
	t.Helper()
	a, err := NewAEAD(bytes.Repeat([]byte{7}, KeySize))
	require.NoError(t, err)
	return a
}

func TestAEAD_RoundTrip(t *testing.T) {
	a := newTestAEAD(t)

	sealed, err := a.Seal("access_token", []byte("eyJhbGciOi"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "eyJhbGciOi")

	pt, err := a.Open("access_token", sealed)
	require.NoError(t, err)
	assert.Equal(t, "eyJhbGciOi", string(pt))
}

func TestAEAD_NonceIsFresh(t *testing.T) {
	a := newTestAEAD(t)

	s1, err := a.Seal("k", []byte("same"))
	require.NoError(t, err)
	s2, err := a.Seal("k", []byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, s1, s2)
}

func TestAEAD_Open_Failures(t *testing.T) {
	a := newTestAEAD(t)
	sealed, err := a.Seal("refresh_token", []byte("r1"))
	require.NoError(t, err)

	t.Run("wrong name", func(t *testing.T) {
		_, err := a.Open("access_token", sealed)
		require.ErrorIs(t, err, ErrOpen)
	})

	t.Run("tampered", func(t *testing.T) {
		bad := append([]byte(nil), sealed...)
		bad[len(bad)-1] ^= 0xff
		_, err := a.Open("refresh_token", bad)
		require.ErrorIs(t, err, ErrOpen)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := a.Open("refresh_token", sealed[:5])
		require.ErrorIs(t, err, ErrOpen)
	})

	t.Run("other key", func(t *testing.T) {
		other, err := NewAEAD(bytes.Repeat([]byte{9}, KeySize))
		require.NoError(t, err)
		_, err = other.Open("refresh_token", sealed)
		require.ErrorIs(t, err, ErrOpen)
	})
}

func TestNewAEAD_BadKey(t *testing.T) {
	_, err := NewAEAD([]byte("short"))
	require.Error(t, err)
}

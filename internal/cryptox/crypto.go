// Package cryptox seals credential values at rest.
//
// A device key file holds a random salt and secret. The sealing key is
// derived from both with argon2id, and each value is encrypted with
// AES-256-GCM using its credential name as additional data, so a value
// copied under another name fails to open.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nrana15/clio/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	SaltSize   = 16
	SecretSize = 32
	KeySize    = 32

	keyFileSize = SaltSize + SecretSize
)

// ErrOpen is returned when a sealed value cannot be authenticated.
var ErrOpen = errors.New("cryptox: message authentication failed")

// ErrKeyFile is returned when the key file exists but has the wrong shape.
var ErrKeyFile = errors.New("cryptox: malformed key file")

func DeriveKey(secret []byte, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, KeySize)
}

// LoadOrCreateKey reads the key file at path, creating it with mode 0600
// when absent, and returns the derived sealing key.
func LoadOrCreateKey(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		raw = common.GenerateRandByteArray(keyFileSize)
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create key dir: %w", err)
		}
		if err := os.WriteFile(path, raw, 0o600); err != nil {
			return nil, fmt.Errorf("write key file: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	if len(raw) != keyFileSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrKeyFile, len(raw))
	}

	key := DeriveKey(raw[SaltSize:], raw[:SaltSize])
	common.WipeByteArray(raw)
	return key, nil
}

// AEAD seals and opens named values with one key.
type AEAD struct {
	gcm cipher.AEAD
}

func NewAEAD(key []byte) (*AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AEAD{gcm: gcm}, nil
}

// Seal returns nonce||ciphertext for plaintext bound to name.
func (a *AEAD) Seal(name string, plaintext []byte) ([]byte, error) {
	nonce := common.GenerateRandByteArray(a.gcm.NonceSize())
	out := make([]byte, 0, len(nonce)+len(plaintext)+a.gcm.Overhead())
	out = append(out, nonce...)
	return a.gcm.Seal(out, nonce, plaintext, []byte(name)), nil
}

func (a *AEAD) Open(name string, sealed []byte) ([]byte, error) {
	ns := a.gcm.NonceSize()
	if len(sealed) < ns+a.gcm.Overhead() {
		return nil, ErrOpen
	}
	pt, err := a.gcm.Open(nil, sealed[:ns], sealed[ns:], []byte(name))
	if err != nil {
		return nil, ErrOpen
	}
	return pt, nil
}

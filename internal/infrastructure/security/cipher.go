// Package security provides authenticated encryption for stored credentials.
package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/doeshing/notegen/internal/domain"
	"github.com/doeshing/notegen/internal/ports"
)

// Sealed value prefixes.
const (
	SealedPrefix = "xc1:"
	LegacyPrefix = domain.LegacyCredentialPrefix
)

// ErrMalformed is returned for values that are neither sealed nor legacy.
var ErrMalformed = errors.New("malformed credential value")

// SealedCipher implements ports.Cipher with XChaCha20-Poly1305.
type SealedCipher struct {
	key []byte
}

// NewSealedCipher builds a cipher from a 32-byte key.
func NewSealedCipher(key []byte) (*SealedCipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes", domain.ErrCipherUnavailable, chacha20poly1305.KeySize)
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &SealedCipher{key: k}, nil
}

// LoadOrCreateKey reads the master key at path, creating a random one with
// owner-only permissions when missing.
func LoadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("%w: %s has %d bytes", domain.ErrCipherUnavailable, path, len(data))
		}
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %v", domain.ErrCipherUnavailable, err)
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCipherUnavailable, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCipherUnavailable, err)
	}
	// O_EXCL so two processes racing on first run cannot both write a key.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, domain.SecureFilePermissions)
	if err != nil {
		if os.IsExist(err) {
			return LoadOrCreateKey(path)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrCipherUnavailable, err)
	}
	defer f.Close()
	if _, err := f.Write(key); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCipherUnavailable, err)
	}
	return key, nil
}

// Seal encrypts plaintext bound to aad.
func (c *SealedCipher) Seal(plaintext, aad string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrCipherUnavailable, err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrCipherUnavailable, err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), []byte(aad))
	return SealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a sealed value, or decodes a legacy one.
func (c *SealedCipher) Open(value, aad string) (string, error) {
	switch {
	case strings.HasPrefix(value, SealedPrefix):
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, SealedPrefix))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		aead, err := chacha20poly1305.NewX(c.key)
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrCipherUnavailable, err)
		}
		if len(raw) < aead.NonceSize() {
			return "", ErrMalformed
		}
		nonce, ct := raw[:aead.NonceSize()], raw[aead.NonceSize():]
		plain, err := aead.Open(nil, nonce, ct, []byte(aad))
		if err != nil {
			return "", fmt.Errorf("open credential: %w", err)
		}
		return string(plain), nil
	case strings.HasPrefix(value, LegacyPrefix):
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, LegacyPrefix))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return string(raw), nil
	default:
		return "", ErrMalformed
	}
}

// UnavailableCipher refuses every operation. It stands in when the master
// key cannot be loaded so credential writes fail closed.
type UnavailableCipher struct {
	Cause error
}

func (u UnavailableCipher) Seal(string, string) (string, error) {
	return "", u.err()
}

func (u UnavailableCipher) Open(string, string) (string, error) {
	return "", u.err()
}

func (u UnavailableCipher) err() error {
	if u.Cause == nil {
		return domain.ErrCipherUnavailable
	}
	if errors.Is(u.Cause, domain.ErrCipherUnavailable) {
		return u.Cause
	}
	return fmt.Errorf("%w: %v", domain.ErrCipherUnavailable, u.Cause)
}

var (
	_ ports.Cipher = (*SealedCipher)(nil)
	_ ports.Cipher = UnavailableCipher{}
)

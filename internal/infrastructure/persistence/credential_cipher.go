package persistence

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	sealedCredentialPrefix = "v1:"
	nonceSize              = 24
)

var (
	// ErrCredentialKeyMissing is returned when a cipher is built without a key
	ErrCredentialKeyMissing = errors.New("persistence: credential key is required")
	// ErrCredentialCorrupt is returned when a sealed credential cannot be opened
	ErrCredentialCorrupt = errors.New("persistence: sealed credential is corrupt")
)

// CredentialCipher seals tenant access credentials before they are stored
type CredentialCipher interface {
	Seal(plaintext string) (string, error)
	Open(stored string) (string, error)
}

// SecretboxCipher seals credentials with NaCl secretbox. The stored form is
// "v1:" + base64(nonce || box). Values without the prefix are returned as-is
// so rows written before encryption was enabled stay readable.
type SecretboxCipher struct {
	key [32]byte
}

// NewSecretboxCipher derives the box key from the configured secret with SHA-256
func NewSecretboxCipher(secret string) (*SecretboxCipher, error) {
	if secret == "" {
		return nil, ErrCredentialKeyMissing
	}
	return &SecretboxCipher{key: sha256.Sum256([]byte(secret))}, nil
}

// Seal encrypts plaintext. The empty credential stays empty.
func (c *SecretboxCipher) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &c.key)
	return sealedCredentialPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a stored credential
func (c *SecretboxCipher) Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedCredentialPrefix) {
		return stored, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, sealedCredentialPrefix))
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrCredentialCorrupt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &c.key)
	if !ok {
		return "", ErrCredentialCorrupt
	}
	return string(plain), nil
}

// plaintextCipher stores credentials unchanged; used when no key is configured
// outside production.
type plaintextCipher struct{}

func (plaintextCipher) Seal(plaintext string) (string, error) { return plaintext, nil }
func (plaintextCipher) Open(stored string) (string, error)    { return stored, nil }

// NewCredentialCipher returns a secretbox cipher for a non-empty secret and a
// pass-through cipher otherwise.
func NewCredentialCipher(secret string) CredentialCipher {
	if secret == "" {
		return plaintextCipher{}
	}
	c, _ := NewSecretboxCipher(secret)
	return c
}

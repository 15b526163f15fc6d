package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

// Key derivation salt. Fixed per application so the same passphrase yields
// the same key across restarts.
var kdfSalt = []byte("logpipe.v1")

// Cipher wraps AES-GCM encryption of serialized log records. A Cipher built
// without a passphrase is a pass-through: Encrypt and Decrypt return input
// unchanged and Enabled reports false so callers can surface the gap as a
// configuration warning instead of a silent success.
type Cipher struct {
	gcm cipher.AEAD
}

// NewCipher derives a 32-byte key from the passphrase via scrypt. An empty
// passphrase produces a disabled pass-through cipher.
func NewCipher(passphrase string) (*Cipher, error) {
	if passphrase == "" {
		return &Cipher{}, nil
	}

	key, err := scrypt.Key([]byte(passphrase), kdfSalt, 1<<15, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("security: derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("security: init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: init GCM: %w", err)
	}

	return &Cipher{gcm: gcm}, nil
}

// Enabled reports whether records are actually protected.
func (c *Cipher) Enabled() bool {
	return c.gcm != nil
}

// Encrypt seals plaintext and returns nonce + ciphertext. Pass-through when
// disabled.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	if c.gcm == nil {
		return plaintext, nil
	}

	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens nonce + ciphertext. Pass-through when disabled.
func (c *Cipher) Decrypt(data []byte) ([]byte, error) {
	if c.gcm == nil {
		return data, nil
	}

	nonceSize := c.gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New("security: ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return c.gcm.Open(nil, nonce, ciphertext, nil)
}

// Package vault encrypts payer data held in process memory. A single key is
// derived from the configured passphrase, so any instance built from the same
// passphrase can decrypt ciphertext produced by another.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyLen     = 32
	iterations = 100_000
	hashLen    = 8
)

// Deterministic on purpose: the same passphrase must yield the same key in
// every process that shares it.
var derivationSalt = []byte("paygate.vault.v1")

var (
	ErrEncrypt = errors.New("encryption_failed")
	ErrDecrypt = errors.New("decryption_failed")
)

// Vault performs symmetric encryption of sensitive strings.
type Vault struct {
	aead cipher.AEAD
}

// New derives the encryption key from the passphrase.
func New(passphrase string) (*Vault, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("%w: empty passphrase", ErrEncrypt)
	}

	key := pbkdf2.Key([]byte(passphrase), derivationSalt, iterations, keyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncrypt, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncrypt, err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt seals the plaintext under a fresh nonce. Empty input passes through
// unchanged so absent values stay absent.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncrypt, err)
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Fails with ErrDecrypt on malformed input or
// ciphertext produced under a different key.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(raw) <= v.aead.NonceSize() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	nonce, sealed := raw[:v.aead.NonceSize()], raw[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plaintext), nil
}

// Hash returns a short stable digest for log correlation. Diagnostic only,
// never an authorization input.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:hashLen]
}

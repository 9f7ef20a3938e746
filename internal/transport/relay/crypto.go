// Package relay is the Relay Transport: a functionally identical
// subscriber channel carried over an untrusted rendezvous server, so a
// client on a foreign network can attach without an inbound port on the
// host (spec §4.H).
package relay

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrDecryptFailed signals a mismatched key or tampered ciphertext; it
// must never be silently swallowed into an accepted message (spec §4.H
// security invariant).
var ErrDecryptFailed = errors.New("relay: decrypt failed (mismatched key or tampered ciphertext)")

// GenerateKey produces a fresh 256-bit symmetric key for a new room.
func GenerateKey() ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// Seal encrypts plaintext under key with a fresh 192-bit random nonce,
// returning base64(nonce ‖ ciphertext) per spec §4.H's wire format.
func Seal(key, plaintext []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	ciphertext := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open decrypts a base64(nonce ‖ ciphertext) blob produced by Seal.
func Open(key []byte, blob string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(raw) < aead.NonceSize() {
		return nil, ErrDecryptFailed
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

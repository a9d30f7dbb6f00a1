// Package envelope seals relay payloads for transport.
//
// Each pairing derives a symmetric key from an X25519 exchange; payloads
// travel as nonce-prefixed ChaCha20-Poly1305 sealed boxes. The relay
// only ever sees sealed envelopes.
package envelope

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the symmetric key length in bytes.
const KeySize = chacha20poly1305.KeySize

// Sealing errors.
var (
	ErrEnvelopeTooShort = errors.New("sealed envelope shorter than nonce")
	ErrOpenFailed       = errors.New("envelope authentication failed")
)

// Sealer seals and opens payloads for one pairing.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// GenerateKeyPair creates an X25519 key pair for the key exchange.
func GenerateKeyPair() (priv, pub [32]byte, err error) {
	if _, err = io.ReadFull(rand.Reader, priv[:]); err != nil {
		return priv, pub, fmt.Errorf("generate private key: %w", err)
	}
	pubSlice, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return priv, pub, err
	}
	copy(pub[:], pubSlice)
	return priv, pub, nil
}

// DeriveSymKey computes the shared symmetric key from our private key
// and the peer's public key.
func DeriveSymKey(priv, peerPub [32]byte) ([KeySize]byte, error) {
	var key [KeySize]byte

	shared, err := curve25519.X25519(priv[:], peerPub[:])
	if err != nil {
		return key, fmt.Errorf("key exchange: %w", err)
	}

	hkdfReader := hkdf.New(sha256.New, shared, nil, nil)
	if _, err := io.ReadFull(hkdfReader, key[:]); err != nil {
		return key, fmt.Errorf("derive symmetric key: %w", err)
	}
	return key, nil
}

// SymSealer seals payloads with a shared symmetric key. Sealed output is
// the random nonce followed by the ciphertext.
type SymSealer struct {
	key [KeySize]byte
}

// NewSymSealer creates a sealer around a derived symmetric key.
func NewSymSealer(key [KeySize]byte) *SymSealer {
	return &SymSealer{key: key}
}

// Seal encrypts the plaintext.
func (s *SymSealer) Seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(s.key[:])
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a sealed envelope.
func (s *SymSealer) Open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(s.key[:])
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, ErrEnvelopeTooShort
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrOpenFailed
	}
	return plaintext, nil
}

// Compile-time interface satisfaction check.
var _ Sealer = (*SymSealer)(nil)

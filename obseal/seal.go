// Package obseal seals and opens opaque buffers
// with XChaCha20-Poly1305.
//
// Unlike the outboard tree, sealing requires a secret key;
// key management is the caller's concern.
package obseal

import (
	"crypto/cipher"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	KeySize   = chacha20poly1305.KeySize
	NonceSize = chacha20poly1305.NonceSizeX
	Overhead  = chacha20poly1305.Overhead
)

// ErrOpen is returned from [Open] when the ciphertext
// fails authentication under the given key and nonce.
var ErrOpen = errors.New("message authentication failed")

// Seal encrypts and authenticates plaintext.
// The result is Overhead bytes longer than plaintext.
// A nonce must never be reused with the same key.
func Seal(key, nonce, plaintext []byte) ([]byte, error) {
	aead, err := newAEAD(key, nonce)
	if err != nil {
		return nil, err
	}

	return aead.Seal(nil, nonce, plaintext, nil), nil
}

// Open authenticates and decrypts a ciphertext produced by [Seal].
func Open(key, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := newAEAD(key, nonce)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrOpen
	}
	return plaintext, nil
}

func newAEAD(key, nonce []byte) (cipher.AEAD, error) {
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("nonce must be %d bytes (got %d)", NonceSize, len(nonce))
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return aead, nil
}

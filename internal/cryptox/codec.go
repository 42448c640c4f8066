// Package cryptox implements the amount codec: a reversible transform applied
// to monetary values before they are persisted, so raw amounts never reach
// storage in cleartext.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/crypto/argon2"

	"finledger/internal/core"
)

// ErrMalformedCiphertext is returned when a stored amount cannot be decoded.
// Decoding failures must propagate: a ledger sum is meaningless with a partial
// decode.
var ErrMalformedCiphertext = errors.New("malformed amount ciphertext")

const nonceSize = 12

// Codec seals amounts with AES-256-GCM. Each Encode draws a fresh nonce, so
// ciphertexts differ between calls; Decode(Encode(x)) == x always holds.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec derives a 32-byte key from the passphrase and salt with argon2id
// and prepares the AEAD.
func NewCodec(passphrase, salt []byte) (*Codec, error) {
	if len(passphrase) == 0 {
		return nil, errors.New("empty codec passphrase")
	}
	key := argon2.IDKey(passphrase, salt, 1, 64*1024, 4, 32)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encode seals the amount and returns base64(nonce || ciphertext).
func (c *Codec) Encode(amount core.Money) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	plaintext := []byte(strconv.FormatInt(amount.Cents, 10))
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decode reverses Encode. Corrupt, truncated or tampered input is reported as
// ErrMalformedCiphertext.
func (c *Codec) Decode(encoded string) (core.Money, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return core.Money{}, fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}
	if len(raw) < nonceSize {
		return core.Money{}, fmt.Errorf("%w: input shorter than nonce", ErrMalformedCiphertext)
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return core.Money{}, fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}

	cents, err := strconv.ParseInt(string(plaintext), 10, 64)
	if err != nil {
		return core.Money{}, fmt.Errorf("%w: bad plaintext", ErrMalformedCiphertext)
	}
	return core.Money{Cents: cents}, nil
}

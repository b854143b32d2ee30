// Package payload seals templates for transport with AES-GCM.
//
// Wire format: base64(nonce[12] || ciphertext[N] || tag[16]). No associated
// data is bound.
package payload

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

const (
	NonceSize = 12
	TagSize   = 16
	// KeySize is the length of keys issued by the key-exchange service.
	KeySize = 32
)

var (
	ErrInvalidKey       = errors.New("key must be 16, 24 or 32 bytes")
	ErrMalformedPayload = errors.New("payload is not valid base64 or is too short")
)

// AuthenticationError is returned when the tag does not verify, i.e. the
// payload was tampered with or sealed under another key.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("payload authentication failed: %v", e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// Random is the nonce and key source. Tests may replace it.
var Random io.Reader = rand.Reader

func newGCM(key []byte) (cipher.AEAD, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create AES block")
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext under key with a fresh random nonce.
func Encrypt(plaintext, key []byte) (string, error) {
	aesGCM, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, NonceSize)
	if _, err = io.ReadFull(Random, nonce); err != nil {
		return "", errors.Wrap(err, "cannot draw nonce")
	}

	sealed := aesGCM.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// EncryptWithEncodedKey decodes a base64 session key and calls Encrypt.
func EncryptWithEncodedKey(plaintext []byte, b64Key string) (string, error) {
	key, err := DecodeKey(b64Key)
	if err != nil {
		return "", err
	}
	return Encrypt(plaintext, key)
}

// Decrypt opens a payload produced by Encrypt.
func Decrypt(encoded string, key []byte) ([]byte, error) {
	aesGCM, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) < NonceSize+TagSize {
		return nil, ErrMalformedPayload
	}

	nonce, sealed := raw[:NonceSize], raw[NonceSize:]
	plain, err := aesGCM.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, &AuthenticationError{Err: err}
	}
	return plain, nil
}

// DecodeKey turns the key-exchange text form into key bytes.
func DecodeKey(b64Key string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(b64Key)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidKey, err.Error())
	}
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	}
	return nil, ErrInvalidKey
}

// GenerateKey returns KeySize random bytes.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(Random, key); err != nil {
		return nil, errors.Wrap(err, "cannot generate key")
	}
	return key, nil
}

// Split exposes the three wire fields of an encoded payload.
func Split(encoded string) (nonce, ciphertext, tag []byte, err error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) < NonceSize+TagSize {
		return nil, nil, nil, ErrMalformedPayload
	}
	n := len(raw) - TagSize
	return raw[:NonceSize], raw[NonceSize:n], raw[n:], nil
}

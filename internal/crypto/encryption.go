// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package crypto seals key material at rest.
//
// A sealed file is a JSON envelope holding an Argon2id salt and parameters,
// an AES-256-GCM nonce and the ciphertext. It is decryptable with only the
// file and the passphrase. Callers bind a file to its identity by passing
// associated data (for key files, the key's address).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	envelopeVersion = 1
	saltLen         = 32
	keyLen          = 32 // AES-256
)

var ErrWrongPassphrase = errors.New("incorrect passphrase or tampered file")

// Params are the Argon2id cost parameters recorded in each envelope.
type Params struct {
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory_kib"`
	Threads uint8  `json:"threads"`
}

// DefaultParams follow the OWASP Argon2id recommendation.
func DefaultParams() Params {
	return Params{Time: 1, Memory: 64 * 1024, Threads: 4}
}

// Envelope is the on-disk sealed format.
type Envelope struct {
	Version    int    `json:"envelope_version"`
	KDF        Params `json:"kdf"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// IsSealed checks if data appears to be a sealed envelope.
func IsSealed(data []byte) bool {
	var env Envelope
	return json.Unmarshal(data, &env) == nil && env.Version > 0 && env.Ciphertext != ""
}

func deriveKey(passphrase, salt []byte, p Params) []byte {
	return argon2.IDKey(passphrase, salt, p.Time, p.Memory, p.Threads, keyLen)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Seal encrypts plaintext with DefaultParams.
func Seal(plaintext, passphrase, aad []byte) ([]byte, error) {
	return SealWithParams(plaintext, passphrase, aad, DefaultParams())
}

// SealWithParams encrypts plaintext under a passphrase-derived key.
func SealWithParams(plaintext, passphrase, aad []byte, p Params) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("passphrase is required")
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key := deriveKey(passphrase, salt, p)
	defer ZeroBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	env := Envelope{
		Version:    envelopeVersion,
		KDF:        p,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, plaintext, aad)),
	}
	return json.MarshalIndent(env, "", "  ")
}

// Open decrypts a sealed envelope. aad must match the value given to Seal.
func Open(sealed, passphrase, aad []byte) ([]byte, error) {
	var env Envelope
	if err := json.Unmarshal(sealed, &env); err != nil {
		return nil, fmt.Errorf("failed to parse envelope: %w", err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("envelope_version %d not supported (expected %d)", env.Version, envelopeVersion)
	}

	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	key := deriveKey(passphrase, salt, env.KDF)
	defer ZeroBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("invalid nonce length %d", len(nonce))
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plaintext, nil
}

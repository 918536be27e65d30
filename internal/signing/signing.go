// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package signing provides the external signature schemes accepted by the host.
//
// A Scheme verifies signatures and maps public keys to ledger addresses.
// A Key is a loaded private key able to sign instruction bytes. Key files
// are JSON documents that the keystore encrypts at rest.
//
// When adding a new scheme:
//  1. Implement Scheme and Key in a subpackage
//  2. Call Register from the subpackage's RegisterScheme
package signing

import (
	"errors"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

var (
	ErrUnknownScheme   = errors.New("unknown signature scheme")
	ErrBadSignature    = errors.New("signature verification failed")
	ErrSignerMismatch  = errors.New("public key does not match signer address")
	ErrInvalidKeyFile  = errors.New("invalid key file")
	ErrInvalidKeyBytes = errors.New("invalid key length")
)

// KeyFile is the on-disk representation of a key pair, before encryption.
type KeyFile struct {
	Type          string `json:"type"`
	PublicKeyHex  string `json:"public_key"`
	PrivateKeyHex string `json:"private_key"`
}

// Scheme is a signature family accepted by the host.
type Scheme interface {
	// Family returns the scheme name (e.g., "ed25519", "falcon1024").
	Family() string

	// Address maps a public key to the ledger address it controls.
	Address(publicKey []byte) (types.Address, error)

	// Verify checks signature over message. Returns ErrBadSignature on mismatch.
	Verify(publicKey, message, signature []byte) error

	// Generate creates a fresh key pair.
	Generate() (Key, error)

	// Load restores a key from its decrypted key file.
	Load(kf KeyFile) (Key, error)
}

// Key is a loaded private key.
type Key interface {
	Family() string
	PublicKey() []byte
	Address() types.Address
	Sign(message []byte) ([]byte, error)

	// Export returns the key file form of the key pair.
	Export() KeyFile

	// Zero wipes the private key material. The key is unusable afterwards.
	Zero()
}

// Verify checks that publicKey belongs to signer under family and that
// signature is valid over message.
func Verify(family string, signer types.Address, publicKey, message, signature []byte) error {
	scheme, ok := Get(family)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownScheme, family)
	}
	addr, err := scheme.Address(publicKey)
	if err != nil {
		return err
	}
	if addr != signer {
		return fmt.Errorf("%w: key maps to %s, signer is %s", ErrSignerMismatch, addr, signer)
	}
	return scheme.Verify(publicKey, message, signature)
}

// LoadKey restores a key using the scheme named in the key file.
func LoadKey(kf KeyFile) (Key, error) {
	scheme, ok := Get(kf.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, kf.Type)
	}
	return scheme.Load(kf)
}

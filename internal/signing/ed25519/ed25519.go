// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package ed25519 implements the native ed25519 signature scheme.
// The address of an ed25519 key is its 32-byte public key.
package ed25519

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"sync"

	algocrypto "github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/apvault/internal/crypto"
	"github.com/aplane-algo/apvault/internal/signing"
)

const Family = "ed25519"

// Scheme implements signing.Scheme for ed25519.
type Scheme struct{}

func (Scheme) Family() string { return Family }

func (Scheme) Address(publicKey []byte) (types.Address, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return types.Address{}, fmt.Errorf("%w: ed25519 public key must be %d bytes, got %d",
			signing.ErrInvalidKeyBytes, ed25519.PublicKeySize, len(publicKey))
	}
	var addr types.Address
	copy(addr[:], publicKey)
	return addr, nil
}

func (Scheme) Verify(publicKey, message, signature []byte) error {
	if len(publicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: bad public key length", signing.ErrBadSignature)
	}
	if !ed25519.Verify(ed25519.PublicKey(publicKey), message, signature) {
		return signing.ErrBadSignature
	}
	return nil
}

func (Scheme) Generate() (signing.Key, error) {
	return &Key{account: algocrypto.GenerateAccount()}, nil
}

// Load restores a key file. The private key is the 64-byte seed||public form.
// SECURITY: intermediate decoded bytes are zeroed after use.
func (Scheme) Load(kf signing.KeyFile) (signing.Key, error) {
	if kf.Type != Family {
		return nil, fmt.Errorf("%w: type %q is not %s", signing.ErrInvalidKeyFile, kf.Type, Family)
	}
	privBytes, err := hex.DecodeString(kf.PrivateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode private key hex: %v", signing.ErrInvalidKeyFile, err)
	}
	defer crypto.ZeroBytes(privBytes)

	if len(privBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d private key bytes, got %d",
			signing.ErrInvalidKeyBytes, ed25519.PrivateKeySize, len(privBytes))
	}
	account, err := algocrypto.AccountFromPrivateKey(privBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create account from private key: %w", err)
	}
	if kf.PublicKeyHex != "" && kf.PublicKeyHex != hex.EncodeToString(account.PublicKey) {
		return nil, fmt.Errorf("%w: public key does not match private key", signing.ErrInvalidKeyFile)
	}
	return &Key{account: account}, nil
}

// Key is a loaded ed25519 key.
type Key struct {
	account algocrypto.Account
}

func (k *Key) Family() string         { return Family }
func (k *Key) PublicKey() []byte      { return append([]byte(nil), k.account.PublicKey...) }
func (k *Key) Address() types.Address { return k.account.Address }

func (k *Key) Sign(message []byte) ([]byte, error) {
	if len(k.account.PrivateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("ed25519 key has been zeroed")
	}
	return ed25519.Sign(k.account.PrivateKey, message), nil
}

func (k *Key) Export() signing.KeyFile {
	return signing.KeyFile{
		Type:          Family,
		PublicKeyHex:  hex.EncodeToString(k.account.PublicKey),
		PrivateKeyHex: hex.EncodeToString(k.account.PrivateKey),
	}
}

func (k *Key) Zero() {
	crypto.ZeroBytes(k.account.PrivateKey)
	k.account.PrivateKey = nil
}

var registerOnce sync.Once

// RegisterScheme registers ed25519 with the signing registry.
// This is idempotent and safe to call multiple times.
func RegisterScheme() {
	registerOnce.Do(func() {
		signing.Register(Scheme{})
	})
}

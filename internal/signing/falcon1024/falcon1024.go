// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package falcon1024 implements the post-quantum Falcon-1024 signature scheme.
package falcon1024

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/algorand/falcon"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/algorandfoundation/falcon-signatures/falcongo"

	"github.com/aplane-algo/apvault/internal/crypto"
	"github.com/aplane-algo/apvault/internal/signing"
)

const (
	Family         = "falcon1024"
	PublicKeySize  = 1793
	PrivateKeySize = 2305

	// seedSize matches the BIP-39 seed length used for Falcon key generation.
	seedSize = 64
)

// Scheme implements signing.Scheme for Falcon-1024.
type Scheme struct{}

func (Scheme) Family() string { return Family }

func (Scheme) Address(publicKey []byte) (types.Address, error) {
	pub, err := toPublicKey(publicKey)
	if err != nil {
		return types.Address{}, err
	}
	return DeriveAddress(pub)
}

func (Scheme) Verify(publicKey, message, signature []byte) error {
	if len(publicKey) != PublicKeySize {
		return fmt.Errorf("%w: bad public key length", signing.ErrBadSignature)
	}
	var pub falcon.PublicKey
	copy(pub[:], publicKey)
	if err := pub.Verify(falcon.CompressedSignature(signature), message); err != nil {
		return fmt.Errorf("%w: %v", signing.ErrBadSignature, err)
	}
	return nil
}

func (Scheme) Generate() (signing.Key, error) {
	seed := make([]byte, seedSize)
	defer crypto.ZeroBytes(seed)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("failed to read entropy: %w", err)
	}
	return FromSeed(seed)
}

// FromSeed deterministically generates a key pair from seed.
func FromSeed(seed []byte) (*Key, error) {
	kp, err := falcongo.GenerateKeyPair(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Falcon keypair: %w", err)
	}
	defer crypto.ZeroBytes(kp.PrivateKey[:])
	return newKey(kp.PublicKey[:], kp.PrivateKey[:])
}

// Load restores a key file. Both halves are required; the public key cannot
// be recovered cheaply from the private key.
func (Scheme) Load(kf signing.KeyFile) (signing.Key, error) {
	if kf.Type != Family {
		return nil, fmt.Errorf("%w: type %q is not %s", signing.ErrInvalidKeyFile, kf.Type, Family)
	}
	pub, err := hex.DecodeString(kf.PublicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode public key hex: %v", signing.ErrInvalidKeyFile, err)
	}
	priv, err := hex.DecodeString(kf.PrivateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode private key hex: %v", signing.ErrInvalidKeyFile, err)
	}
	defer crypto.ZeroBytes(priv)
	return newKey(pub, priv)
}

// Key is a loaded Falcon-1024 key.
type Key struct {
	public  falcongo.PublicKey
	private []byte
	address types.Address
}

func newKey(publicKey, privateKey []byte) (*Key, error) {
	pub, err := toPublicKey(publicKey)
	if err != nil {
		return nil, err
	}
	if len(privateKey) != PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d private key bytes, got %d",
			signing.ErrInvalidKeyBytes, PrivateKeySize, len(privateKey))
	}
	addr, err := DeriveAddress(pub)
	if err != nil {
		return nil, err
	}
	return &Key{
		public:  pub,
		private: append([]byte(nil), privateKey...),
		address: addr,
	}, nil
}

func (k *Key) Family() string         { return Family }
func (k *Key) PublicKey() []byte      { return append([]byte(nil), k.public[:]...) }
func (k *Key) Address() types.Address { return k.address }

func (k *Key) Sign(message []byte) ([]byte, error) {
	if len(k.private) != PrivateKeySize {
		return nil, fmt.Errorf("falcon key has been zeroed")
	}
	var priv falcongo.PrivateKey
	copy(priv[:], k.private)
	kp := falcongo.KeyPair{PublicKey: k.public, PrivateKey: priv}
	defer crypto.ZeroBytes(kp.PrivateKey[:])
	crypto.ZeroBytes(priv[:])

	sig, err := kp.Sign(message)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	return sig, nil
}

func (k *Key) Export() signing.KeyFile {
	return signing.KeyFile{
		Type:          Family,
		PublicKeyHex:  hex.EncodeToString(k.public[:]),
		PrivateKeyHex: hex.EncodeToString(k.private),
	}
}

func (k *Key) Zero() {
	crypto.ZeroBytes(k.private)
	k.private = nil
}

func toPublicKey(b []byte) (falcongo.PublicKey, error) {
	var pub falcongo.PublicKey
	if len(b) != PublicKeySize {
		return pub, fmt.Errorf("%w: falcon public key must be %d bytes, got %d",
			signing.ErrInvalidKeyBytes, PublicKeySize, len(b))
	}
	copy(pub[:], b)
	return pub, nil
}

var registerOnce sync.Once

// RegisterScheme registers Falcon-1024 with the signing registry.
// This is idempotent and safe to call multiple times.
func RegisterScheme() {
	registerOnce.Do(func() {
		signing.Register(Scheme{})
	})
}

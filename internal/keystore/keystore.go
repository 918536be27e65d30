// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package keystore stores client signing keys encrypted at rest.
//
// Each key lives in its own file, <ADDRESS>.key, under the keys directory.
// The file carries the address and scheme in the clear so keys can be
// listed without a passphrase; the key pair itself is sealed with
// Argon2id + AES-GCM and bound to the address as associated data.
//
// For passphrase caching across several operations, see Session.
package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/apvault/internal/crypto"
	"github.com/aplane-algo/apvault/internal/signing"
)

// Common keystore errors
var (
	// ErrKeyNotFound indicates the requested key does not exist
	ErrKeyNotFound = errors.New("key not found")

	// ErrKeyExists indicates a key already exists at the address
	ErrKeyExists = errors.New("key already exists")

	// ErrInvalidPassphrase indicates the passphrase is incorrect
	ErrInvalidPassphrase = errors.New("invalid passphrase")

	// ErrAmbiguousKey indicates no key was named and more than one is stored
	ErrAmbiguousKey = errors.New("multiple keys stored, specify one")
)

const keyExt = ".key"

// KeyMetadata contains non-sensitive information about a stored key
type KeyMetadata struct {
	Address  string
	KeyType  string
	FilePath string
}

// keyFile is the on-disk wrapper around the sealed key pair.
type keyFile struct {
	Address string          `json:"address"`
	Type    string          `json:"type"`
	Sealed  json.RawMessage `json:"sealed"`
}

// Store is a directory of encrypted key files.
type Store struct {
	dir    string
	params crypto.Params
}

// Open returns a store rooted at dir, creating it with 0700 if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keys directory: %w", err)
	}
	return &Store{dir: dir, params: crypto.DefaultParams()}, nil
}

// SetParams overrides the key derivation cost for newly saved keys.
func (s *Store) SetParams(p crypto.Params) { s.params = p }

func (s *Store) Dir() string { return s.dir }

func (s *Store) path(addr types.Address) string {
	return filepath.Join(s.dir, addr.String()+keyExt)
}

// Save encrypts key under passphrase. Existing keys are never overwritten.
func (s *Store) Save(key signing.Key, passphrase []byte) (string, error) {
	addr := key.Address()
	path := s.path(addr)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%w: %s", ErrKeyExists, addr)
	}

	plain, err := json.Marshal(key.Export())
	if err != nil {
		return "", fmt.Errorf("failed to encode key: %w", err)
	}
	defer crypto.ZeroBytes(plain)

	sealed, err := crypto.SealWithParams(plain, passphrase, addr[:], s.params)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt key: %w", err)
	}

	data, err := json.MarshalIndent(keyFile{
		Address: addr.String(),
		Type:    key.Family(),
		Sealed:  sealed,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode key file: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("%w: %s", ErrKeyExists, addr)
		}
		return "", fmt.Errorf("failed to create key file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write key file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close key file: %w", err)
	}
	return path, nil
}

func (s *Store) readFile(addr types.Address) (*keyFile, error) {
	data, err := os.ReadFile(s.path(addr))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, addr)
		}
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("%w: %v", signing.ErrInvalidKeyFile, err)
	}
	if kf.Address != addr.String() {
		return nil, fmt.Errorf("%w: file for %s names %s", signing.ErrInvalidKeyFile, addr, kf.Address)
	}
	return &kf, nil
}

// Load decrypts the key for addr. The caller should Zero the key when done.
func (s *Store) Load(addr types.Address, passphrase []byte) (signing.Key, error) {
	kf, err := s.readFile(addr)
	if err != nil {
		return nil, err
	}

	plain, err := crypto.Open(kf.Sealed, passphrase, addr[:])
	if err != nil {
		if errors.Is(err, crypto.ErrWrongPassphrase) {
			return nil, ErrInvalidPassphrase
		}
		return nil, err
	}
	defer crypto.ZeroBytes(plain)

	var pair signing.KeyFile
	if err := json.Unmarshal(plain, &pair); err != nil {
		return nil, fmt.Errorf("%w: %v", signing.ErrInvalidKeyFile, err)
	}
	key, err := signing.LoadKey(pair)
	if err != nil {
		return nil, err
	}
	if key.Address() != addr {
		key.Zero()
		return nil, fmt.Errorf("%w: key decodes to %s", signing.ErrInvalidKeyFile, key.Address())
	}
	return key, nil
}

// List returns metadata for all stored keys, sorted by address.
// No decryption is performed.
func (s *Store) List() ([]KeyMetadata, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read keys directory: %w", err)
	}

	var out []KeyMetadata
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), keyExt) {
			continue
		}
		addr, err := types.DecodeAddress(strings.TrimSuffix(e.Name(), keyExt))
		if err != nil {
			continue
		}
		kf, err := s.readFile(addr)
		if err != nil {
			continue
		}
		out = append(out, KeyMetadata{
			Address:  kf.Address,
			KeyType:  kf.Type,
			FilePath: s.path(addr),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

// Delete removes the key file for addr.
func (s *Store) Delete(addr types.Address) error {
	if err := os.Remove(s.path(addr)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrKeyNotFound, addr)
		}
		return fmt.Errorf("failed to delete key file: %w", err)
	}
	return nil
}

// Resolve maps a user-supplied key name to an address. An empty name selects
// the only stored key.
func (s *Store) Resolve(name string) (types.Address, error) {
	if name != "" {
		addr, err := types.DecodeAddress(name)
		if err != nil {
			return types.Address{}, fmt.Errorf("invalid key address %q: %w", name, err)
		}
		return addr, nil
	}
	keys, err := s.List()
	if err != nil {
		return types.Address{}, err
	}
	switch len(keys) {
	case 0:
		return types.Address{}, fmt.Errorf("%w: no keys in %s (run 'apvault keygen')", ErrKeyNotFound, s.dir)
	case 1:
		return types.DecodeAddress(keys[0].Address)
	default:
		return types.Address{}, ErrAmbiguousKey
	}
}

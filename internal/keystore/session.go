// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package keystore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/apvault/internal/crypto"
	"github.com/aplane-algo/apvault/internal/signing"
)

// Session caches a passphrase so interactive commands prompt once.
// Keys are decrypted on demand and cached until Destroy.
type Session struct {
	store      *Store
	prompt     func() ([]byte, error)
	passphrase []byte
	keys       map[types.Address]signing.Key
	lock       sync.Mutex
}

// NewSession creates a session over store. prompt is called when no
// passphrase is cached.
func NewSession(store *Store, prompt func() ([]byte, error)) *Session {
	return &Session{
		store:  store,
		prompt: prompt,
		keys:   make(map[types.Address]signing.Key),
	}
}

// Key returns the decrypted key for addr, prompting for the passphrase if
// needed. A wrong passphrase is not cached.
func (s *Session) Key(addr types.Address) (signing.Key, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if k, ok := s.keys[addr]; ok {
		return k, nil
	}

	if s.passphrase == nil {
		p, err := s.prompt()
		if err != nil {
			return nil, fmt.Errorf("failed to get passphrase: %w", err)
		}
		s.passphrase = p
	}

	key, err := s.store.Load(addr, s.passphrase)
	if err != nil {
		if errors.Is(err, ErrInvalidPassphrase) {
			crypto.ZeroBytes(s.passphrase)
			s.passphrase = nil
		}
		return nil, err
	}
	s.keys[addr] = key
	return key, nil
}

// Destroy zeroes the cached passphrase and keys.
func (s *Session) Destroy() {
	s.lock.Lock()
	defer s.lock.Unlock()

	crypto.ZeroBytes(s.passphrase)
	s.passphrase = nil
	for addr, k := range s.keys {
		k.Zero()
		delete(s.keys, addr)
	}
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package keystore

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/aplane-algo/apvault/internal/crypto"
	"github.com/aplane-algo/apvault/internal/signing"
	"github.com/aplane-algo/apvault/internal/signing/ed25519"
	"github.com/aplane-algo/apvault/internal/signing/falcon1024"
)

func init() {
	ed25519.RegisterScheme()
	falcon1024.RegisterScheme()
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	s.SetParams(crypto.Params{Time: 1, Memory: 1024, Threads: 1})
	return s
}

func generate(t *testing.T, scheme signing.Scheme) signing.Key {
	t.Helper()
	k, err := scheme.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return k
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newStore(t)
	pass := []byte("correct horse")

	for _, scheme := range []signing.Scheme{ed25519.Scheme{}, falcon1024.Scheme{}} {
		t.Run(scheme.Family(), func(t *testing.T) {
			key := generate(t, scheme)
			path, err := s.Save(key, pass)
			if err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			info, err := os.Stat(path)
			if err != nil {
				t.Fatalf("Stat failed: %v", err)
			}
			if info.Mode().Perm() != 0600 {
				t.Errorf("key file mode = %o, want 0600", info.Mode().Perm())
			}
			raw, _ := os.ReadFile(path)
			if strings.Contains(string(raw), key.Export().PrivateKeyHex) {
				t.Fatal("private key stored in the clear")
			}

			loaded, err := s.Load(key.Address(), pass)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if loaded.Address() != key.Address() || loaded.Family() != scheme.Family() {
				t.Fatalf("loaded %s/%s, want %s/%s", loaded.Family(), loaded.Address(), scheme.Family(), key.Address())
			}

			msg := []byte("sign me")
			sig, err := loaded.Sign(msg)
			if err != nil {
				t.Fatalf("Sign failed: %v", err)
			}
			if err := scheme.Verify(key.PublicKey(), msg, sig); err != nil {
				t.Fatalf("signature from loaded key does not verify: %v", err)
			}
		})
	}
}

func TestSaveRefusesOverwrite(t *testing.T) {
	s := newStore(t)
	key := generate(t, ed25519.Scheme{})
	if _, err := s.Save(key, []byte("a")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := s.Save(key, []byte("b")); !errors.Is(err, ErrKeyExists) {
		t.Fatalf("expected ErrKeyExists, got %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	s := newStore(t)
	key := generate(t, ed25519.Scheme{})
	if _, err := s.Save(key, []byte("right")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := s.Load(key.Address(), []byte("wrong")); !errors.Is(err, ErrInvalidPassphrase) {
		t.Fatalf("expected ErrInvalidPassphrase, got %v", err)
	}
	other := generate(t, ed25519.Scheme{})
	if _, err := s.Load(other.Address(), []byte("right")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestLoadRejectsRenamedFile(t *testing.T) {
	s := newStore(t)
	a := generate(t, ed25519.Scheme{})
	b := generate(t, ed25519.Scheme{})
	pathA, err := s.Save(a, []byte("p"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := os.Rename(pathA, s.path(b.Address())); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if _, err := s.Load(b.Address(), []byte("p")); !errors.Is(err, signing.ErrInvalidKeyFile) {
		t.Fatalf("expected ErrInvalidKeyFile, got %v", err)
	}
}

func TestListAndResolve(t *testing.T) {
	s := newStore(t)

	if _, err := s.Resolve(""); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("empty store: expected ErrKeyNotFound, got %v", err)
	}

	a := generate(t, ed25519.Scheme{})
	if _, err := s.Save(a, []byte("p")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := s.Resolve("")
	if err != nil || got != a.Address() {
		t.Fatalf("Resolve(\"\") = %s, %v; want %s", got, err, a.Address())
	}

	b := generate(t, ed25519.Scheme{})
	if _, err := s.Save(b, []byte("p")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := os.WriteFile(s.dir+"/notes.txt", []byte("ignored"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	list, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List returned %d keys, want 2", len(list))
	}
	if list[0].Address > list[1].Address {
		t.Error("List not sorted by address")
	}
	for _, m := range list {
		if m.KeyType != ed25519.Family {
			t.Errorf("KeyType = %q, want %q", m.KeyType, ed25519.Family)
		}
	}

	if _, err := s.Resolve(""); !errors.Is(err, ErrAmbiguousKey) {
		t.Fatalf("expected ErrAmbiguousKey, got %v", err)
	}
	got, err = s.Resolve(b.Address().String())
	if err != nil || got != b.Address() {
		t.Fatalf("Resolve(b) = %s, %v", got, err)
	}
	if _, err := s.Resolve("not-an-address"); err == nil {
		t.Fatal("expected error for malformed address")
	}

	if err := s.Delete(a.Address()); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(a.Address()); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("second Delete: expected ErrKeyNotFound, got %v", err)
	}
}

func TestSessionPromptsOnce(t *testing.T) {
	s := newStore(t)
	a := generate(t, ed25519.Scheme{})
	b := generate(t, ed25519.Scheme{})
	for _, k := range []signing.Key{a, b} {
		if _, err := s.Save(k, []byte("pass")); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	prompts := 0
	sess := NewSession(s, func() ([]byte, error) {
		prompts++
		return []byte("pass"), nil
	})
	defer sess.Destroy()

	if _, err := sess.Key(a.Address()); err != nil {
		t.Fatalf("Key(a) failed: %v", err)
	}
	if _, err := sess.Key(b.Address()); err != nil {
		t.Fatalf("Key(b) failed: %v", err)
	}
	k, err := sess.Key(a.Address())
	if err != nil {
		t.Fatalf("Key(a) again failed: %v", err)
	}
	if !bytes.Equal(k.PublicKey(), a.PublicKey()) {
		t.Fatal("cached key differs")
	}
	if prompts != 1 {
		t.Fatalf("prompted %d times, want 1", prompts)
	}
}

func TestSessionForgetsWrongPassphrase(t *testing.T) {
	s := newStore(t)
	a := generate(t, ed25519.Scheme{})
	if _, err := s.Save(a, []byte("right")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	answers := [][]byte{[]byte("wrong"), []byte("right")}
	sess := NewSession(s, func() ([]byte, error) {
		p := answers[0]
		answers = answers[1:]
		return append([]byte(nil), p...), nil
	})

	if _, err := sess.Key(a.Address()); !errors.Is(err, ErrInvalidPassphrase) {
		t.Fatalf("expected ErrInvalidPassphrase, got %v", err)
	}
	if _, err := sess.Key(a.Address()); err != nil {
		t.Fatalf("retry with right passphrase failed: %v", err)
	}
	if len(answers) != 0 {
		t.Fatalf("expected both answers consumed, %d left", len(answers))
	}
}

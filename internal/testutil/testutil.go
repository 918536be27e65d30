// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package testutil provides reusable test infrastructure and utilities.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/apvault/internal/instruction"
	"github.com/aplane-algo/apvault/internal/ledger"
	"github.com/aplane-algo/apvault/internal/ledger/memory"
	"github.com/aplane-algo/apvault/internal/signing"
	"github.com/aplane-algo/apvault/internal/signing/ed25519"
)

// TestRent is the rent-exempt minimum used by NewLedger.
const TestRent uint64 = 1000

// NewLedger creates an in-memory ledger with a single registered mint.
func NewLedger(t *testing.T) (*memory.Ledger, types.Address) {
	t.Helper()

	l := memory.New(ledger.Options{RentExemptMinimum: TestRent})
	mint := NewKey(t).Address()
	if err := l.CreateMint(context.Background(), ledger.Mint{Address: mint, Decimals: 6}); err != nil {
		t.Fatalf("Failed to create mint: %v", err)
	}
	return l, mint
}

// NewKey generates a fresh ed25519 signing key and registers the scheme.
func NewKey(t *testing.T) signing.Key {
	t.Helper()

	ed25519.RegisterScheme()
	key, err := ed25519.Scheme{}.Generate()
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	return key
}

// Fund credits native balance so addr can pay rent for n accounts.
func Fund(t *testing.T, l ledger.Admin, addr types.Address, n int) {
	t.Helper()

	if err := l.Fund(context.Background(), addr, uint64(n)*TestRent); err != nil {
		t.Fatalf("Failed to fund %s: %v", addr, err)
	}
}

// OpenAccount creates owner's associated token account for mint holding balance.
// The owner pays the rent and is funded for it first.
func OpenAccount(t *testing.T, l ledger.Store, owner, mint types.Address, balance uint64) types.Address {
	t.Helper()
	ctx := context.Background()

	Fund(t, l, owner, 1)
	addr, err := ledger.OpenAssociatedAccount(ctx, l, owner, mint, owner,
		ledger.Signers{ledger.SignerAuthority{Address: owner}})
	if err != nil {
		t.Fatalf("Failed to open account for %s: %v", owner, err)
	}
	if balance > 0 {
		if err := l.MintTo(ctx, addr, balance); err != nil {
			t.Fatalf("Failed to mint to %s: %v", addr, err)
		}
	}
	return addr
}

// Balance returns the token balance of addr, failing the test on error.
func Balance(t *testing.T, l ledger.Ledger, addr types.Address) uint64 {
	t.Helper()

	acct, err := l.Account(context.Background(), addr)
	if err != nil {
		t.Fatalf("Failed to load account %s: %v", addr, err)
	}
	return acct.Balance
}

// MustSign signs ins with key, failing the test on error.
func MustSign(t *testing.T, ins instruction.Instruction, key signing.Key) instruction.SignedInstruction {
	t.Helper()

	signed, err := instruction.Sign(ins, key)
	if err != nil {
		t.Fatalf("Failed to sign instruction: %v", err)
	}
	return signed
}

// MustDecodeAddress decodes an address string, failing the test on error.
func MustDecodeAddress(t *testing.T, addr string) types.Address {
	t.Helper()

	decoded, err := types.DecodeAddress(addr)
	if err != nil {
		t.Fatalf("Failed to decode address %s: %v", addr, err)
	}
	return decoded
}

// TempFile creates a temporary file with the given content, returning the path.
// The file is automatically cleaned up when the test completes.
func TempFile(t *testing.T, content []byte) string {
	t.Helper()

	tmpFile, err := os.CreateTemp(t.TempDir(), "testfile-*")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	if _, err := tmpFile.Write(content); err != nil {
		_ = tmpFile.Close()
		t.Fatalf("Failed to write temp file: %v", err)
	}

	_ = tmpFile.Close()
	return tmpFile.Name()
}

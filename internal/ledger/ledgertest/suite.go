// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package ledgertest provides a behavioural test suite shared by all ledger backends.
package ledgertest

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/apvault/internal/derive"
	"github.com/aplane-algo/apvault/internal/ledger"
)

// Opener creates a fresh, empty backend for one test.
type Opener func(t *testing.T, opts ledger.Options) ledger.Store

const testRent uint64 = 1000

type fixture struct {
	store ledger.Store
	mint  types.Address
	payer types.Address
}

func newFixture(t *testing.T, open Opener) *fixture {
	t.Helper()
	ctx := context.Background()

	store := open(t, ledger.Options{RentExemptMinimum: testRent})
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{
		store: store,
		mint:  crypto.GenerateAccount().Address,
		payer: crypto.GenerateAccount().Address,
	}
	if err := store.CreateMint(ctx, ledger.Mint{Address: f.mint, Decimals: 6}); err != nil {
		t.Fatalf("CreateMint failed: %v", err)
	}
	if err := store.Fund(ctx, f.payer, 100*testRent); err != nil {
		t.Fatalf("Fund failed: %v", err)
	}
	return f
}

// openOwned creates a keyed account owned by a fresh address and returns both.
func (f *fixture) openOwned(t *testing.T, balance uint64) (addr, owner types.Address) {
	t.Helper()
	ctx := context.Background()

	owner = crypto.GenerateAccount().Address
	addr, err := ledger.OpenAssociatedAccount(ctx, f.store, owner, f.mint, f.payer,
		ledger.Signers{ledger.SignerAuthority{Address: f.payer}})
	if err != nil {
		t.Fatalf("OpenAssociatedAccount failed: %v", err)
	}
	if balance > 0 {
		if err := f.store.MintTo(ctx, addr, balance); err != nil {
			t.Fatalf("MintTo failed: %v", err)
		}
	}
	return addr, owner
}

func (f *fixture) balance(t *testing.T, addr types.Address) uint64 {
	t.Helper()
	acct, err := f.store.Account(context.Background(), addr)
	if err != nil {
		t.Fatalf("Account(%s) failed: %v", addr, err)
	}
	return acct.Balance
}

// RunSuite runs the shared ledger behaviour tests against a backend.
func RunSuite(t *testing.T, open Opener) {
	t.Run("CreateAccountChargesRent", func(t *testing.T) { testCreateAccountChargesRent(t, open) })
	t.Run("CreateAccountRejectsDuplicate", func(t *testing.T) { testCreateAccountRejectsDuplicate(t, open) })
	t.Run("CreateAccountRequiresFunding", func(t *testing.T) { testCreateAccountRequiresFunding(t, open) })
	t.Run("CreateAccountRequiresAddressProof", func(t *testing.T) { testCreateAccountRequiresAddressProof(t, open) })
	t.Run("CreateAccountUnknownMint", func(t *testing.T) { testCreateAccountUnknownMint(t, open) })
	t.Run("CreateAccountAtDerivedAddress", func(t *testing.T) { testCreateAccountAtDerivedAddress(t, open) })
	t.Run("TransferMovesBalance", func(t *testing.T) { testTransferMovesBalance(t, open) })
	t.Run("TransferRequiresAuthority", func(t *testing.T) { testTransferRequiresAuthority(t, open) })
	t.Run("TransferInsufficientBalance", func(t *testing.T) { testTransferInsufficientBalance(t, open) })
	t.Run("TransferValidation", func(t *testing.T) { testTransferValidation(t, open) })
	t.Run("TransferMintMismatch", func(t *testing.T) { testTransferMintMismatch(t, open) })
	t.Run("ProgramAuthorityDebitsDerivedAccount", func(t *testing.T) { testProgramAuthority(t, open) })
	t.Run("AdminOperations", func(t *testing.T) { testAdminOperations(t, open) })
	t.Run("JournalRejectsDuplicate", func(t *testing.T) { testJournalRejectsDuplicate(t, open) })
}

func testCreateAccountChargesRent(t *testing.T, open Opener) {
	f := newFixture(t, open)
	ctx := context.Background()

	before, _ := f.store.NativeBalance(ctx, f.payer)
	addr, owner := f.openOwned(t, 0)
	after, _ := f.store.NativeBalance(ctx, f.payer)

	if before-after != testRent {
		t.Fatalf("payer charged %d, want %d", before-after, testRent)
	}
	held, _ := f.store.NativeBalance(ctx, addr)
	if held != testRent {
		t.Fatalf("account holds %d native, want %d", held, testRent)
	}

	acct, err := f.store.Account(ctx, addr)
	if err != nil {
		t.Fatalf("Account failed: %v", err)
	}
	if acct.Authority != owner || acct.Mint != f.mint || acct.Balance != 0 {
		t.Fatalf("unexpected account: %+v", acct)
	}
}

func testCreateAccountRejectsDuplicate(t *testing.T, open Opener) {
	f := newFixture(t, open)
	ctx := context.Background()

	_, owner := f.openOwned(t, 0)
	before, _ := f.store.NativeBalance(ctx, f.payer)

	_, err := ledger.OpenAssociatedAccount(ctx, f.store, owner, f.mint, f.payer,
		ledger.Signers{ledger.SignerAuthority{Address: f.payer}})
	if !errors.Is(err, ledger.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	after, _ := f.store.NativeBalance(ctx, f.payer)
	if before != after {
		t.Fatalf("failed creation charged rent: %d -> %d", before, after)
	}
}

func testCreateAccountRequiresFunding(t *testing.T, open Opener) {
	f := newFixture(t, open)
	ctx := context.Background()

	poor := crypto.GenerateAccount().Address
	if err := f.store.Fund(ctx, poor, testRent-1); err != nil {
		t.Fatalf("Fund failed: %v", err)
	}
	owner := crypto.GenerateAccount().Address
	_, err := ledger.OpenAssociatedAccount(ctx, f.store, owner, f.mint, poor,
		ledger.Signers{ledger.SignerAuthority{Address: poor}})
	if !errors.Is(err, ledger.ErrInsufficientFunding) {
		t.Fatalf("expected ErrInsufficientFunding, got %v", err)
	}
	if bal, _ := f.store.NativeBalance(ctx, poor); bal != testRent-1 {
		t.Fatalf("payer balance changed to %d", bal)
	}
}

func testCreateAccountRequiresAddressProof(t *testing.T, open Opener) {
	f := newFixture(t, open)
	ctx := context.Background()

	target := crypto.GenerateAccount().Address
	err := f.store.CreateAccount(ctx, ledger.CreateAccountRequest{
		Address:   target,
		Mint:      f.mint,
		Authority: target,
		Payer:     f.payer,
	}, ledger.Signers{ledger.SignerAuthority{Address: f.payer}})
	if !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized without address proof, got %v", err)
	}

	err = f.store.CreateAccount(ctx, ledger.CreateAccountRequest{
		Address:   target,
		Mint:      f.mint,
		Authority: target,
		Payer:     f.payer,
	}, ledger.Signers{ledger.SignerAuthority{Address: target}})
	if !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized without payer signature, got %v", err)
	}

	err = f.store.CreateAccount(ctx, ledger.CreateAccountRequest{
		Address:   target,
		Mint:      f.mint,
		Authority: target,
		Payer:     f.payer,
	}, ledger.Signers{ledger.SignerAuthority{Address: target}, ledger.SignerAuthority{Address: f.payer}})
	if err != nil {
		t.Fatalf("CreateAccount with both signers failed: %v", err)
	}
}

func testCreateAccountUnknownMint(t *testing.T, open Opener) {
	f := newFixture(t, open)
	ctx := context.Background()

	target := crypto.GenerateAccount().Address
	err := f.store.CreateAccount(ctx, ledger.CreateAccountRequest{
		Address:   target,
		Mint:      crypto.GenerateAccount().Address,
		Authority: target,
		Payer:     f.payer,
	}, ledger.Signers{ledger.SignerAuthority{Address: target}, ledger.SignerAuthority{Address: f.payer}})
	if !errors.Is(err, ledger.ErrMintNotFound) {
		t.Fatalf("expected ErrMintNotFound, got %v", err)
	}
}

func testCreateAccountAtDerivedAddress(t *testing.T, open Opener) {
	f := newFixture(t, open)
	ctx := context.Background()

	program := crypto.GenerateAccount().Address
	addr, bump, err := derive.FindProgramAddress(program, []byte("vault"))
	if err != nil {
		t.Fatalf("FindProgramAddress failed: %v", err)
	}

	req := ledger.CreateAccountRequest{Address: addr, Mint: f.mint, Authority: addr, Payer: f.payer}
	payer := ledger.SignerAuthority{Address: f.payer}

	wrongProgram := ledger.ProgramAuthority{Program: crypto.GenerateAccount().Address, Seeds: [][]byte{[]byte("vault")}, Bump: bump}
	if err := f.store.CreateAccount(ctx, req, ledger.Signers{wrongProgram, payer}); !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for foreign program proof, got %v", err)
	}

	proof := ledger.ProgramAuthority{Program: program, Seeds: [][]byte{[]byte("vault")}, Bump: bump}
	if err := f.store.CreateAccount(ctx, req, ledger.Signers{proof, payer}); err != nil {
		t.Fatalf("CreateAccount with program proof failed: %v", err)
	}
}

func testTransferMovesBalance(t *testing.T, open Opener) {
	f := newFixture(t, open)
	ctx := context.Background()

	src, owner := f.openOwned(t, 50)
	dst, _ := f.openOwned(t, 100)

	err := f.store.Transfer(ctx, ledger.TransferRequest{From: src, To: dst, Amount: 30},
		ledger.Signers{ledger.SignerAuthority{Address: owner}})
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if got := f.balance(t, src); got != 20 {
		t.Fatalf("source balance = %d, want 20", got)
	}
	if got := f.balance(t, dst); got != 130 {
		t.Fatalf("destination balance = %d, want 130", got)
	}
}

func testTransferRequiresAuthority(t *testing.T, open Opener) {
	f := newFixture(t, open)
	ctx := context.Background()

	src, _ := f.openOwned(t, 50)
	dst, dstOwner := f.openOwned(t, 0)

	for name, signers := range map[string]ledger.Signers{
		"none":           nil,
		"wrong signer":   {ledger.SignerAuthority{Address: dstOwner}},
		"zero signer":    {ledger.SignerAuthority{}},
		"account as key": {ledger.SignerAuthority{Address: src}},
	} {
		err := f.store.Transfer(ctx, ledger.TransferRequest{From: src, To: dst, Amount: 10}, signers)
		if !errors.Is(err, ledger.ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got %v", name, err)
		}
	}
	if got := f.balance(t, src); got != 50 {
		t.Fatalf("source balance changed to %d", got)
	}
}

func testTransferInsufficientBalance(t *testing.T, open Opener) {
	f := newFixture(t, open)
	ctx := context.Background()

	src, owner := f.openOwned(t, 10)
	dst, _ := f.openOwned(t, 5)

	err := f.store.Transfer(ctx, ledger.TransferRequest{From: src, To: dst, Amount: 11},
		ledger.Signers{ledger.SignerAuthority{Address: owner}})
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if f.balance(t, src) != 10 || f.balance(t, dst) != 5 {
		t.Fatal("balances changed after failed transfer")
	}
}

func testTransferValidation(t *testing.T, open Opener) {
	f := newFixture(t, open)
	ctx := context.Background()

	src, owner := f.openOwned(t, 10)
	signers := ledger.Signers{ledger.SignerAuthority{Address: owner}}

	if err := f.store.Transfer(ctx, ledger.TransferRequest{From: src, To: src, Amount: 1}, signers); !errors.Is(err, ledger.ErrSelfTransfer) {
		t.Fatalf("expected ErrSelfTransfer, got %v", err)
	}
	dst, _ := f.openOwned(t, 0)
	if err := f.store.Transfer(ctx, ledger.TransferRequest{From: src, To: dst, Amount: 0}, signers); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	missing := crypto.GenerateAccount().Address
	if err := f.store.Transfer(ctx, ledger.TransferRequest{From: src, To: missing, Amount: 1}, signers); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func testTransferMintMismatch(t *testing.T, open Opener) {
	f := newFixture(t, open)
	ctx := context.Background()

	src, owner := f.openOwned(t, 10)

	otherMint := crypto.GenerateAccount().Address
	if err := f.store.CreateMint(ctx, ledger.Mint{Address: otherMint}); err != nil {
		t.Fatalf("CreateMint failed: %v", err)
	}
	other, err := ledger.OpenAssociatedAccount(ctx, f.store, owner, otherMint, f.payer,
		ledger.Signers{ledger.SignerAuthority{Address: f.payer}})
	if err != nil {
		t.Fatalf("OpenAssociatedAccount failed: %v", err)
	}

	err = f.store.Transfer(ctx, ledger.TransferRequest{From: src, To: other, Amount: 1},
		ledger.Signers{ledger.SignerAuthority{Address: owner}})
	if !errors.Is(err, ledger.ErrMintMismatch) {
		t.Fatalf("expected ErrMintMismatch, got %v", err)
	}
}

func testProgramAuthority(t *testing.T, open Opener) {
	f := newFixture(t, open)
	ctx := context.Background()

	program := crypto.GenerateAccount().Address
	vault, bump, err := derive.FindProgramAddress(program, []byte("vault"))
	if err != nil {
		t.Fatalf("FindProgramAddress failed: %v", err)
	}
	proof := ledger.ProgramAuthority{Program: program, Seeds: [][]byte{[]byte("vault")}, Bump: bump}
	err = f.store.CreateAccount(ctx, ledger.CreateAccountRequest{Address: vault, Mint: f.mint, Authority: vault, Payer: f.payer},
		ledger.Signers{proof, ledger.SignerAuthority{Address: f.payer}})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if err := f.store.MintTo(ctx, vault, 100); err != nil {
		t.Fatalf("MintTo failed: %v", err)
	}
	dst, _ := f.openOwned(t, 0)

	badBump := ledger.ProgramAuthority{Program: program, Seeds: [][]byte{[]byte("vault")}, Bump: bump + 1}
	if err := f.store.Transfer(ctx, ledger.TransferRequest{From: vault, To: dst, Amount: 1}, ledger.Signers{badBump}); !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for wrong bump, got %v", err)
	}

	if err := f.store.Transfer(ctx, ledger.TransferRequest{From: vault, To: dst, Amount: 40}, ledger.Signers{proof}); err != nil {
		t.Fatalf("Transfer with program proof failed: %v", err)
	}
	if f.balance(t, vault) != 60 || f.balance(t, dst) != 40 {
		t.Fatalf("unexpected balances: vault=%d dst=%d", f.balance(t, vault), f.balance(t, dst))
	}
}

func testAdminOperations(t *testing.T, open Opener) {
	f := newFixture(t, open)
	ctx := context.Background()

	if err := f.store.CreateMint(ctx, ledger.Mint{Address: f.mint}); !errors.Is(err, ledger.ErrMintExists) {
		t.Fatalf("expected ErrMintExists, got %v", err)
	}
	mint, err := f.store.Mint(ctx, f.mint)
	if err != nil || mint.Decimals != 6 {
		t.Fatalf("Mint() = %+v, %v", mint, err)
	}

	addr, _ := f.openOwned(t, math.MaxUint64)
	if err := f.store.MintTo(ctx, addr, 1); !errors.Is(err, ledger.ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if got := f.balance(t, addr); got != math.MaxUint64 {
		t.Fatalf("balance = %d, want max uint64", got)
	}

	if err := f.store.MintTo(ctx, crypto.GenerateAccount().Address, 1); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	a, _ := f.openOwned(t, 1)
	accts, err := f.store.Accounts(ctx)
	if err != nil {
		t.Fatalf("Accounts failed: %v", err)
	}
	if len(accts) != 2 {
		t.Fatalf("Accounts returned %d entries, want 2", len(accts))
	}
	found := false
	for _, acct := range accts {
		if acct.Address == a {
			found = true
		}
	}
	if !found {
		t.Fatal("Accounts did not include newly opened account")
	}
	for i := 1; i < len(accts); i++ {
		if accts[i-1].Address.String() > accts[i].Address.String() {
			t.Fatal("Accounts not sorted by address")
		}
	}
}

func testJournalRejectsDuplicate(t *testing.T, open Opener) {
	f := newFixture(t, open)
	ctx := context.Background()

	if err := f.store.MarkProcessed(ctx, "ins-1"); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if err := f.store.MarkProcessed(ctx, "ins-1"); !errors.Is(err, ledger.ErrInstructionProcessed) {
		t.Fatalf("expected ErrInstructionProcessed, got %v", err)
	}
	if err := f.store.MarkProcessed(ctx, "ins-2"); err != nil {
		t.Fatalf("MarkProcessed of a new id failed: %v", err)
	}
}

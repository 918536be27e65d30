// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/crypto"

	"github.com/aplane-algo/apvault/internal/ledger"
	"github.com/aplane-algo/apvault/internal/ledger/ledgertest"
)

func openTemp(t *testing.T, opts ledger.Options) *Ledger {
	t.Helper()
	cfg := DefaultConfig(filepath.Join(t.TempDir(), "ledger.db"))
	cfg.Options = opts
	l, err := OpenWithConfig(cfg)
	if err != nil {
		t.Fatalf("OpenWithConfig failed: %v", err)
	}
	return l
}

func TestSQLiteLedger(t *testing.T) {
	ledgertest.RunSuite(t, func(t *testing.T, opts ledger.Options) ledger.Store {
		return openTemp(t, opts)
	})
}

func TestStatePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	mint := crypto.GenerateAccount().Address
	owner := crypto.GenerateAccount().Address
	if err := l.CreateMint(ctx, ledger.Mint{Address: mint, Decimals: 2}); err != nil {
		t.Fatalf("CreateMint failed: %v", err)
	}
	if err := l.Fund(ctx, owner, ledger.DefaultRentExemptMinimum); err != nil {
		t.Fatalf("Fund failed: %v", err)
	}
	addr, err := ledger.OpenAssociatedAccount(ctx, l, owner, mint, owner,
		ledger.Signers{ledger.SignerAuthority{Address: owner}})
	if err != nil {
		t.Fatalf("OpenAssociatedAccount failed: %v", err)
	}
	if err := l.MintTo(ctx, addr, 42); err != nil {
		t.Fatalf("MintTo failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	acct, err := reopened.Account(ctx, addr)
	if err != nil {
		t.Fatalf("Account after reopen failed: %v", err)
	}
	if acct.Balance != 42 || acct.Authority != owner || acct.Mint != mint {
		t.Fatalf("unexpected account after reopen: %+v", acct)
	}
	if bal, _ := reopened.NativeBalance(ctx, owner); bal != 0 {
		t.Fatalf("payer native balance = %d, want 0", bal)
	}
}

func TestCorruptNativeBalanceIsReported(t *testing.T) {
	ctx := context.Background()
	l := openTemp(t, ledger.Options{})
	defer func() { _ = l.Close() }()

	owner := crypto.GenerateAccount().Address
	if _, err := l.conn.ExecContext(ctx,
		"INSERT INTO native_balances (address, balance) VALUES (?, ?)", owner[:], "not-a-number"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	_, err := l.NativeBalance(ctx, owner)
	if err == nil {
		t.Fatal("expected error for corrupt balance row")
	}
	if !strings.Contains(err.Error(), "corrupt native balance row") {
		t.Fatalf("error = %v, want corrupt row context", err)
	}
	var numErr *strconv.NumError
	if !errors.As(err, &numErr) {
		t.Fatalf("error %v does not wrap the parse failure", err)
	}

	if err := l.Fund(ctx, owner, 1); err == nil || !strings.Contains(err.Error(), "corrupt native balance row") {
		t.Fatalf("Fund over corrupt row = %v", err)
	}
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package engine

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/apvault/internal/api"
	"github.com/aplane-algo/apvault/internal/instruction"
	"github.com/aplane-algo/apvault/internal/ledger/memory"
	"github.com/aplane-algo/apvault/internal/runtime"
	"github.com/aplane-algo/apvault/internal/testutil"
	"github.com/aplane-algo/apvault/internal/vault"
)

type harness struct {
	store *memory.Ledger
	mint  types.Address
	prog  *vault.Program
	host  *runtime.Host
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, mint := testutil.NewLedger(t)
	prog := vault.New(testutil.NewKey(t).Address(), nil)
	host := runtime.NewHost(store, nil)
	if err := host.Register(prog); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return &harness{store: store, mint: mint, prog: prog, host: host}
}

func TestNew(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name    string
		program types.Address
		backend Backend
		wantErr bool
	}{
		{"valid", h.prog.ID(), NewLocal(h.host, h.prog), false},
		{"zero program", types.Address{}, NewLocal(h.host, h.prog), true},
		{"nil backend", h.prog.ID(), nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.program, tt.backend)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEngineOperations(t *testing.T) {
	backends := map[string]func(h *harness) Backend{
		"local": func(h *harness) Backend { return NewLocal(h.host, h.prog) },
		"remote": func(h *harness) Backend {
			srv := httptest.NewServer(api.NewServer(h.host, h.prog).Handler())
			t.Cleanup(srv.Close)
			return api.NewClient(srv.URL, 0)
		},
	}

	for name, mk := range backends {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			user := testutil.NewKey(t)

			eng, err := New(h.prog.ID(), mk(h))
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if _, ok := eng.Signer(); ok {
				t.Fatal("engine without WithSigner reports a signer")
			}
			if _, err := eng.Deposit(ctx, 1); !errors.Is(err, ErrNoSigningKey) {
				t.Fatalf("expected ErrNoSigningKey, got %v", err)
			}

			eng.SetSigner(user)
			if _, err := eng.OwnAccount(ctx); !errors.Is(err, ErrNotInitialized) {
				t.Fatalf("expected ErrNotInitialized, got %v", err)
			}

			testutil.Fund(t, h.store, user.Address(), 1)
			receipt, err := eng.Initialize(ctx, h.mint)
			if err != nil {
				t.Fatalf("Initialize failed: %v", err)
			}
			if receipt.Kind != instruction.KindInitializeVault {
				t.Fatalf("receipt kind = %s", receipt.Kind)
			}

			own := testutil.OpenAccount(t, h.store, user.Address(), h.mint, 100)
			got, err := eng.OwnAccount(ctx)
			if err != nil || got != own {
				t.Fatalf("OwnAccount = %s, %v; want %s", got, err, own)
			}

			if _, err := eng.Deposit(ctx, 70); err != nil {
				t.Fatalf("Deposit failed: %v", err)
			}
			if _, err := eng.Withdraw(ctx, 30); err != nil {
				t.Fatalf("Withdraw failed: %v", err)
			}

			vaultAddr, _, err := eng.VaultAddress()
			if err != nil {
				t.Fatalf("VaultAddress failed: %v", err)
			}
			if bal, err := eng.Balance(ctx, vaultAddr); err != nil || bal != 40 {
				t.Fatalf("vault balance = %d, %v; want 40", bal, err)
			}
			if bal, err := eng.Balance(ctx, own); err != nil || bal != 60 {
				t.Fatalf("own balance = %d, %v; want 60", bal, err)
			}

			info, err := eng.Vault(ctx)
			if err != nil {
				t.Fatalf("Vault failed: %v", err)
			}
			if info.Balance != 40 || info.Policy != vault.PolicySignerOwned {
				t.Fatalf("unexpected info: %+v", info)
			}

			other := testutil.NewKey(t)
			foreign := testutil.OpenAccount(t, h.store, other.Address(), h.mint, 0)
			if _, err := eng.WithdrawTo(ctx, foreign, 1); !errors.Is(err, vault.ErrDestinationNotAllowed) {
				t.Fatalf("expected ErrDestinationNotAllowed, got %v", err)
			}
			if _, err := eng.DepositFrom(ctx, foreign, 1); !errors.Is(err, vault.ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

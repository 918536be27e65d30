// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package engine

import (
	"context"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/apvault/internal/instruction"
	"github.com/aplane-algo/apvault/internal/ledger"
	"github.com/aplane-algo/apvault/internal/runtime"
	"github.com/aplane-algo/apvault/internal/vault"
)

// VaultAddress derives the vault address locally.
func (e *Engine) VaultAddress() (types.Address, uint8, error) {
	return vault.Address(e.program)
}

// Vault returns the vault state reported by the backend.
func (e *Engine) Vault(ctx context.Context) (vault.Info, error) {
	return e.backend.Vault(ctx)
}

func (e *Engine) submit(ctx context.Context, ins instruction.Instruction) (runtime.Receipt, error) {
	if e.signer == nil {
		return runtime.Receipt{}, ErrNoSigningKey
	}
	signed, err := instruction.Sign(ins, e.signer)
	if err != nil {
		return runtime.Receipt{}, err
	}
	return e.backend.Submit(ctx, signed)
}

// Initialize creates the vault token account for mint, paid by the signer.
func (e *Engine) Initialize(ctx context.Context, mint types.Address) (runtime.Receipt, error) {
	if e.signer == nil {
		return runtime.Receipt{}, ErrNoSigningKey
	}
	vaultAddr, _, err := e.VaultAddress()
	if err != nil {
		return runtime.Receipt{}, err
	}
	return e.submit(ctx, instruction.NewInitializeVault(e.program, e.signer.Address(), mint, vaultAddr))
}

// OwnAccount returns the signer's associated token account for the vault mint.
func (e *Engine) OwnAccount(ctx context.Context) (types.Address, error) {
	if e.signer == nil {
		return types.Address{}, ErrNoSigningKey
	}
	info, err := e.backend.Vault(ctx)
	if err != nil {
		return types.Address{}, err
	}
	if !info.Initialized {
		return types.Address{}, ErrNotInitialized
	}
	mint, err := types.DecodeAddress(info.Mint)
	if err != nil {
		return types.Address{}, fmt.Errorf("invalid vault mint %q: %w", info.Mint, err)
	}
	addr, _, err := ledger.AssociatedAddress(e.signer.Address(), mint)
	return addr, err
}

// Deposit moves amount from the signer's own account into the vault.
func (e *Engine) Deposit(ctx context.Context, amount uint64) (runtime.Receipt, error) {
	source, err := e.OwnAccount(ctx)
	if err != nil {
		return runtime.Receipt{}, err
	}
	return e.DepositFrom(ctx, source, amount)
}

// DepositFrom moves amount from source, which the signer must control.
func (e *Engine) DepositFrom(ctx context.Context, source types.Address, amount uint64) (runtime.Receipt, error) {
	if e.signer == nil {
		return runtime.Receipt{}, ErrNoSigningKey
	}
	vaultAddr, _, err := e.VaultAddress()
	if err != nil {
		return runtime.Receipt{}, err
	}
	return e.submit(ctx, instruction.NewDeposit(e.program, e.signer.Address(), source, vaultAddr, amount))
}

// Withdraw moves amount from the vault to the signer's own account.
func (e *Engine) Withdraw(ctx context.Context, amount uint64) (runtime.Receipt, error) {
	dest, err := e.OwnAccount(ctx)
	if err != nil {
		return runtime.Receipt{}, err
	}
	return e.WithdrawTo(ctx, dest, amount)
}

// WithdrawTo moves amount from the vault to destination, subject to the
// daemon's destination policy.
func (e *Engine) WithdrawTo(ctx context.Context, destination types.Address, amount uint64) (runtime.Receipt, error) {
	if e.signer == nil {
		return runtime.Receipt{}, ErrNoSigningKey
	}
	vaultAddr, _, err := e.VaultAddress()
	if err != nil {
		return runtime.Receipt{}, err
	}
	return e.submit(ctx, instruction.NewWithdraw(e.program, e.signer.Address(), destination, vaultAddr, amount))
}

// Balance returns the token balance of addr.
func (e *Engine) Balance(ctx context.Context, addr types.Address) (uint64, error) {
	acct, err := e.backend.Account(ctx, addr)
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package vault implements a custody program whose spending authority is an
// address derived from the program identity and a fixed seed.
//
// No private key exists for the vault address. Deposits move funds under the
// depositor's verified signature; withdrawals are authorized only by the
// program recomputing the derivation and presenting seed and bump as proof.
package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/apvault/internal/derive"
	"github.com/aplane-algo/apvault/internal/instruction"
	"github.com/aplane-algo/apvault/internal/ledger"
	"github.com/aplane-algo/apvault/internal/runtime"
)

// Seed identifies the single vault of a deployment.
var Seed = []byte("vault")

// Address returns the vault address and bump for program.
func Address(program types.Address) (types.Address, uint8, error) {
	return derive.FindProgramAddress(program, Seed)
}

// Program is the vault program.
type Program struct {
	id types.Address

	mu     sync.RWMutex
	policy DestinationPolicy
}

var _ runtime.Program = (*Program)(nil)

// New creates the vault program for id. A nil policy means SignerOwned.
func New(id types.Address, policy DestinationPolicy) *Program {
	if policy == nil {
		policy = SignerOwned{}
	}
	return &Program{id: id, policy: policy}
}

func (p *Program) ID() types.Address {
	return p.id
}

// Address returns this program's vault address and bump.
func (p *Program) Address() (types.Address, uint8, error) {
	return Address(p.id)
}

// Policy returns the active destination policy.
func (p *Program) Policy() DestinationPolicy {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.policy
}

// SetPolicy replaces the destination policy for subsequent withdrawals.
func (p *Program) SetPolicy(policy DestinationPolicy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.policy = policy
}

// Execute dispatches a decoded instruction.
func (p *Program) Execute(ctx context.Context, inv *runtime.Invocation, ins instruction.Decoded) error {
	switch ins.Kind {
	case instruction.KindInitializeVault:
		return p.Initialize(ctx, inv, ins.Vault, ins.Mint)
	case instruction.KindDeposit:
		return p.Deposit(ctx, inv, ins.Source, ins.Vault, ins.Amount)
	case instruction.KindWithdraw:
		return p.Withdraw(ctx, inv, ins.Vault, ins.Destination, ins.Amount)
	default:
		return fmt.Errorf("%w: %s", instruction.ErrInvalidDiscriminator, ins.Kind)
	}
}

// verifyAddress recomputes the derivation and compares it with the caller's
// vault address. The result is never cached.
func (p *Program) verifyAddress(vault types.Address) (uint8, error) {
	expected, bump, err := p.Address()
	if err != nil {
		return 0, err
	}
	if vault != expected {
		return 0, fmt.Errorf("%w: got %s, want %s", ErrAddressMismatch, vault, expected)
	}
	return bump, nil
}

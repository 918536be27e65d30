// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package runtime

import (
	"context"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/apvault/internal/ledger"
)

// Invocation is a program's view of the ledger for a single instruction.
//
// Signer has been verified by the host. Proofs built by the *Signed helpers
// always name ProgramID, so a program can only speak for addresses derived
// under its own identity.
type Invocation struct {
	ProgramID     types.Address
	Signer        types.Address
	InstructionID string

	ledger ledger.Ledger
}

func (inv *Invocation) Account(ctx context.Context, addr types.Address) (ledger.Account, error) {
	return inv.ledger.Account(ctx, addr)
}

func (inv *Invocation) Mint(ctx context.Context, addr types.Address) (ledger.Mint, error) {
	return inv.ledger.Mint(ctx, addr)
}

// Transfer moves amount under the verified external signer's authority.
func (inv *Invocation) Transfer(ctx context.Context, from, to types.Address, amount uint64) error {
	return inv.ledger.Transfer(ctx,
		ledger.TransferRequest{From: from, To: to, Amount: amount},
		ledger.Signers{inv.signer()})
}

// TransferSigned moves amount under the program-derived authority for seeds and bump.
func (inv *Invocation) TransferSigned(ctx context.Context, from, to types.Address, amount uint64, seeds [][]byte, bump uint8) error {
	return inv.ledger.Transfer(ctx,
		ledger.TransferRequest{From: from, To: to, Amount: amount},
		ledger.Signers{inv.proof(seeds, bump)})
}

// CreateAccountSigned creates an account at a program-derived address.
// The verified signer pays the rent.
func (inv *Invocation) CreateAccountSigned(ctx context.Context, req ledger.CreateAccountRequest, seeds [][]byte, bump uint8) error {
	return inv.ledger.CreateAccount(ctx, req, ledger.Signers{inv.proof(seeds, bump), inv.signer()})
}

func (inv *Invocation) signer() ledger.SignerAuthority {
	return ledger.SignerAuthority{Address: inv.Signer}
}

func (inv *Invocation) proof(seeds [][]byte, bump uint8) ledger.ProgramAuthority {
	return ledger.ProgramAuthority{Program: inv.ProgramID, Seeds: seeds, Bump: bump}
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package ledger

import (
	"context"
	"crypto/sha512"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/apvault/internal/derive"
)

// AssociatedProgram is the identity under which per-owner token accounts are
// derived. An owner has exactly one associated account per mint.
var AssociatedProgram = types.Address(sha512.Sum512_256([]byte("apvault/associated-token-account")))

// AssociatedAddress returns the canonical token account of owner for mint.
func AssociatedAddress(owner, mint types.Address) (types.Address, uint8, error) {
	return derive.FindProgramAddress(AssociatedProgram, owner[:], mint[:])
}

// OpenAssociatedAccount creates the associated token account of owner for
// mint, with owner as its authority and payer funding its rent.
// payer must be authorized by signers.
func OpenAssociatedAccount(ctx context.Context, l Ledger, owner, mint, payer types.Address, signers Signers) (types.Address, error) {
	addr, bump, err := AssociatedAddress(owner, mint)
	if err != nil {
		return types.Address{}, fmt.Errorf("failed to derive associated account: %w", err)
	}

	proof := ProgramAuthority{
		Program: AssociatedProgram,
		Seeds:   [][]byte{owner[:], mint[:]},
		Bump:    bump,
	}
	all := append(Signers{proof}, signers...)

	err = l.CreateAccount(ctx, CreateAccountRequest{
		Address:   addr,
		Mint:      mint,
		Authority: owner,
		Payer:     payer,
	}, all)
	if err != nil {
		return types.Address{}, err
	}
	return addr, nil
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package vault

import (
	"context"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/apvault/internal/logging"
	"github.com/aplane-algo/apvault/internal/runtime"
)

// Deposit moves amount from source into the vault under the invocation
// signer's own authority. The signer must be the source account's authority.
func (p *Program) Deposit(ctx context.Context, inv *runtime.Invocation, source, vault types.Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if inv.Signer.IsZero() {
		return ErrUnauthorized
	}
	if _, err := p.verifyAddress(vault); err != nil {
		return err
	}

	if err := inv.Transfer(ctx, source, vault, amount); err != nil {
		return ledgerError("transfer", err)
	}

	logging.Logger.Info("vault deposit", "amount", amount, "source", source.String(), "signer", inv.Signer.String())
	return nil
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package vault

import (
	"context"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/apvault/internal/logging"
	"github.com/aplane-algo/apvault/internal/runtime"
)

// Withdraw moves amount from the vault to destination. Authority comes from
// the freshly recomputed derivation; the destination must pass the active
// policy for the invocation signer.
func (p *Program) Withdraw(ctx context.Context, inv *runtime.Invocation, vault, destination types.Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	bump, err := p.verifyAddress(vault)
	if err != nil {
		return err
	}

	dest, err := inv.Account(ctx, destination)
	if err != nil {
		return ledgerError("account lookup", err)
	}
	policy := p.Policy()
	if !policy.Allows(inv.Signer, dest) {
		return fmt.Errorf("%w: %s refuses %s for signer %s",
			ErrDestinationNotAllowed, policy.Name(), destination, inv.Signer)
	}

	if err := inv.TransferSigned(ctx, vault, destination, amount, [][]byte{Seed}, bump); err != nil {
		return ledgerError("transfer", err)
	}

	logging.Logger.Info("vault withdraw", "amount", amount, "destination", destination.String(), "signer", inv.Signer.String())
	return nil
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package vault

import (
	"context"
	"errors"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/apvault/internal/ledger"
	"github.com/aplane-algo/apvault/internal/logging"
	"github.com/aplane-algo/apvault/internal/runtime"
)

// Initialize creates the vault token account for mint at the derived address,
// with the derived address as its own authority. The invocation signer pays
// the rent. Not idempotent.
func (p *Program) Initialize(ctx context.Context, inv *runtime.Invocation, vault, mint types.Address) error {
	bump, err := p.verifyAddress(vault)
	if err != nil {
		return err
	}

	if _, err := inv.Account(ctx, vault); err == nil {
		return ErrAlreadyInitialized
	} else if !errors.Is(err, ledger.ErrAccountNotFound) {
		return ledgerError("account lookup", err)
	}

	err = inv.CreateAccountSigned(ctx, ledger.CreateAccountRequest{
		Address:   vault,
		Mint:      mint,
		Authority: vault,
		Payer:     inv.Signer,
	}, [][]byte{Seed}, bump)
	if errors.Is(err, ledger.ErrAccountExists) {
		return ErrAlreadyInitialized
	}
	if err != nil {
		return ledgerError("create account", err)
	}

	logging.Logger.Info("vault initialized", "vault", vault.String(), "mint", mint.String(), "bump", bump)
	return nil
}

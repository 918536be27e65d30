// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package vault

import (
	"context"
	"errors"

	"github.com/aplane-algo/apvault/internal/ledger"
)

// Info is a read-only snapshot of the vault.
type Info struct {
	Program     string `json:"program"`
	Address     string `json:"address"`
	Bump        uint8  `json:"bump"`
	Initialized bool   `json:"initialized"`
	Mint        string `json:"mint,omitempty"`
	Balance     uint64 `json:"balance"`
	Policy      string `json:"policy"`
}

// Info reports the vault's derived address and current ledger state.
func (p *Program) Info(ctx context.Context, l ledger.Ledger) (Info, error) {
	addr, bump, err := p.Address()
	if err != nil {
		return Info{}, err
	}
	info := Info{
		Program: p.id.String(),
		Address: addr.String(),
		Bump:    bump,
		Policy:  p.Policy().Name(),
	}

	acct, err := l.Account(ctx, addr)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return info, nil
	}
	if err != nil {
		return Info{}, ledgerError("account lookup", err)
	}
	info.Initialized = true
	info.Mint = acct.Mint.String()
	info.Balance = acct.Balance
	return info, nil
}

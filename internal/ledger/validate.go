// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package ledger

import (
	"fmt"
	"math"
)

// ValidateCreate performs the stateless checks shared by all backends.
func ValidateCreate(req CreateAccountRequest, signers Signers) error {
	if req.Address.IsZero() {
		return fmt.Errorf("account address is required")
	}
	if req.Authority.IsZero() {
		return fmt.Errorf("account authority is required")
	}
	if err := signers.Require("new account", req.Address); err != nil {
		return err
	}
	return signers.Require("payer", req.Payer)
}

// ValidateTransfer performs the stateless checks shared by all backends.
func ValidateTransfer(req TransferRequest) error {
	if req.Amount == 0 {
		return ErrInvalidAmount
	}
	if req.From == req.To {
		return ErrSelfTransfer
	}
	return nil
}

// CheckTransfer validates a transfer against the current state of both accounts.
func CheckTransfer(from, to Account, amount uint64, signers Signers) error {
	if from.Mint != to.Mint {
		return fmt.Errorf("%w: %s vs %s", ErrMintMismatch, from.Mint, to.Mint)
	}
	if err := signers.Require("source authority", from.Authority); err != nil {
		return err
	}
	if from.Balance < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, from.Balance, amount)
	}
	if to.Balance > math.MaxUint64-amount {
		return ErrOverflow
	}
	return nil
}

// AddChecked adds without wrapping.
func AddChecked(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package vault

import (
	"errors"
	"fmt"

	"github.com/aplane-algo/apvault/internal/ledger"
)

var (
	ErrAddressMismatch       = errors.New("vault address does not match derivation")
	ErrAlreadyInitialized    = errors.New("vault already initialized")
	ErrDestinationNotAllowed = errors.New("destination not allowed by policy")

	// Shared with the ledger so errors.Is matches regardless of which layer refused.
	ErrUnauthorized        = ledger.ErrUnauthorized
	ErrInsufficientBalance = ledger.ErrInsufficientBalance
	ErrInvalidAmount       = ledger.ErrInvalidAmount
)

// LedgerError wraps a failure reported by the ledger service, unmodified.
type LedgerError struct {
	Op  string
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %s failed: %v", e.Op, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

func ledgerError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &LedgerError{Op: op, Err: err}
}

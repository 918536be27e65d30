// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aplane-algo/apvault/internal/ledger"
	"github.com/aplane-algo/apvault/internal/runtime"
	"github.com/aplane-algo/apvault/internal/vault"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`

	// LedgerOp is set when the ledger refused the operation.
	LedgerOp string `json:"ledger_op,omitempty"`
}

// errorKind ties a sentinel to its wire name and HTTP status.
type errorKind struct {
	name   string
	err    error
	status int
}

// Sentinels are matched in order; first match wins.
var errorKinds = []errorKind{
	{"malformed", runtime.ErrMalformed, http.StatusBadRequest},
	{"invalid_amount", vault.ErrInvalidAmount, http.StatusBadRequest},
	{"unknown_program", runtime.ErrUnknownProgram, http.StatusNotFound},
	{"unauthorized", runtime.ErrUnauthorized, http.StatusForbidden},
	{"destination_not_allowed", vault.ErrDestinationNotAllowed, http.StatusForbidden},
	{"replay", runtime.ErrReplay, http.StatusConflict},
	{"already_initialized", vault.ErrAlreadyInitialized, http.StatusConflict},
	{"address_mismatch", vault.ErrAddressMismatch, http.StatusUnprocessableEntity},
	{"insufficient_balance", vault.ErrInsufficientBalance, http.StatusUnprocessableEntity},
	{"account_exists", ledger.ErrAccountExists, http.StatusConflict},
	{"account_not_found", ledger.ErrAccountNotFound, http.StatusNotFound},
	{"mint_not_found", ledger.ErrMintNotFound, http.StatusNotFound},
	{"mint_mismatch", ledger.ErrMintMismatch, http.StatusUnprocessableEntity},
	{"insufficient_funding", ledger.ErrInsufficientFunding, http.StatusUnprocessableEntity},
	{"self_transfer", ledger.ErrSelfTransfer, http.StatusUnprocessableEntity},
	{"overflow", ledger.ErrOverflow, http.StatusUnprocessableEntity},
	{"canceled", context.Canceled, http.StatusServiceUnavailable},
	{"timeout", context.DeadlineExceeded, http.StatusServiceUnavailable},
}

const kindInternal = "internal"

// classify maps err to a response body and status code.
func classify(err error) (ErrorResponse, int) {
	resp := ErrorResponse{Error: err.Error(), Kind: kindInternal}
	status := http.StatusInternalServerError

	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			resp.Kind, status = k.name, k.status
			break
		}
	}

	var le *vault.LedgerError
	if errors.As(err, &le) {
		resp.LedgerOp = le.Op
		if status == http.StatusInternalServerError {
			status = http.StatusUnprocessableEntity
		}
	}
	return resp, status
}

// asError rebuilds a Go error from a response so errors.Is works on the
// client side as it does in-process.
func (r ErrorResponse) asError() error {
	var err error = fmt.Errorf("server error: %s", r.Error)
	for _, k := range errorKinds {
		if k.name == r.Kind {
			err = fmt.Errorf("%w (%s)", k.err, r.Error)
			break
		}
	}
	if r.LedgerOp != "" {
		return &vault.LedgerError{Op: r.LedgerOp, Err: err}
	}
	return err
}

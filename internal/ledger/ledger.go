// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package ledger defines the token ledger that owns account balances.
//
// The ledger is the only component that mutates balances. Callers present a
// set of authorities with every state-changing request; the ledger checks them
// against the account being debited (or created) before applying anything.
// Every operation is atomic: it either applies in full or leaves state
// unchanged.
//
// Two backends implement Store: ledger/memory and ledger/sqlite.
package ledger

import (
	"context"
	"errors"
	"sort"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

const (
	// AccountSize is the storage footprint of a token account, used for rent.
	AccountSize = 165

	// DefaultRentExemptMinimum is the native amount charged to the payer when
	// an account of AccountSize bytes is created.
	DefaultRentExemptMinimum uint64 = 2_039_280
)

var (
	ErrAccountExists       = errors.New("account already exists")
	ErrAccountNotFound     = errors.New("account not found")
	ErrMintExists          = errors.New("mint already exists")
	ErrMintNotFound        = errors.New("mint not found")
	ErrMintMismatch        = errors.New("accounts hold different mints")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientFunding = errors.New("insufficient native funding for account creation")
	ErrUnauthorized        = errors.New("missing or invalid authority")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrSelfTransfer        = errors.New("source and destination are the same account")
	ErrOverflow            = errors.New("balance overflow")

	ErrInstructionProcessed = errors.New("instruction already processed")
)

// Mint describes a token type.
type Mint struct {
	Address  types.Address `json:"address"`
	Decimals uint8         `json:"decimals"`
}

// Account is a balance-holding record for a single mint.
// Authority is the address whose authorization is required to debit it.
type Account struct {
	Address   types.Address `json:"address"`
	Mint      types.Address `json:"mint"`
	Authority types.Address `json:"authority"`
	Balance   uint64        `json:"balance"`
}

// CreateAccountRequest asks the ledger to open a token account.
// Both Address and Payer must be authorized by the accompanying signers:
// Address proves the creator controls the new address, Payer funds its rent.
type CreateAccountRequest struct {
	Address   types.Address
	Mint      types.Address
	Authority types.Address
	Payer     types.Address
}

// TransferRequest moves Amount from one token account to another.
// The source account's Authority must be authorized by the signers.
type TransferRequest struct {
	From   types.Address
	To     types.Address
	Amount uint64
}

// Ledger is the capability the vault program depends on.
type Ledger interface {
	CreateAccount(ctx context.Context, req CreateAccountRequest, signers Signers) error
	Transfer(ctx context.Context, req TransferRequest, signers Signers) error
	Account(ctx context.Context, addr types.Address) (Account, error)
	Mint(ctx context.Context, addr types.Address) (Mint, error)
}

// Journal records the ids of instructions the host has consumed. Entries are
// kept with the balances they protect, so they survive restarts and are
// shared by every process using the same store.
type Journal interface {
	// MarkProcessed records id, failing with ErrInstructionProcessed if it
	// was recorded before. Recording is atomic with respect to other callers.
	MarkProcessed(ctx context.Context, id string) error
}

// Admin holds operator-only operations used to set up a ledger.
// They bypass authority checks and are never reachable from a program.
type Admin interface {
	CreateMint(ctx context.Context, mint Mint) error
	MintTo(ctx context.Context, to types.Address, amount uint64) error
	Fund(ctx context.Context, addr types.Address, amount uint64) error
	NativeBalance(ctx context.Context, addr types.Address) (uint64, error)
	Accounts(ctx context.Context) ([]Account, error)
}

// Store is a complete ledger backend.
type Store interface {
	Ledger
	Journal
	Admin
	Close() error
}

// Options configures a ledger backend.
type Options struct {
	RentExemptMinimum uint64
}

// DefaultOptions returns the options used when none are supplied.
func DefaultOptions() Options {
	return Options{RentExemptMinimum: DefaultRentExemptMinimum}
}

// SortAccounts orders accounts by their text address.
func SortAccounts(accts []Account) {
	sort.Slice(accts, func(i, j int) bool {
		return accts[i].Address.String() < accts[j].Address.String()
	})
}

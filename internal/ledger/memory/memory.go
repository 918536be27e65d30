// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package memory provides an in-process ledger backend.
// State lives in maps guarded by a single mutex, so every operation is atomic.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/apvault/internal/ledger"
)

// Ledger is an in-memory ledger.Store.
type Ledger struct {
	mu       sync.Mutex
	opts     ledger.Options
	mints    map[types.Address]ledger.Mint
	accounts map[types.Address]ledger.Account
	native   map[types.Address]uint64
	journal  map[string]struct{}
}

// New creates an empty in-memory ledger.
func New(opts ledger.Options) *Ledger {
	return &Ledger{
		opts:     opts,
		mints:    make(map[types.Address]ledger.Mint),
		accounts: make(map[types.Address]ledger.Account),
		native:   make(map[types.Address]uint64),
		journal:  make(map[string]struct{}),
	}
}

var _ ledger.Store = (*Ledger)(nil)

func (l *Ledger) MarkProcessed(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, seen := l.journal[id]; seen {
		return fmt.Errorf("%w: %s", ledger.ErrInstructionProcessed, id)
	}
	l.journal[id] = struct{}{}
	return nil
}

func (l *Ledger) CreateAccount(ctx context.Context, req ledger.CreateAccountRequest, signers ledger.Signers) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ledger.ValidateCreate(req, signers); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.accounts[req.Address]; exists {
		return fmt.Errorf("%w: %s", ledger.ErrAccountExists, req.Address)
	}
	if _, ok := l.mints[req.Mint]; !ok {
		return fmt.Errorf("%w: %s", ledger.ErrMintNotFound, req.Mint)
	}
	funding := l.native[req.Payer]
	if funding < l.opts.RentExemptMinimum {
		return fmt.Errorf("%w: payer %s has %d, need %d",
			ledger.ErrInsufficientFunding, req.Payer, funding, l.opts.RentExemptMinimum)
	}

	l.native[req.Payer] = funding - l.opts.RentExemptMinimum
	l.native[req.Address] += l.opts.RentExemptMinimum
	l.accounts[req.Address] = ledger.Account{
		Address:   req.Address,
		Mint:      req.Mint,
		Authority: req.Authority,
	}
	return nil
}

func (l *Ledger) Transfer(ctx context.Context, req ledger.TransferRequest, signers ledger.Signers) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ledger.ValidateTransfer(req); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	from, ok := l.accounts[req.From]
	if !ok {
		return fmt.Errorf("%w: source %s", ledger.ErrAccountNotFound, req.From)
	}
	to, ok := l.accounts[req.To]
	if !ok {
		return fmt.Errorf("%w: destination %s", ledger.ErrAccountNotFound, req.To)
	}
	if err := ledger.CheckTransfer(from, to, req.Amount, signers); err != nil {
		return err
	}

	from.Balance -= req.Amount
	to.Balance += req.Amount
	l.accounts[from.Address] = from
	l.accounts[to.Address] = to
	return nil
}

func (l *Ledger) Account(ctx context.Context, addr types.Address) (ledger.Account, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Account{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[addr]
	if !ok {
		return ledger.Account{}, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, addr)
	}
	return acct, nil
}

func (l *Ledger) Mint(ctx context.Context, addr types.Address) (ledger.Mint, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Mint{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	mint, ok := l.mints[addr]
	if !ok {
		return ledger.Mint{}, fmt.Errorf("%w: %s", ledger.ErrMintNotFound, addr)
	}
	return mint, nil
}

func (l *Ledger) CreateMint(ctx context.Context, mint ledger.Mint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if mint.Address.IsZero() {
		return fmt.Errorf("mint address is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.mints[mint.Address]; exists {
		return fmt.Errorf("%w: %s", ledger.ErrMintExists, mint.Address)
	}
	l.mints[mint.Address] = mint
	return nil
}

func (l *Ledger) MintTo(ctx context.Context, to types.Address, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amount == 0 {
		return ledger.ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[to]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, to)
	}
	balance, err := ledger.AddChecked(acct.Balance, amount)
	if err != nil {
		return err
	}
	acct.Balance = balance
	l.accounts[to] = acct
	return nil
}

func (l *Ledger) Fund(ctx context.Context, addr types.Address, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amount == 0 {
		return ledger.ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	balance, err := ledger.AddChecked(l.native[addr], amount)
	if err != nil {
		return err
	}
	l.native[addr] = balance
	return nil
}

func (l *Ledger) NativeBalance(ctx context.Context, addr types.Address) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.native[addr], nil
}

// Accounts returns all token accounts sorted by address.
func (l *Ledger) Accounts(ctx context.Context) ([]ledger.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]ledger.Account, 0, len(l.accounts))
	for _, acct := range l.accounts {
		out = append(out, acct)
	}
	ledger.SortAccounts(out)
	return out, nil
}

// Close is a no-op for the in-memory backend.
func (l *Ledger) Close() error {
	return nil
}

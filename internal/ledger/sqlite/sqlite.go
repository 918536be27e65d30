// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package sqlite provides a persistent ledger backend on SQLite.
//
// Each state-changing operation runs inside a single database transaction, so
// a failure at any point rolls the whole operation back. Balances are stored
// as decimal text because SQLite integers cannot hold the full uint64 range.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
	_ "github.com/mattn/go-sqlite3"

	"github.com/aplane-algo/apvault/internal/ledger"
)

//go:embed schema.sql
var schema string

// Config holds database configuration options
type Config struct {
	Path        string        // Database file path
	BusyTimeout time.Duration // SQLite busy timeout
	Options     ledger.Options
}

// DefaultConfig returns sensible defaults for the given database path.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		BusyTimeout: 5 * time.Second,
		Options:     ledger.DefaultOptions(),
	}
}

// Ledger is a SQLite-backed ledger.Store.
type Ledger struct {
	conn *sql.DB
	path string
	opts ledger.Options
}

var _ ledger.Store = (*Ledger)(nil)

// Open opens (creating if needed) the ledger database at path.
func Open(path string) (*Ledger, error) {
	return OpenWithConfig(DefaultConfig(path))
}

// OpenWithConfig opens the ledger database with custom configuration.
// WAL mode and foreign keys are enabled and verified.
func OpenWithConfig(cfg Config) (*Ledger, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=%d",
		cfg.Path,
		int(cfg.BusyTimeout.Milliseconds()),
	)

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serializes writers; operations are already serialized by the host.
	conn.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	var journalMode string
	if err := conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		_ = conn.Close()
		return nil, fmt.Errorf("WAL mode not enabled (got %s)", journalMode)
	}

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Ledger{conn: conn, path: cfg.Path, opts: cfg.Options}, nil
}

// Path returns the database file path
func (l *Ledger) Path() string {
	return l.path
}

// Close closes the database connection
func (l *Ledger) Close() error {
	if l.conn == nil {
		return nil
	}
	return l.conn.Close()
}

// withTx executes fn within a transaction.
// If fn returns an error, the transaction is rolled back; otherwise it is committed.
func (l *Ledger) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := l.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (l *Ledger) CreateAccount(ctx context.Context, req ledger.CreateAccountRequest, signers ledger.Signers) error {
	if err := ledger.ValidateCreate(req, signers); err != nil {
		return err
	}

	return l.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := loadAccount(ctx, tx, req.Address); err == nil {
			return fmt.Errorf("%w: %s", ledger.ErrAccountExists, req.Address)
		} else if !errors.Is(err, ledger.ErrAccountNotFound) {
			return err
		}
		if _, err := loadMint(ctx, tx, req.Mint); err != nil {
			return err
		}

		funding, err := loadNative(ctx, tx, req.Payer)
		if err != nil {
			return err
		}
		rent := l.opts.RentExemptMinimum
		if funding < rent {
			return fmt.Errorf("%w: payer %s has %d, need %d",
				ledger.ErrInsufficientFunding, req.Payer, funding, rent)
		}

		if err := storeNative(ctx, tx, req.Payer, funding-rent); err != nil {
			return err
		}
		held, err := loadNative(ctx, tx, req.Address)
		if err != nil {
			return err
		}
		held, err = ledger.AddChecked(held, rent)
		if err != nil {
			return err
		}
		if err := storeNative(ctx, tx, req.Address, held); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO accounts (address, mint, authority, balance) VALUES (?, ?, ?, '0')",
			req.Address[:], req.Mint[:], req.Authority[:])
		if err != nil {
			return fmt.Errorf("failed to insert account: %w", err)
		}
		return nil
	})
}

func (l *Ledger) Transfer(ctx context.Context, req ledger.TransferRequest, signers ledger.Signers) error {
	if err := ledger.ValidateTransfer(req); err != nil {
		return err
	}

	return l.withTx(ctx, func(tx *sql.Tx) error {
		from, err := loadAccount(ctx, tx, req.From)
		if err != nil {
			return fmt.Errorf("source: %w", err)
		}
		to, err := loadAccount(ctx, tx, req.To)
		if err != nil {
			return fmt.Errorf("destination: %w", err)
		}
		if err := ledger.CheckTransfer(from, to, req.Amount, signers); err != nil {
			return err
		}

		if err := storeBalance(ctx, tx, from.Address, from.Balance-req.Amount); err != nil {
			return err
		}
		return storeBalance(ctx, tx, to.Address, to.Balance+req.Amount)
	})
}

func (l *Ledger) Account(ctx context.Context, addr types.Address) (ledger.Account, error) {
	return loadAccount(ctx, l.conn, addr)
}

func (l *Ledger) Mint(ctx context.Context, addr types.Address) (ledger.Mint, error) {
	return loadMint(ctx, l.conn, addr)
}

func (l *Ledger) CreateMint(ctx context.Context, mint ledger.Mint) error {
	if mint.Address.IsZero() {
		return fmt.Errorf("mint address is required")
	}
	return l.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := loadMint(ctx, tx, mint.Address); err == nil {
			return fmt.Errorf("%w: %s", ledger.ErrMintExists, mint.Address)
		} else if !errors.Is(err, ledger.ErrMintNotFound) {
			return err
		}
		_, err := tx.ExecContext(ctx, "INSERT INTO mints (address, decimals) VALUES (?, ?)",
			mint.Address[:], int(mint.Decimals))
		if err != nil {
			return fmt.Errorf("failed to insert mint: %w", err)
		}
		return nil
	})
}

func (l *Ledger) MintTo(ctx context.Context, to types.Address, amount uint64) error {
	if amount == 0 {
		return ledger.ErrInvalidAmount
	}
	return l.withTx(ctx, func(tx *sql.Tx) error {
		acct, err := loadAccount(ctx, tx, to)
		if err != nil {
			return err
		}
		balance, err := ledger.AddChecked(acct.Balance, amount)
		if err != nil {
			return err
		}
		return storeBalance(ctx, tx, to, balance)
	})
}

func (l *Ledger) Fund(ctx context.Context, addr types.Address, amount uint64) error {
	if amount == 0 {
		return ledger.ErrInvalidAmount
	}
	return l.withTx(ctx, func(tx *sql.Tx) error {
		current, err := loadNative(ctx, tx, addr)
		if err != nil {
			return err
		}
		balance, err := ledger.AddChecked(current, amount)
		if err != nil {
			return err
		}
		return storeNative(ctx, tx, addr, balance)
	})
}

// MarkProcessed inserts id into the journal. The primary key makes the insert
// the single point of agreement between processes sharing the database.
func (l *Ledger) MarkProcessed(ctx context.Context, id string) error {
	res, err := l.conn.ExecContext(ctx,
		"INSERT OR IGNORE INTO processed_instructions (id, processed_at) VALUES (?, ?)",
		id, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to record instruction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to record instruction: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrInstructionProcessed, id)
	}
	return nil
}

func (l *Ledger) NativeBalance(ctx context.Context, addr types.Address) (uint64, error) {
	return loadNative(ctx, l.conn, addr)
}

// Accounts returns all token accounts sorted by address.
func (l *Ledger) Accounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := l.conn.QueryContext(ctx, "SELECT address, mint, authority, balance FROM accounts")
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ledger.Account
	for rows.Next() {
		var addr, mint, authority []byte
		var balance string
		if err := rows.Scan(&addr, &mint, &authority, &balance); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		acct, err := decodeAccount(addr, mint, authority, balance)
		if err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	ledger.SortAccounts(out)
	return out, nil
}

func loadAccount(ctx context.Context, q querier, addr types.Address) (ledger.Account, error) {
	var rawAddr, mint, authority []byte
	var balance string
	err := q.QueryRowContext(ctx,
		"SELECT address, mint, authority, balance FROM accounts WHERE address = ?", addr[:]).
		Scan(&rawAddr, &mint, &authority, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Account{}, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, addr)
	}
	if err != nil {
		return ledger.Account{}, fmt.Errorf("failed to load account: %w", err)
	}
	return decodeAccount(rawAddr, mint, authority, balance)
}

func loadMint(ctx context.Context, q querier, addr types.Address) (ledger.Mint, error) {
	var decimals int
	err := q.QueryRowContext(ctx, "SELECT decimals FROM mints WHERE address = ?", addr[:]).Scan(&decimals)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Mint{}, fmt.Errorf("%w: %s", ledger.ErrMintNotFound, addr)
	}
	if err != nil {
		return ledger.Mint{}, fmt.Errorf("failed to load mint: %w", err)
	}
	return ledger.Mint{Address: addr, Decimals: uint8(decimals)}, nil
}

func loadNative(ctx context.Context, q querier, addr types.Address) (uint64, error) {
	var balance string
	err := q.QueryRowContext(ctx, "SELECT balance FROM native_balances WHERE address = ?", addr[:]).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load native balance: %w", err)
	}
	b, err := strconv.ParseUint(balance, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt native balance row: %w", err)
	}
	return b, nil
}

func storeNative(ctx context.Context, tx *sql.Tx, addr types.Address, balance uint64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO native_balances (address, balance) VALUES (?, ?)
		 ON CONFLICT(address) DO UPDATE SET balance = excluded.balance`,
		addr[:], strconv.FormatUint(balance, 10))
	if err != nil {
		return fmt.Errorf("failed to store native balance: %w", err)
	}
	return nil
}

func storeBalance(ctx context.Context, tx *sql.Tx, addr types.Address, balance uint64) error {
	res, err := tx.ExecContext(ctx, "UPDATE accounts SET balance = ? WHERE address = ?",
		strconv.FormatUint(balance, 10), addr[:])
	if err != nil {
		return fmt.Errorf("failed to store balance: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n != 1 {
		return fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, addr)
	}
	return nil
}

func decodeAccount(addr, mint, authority []byte, balance string) (ledger.Account, error) {
	var acct ledger.Account
	if len(addr) != len(acct.Address) || len(mint) != len(acct.Mint) || len(authority) != len(acct.Authority) {
		return ledger.Account{}, fmt.Errorf("corrupt account row: unexpected address length")
	}
	copy(acct.Address[:], addr)
	copy(acct.Mint[:], mint)
	copy(acct.Authority[:], authority)

	b, err := strconv.ParseUint(balance, 10, 64)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("corrupt account row: %w", err)
	}
	acct.Balance = b
	return acct, nil
}

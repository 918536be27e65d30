// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package runtime

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/apvault/internal/audit"
	"github.com/aplane-algo/apvault/internal/derive"
	"github.com/aplane-algo/apvault/internal/instruction"
	"github.com/aplane-algo/apvault/internal/ledger"
	"github.com/aplane-algo/apvault/internal/ledger/sqlite"
	"github.com/aplane-algo/apvault/internal/signing"
	"github.com/aplane-algo/apvault/internal/testutil"
)

// relay moves deposits with the signer's authority and withdrawals with a
// derived proof for seed "pool". When foreign is set, the bump is computed
// under that program instead.
type relay struct {
	id      types.Address
	foreign types.Address
	calls   int
}

func (r *relay) ID() types.Address { return r.id }

func (r *relay) Execute(ctx context.Context, inv *Invocation, ins instruction.Decoded) error {
	r.calls++
	switch ins.Kind {
	case instruction.KindDeposit:
		return inv.Transfer(ctx, ins.Source, ins.Vault, ins.Amount)
	case instruction.KindWithdraw:
		program := inv.ProgramID
		if !r.foreign.IsZero() {
			program = r.foreign
		}
		_, bump, err := derive.FindProgramAddress(program, []byte("pool"))
		if err != nil {
			return err
		}
		return inv.TransferSigned(ctx, ins.Vault, ins.Destination, ins.Amount, [][]byte{[]byte("pool")}, bump)
	default:
		return errors.New("unsupported")
	}
}

type fixture struct {
	host  *Host
	store ledger.Store
	prog  *relay
	mint  types.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l, mint := testutil.NewLedger(t)
	prog := &relay{id: testutil.NewKey(t).Address()}
	host := NewHost(l, nil)
	if err := host.Register(prog); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return &fixture{host: host, store: l, prog: prog, mint: mint}
}

func TestExecuteDeposit(t *testing.T) {
	f := newFixture(t)
	key := testutil.NewKey(t)
	src := testutil.OpenAccount(t, f.store, key.Address(), f.mint, 50)
	dst := testutil.OpenAccount(t, f.store, testutil.NewKey(t).Address(), f.mint, 0)

	ins := instruction.NewDeposit(f.prog.id, key.Address(), src, dst, 20)
	receipt, err := f.host.Execute(context.Background(), testutil.MustSign(t, ins, key))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if receipt.InstructionID != ins.ID || receipt.Kind != instruction.KindDeposit || receipt.Amount != 20 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if testutil.Balance(t, f.store, src) != 30 || testutil.Balance(t, f.store, dst) != 20 {
		t.Fatal("balances not updated")
	}
}

func TestExecuteRejectsTamperedSignature(t *testing.T) {
	f := newFixture(t)
	key := testutil.NewKey(t)
	src := testutil.OpenAccount(t, f.store, key.Address(), f.mint, 50)

	signed := testutil.MustSign(t, instruction.NewDeposit(f.prog.id, key.Address(), src, src, 1), key)
	signed.Signature[0] ^= 0x01

	if _, err := f.host.Execute(context.Background(), signed); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if f.prog.calls != 0 {
		t.Fatal("program ran despite bad signature")
	}
}

func TestExecuteRejectsForeignKey(t *testing.T) {
	f := newFixture(t)
	victim := testutil.NewKey(t)
	attacker := testutil.NewKey(t)
	src := testutil.OpenAccount(t, f.store, victim.Address(), f.mint, 50)
	dst := testutil.OpenAccount(t, f.store, attacker.Address(), f.mint, 0)

	// Claims to be the victim but signs with the attacker's key.
	ins := instruction.NewDeposit(f.prog.id, victim.Address(), src, dst, 50)
	sig, _ := attacker.Sign(ins.BytesToSign())
	signed := instruction.SignedInstruction{
		Instruction: ins,
		Scheme:      attacker.Family(),
		PublicKey:   attacker.PublicKey(),
		Signature:   sig,
	}
	if _, err := f.host.Execute(context.Background(), signed); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if testutil.Balance(t, f.store, src) != 50 {
		t.Fatal("victim balance changed")
	}
}

func TestExecuteRejectsReplay(t *testing.T) {
	f := newFixture(t)
	key := testutil.NewKey(t)
	src := testutil.OpenAccount(t, f.store, key.Address(), f.mint, 50)
	dst := testutil.OpenAccount(t, f.store, testutil.NewKey(t).Address(), f.mint, 0)

	signed := testutil.MustSign(t, instruction.NewDeposit(f.prog.id, key.Address(), src, dst, 10), key)
	if _, err := f.host.Execute(context.Background(), signed); err != nil {
		t.Fatalf("first Execute failed: %v", err)
	}
	if _, err := f.host.Execute(context.Background(), signed); !errors.Is(err, ErrReplay) {
		t.Fatalf("expected ErrReplay, got %v", err)
	}
	if testutil.Balance(t, f.store, src) != 40 {
		t.Fatalf("replay moved funds: source balance %d", testutil.Balance(t, f.store, src))
	}
}

func openSQLite(t *testing.T, path string) *sqlite.Ledger {
	t.Helper()
	cfg := sqlite.DefaultConfig(path)
	cfg.Options = ledger.Options{RentExemptMinimum: testutil.TestRent}
	l, err := sqlite.OpenWithConfig(cfg)
	if err != nil {
		t.Fatalf("OpenWithConfig failed: %v", err)
	}
	return l
}

// persistentDeposit sets up a mint and two accounts in l and returns a signed
// deposit of 20 between them.
func persistentDeposit(t *testing.T, l *sqlite.Ledger, program types.Address) (instruction.SignedInstruction, types.Address, types.Address) {
	t.Helper()
	mint := testutil.NewKey(t).Address()
	if err := l.CreateMint(context.Background(), ledger.Mint{Address: mint, Decimals: 6}); err != nil {
		t.Fatalf("CreateMint failed: %v", err)
	}
	key := testutil.NewKey(t)
	src := testutil.OpenAccount(t, l, key.Address(), mint, 50)
	dst := testutil.OpenAccount(t, l, testutil.NewKey(t).Address(), mint, 0)
	signed := testutil.MustSign(t, instruction.NewDeposit(program, key.Address(), src, dst, 20), key)
	return signed, src, dst
}

func TestExecuteRejectsReplayAfterRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	program := testutil.NewKey(t).Address()

	l := openSQLite(t, path)
	signed, src, dst := persistentDeposit(t, l, program)

	host := NewHost(l, nil)
	if err := host.Register(&relay{id: program}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := host.Execute(ctx, signed); err != nil {
		t.Fatalf("first Execute failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := openSQLite(t, path)
	defer func() { _ = reopened.Close() }()

	prog := &relay{id: program}
	restarted := NewHost(reopened, nil)
	if err := restarted.Register(prog); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := restarted.Execute(ctx, signed); !errors.Is(err, ErrReplay) {
		t.Fatalf("expected ErrReplay after restart, got %v", err)
	}
	if prog.calls != 0 {
		t.Fatal("replayed instruction reached the program")
	}
	if got := testutil.Balance(t, reopened, src); got != 30 {
		t.Fatalf("source balance = %d, want 30", got)
	}
	if got := testutil.Balance(t, reopened, dst); got != 20 {
		t.Fatalf("destination balance = %d, want 20", got)
	}
}

func TestExecuteRejectsReplayAcrossHostsSharingStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	program := testutil.NewKey(t).Address()

	first := openSQLite(t, path)
	defer func() { _ = first.Close() }()
	signed, src, _ := persistentDeposit(t, first, program)

	second := openSQLite(t, path)
	defer func() { _ = second.Close() }()

	hostA := NewHost(first, nil)
	hostB := NewHost(second, nil)
	for _, h := range []*Host{hostA, hostB} {
		if err := h.Register(&relay{id: program}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}

	if _, err := hostA.Execute(ctx, signed); err != nil {
		t.Fatalf("Execute on first host failed: %v", err)
	}
	if _, err := hostB.Execute(ctx, signed); !errors.Is(err, ErrReplay) {
		t.Fatalf("expected ErrReplay on second host, got %v", err)
	}
	if got := testutil.Balance(t, second, src); got != 30 {
		t.Fatalf("source balance = %d, want 30", got)
	}
}

func TestExecuteUnknownProgramAndMalformed(t *testing.T) {
	f := newFixture(t)
	key := testutil.NewKey(t)

	other := testutil.NewKey(t).Address()
	signed := testutil.MustSign(t, instruction.NewDeposit(other, key.Address(), other, other, 1), key)
	if _, err := f.host.Execute(context.Background(), signed); !errors.Is(err, ErrUnknownProgram) {
		t.Fatalf("expected ErrUnknownProgram, got %v", err)
	}

	ins := instruction.NewDeposit(f.prog.id, key.Address(), other, other, 1)
	ins.Data = ins.Data[:3]
	signed = testutil.MustSign(t, ins, key)
	if _, err := f.host.Execute(context.Background(), signed); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestExecuteCanceledContext(t *testing.T) {
	f := newFixture(t)
	key := testutil.NewKey(t)
	src := testutil.OpenAccount(t, f.store, key.Address(), f.mint, 50)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	signed := testutil.MustSign(t, instruction.NewDeposit(f.prog.id, key.Address(), src, src, 1), key)
	if _, err := f.host.Execute(ctx, signed); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func openPool(t *testing.T, store ledger.Store, program, mint types.Address, payer signing.Key, balance uint64) types.Address {
	t.Helper()
	ctx := context.Background()

	pool, bump, err := derive.FindProgramAddress(program, []byte("pool"))
	if err != nil {
		t.Fatalf("FindProgramAddress failed: %v", err)
	}
	testutil.Fund(t, store, payer.Address(), 1)
	err = store.CreateAccount(ctx, ledger.CreateAccountRequest{Address: pool, Mint: mint, Authority: pool, Payer: payer.Address()},
		ledger.Signers{
			ledger.ProgramAuthority{Program: program, Seeds: [][]byte{[]byte("pool")}, Bump: bump},
			ledger.SignerAuthority{Address: payer.Address()},
		})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if err := store.MintTo(ctx, pool, balance); err != nil {
		t.Fatalf("MintTo failed: %v", err)
	}
	return pool
}

func TestTransferSignedBindsProgramIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := testutil.NewKey(t)

	pool := openPool(t, f.store, f.prog.id, f.mint, key, 100)
	dst := testutil.OpenAccount(t, f.store, key.Address(), f.mint, 0)

	signed := testutil.MustSign(t, instruction.NewWithdraw(f.prog.id, key.Address(), dst, pool, 60), key)
	if _, err := f.host.Execute(ctx, signed); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if testutil.Balance(t, f.store, pool) != 40 {
		t.Fatalf("pool balance = %d, want 40", testutil.Balance(t, f.store, pool))
	}

	// A pool derived under another program cannot be drained: the proof the
	// invocation builds always names the registered program.
	foreign := testutil.NewKey(t).Address()
	foreignPool := openPool(t, f.store, foreign, f.mint, key, 100)
	f.prog.foreign = foreign

	signed = testutil.MustSign(t, instruction.NewWithdraw(f.prog.id, key.Address(), dst, foreignPool, 10), key)
	if _, err := f.host.Execute(ctx, signed); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if testutil.Balance(t, f.store, foreignPool) != 100 {
		t.Fatal("foreign pool balance changed")
	}
}

func TestExecuteSerializesConcurrentCalls(t *testing.T) {
	f := newFixture(t)
	key := testutil.NewKey(t)
	src := testutil.OpenAccount(t, f.store, key.Address(), f.mint, 100)
	dst := testutil.OpenAccount(t, f.store, testutil.NewKey(t).Address(), f.mint, 0)

	const workers = 20
	batch := make([]instruction.SignedInstruction, workers)
	for i := range batch {
		batch[i] = testutil.MustSign(t, instruction.NewDeposit(f.prog.id, key.Address(), src, dst, 10), key)
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for _, signed := range batch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.host.Execute(context.Background(), signed); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	failed := 0
	for err := range errs {
		if !errors.Is(err, ledger.ErrInsufficientBalance) {
			t.Fatalf("unexpected error: %v", err)
		}
		failed++
	}
	if failed != workers-10 {
		t.Fatalf("%d transfers failed, want %d", failed, workers-10)
	}
	if testutil.Balance(t, f.store, src) != 0 || testutil.Balance(t, f.store, dst) != 100 {
		t.Fatal("balances not conserved")
	}
}

func TestExecuteWritesAudit(t *testing.T) {
	l, mint := testutil.NewLedger(t)
	path := filepath.Join(t.TempDir(), "audit.log")
	auditLog, err := audit.Open(path)
	if err != nil {
		t.Fatalf("audit.Open failed: %v", err)
	}
	defer func() { _ = auditLog.Close() }()

	prog := &relay{id: testutil.NewKey(t).Address()}
	host := NewHost(l, auditLog)
	if err := host.Register(prog); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := host.Register(prog); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}

	key := testutil.NewKey(t)
	src := testutil.OpenAccount(t, l, key.Address(), mint, 5)
	signed := testutil.MustSign(t, instruction.NewDeposit(prog.id, key.Address(), src, src, 1), key)
	if _, err := host.Execute(context.Background(), signed); err == nil {
		t.Fatal("expected self-transfer to fail")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("rejection was not audited")
	}
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package runtime hosts programs: it verifies external signatures, refuses
// replays, and executes one instruction at a time against the ledger.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/apvault/internal/audit"
	"github.com/aplane-algo/apvault/internal/instruction"
	"github.com/aplane-algo/apvault/internal/ledger"
	"github.com/aplane-algo/apvault/internal/logging"
)

var (
	ErrUnknownProgram = errors.New("unknown program")
	ErrMalformed      = errors.New("malformed instruction")

	// ErrUnauthorized and ErrReplay are shared with the ledger so callers
	// match one sentinel.
	ErrUnauthorized = ledger.ErrUnauthorized
	ErrReplay       = ledger.ErrInstructionProcessed
)

// JournaledLedger is the store a host executes against: balances plus the
// journal of consumed instruction ids.
type JournaledLedger interface {
	ledger.Ledger
	ledger.Journal
}

// Program is an on-ledger program the host can dispatch to.
type Program interface {
	ID() types.Address
	Execute(ctx context.Context, inv *Invocation, ins instruction.Decoded) error
}

// Receipt describes an executed instruction.
type Receipt struct {
	InstructionID string           `json:"instruction_id"`
	Kind          instruction.Kind `json:"kind"`
	Program       string           `json:"program"`
	Signer        string           `json:"signer"`
	Amount        uint64           `json:"amount,omitempty"`
	ExecutedAt    time.Time        `json:"executed_at"`
}

type remoteAddrKey struct{}

// WithRemoteAddr tags ctx with the client address recorded in the audit log.
func WithRemoteAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, remoteAddrKey{}, addr)
}

// RemoteAddr returns the client address set by WithRemoteAddr, if any.
func RemoteAddr(ctx context.Context) string {
	addr, _ := ctx.Value(remoteAddrKey{}).(string)
	return addr
}

// Host executes signed instructions serially.
type Host struct {
	mu       sync.Mutex
	ledger   JournaledLedger
	audit    *audit.Logger
	programs map[types.Address]Program
	now      func() time.Time
}

// NewHost creates a host over l. auditLog may be nil. Consumed instruction
// ids are recorded in l, so replays are refused across restarts and across
// hosts sharing one store.
func NewHost(l JournaledLedger, auditLog *audit.Logger) *Host {
	return &Host{
		ledger:   l,
		audit:    auditLog,
		programs: make(map[types.Address]Program),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register makes p reachable at its program id.
func (h *Host) Register(p Program) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := p.ID()
	if id.IsZero() {
		return fmt.Errorf("program id is required")
	}
	if _, exists := h.programs[id]; exists {
		return fmt.Errorf("program %s already registered", id)
	}
	h.programs[id] = p
	return nil
}

// Ledger returns the ledger the host executes against, for read-only queries.
func (h *Host) Ledger() ledger.Ledger {
	return h.ledger
}

// Execute verifies and runs one signed instruction.
//
// The instruction id is consumed once the signature verifies, whether or not
// the program then succeeds; a client retrying a failed instruction signs a
// new one.
func (h *Host) Execute(ctx context.Context, s instruction.SignedInstruction) (Receipt, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ins := s.Instruction
	id, program, signer := ins.ID, ins.Program.String(), ins.Signer().String()
	remote := RemoteAddr(ctx)

	reject := func(kind instruction.Kind, err error) (Receipt, error) {
		h.audit.LogRejected(id, string(kind), program, signer, err.Error(), remote)
		logging.Logger.Warn("instruction rejected", "id", id, "kind", kind, "signer", signer, "error", err)
		return Receipt{}, err
	}

	if err := ctx.Err(); err != nil {
		return reject("", err)
	}

	decoded, err := ins.Decode()
	if err != nil {
		return reject("", fmt.Errorf("%w: %w", ErrMalformed, err))
	}

	prog, ok := h.programs[ins.Program]
	if !ok {
		return reject(decoded.Kind, fmt.Errorf("%w: %s", ErrUnknownProgram, program))
	}

	if err := s.Verify(); err != nil {
		return reject(decoded.Kind, fmt.Errorf("%w: %w", ErrUnauthorized, err))
	}

	if err := h.ledger.MarkProcessed(ctx, id); err != nil {
		return reject(decoded.Kind, err)
	}

	inv := &Invocation{
		ProgramID:     ins.Program,
		Signer:        decoded.Signer,
		InstructionID: id,
		ledger:        h.ledger,
	}
	if err := prog.Execute(ctx, inv, decoded); err != nil {
		return reject(decoded.Kind, err)
	}

	h.audit.LogExecuted(id, string(decoded.Kind), program, signer, decoded.Amount, remote)
	logging.Logger.Info("instruction executed", "id", id, "kind", decoded.Kind, "signer", signer, "amount", decoded.Amount)

	return Receipt{
		InstructionID: id,
		Kind:          decoded.Kind,
		Program:       program,
		Signer:        signer,
		Amount:        decoded.Amount,
		ExecutedAt:    h.now(),
	}, nil
}

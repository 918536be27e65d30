// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package engine provides the client-side vault operations shared by the
// CLI, the interactive shell and JavaScript scripts, independent of any UI.
//
// An Engine signs instructions with a loaded key and hands them to a
// Backend: either a remote apvaultd (api.Client) or an in-process host
// (Local).
package engine

import (
	"context"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/apvault/internal/api"
	"github.com/aplane-algo/apvault/internal/instruction"
	"github.com/aplane-algo/apvault/internal/runtime"
	"github.com/aplane-algo/apvault/internal/signing"
	"github.com/aplane-algo/apvault/internal/vault"
)

// Backend executes signed instructions and answers state queries.
type Backend interface {
	Submit(ctx context.Context, s instruction.SignedInstruction) (runtime.Receipt, error)
	Vault(ctx context.Context) (vault.Info, error)
	Account(ctx context.Context, addr types.Address) (api.AccountView, error)
}

var _ Backend = (*api.Client)(nil)

// Local is a Backend over an in-process host.
type Local struct {
	host    *runtime.Host
	program *vault.Program
}

var _ Backend = (*Local)(nil)

func NewLocal(host *runtime.Host, program *vault.Program) *Local {
	return &Local{host: host, program: program}
}

func (l *Local) Submit(ctx context.Context, s instruction.SignedInstruction) (runtime.Receipt, error) {
	return l.host.Execute(ctx, s)
}

func (l *Local) Vault(ctx context.Context) (vault.Info, error) {
	return l.program.Info(ctx, l.host.Ledger())
}

func (l *Local) Account(ctx context.Context, addr types.Address) (api.AccountView, error) {
	acct, err := l.host.Ledger().Account(ctx, addr)
	if err != nil {
		return api.AccountView{}, err
	}
	return api.NewAccountView(acct), nil
}

// Engine holds the program identity, backend and signing key.
type Engine struct {
	program types.Address
	backend Backend
	signer  signing.Key
}

// Option is a functional option for configuring the Engine
type Option func(*Engine) error

// New creates an engine for program over backend.
func New(program types.Address, backend Backend, opts ...Option) (*Engine, error) {
	if program.IsZero() {
		return nil, fmt.Errorf("program id is required")
	}
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	e := &Engine{program: program, backend: backend}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// WithSigner sets the key used to sign instructions.
func WithSigner(key signing.Key) Option {
	return func(e *Engine) error {
		e.signer = key
		return nil
	}
}

func (e *Engine) Program() types.Address { return e.program }

// SetSigner replaces the signing key. nil makes the engine read-only.
func (e *Engine) SetSigner(key signing.Key) { e.signer = key }

// Signer returns the signing address, if a key is loaded.
func (e *Engine) Signer() (types.Address, bool) {
	if e.signer == nil {
		return types.Address{}, false
	}
	return e.signer.Address(), true
}

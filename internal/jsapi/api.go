// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package jsapi provides JavaScript API bindings for the vault engine.
//
// Functions are organized into files:
//   - api.go: Core API struct, registration, output
//   - vault.go: initialize, deposit, withdraw, balance and vault queries
//   - helpers.go: Type conversion utilities
package jsapi

import (
	"context"
	"fmt"

	"github.com/dop251/goja"

	"github.com/aplane-algo/apvault/internal/engine"
)

// API provides JavaScript bindings for the engine.
type API struct {
	engine  *engine.Engine
	runtime *goja.Runtime
	verbose bool
	output  func(string)
	ctx     context.Context
}

// NewAPI creates a new JavaScript API instance.
func NewAPI(eng *engine.Engine, verbose bool, output func(string)) *API {
	return &API{
		engine:  eng,
		verbose: verbose,
		output:  output,
		ctx:     context.Background(),
	}
}

// SetContext sets the context passed to engine calls made by scripts.
func (a *API) SetContext(ctx context.Context) {
	a.ctx = ctx
}

// RegisterAll registers all API functions on the given Goja runtime.
func (a *API) RegisterAll(vm *goja.Runtime) error {
	a.runtime = vm

	if err := vm.Set("tokens", makeTokensFunc(vm)); err != nil {
		return fmt.Errorf("failed to register tokens: %w", err)
	}

	fns := []struct {
		name string
		fn   func(goja.FunctionCall) goja.Value
	}{
		{"print", a.jsPrint},
		{"log", a.jsLog},
		{"setVerbose", a.jsSetVerbose},
		{"signer", a.jsSigner},
		{"program", a.jsProgram},
		{"vaultAddress", a.jsVaultAddress},
		{"vault", a.jsVault},
		{"ownAccount", a.jsOwnAccount},
		{"balance", a.jsBalance},
		{"initialize", a.jsInitialize},
		{"deposit", a.jsDeposit},
		{"withdraw", a.jsWithdraw},
	}
	for _, f := range fns {
		if err := vm.Set(f.name, f.fn); err != nil {
			return fmt.Errorf("failed to register %s: %w", f.name, err)
		}
	}
	return nil
}

func (a *API) outputMsg(msg string) {
	if a.output != nil {
		a.output(msg)
	}
}

// jsPrint outputs a message.
func (a *API) jsPrint(call goja.FunctionCall) goja.Value {
	args := make([]interface{}, len(call.Arguments))
	for i, arg := range call.Arguments {
		args[i] = arg.Export()
	}
	a.outputMsg(fmt.Sprint(args...))
	return goja.Undefined()
}

// jsLog outputs a debug message (only in verbose mode).
func (a *API) jsLog(call goja.FunctionCall) goja.Value {
	if !a.verbose {
		return goja.Undefined()
	}
	args := make([]interface{}, len(call.Arguments))
	for i, arg := range call.Arguments {
		args[i] = arg.Export()
	}
	a.outputMsg("[debug] " + fmt.Sprint(args...))
	return goja.Undefined()
}

func (a *API) jsSetVerbose(call goja.FunctionCall) goja.Value {
	a.requireArgs(call, 1, "setVerbose() requires a boolean argument")
	a.verbose = call.Arguments[0].ToBoolean()
	return goja.Undefined()
}

// throw raises err as a catchable JS exception.
func (a *API) throw(err error) {
	panic(a.runtime.NewGoError(err))
}

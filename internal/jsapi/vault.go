// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package jsapi

import (
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/dop251/goja"

	"github.com/aplane-algo/apvault/internal/runtime"
)

// jsSigner returns the loaded key's address, or null.
func (a *API) jsSigner(call goja.FunctionCall) goja.Value {
	addr, ok := a.engine.Signer()
	if !ok {
		return goja.Null()
	}
	return a.runtime.ToValue(addr.String())
}

func (a *API) jsProgram(call goja.FunctionCall) goja.Value {
	return a.runtime.ToValue(a.engine.Program().String())
}

func (a *API) jsVaultAddress(call goja.FunctionCall) goja.Value {
	addr, _, err := a.engine.VaultAddress()
	if err != nil {
		a.throw(err)
	}
	return a.runtime.ToValue(addr.String())
}

// jsVault returns {program, address, bump, initialized, mint, balance, policy}.
func (a *API) jsVault(call goja.FunctionCall) goja.Value {
	info, err := a.engine.Vault(a.ctx)
	if err != nil {
		a.throw(err)
	}
	return a.runtime.ToValue(info)
}

func (a *API) jsOwnAccount(call goja.FunctionCall) goja.Value {
	addr, err := a.engine.OwnAccount(a.ctx)
	if err != nil {
		a.throw(err)
	}
	return a.runtime.ToValue(addr.String())
}

// jsBalance returns the token balance of an address, defaulting to the
// signer's own account.
// balance() / balance("ADDR...")
func (a *API) jsBalance(call goja.FunctionCall) goja.Value {
	var addr types.Address
	if len(call.Arguments) > 0 && !goja.IsUndefined(call.Arguments[0]) {
		addr = a.toAddress(call.Arguments[0])
	} else {
		own, err := a.engine.OwnAccount(a.ctx)
		if err != nil {
			a.throw(err)
		}
		addr = own
	}
	bal, err := a.engine.Balance(a.ctx, addr)
	if err != nil {
		a.throw(err)
	}
	return a.runtime.ToValue(bal)
}

// initialize("MINT...")
func (a *API) jsInitialize(call goja.FunctionCall) goja.Value {
	a.requireArgs(call, 1, "initialize() requires a mint address")
	return a.receipt(a.engine.Initialize(a.ctx, a.toAddress(call.Arguments[0])))
}

// deposit(amount) / deposit(amount, "SOURCE...")
func (a *API) jsDeposit(call goja.FunctionCall) goja.Value {
	a.requireArgs(call, 1, "deposit() requires an amount")
	amount := toUint64(a.runtime, call.Arguments[0])
	if len(call.Arguments) > 1 {
		return a.receipt(a.engine.DepositFrom(a.ctx, a.toAddress(call.Arguments[1]), amount))
	}
	return a.receipt(a.engine.Deposit(a.ctx, amount))
}

// withdraw(amount) / withdraw(amount, "DESTINATION...")
func (a *API) jsWithdraw(call goja.FunctionCall) goja.Value {
	a.requireArgs(call, 1, "withdraw() requires an amount")
	amount := toUint64(a.runtime, call.Arguments[0])
	if len(call.Arguments) > 1 {
		return a.receipt(a.engine.WithdrawTo(a.ctx, a.toAddress(call.Arguments[1]), amount))
	}
	return a.receipt(a.engine.Withdraw(a.ctx, amount))
}

func (a *API) receipt(r runtime.Receipt, err error) goja.Value {
	if err != nil {
		a.throw(err)
	}
	a.outputMsg(string(r.Kind) + " " + r.InstructionID + " executed")
	return a.runtime.ToValue(r)
}

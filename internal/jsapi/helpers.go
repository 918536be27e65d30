// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package jsapi

import (
	"math"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/dop251/goja"
)

// makeTokensFunc creates the tokens() helper bound to a runtime.
// tokens(1.5, 6) -> 1500000
func makeTokensFunc(vm *goja.Runtime) func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			panic(vm.ToValue("tokens() requires an amount and decimals"))
		}

		val := call.Arguments[0].ToFloat()
		if val < 0 {
			panic(vm.ToValue("tokens() cannot be negative"))
		}
		decimals := call.Arguments[1].ToInteger()
		if decimals < 0 || decimals > 19 {
			panic(vm.ToValue("tokens() decimals must be between 0 and 19"))
		}
		scaled := math.Round(val * math.Pow10(int(decimals)))
		if scaled >= math.MaxUint64 {
			panic(vm.ToValue("tokens() amount overflows"))
		}
		return vm.ToValue(uint64(scaled))
	}
}

// requireArgs panics with a JS exception if the call has fewer than n arguments.
func (a *API) requireArgs(call goja.FunctionCall, n int, msg string) {
	if len(call.Arguments) < n {
		panic(a.runtime.ToValue(msg))
	}
}

// toAddress decodes a JS string as an address.
func (a *API) toAddress(v goja.Value) types.Address {
	addr, err := types.DecodeAddress(v.String())
	if err != nil {
		panic(a.runtime.ToValue("invalid address: " + v.String()))
	}
	return addr
}

// toUint64 converts a Goja value to uint64.
// Panics with a JS exception if the value is negative.
func toUint64(vm *goja.Runtime, v goja.Value) uint64 {
	switch val := v.Export().(type) {
	case int64:
		if val < 0 {
			panic(vm.ToValue("value cannot be negative"))
		}
		return uint64(val)
	case float64:
		if val < 0 {
			panic(vm.ToValue("value cannot be negative"))
		}
		return uint64(val)
	case uint64:
		return val
	default:
		i := v.ToInteger()
		if i < 0 {
			panic(vm.ToValue("value cannot be negative"))
		}
		return uint64(i)
	}
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package jsapi

import (
	"strings"
	"testing"

	"github.com/dop251/goja"
)

// TestTokensFunc tests the tokens() helper that scales to base units.
func TestTokensFunc(t *testing.T) {
	vm := goja.New()
	tokensFn := makeTokensFunc(vm)

	tests := []struct {
		name      string
		amount    interface{}
		decimals  interface{}
		want      uint64
		wantPanic string
	}{
		{name: "whole", amount: 1.0, decimals: 6, want: 1_000_000},
		{name: "fractional", amount: 1.5, decimals: 6, want: 1_500_000},
		{name: "smallest unit", amount: 0.000001, decimals: 6, want: 1},
		{name: "no decimals", amount: 42, decimals: 0, want: 42},
		{name: "negative", amount: -1.0, decimals: 6, wantPanic: "cannot be negative"},
		{name: "bad decimals", amount: 1.0, decimals: 25, wantPanic: "decimals"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if tt.wantPanic == "" {
					if r != nil {
						t.Fatalf("unexpected panic: %v", r)
					}
					return
				}
				if r == nil {
					t.Fatal("expected panic")
				}
				v, ok := r.(goja.Value)
				if !ok || !strings.Contains(v.String(), tt.wantPanic) {
					t.Fatalf("panic = %v, want containing %q", r, tt.wantPanic)
				}
			}()

			got := tokensFn(goja.FunctionCall{Arguments: []goja.Value{vm.ToValue(tt.amount), vm.ToValue(tt.decimals)}})
			if got.ToInteger() != int64(tt.want) {
				t.Errorf("tokens(%v, %v) = %v, want %d", tt.amount, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestToUint64(t *testing.T) {
	vm := goja.New()

	tests := []struct {
		name      string
		input     interface{}
		want      uint64
		wantPanic bool
	}{
		{"int", 5, 5, false},
		{"float", 7.0, 7, false},
		{"string number", "12", 12, false},
		{"negative int", -3, 0, true},
		{"negative float", -0.5, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); (r != nil) != tt.wantPanic {
					t.Fatalf("panic = %v, wantPanic %v", r, tt.wantPanic)
				}
			}()
			if got := toUint64(vm, vm.ToValue(tt.input)); got != tt.want {
				t.Errorf("toUint64(%v) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

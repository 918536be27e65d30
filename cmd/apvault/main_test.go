// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aplane-algo/apvault/internal/config"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"1", 1, false},
		{"0", 0, false},
		{"1_000_000", 1_000_000, false},
		{"18446744073709551615", 18446744073709551615, false},
		{"18446744073709551616", 0, true},
		{"", 0, true},
		{"_", 0, true},
		{"-5", 0, true},
		{"1.5", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAmount(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseAmount(%q) = %d, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseAmount(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("parseAmount(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestCommandTable(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range commands {
		if seen[c.name] {
			t.Fatalf("duplicate command %q", c.name)
		}
		seen[c.name] = true
		if !strings.HasPrefix(c.usage, c.name) {
			t.Fatalf("usage %q does not start with %q", c.usage, c.name)
		}
		if c.desc == "" || c.run == nil {
			t.Fatalf("command %q is incomplete", c.name)
		}
	}
	for _, name := range []string{"keygen", "init", "deposit", "withdraw", "balance", "info", "shell", "js"} {
		if findCommand(name) == nil {
			t.Fatalf("missing command %q", name)
		}
	}
}

func TestDispatchErrors(t *testing.T) {
	a := &app{cfg: config.DefaultConfig()}
	ctx := context.Background()

	err := dispatch(ctx, a, []string{"nope"})
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}

	err = dispatch(ctx, a, []string{"mint-to", "only-one-arg"})
	if err == nil || !strings.HasPrefix(err.Error(), "usage: apvault mint-to") {
		t.Fatalf("expected usage error, got %v", err)
	}

	err = dispatch(ctx, a, []string{"deposit", "-h"})
	if err != nil {
		t.Fatalf("-h should not be an error, got %v", err)
	}
}

func TestLedgerCommandsRequireSQLite(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Ledger.Backend = config.BackendMemory
	a := &app{cfg: cfg}

	err := dispatch(context.Background(), a, []string{"accounts"})
	if err == nil || !strings.Contains(err.Error(), "sqlite") {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestSetupWritesProgram(t *testing.T) {
	dir := t.TempDir()
	a := &app{dataDir: dir, cfg: config.DefaultConfig()}
	ctx := context.Background()

	if err := dispatch(ctx, a, []string{"setup"}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := cfg.ProgramAddress(); err != nil {
		t.Fatalf("program not written: %v", err)
	}

	if err := dispatch(ctx, a, []string{"setup"}); err == nil {
		t.Fatal("second setup without -force should fail")
	}
	if err := dispatch(ctx, a, []string{"setup", "-force"}); err != nil {
		t.Fatalf("setup -force: %v", err)
	}
}

func TestLocalLedgerFlow(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Ledger.Path = dir + "/ledger.db"
	a := &app{dataDir: dir, cfg: cfg}
	defer a.close()
	ctx := context.Background()

	if err := dispatch(ctx, a, []string{"create-mint", "-decimals", "2"}); err != nil {
		t.Fatalf("create-mint: %v", err)
	}
	if err := dispatch(ctx, a, []string{"accounts"}); err != nil {
		t.Fatalf("accounts: %v", err)
	}

	err := dispatch(ctx, a, []string{"fund", "not-an-address", "10"})
	if err == nil || errors.Is(err, errUsage) {
		t.Fatalf("expected address error, got %v", err)
	}
}

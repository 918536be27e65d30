// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(Path(dir), []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Listen != DefaultListen || cfg.Ledger.Backend != BackendSQLite {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Ledger.Path != filepath.Join(dir, "ledger.db") {
		t.Fatalf("ledger path not resolved: %s", cfg.Ledger.Path)
	}
	if _, err := cfg.ProgramAddress(); err == nil {
		t.Fatal("expected error for missing program_id")
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	program := crypto.GenerateAccount().Address
	writeConfig(t, dir, "program_id: "+program.String()+"\nledger:\n  backend: memory\npolicy:\n  destination: allowlist\n  allowlist_file: /etc/apvault/allow.yaml\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	addr, err := cfg.ProgramAddress()
	if err != nil || addr != program {
		t.Fatalf("ProgramAddress() = %s, %v", addr, err)
	}
	if cfg.Ledger.Backend != BackendMemory {
		t.Fatalf("backend = %q", cfg.Ledger.Backend)
	}
	if cfg.Ledger.RentExemptMinimum != DefaultConfig().Ledger.RentExemptMinimum {
		t.Fatal("rent default lost in overlay")
	}
	if cfg.Policy.AllowlistFile != "/etc/apvault/allow.yaml" {
		t.Fatalf("absolute allow-list path rewritten: %s", cfg.Policy.AllowlistFile)
	}
	if cfg.Listen != DefaultListen {
		t.Fatalf("listen default lost: %s", cfg.Listen)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad program", "program_id: nope\n", "program_id"},
		{"bad backend", "ledger:\n  backend: postgres\n", "ledger.backend"},
		{"bad policy", "policy:\n  destination: everyone\n", "policy.destination"},
		{"bad log format", "log_format: xml\n", "log_format"},
		{"negative timeout", "ledger:\n  busy_timeout_ms: -1\n", "busy_timeout_ms"},
		{"bad yaml", "ledger: [\n", "parse"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tc.content)
			_, err := Load(dir)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q should mention %q", err, tc.want)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.ProgramID = crypto.GenerateAccount().Address.String()
	cfg.Policy.Destination = "any"

	if err := Save(Path(dir), cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	info, err := os.Stat(Path(dir))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("config mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.ProgramID != cfg.ProgramID || loaded.Policy.Destination != "any" {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
}

func TestDataDirResolution(t *testing.T) {
	t.Setenv(DataDirEnv, "/from/env")
	if got := DataDir("/from/flag"); got != "/from/flag" {
		t.Fatalf("flag should win, got %s", got)
	}
	if got := DataDir(""); got != "/from/env" {
		t.Fatalf("env should be used, got %s", got)
	}

	t.Setenv(DataDirEnv, "")
	if got := DataDir(""); !strings.HasSuffix(got, ".apvault") {
		t.Fatalf("default should end in .apvault, got %s", got)
	}
}

func TestResolvePath(t *testing.T) {
	if got := ResolvePath("ledger.db", "/data"); got != filepath.Join("/data", "ledger.db") {
		t.Fatalf("relative not joined: %s", got)
	}
	if got := ResolvePath("/abs/ledger.db", "/data"); got != "/abs/ledger.db" {
		t.Fatalf("absolute changed: %s", got)
	}
	if got := ResolvePath("", "/data"); got != "" {
		t.Fatalf("empty changed: %s", got)
	}
}

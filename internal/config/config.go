// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package config loads the YAML configuration shared by apvaultd and apvault.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"gopkg.in/yaml.v3"

	"github.com/aplane-algo/apvault/internal/ledger"
	"github.com/aplane-algo/apvault/internal/vault"
)

const (
	// DataDirEnv overrides the default data directory.
	DataDirEnv = "APVAULT_DATA"

	DefaultListen = "127.0.0.1:11280"

	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// LedgerConfig selects and tunes the ledger backend.
type LedgerConfig struct {
	Backend           string `yaml:"backend" description:"Ledger backend (memory, sqlite)" default:"sqlite"`
	Path              string `yaml:"path" description:"SQLite database path (relative to data dir)" default:"ledger.db"`
	BusyTimeoutMs     int    `yaml:"busy_timeout_ms" description:"SQLite busy timeout in milliseconds" default:"5000"`
	RentExemptMinimum uint64 `yaml:"rent_exempt_minimum" description:"Native balance charged to create an account" default:"2039280"`
}

// PolicyConfig selects the withdrawal destination policy.
type PolicyConfig struct {
	Destination   string `yaml:"destination" description:"Withdraw destination policy (signer-owned, allowlist, any)" default:"signer-owned"`
	AllowlistFile string `yaml:"allowlist_file" description:"Allow-list file for the allowlist policy (relative to data dir)" default:"allowlist.yaml"`
}

// Config holds apvaultd and apvault settings.
type Config struct {
	ProgramID string `yaml:"program_id" description:"Vault program identity (address, required)"`
	Listen    string `yaml:"listen" description:"apvaultd listen address" default:"127.0.0.1:11280"`
	ServerURL string `yaml:"server_url" description:"apvaultd base URL used by the CLI" default:"http://127.0.0.1:11280"`
	AuditLog  string `yaml:"audit_log" description:"Audit log path (relative to data dir, empty disables)" default:"audit.log"`
	LogFormat string `yaml:"log_format" description:"Daemon log format (text, json)" default:"text"`
	KeysDir   string `yaml:"keys_dir" description:"Encrypted client key directory (relative to data dir)" default:"keys"`

	Ledger LedgerConfig `yaml:"ledger" description:"Ledger backend settings"`
	Policy PolicyConfig `yaml:"policy" description:"Withdrawal destination policy"`
}

// DefaultConfig returns the default configuration. ProgramID is left empty
// and must be configured.
func DefaultConfig() Config {
	return Config{
		Listen:    DefaultListen,
		ServerURL: "http://" + DefaultListen,
		AuditLog:  "audit.log",
		LogFormat: "text",
		KeysDir:   "keys",
		Ledger: LedgerConfig{
			Backend:           BackendSQLite,
			Path:              "ledger.db",
			BusyTimeoutMs:     5000,
			RentExemptMinimum: ledger.DefaultRentExemptMinimum,
		},
		Policy: PolicyConfig{
			Destination:   vault.PolicySignerOwned,
			AllowlistFile: "allowlist.yaml",
		},
	}
}

// DataDir returns the data directory.
// Resolution order: -d flag > APVAULT_DATA env var > ~/.apvault
func DataDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envDir := os.Getenv(DataDirEnv); envDir != "" {
		return envDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".apvault")
}

// RequireDataDir resolves the data directory or exits.
func RequireDataDir(flagValue string) string {
	dir := DataDir(flagValue)
	if dir == "" {
		fmt.Fprintln(os.Stderr, "Error: Could not determine data directory")
		fmt.Fprintf(os.Stderr, "Use -d <path> or set %s environment variable\n", DataDirEnv)
		os.Exit(1)
	}
	return dir
}

// Path returns the config file path in dataDir.
func Path(dataDir string) string {
	return filepath.Join(dataDir, "config.yaml")
}

// Load reads config.yaml from dataDir, validates it, and resolves relative
// paths against dataDir. A missing file yields the defaults.
func Load(dataDir string) (Config, error) {
	cfg, err := LoadFromPath(Path(dataDir))
	if err != nil {
		return Config{}, err
	}
	cfg.Ledger.Path = ResolvePath(cfg.Ledger.Path, dataDir)
	cfg.Policy.AllowlistFile = ResolvePath(cfg.Policy.AllowlistFile, dataDir)
	cfg.AuditLog = ResolvePath(cfg.AuditLog, dataDir)
	cfg.KeysDir = ResolvePath(cfg.KeysDir, dataDir)
	return cfg, nil
}

// LoadFromPath reads and validates a config file.
func LoadFromPath(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay config file values
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values. An empty ProgramID is allowed here; commands
// that need it call ProgramAddress.
func (c *Config) Validate() error {
	if c.ProgramID != "" {
		if _, err := types.DecodeAddress(c.ProgramID); err != nil {
			return fmt.Errorf("program_id: %w", err)
		}
	}
	switch c.Ledger.Backend {
	case BackendMemory, BackendSQLite:
	default:
		return fmt.Errorf("ledger.backend %q must be %s or %s", c.Ledger.Backend, BackendMemory, BackendSQLite)
	}
	if c.Ledger.Backend == BackendSQLite && c.Ledger.Path == "" {
		return fmt.Errorf("ledger.path is required for the sqlite backend")
	}
	if c.Ledger.BusyTimeoutMs < 0 {
		return fmt.Errorf("ledger.busy_timeout_ms must not be negative")
	}
	switch c.Policy.Destination {
	case vault.PolicySignerOwned, vault.PolicyAny:
	case vault.PolicyAllowlist:
		if c.Policy.AllowlistFile == "" {
			return fmt.Errorf("policy.allowlist_file is required for the allowlist policy")
		}
	default:
		return fmt.Errorf("policy.destination %q must be %s, %s or %s",
			c.Policy.Destination, vault.PolicySignerOwned, vault.PolicyAllowlist, vault.PolicyAny)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format %q must be text or json", c.LogFormat)
	}
	return nil
}

// ProgramAddress returns the decoded program identity.
func (c *Config) ProgramAddress() (types.Address, error) {
	if c.ProgramID == "" {
		return types.Address{}, fmt.Errorf("program_id is not configured")
	}
	return types.DecodeAddress(c.ProgramID)
}

// BusyTimeout returns the SQLite busy timeout as a duration.
func (c *Config) BusyTimeout() time.Duration {
	return BusyTimeoutOf(c.Ledger)
}

// BusyTimeoutOf converts a ledger section's busy timeout to a duration.
func BusyTimeoutOf(l LedgerConfig) time.Duration {
	return time.Duration(l.BusyTimeoutMs) * time.Millisecond
}

// Save writes cfg to path with owner-only permissions.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ResolvePath returns path unchanged if absolute or empty, otherwise joined to baseDir.
func ResolvePath(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}

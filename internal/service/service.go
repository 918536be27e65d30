// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package service assembles a running vault from configuration: ledger
// backend, audit log, host runtime and the vault program.
package service

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aplane-algo/apvault/internal/audit"
	"github.com/aplane-algo/apvault/internal/config"
	"github.com/aplane-algo/apvault/internal/ledger"
	"github.com/aplane-algo/apvault/internal/ledger/backend"
	"github.com/aplane-algo/apvault/internal/logging"
	"github.com/aplane-algo/apvault/internal/runtime"
	"github.com/aplane-algo/apvault/internal/vault"
)

// Service owns the components behind one vault deployment.
type Service struct {
	Config config.Config
	Ledger ledger.Store
	Audit  *audit.Logger
	Host   *runtime.Host
	Vault  *vault.Program

	reloadMu sync.Mutex
}

// Open builds a service from cfg. Paths in cfg must already be resolved.
func Open(cfg config.Config) (*Service, error) {
	program, err := cfg.ProgramAddress()
	if err != nil {
		return nil, err
	}
	policy, err := vault.ParsePolicy(cfg.Policy.Destination, cfg.Policy.AllowlistFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load destination policy: %w", err)
	}

	store, err := backend.Open(cfg.Ledger)
	if err != nil {
		return nil, err
	}

	var auditLog *audit.Logger
	if cfg.AuditLog != "" {
		auditLog, err = audit.Open(cfg.AuditLog)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	prog := vault.New(program, policy)
	host := runtime.NewHost(store, auditLog)
	if err := host.Register(prog); err != nil {
		_ = store.Close()
		_ = auditLog.Close()
		return nil, err
	}

	return &Service{
		Config: cfg,
		Ledger: store,
		Audit:  auditLog,
		Host:   host,
		Vault:  prog,
	}, nil
}

// ReloadPolicy re-reads the configured destination policy and swaps it in.
// On failure the current policy stays active.
func (s *Service) ReloadPolicy() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	policy, err := vault.ParsePolicy(s.Config.Policy.Destination, s.Config.Policy.AllowlistFile)
	if err != nil {
		return err
	}
	s.Vault.SetPolicy(policy)

	count := 0
	if al, ok := policy.(*vault.Allowlist); ok {
		count = al.Len()
	}
	s.Audit.LogPolicyReload(count)
	logging.Logger.Info("destination policy reloaded", "policy", policy.Name(), "entries", count)
	return nil
}

// Close releases the ledger and audit log.
func (s *Service) Close() error {
	return errors.Join(s.Ledger.Close(), s.Audit.Close())
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package backend opens the ledger store selected by configuration.
package backend

import (
	"fmt"

	"github.com/aplane-algo/apvault/internal/config"
	"github.com/aplane-algo/apvault/internal/ledger"
	"github.com/aplane-algo/apvault/internal/ledger/memory"
	"github.com/aplane-algo/apvault/internal/ledger/sqlite"
	"github.com/aplane-algo/apvault/internal/logging"
)

// Open returns the configured ledger. The memory backend starts empty and
// is lost on exit.
func Open(c config.LedgerConfig) (ledger.Store, error) {
	opts := ledger.Options{RentExemptMinimum: c.RentExemptMinimum}

	switch c.Backend {
	case config.BackendMemory:
		logging.Logger.Warn("using in-memory ledger, state is not persisted")
		return memory.New(opts), nil
	case config.BackendSQLite:
		cfg := sqlite.DefaultConfig(c.Path)
		cfg.Options = opts
		if c.BusyTimeoutMs > 0 {
			cfg.BusyTimeout = config.BusyTimeoutOf(c)
		}
		l, err := sqlite.OpenWithConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open ledger %s: %w", c.Path, err)
		}
		logging.Logger.Debug("opened sqlite ledger", "path", l.Path())
		return l, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", c.Backend)
	}
}

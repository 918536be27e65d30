// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"fmt"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/apvault/internal/api"
	"github.com/aplane-algo/apvault/internal/config"
	"github.com/aplane-algo/apvault/internal/engine"
	"github.com/aplane-algo/apvault/internal/keystore"
	"github.com/aplane-algo/apvault/internal/ledger"
	"github.com/aplane-algo/apvault/internal/ledger/backend"
	"github.com/aplane-algo/apvault/internal/scripting"
	"github.com/aplane-algo/apvault/internal/service"
)

// app holds per-process CLI state. Components are opened lazily so that
// commands like keygen work without a program id or daemon.
type app struct {
	dataDir string
	cfg     config.Config
	keyName string
	local   bool
	timeout time.Duration

	store   *keystore.Store
	session *keystore.Session
	svc     *service.Service
	ledger  ledger.Store
	js      *scripting.GojaRunner
	eng     *engine.Engine
}

func (a *app) keystore() (*keystore.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := keystore.Open(a.cfg.KeysDir)
	if err != nil {
		return nil, err
	}
	a.store = s
	a.session = keystore.NewSession(s, func() ([]byte, error) {
		return promptPassphrase("Passphrase: ", false)
	})
	return s, nil
}

// service opens the configured ledger and host in-process.
func (a *app) service() (*service.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	svc, err := service.Open(a.cfg)
	if err != nil {
		return nil, err
	}
	a.svc = svc
	return svc, nil
}

// ledgerStore opens the configured ledger for operator commands. Only the
// sqlite backend is shared with apvaultd; a memory ledger would vanish on exit.
func (a *app) ledgerStore() (ledger.Store, error) {
	if a.svc != nil {
		return a.svc.Ledger, nil
	}
	if a.ledger != nil {
		return a.ledger, nil
	}
	if a.cfg.Ledger.Backend != config.BackendSQLite {
		return nil, fmt.Errorf("ledger commands require the %s backend (configured: %s)",
			config.BackendSQLite, a.cfg.Ledger.Backend)
	}
	l, err := backend.Open(a.cfg.Ledger)
	if err != nil {
		return nil, err
	}
	a.ledger = l
	return l, nil
}

// engine returns the vault engine, loading the signing key if withKey.
func (a *app) engine(withKey bool) (*engine.Engine, error) {
	if a.eng == nil {
		program, err := a.cfg.ProgramAddress()
		if err != nil {
			return nil, fmt.Errorf("%w (run 'apvault setup')", err)
		}

		var be engine.Backend
		if a.local {
			svc, err := a.service()
			if err != nil {
				return nil, err
			}
			be = engine.NewLocal(svc.Host, svc.Vault)
		} else {
			be = api.NewClient(a.cfg.ServerURL, a.timeout)
		}

		eng, err := engine.New(program, be)
		if err != nil {
			return nil, err
		}
		a.eng = eng
	}

	if withKey {
		if _, ok := a.eng.Signer(); !ok {
			store, err := a.keystore()
			if err != nil {
				return nil, err
			}
			addr, err := store.Resolve(a.keyName)
			if err != nil {
				return nil, err
			}
			key, err := a.session.Key(addr)
			if err != nil {
				return nil, err
			}
			a.eng.SetSigner(key)
		}
	}
	return a.eng, nil
}

func (a *app) close() {
	if a.session != nil {
		a.session.Destroy()
	}
	if a.ledger != nil {
		_ = a.ledger.Close()
	}
	if a.svc != nil {
		_ = a.svc.Close()
	}
}

// currentKeyAddress resolves -k against the keystore without decrypting.
func (a *app) currentKeyAddress() (types.Address, error) {
	store, err := a.keystore()
	if err != nil {
		return types.Address{}, err
	}
	return store.Resolve(a.keyName)
}

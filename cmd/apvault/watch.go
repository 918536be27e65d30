// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aplane-algo/apvault/cmd/apvault/internal/tui"
	"github.com/aplane-algo/apvault/internal/engine"
	"github.com/aplane-algo/apvault/internal/keystore"
	"github.com/aplane-algo/apvault/internal/ledger"
)

func cmdWatch(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("watch")
	interval := fs.Duration("interval", 2*time.Second, "Poll interval")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return errUsage
	}

	// The own-account line is shown only when a key is available.
	eng, err := a.engine(true)
	if errors.Is(err, keystore.ErrKeyNotFound) {
		eng, err = a.engine(false)
	}
	if err != nil {
		return err
	}

	p := tea.NewProgram(tui.NewModel(snapshotFunc(eng), *interval), tea.WithContext(ctx))
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func snapshotFunc(eng *engine.Engine) tui.FetchFunc {
	return func(ctx context.Context) (tui.Snapshot, error) {
		info, err := eng.Vault(ctx)
		if err != nil {
			return tui.Snapshot{}, err
		}
		snap := tui.Snapshot{Info: info}
		if _, ok := eng.Signer(); !ok || !info.Initialized {
			return snap, nil
		}
		own, err := eng.OwnAccount(ctx)
		if err != nil {
			return tui.Snapshot{}, err
		}
		snap.Own = own.String()
		bal, err := eng.Balance(ctx, own)
		switch {
		case err == nil:
			snap.OwnBalance = bal
		case errors.Is(err, ledger.ErrAccountNotFound):
			// no associated account yet
		default:
			return tui.Snapshot{}, err
		}
		return snap, nil
	}
}

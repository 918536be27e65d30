// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aplane-algo/apvault/internal/vault"
)

func snapshot(balance uint64) Snapshot {
	return Snapshot{Info: vault.Info{
		Program:     "PROGRAM",
		Address:     "VAULTADDR",
		Bump:        254,
		Initialized: true,
		Mint:        "MINT",
		Balance:     balance,
		Policy:      vault.PolicySignerOwned,
	}}
}

func apply(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return out
}

func TestInitPolls(t *testing.T) {
	calls := 0
	m := NewModel(func(ctx context.Context) (Snapshot, error) {
		calls++
		return snapshot(7), nil
	}, time.Second)

	cmd := m.Init()
	if cmd == nil {
		t.Fatal("Init returned nil cmd")
	}
	msg, ok := cmd().(snapshotMsg)
	if !ok {
		t.Fatal("Init cmd did not produce a snapshot")
	}
	if calls != 1 || msg.snap.Info.Balance != 7 {
		t.Fatalf("calls=%d balance=%d", calls, msg.snap.Info.Balance)
	}
}

func TestSnapshotRecordsChanges(t *testing.T) {
	m := NewModel(nil, time.Second)
	now := time.Now()

	m = apply(t, m, snapshotMsg{snap: snapshot(100), at: now})
	if len(m.Changes()) != 0 {
		t.Fatal("first snapshot must not record a change")
	}
	m = apply(t, m, snapshotMsg{snap: snapshot(100), at: now})
	if len(m.Changes()) != 0 {
		t.Fatal("unchanged balance recorded a change")
	}
	m = apply(t, m, snapshotMsg{snap: snapshot(150), at: now})
	m = apply(t, m, snapshotMsg{snap: snapshot(120), at: now})

	changes := m.Changes()
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(changes))
	}
	if changes[0].Delta != -30 || changes[1].Delta != 50 {
		t.Fatalf("unexpected deltas: %+v", changes)
	}
}

func TestChangeHistoryBounded(t *testing.T) {
	m := NewModel(nil, time.Second)
	for i := 0; i < maxChanges+5; i++ {
		m = apply(t, m, snapshotMsg{snap: snapshot(uint64(i)), at: time.Now()})
	}
	if len(m.Changes()) != maxChanges {
		t.Fatalf("expected %d changes, got %d", maxChanges, len(m.Changes()))
	}
}

func TestErrorKeepsLastSnapshot(t *testing.T) {
	m := NewModel(nil, time.Second)
	m = apply(t, m, snapshotMsg{snap: snapshot(42), at: time.Now()})
	m = apply(t, m, snapshotMsg{err: errors.New("connection refused"), at: time.Now()})

	view := m.View()
	if !strings.Contains(view, "VAULTADDR") {
		t.Fatalf("view lost the snapshot:\n%s", view)
	}
	if !strings.Contains(view, "connection refused") {
		t.Fatalf("view does not show the error:\n%s", view)
	}
}

func TestViewUninitialized(t *testing.T) {
	m := NewModel(nil, time.Second)
	snap := snapshot(0)
	snap.Info.Initialized = false
	m = apply(t, m, snapshotMsg{snap: snap, at: time.Now()})

	if !strings.Contains(m.View(), "not initialized") {
		t.Fatalf("expected uninitialized state in view:\n%s", m.View())
	}
}

func TestQuitKeys(t *testing.T) {
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("q")},
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyEsc},
	} {
		m := NewModel(nil, time.Second)
		next, cmd := m.Update(key)
		if cmd == nil {
			t.Fatalf("%s: expected quit cmd", key)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Fatalf("%s: cmd did not quit", key)
		}
		if next.(Model).View() != "" {
			t.Fatalf("%s: view should be empty after quit", key)
		}
	}
}

func TestRefreshKeyPolls(t *testing.T) {
	calls := 0
	m := NewModel(func(ctx context.Context) (Snapshot, error) {
		calls++
		return snapshot(1), nil
	}, time.Second)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if cmd == nil {
		t.Fatal("refresh returned nil cmd")
	}
	if _, ok := cmd().(snapshotMsg); !ok || calls != 1 {
		t.Fatalf("refresh did not poll (calls=%d)", calls)
	}
}

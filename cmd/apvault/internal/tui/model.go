// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package tui implements the live vault view for apvault watch.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aplane-algo/apvault/internal/vault"
)

// maxChanges bounds the balance change history shown.
const maxChanges = 8

type keyMap struct {
	Refresh key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// Snapshot is one poll of vault state.
type Snapshot struct {
	Info vault.Info

	// Own is the signer's associated account, empty when no key is loaded
	// or the vault is not initialized.
	Own        string
	OwnBalance uint64
}

// FetchFunc polls the current state.
type FetchFunc func(ctx context.Context) (Snapshot, error)

// Change records a vault balance movement between two polls.
type Change struct {
	At    time.Time
	From  uint64
	To    uint64
	Delta int64
}

// Model is the bubbletea model for the watch view.
type Model struct {
	fetch    FetchFunc
	interval time.Duration
	timeout  time.Duration

	snap     Snapshot
	haveSnap bool
	err      error
	updated  time.Time
	changes  []Change
	polls    int

	width    int
	quitting bool
}

// NewModel creates a watch model polling fetch every interval.
func NewModel(fetch FetchFunc, interval time.Duration) Model {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return Model{
		fetch:    fetch,
		interval: interval,
		timeout:  interval,
	}
}

type snapshotMsg struct {
	snap Snapshot
	err  error
	at   time.Time
}

type tickMsg time.Time

func (m Model) Init() tea.Cmd {
	return m.poll()
}

func (m Model) poll() tea.Cmd {
	fetch, timeout := m.fetch, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		snap, err := fetch(ctx)
		return snapshotMsg{snap: snap, err: err, at: time.Now()}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Refresh):
			return m, m.poll()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		return m, m.poll()

	case snapshotMsg:
		m.polls++
		m.updated = msg.at
		if msg.err != nil {
			m.err = msg.err
			return m, m.tick()
		}
		m.err = nil
		if m.haveSnap && msg.snap.Info.Balance != m.snap.Info.Balance {
			m.recordChange(msg.at, m.snap.Info.Balance, msg.snap.Info.Balance)
		}
		m.snap = msg.snap
		m.haveSnap = true
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) recordChange(at time.Time, from, to uint64) {
	c := Change{At: at, From: from, To: to, Delta: int64(to) - int64(from)} // #nosec G115 - display only
	m.changes = append([]Change{c}, m.changes...)
	if len(m.changes) > maxChanges {
		m.changes = m.changes[:maxChanges]
	}
}

// Changes returns recorded balance movements, newest first.
func (m Model) Changes() []Change {
	return m.changes
}

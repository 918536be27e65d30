// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package audit writes an append-only JSON-lines record of host activity.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aplane-algo/apvault/internal/logging"
)

// EventType represents the type of audit event
type EventType string

const maxLogSize = 10 * 1024 * 1024 // 10 MB

const (
	InstructionExecuted EventType = "INSTRUCTION_EXECUTED"
	InstructionRejected EventType = "INSTRUCTION_REJECTED"
	ServerStart         EventType = "SERVER_START"
	ServerStop          EventType = "SERVER_STOP"
	PolicyReload        EventType = "POLICY_RELOAD"
)

// Entry represents a single audit log entry
type Entry struct {
	Timestamp     time.Time `json:"timestamp"`
	Event         EventType `json:"event"`
	InstructionID string    `json:"instruction_id,omitempty"`
	Kind          string    `json:"kind,omitempty"`
	Program       string    `json:"program,omitempty"`
	Signer        string    `json:"signer,omitempty"`
	Amount        uint64    `json:"amount,omitempty"`
	RemoteAddr    string    `json:"remote_addr,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Count         int       `json:"count,omitempty"` // allow-list size on reload
}

// Logger handles append-only audit logging.
// A nil *Logger is valid and discards every entry.
type Logger struct {
	file    *os.File // nil after a failed rotation until reopened
	mu      sync.Mutex
	path    string
	written uint64
	maxSize uint64
	open    func(path string) (*os.File, error)
}

func openLogFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// Open opens path in append-only mode (0600), creating it if needed.
func Open(path string) (*Logger, error) {
	file, err := openLogFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	var written uint64
	if info, err := file.Stat(); err == nil {
		written = uint64(info.Size())
	}
	return &Logger{
		file:    file,
		path:    path,
		written: written,
		maxSize: maxLogSize,
		open:    openLogFile,
	}, nil
}

// Log writes an audit entry and syncs it to disk.
func (a *Logger) Log(entry Entry) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		logging.Logger.Error("failed to marshal audit entry", "event", entry.Event, "error", err)
		return
	}

	line := append(data, '\n')
	if a.written+uint64(len(line)) > a.maxSize {
		if err := a.rotate(); err != nil {
			logging.Logger.Error("audit log rotation failed", "path", a.path, "error", err)
		}
	}
	if a.file == nil {
		if err := a.reopen(a.path); err != nil {
			logging.Logger.Error("audit entry dropped", "event", entry.Event, "error", err)
			return
		}
	}

	if _, err := a.file.Write(line); err != nil {
		logging.Logger.Error("failed to write audit entry", "event", entry.Event, "error", err)
		return
	}
	a.written += uint64(len(line))
	_ = a.file.Sync()
}

// rotate archives the current log file and opens a fresh one.
// Must be called with a.mu held.
// On error the logger is left appending to whichever file could be opened,
// or holding no file at all.
func (a *Logger) rotate() error {
	if a.file != nil {
		err := a.file.Close()
		a.file = nil
		if err != nil {
			return errors.Join(fmt.Errorf("close current log: %w", err), a.reopen(a.path))
		}
	}
	if err := os.Rename(a.path, a.path+".1"); err != nil {
		return errors.Join(fmt.Errorf("rename log: %w", err), a.reopen(a.path))
	}
	if err := a.reopen(a.path); err != nil {
		// Keep appending to the archive so entries are not lost.
		return errors.Join(err, a.reopen(a.path+".1"))
	}
	return nil
}

// reopen points the logger at path and resets the rotation counter.
// Must be called with a.mu held.
func (a *Logger) reopen(path string) error {
	file, err := a.open(path)
	if err != nil {
		return fmt.Errorf("open log %s: %w", path, err)
	}
	a.file = file
	a.written = 0
	return nil
}

// Close closes the audit log file
func (a *Logger) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// LogExecuted records an instruction that changed ledger state.
func (a *Logger) LogExecuted(id, kind, program, signer string, amount uint64, remoteAddr string) {
	a.Log(Entry{
		Event:         InstructionExecuted,
		InstructionID: id,
		Kind:          kind,
		Program:       program,
		Signer:        signer,
		Amount:        amount,
		RemoteAddr:    remoteAddr,
	})
}

// LogRejected records an instruction refused before or during execution.
func (a *Logger) LogRejected(id, kind, program, signer, reason, remoteAddr string) {
	a.Log(Entry{
		Event:         InstructionRejected,
		InstructionID: id,
		Kind:          kind,
		Program:       program,
		Signer:        signer,
		Reason:        reason,
		RemoteAddr:    remoteAddr,
	})
}

func (a *Logger) LogServerStart(program string) {
	a.Log(Entry{Event: ServerStart, Program: program})
}

func (a *Logger) LogServerStop() {
	a.Log(Entry{Event: ServerStop})
}

// LogPolicyReload records a destination allow-list reload.
func (a *Logger) LogPolicyReload(count int) {
	a.Log(Entry{Event: PolicyReload, Count: count})
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package scripting runs vault scripts. Runner hides the interpreter so the
// CLI depends only on Run, output and interruption.
package scripting

import "context"

// ScriptError is an uncaught exception raised by a script. When the
// exception came from a vault binding, Err holds the original Go error.
type ScriptError struct {
	Message string
	Err     error
}

func (e *ScriptError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is match ledger and vault sentinels thrown by bindings.
func (e *ScriptError) Unwrap() error {
	return e.Err
}

// Result is the value of the last expression evaluated.
type Result struct {
	Value interface{}

	// IsEmpty is set when the script ended in undefined or null.
	IsEmpty bool
}

// Runner evaluates code in a persistent interpreter. Globals survive
// between calls, so a shell session can build state line by line.
type Runner interface {
	Run(code string) (Result, error)

	// SetOutput sets the sink for print(), log() and receipt lines.
	SetOutput(fn func(string))

	// Interrupt aborts the running script. Safe from any goroutine.
	Interrupt()
}

// Execute runs code, interrupting the runner if ctx is done first.
func Execute(ctx context.Context, r Runner, code string) (Result, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			r.Interrupt()
		case <-done:
		}
	}()

	res, err := r.Run(code)
	if err != nil && ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	return res, err
}

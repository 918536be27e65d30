// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package logging holds the process-wide structured logger.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// DebugEnv enables debug logging when set to any non-empty value.
const DebugEnv = "APVAULT_DEBUG"

// Logger discards output until InitCLI or InitServer is called.
var Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

func level() slog.Level {
	if os.Getenv(DebugEnv) != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// InitCLI initializes the global logger for interactive commands.
// Time and level are dropped for cleaner terminal output.
func InitCLI() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level(),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	})
	Logger = slog.New(handler)
}

// InitServer initializes the global logger for the daemon.
// json selects the JSON handler instead of text.
func InitServer(w io.Writer, json bool) {
	opts := &slog.HandlerOptions{Level: level()}
	if json {
		Logger = slog.New(slog.NewJSONHandler(w, opts))
		return
	}
	Logger = slog.New(slog.NewTextHandler(w, opts))
}

// Debug logs a debug message (only shown when APVAULT_DEBUG is set)
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
)

const historyFile = ".apvault_history"

func cmdShell(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return errUsage
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "apvault> ",
		HistoryFile:       filepath.Join(a.dataDir, historyFile),
		HistoryLimit:      1000,
		AutoComplete:      shellCompleter(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	fmt.Println("apvault shell. Type 'help' for commands, 'exit' to quit.")
	if a.local {
		fmt.Println("Executing in-process against the local ledger.")
	} else {
		fmt.Printf("Connected to %s\n", a.cfg.ServerURL)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if done := a.shellLine(ctx, line); done {
			return nil
		}
	}
}

// shellLine runs one shell line and reports whether the shell should exit.
func (a *app) shellLine(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "exit", "quit":
		return true
	case "help", "?":
		printShellHelp()
		return false
	case "shell":
		fmt.Fprintln(os.Stderr, "Already in the shell")
		return false
	case "js":
		// "js <code>" evaluates inline; flags and file names go to the command.
		rest := strings.TrimSpace(strings.TrimPrefix(line, "js"))
		if rest != "" && !strings.HasPrefix(rest, "-") && !strings.HasSuffix(rest, ".js") {
			if err := a.evalJS(ctx, rest, defaultScriptTimeout); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			return false
		}
	}

	if err := dispatch(ctx, a, fields); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return false
}

func printShellHelp() {
	fmt.Println("Commands:")
	for _, c := range commands {
		if c.name == "shell" {
			continue
		}
		fmt.Printf("  %-52s %s\n", c.usage, c.desc)
	}
	fmt.Printf("  %-52s %s\n", "js CODE", "Evaluate JavaScript inline")
	fmt.Printf("  %-52s %s\n", "exit", "Leave the shell")
}

func shellCompleter() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(commands)+2)
	for _, c := range commands {
		if c.name == "shell" {
			continue
		}
		items = append(items, readline.PcItem(c.name))
	}
	items = append(items, readline.PcItem("help"), readline.PcItem("exit"))
	return readline.NewPrefixCompleter(items...)
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/aplane-algo/apvault/internal/crypto"
)

// stdinReader is a shared reader for non-terminal stdin
var stdinReader *bufio.Reader

// readPassword reads a passphrase from the terminal without echo, or a
// plain line when stdin is not a terminal.
func readPassword() ([]byte, error) {
	fd := int(os.Stdin.Fd()) // #nosec G115 - file descriptors are small integers
	if term.IsTerminal(fd) {
		return term.ReadPassword(fd)
	}

	if stdinReader == nil {
		stdinReader = bufio.NewReader(os.Stdin)
	}
	line, err := stdinReader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, err
	}
	return bytes.TrimRight(line, "\r\n"), nil
}

// promptPassphrase prompts on stderr. With confirm, the passphrase is asked
// twice and must match.
func promptPassphrase(prompt string, confirm bool) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	pass, err := readPassword()
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	if len(pass) == 0 {
		return nil, fmt.Errorf("passphrase must not be empty")
	}
	if !confirm {
		return pass, nil
	}

	fmt.Fprint(os.Stderr, "Confirm:    ")
	again, err := readPassword()
	fmt.Fprintln(os.Stderr)
	if err != nil {
		crypto.ZeroBytes(pass)
		return nil, fmt.Errorf("reading confirmation: %w", err)
	}
	defer crypto.ZeroBytes(again)
	if !bytes.Equal(pass, again) {
		crypto.ZeroBytes(pass)
		return nil, fmt.Errorf("passphrases do not match")
	}
	return pass, nil
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"fmt"
	"os"

	"github.com/aplane-algo/apvault/internal/signing"
	"github.com/aplane-algo/apvault/internal/signing/ed25519"
	"github.com/aplane-algo/apvault/internal/signing/falcon1024"
)

// RegisterProviders registers every signature scheme apvault can use.
// This must be called before keys are generated, loaded or verified.
func RegisterProviders() {
	ed25519.RegisterScheme()
	falcon1024.RegisterScheme()
}

// ensureProviders exits if no scheme is registered.
func ensureProviders() {
	if len(signing.Families()) == 0 {
		_, _ = fmt.Fprintf(os.Stderr, "Error: no signature schemes registered - check providers.go imports\n")
		os.Exit(1)
	}
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package engine

import "errors"

var (
	// ErrNoSigningKey indicates an operation needs a key and none is loaded
	ErrNoSigningKey = errors.New("no signing key loaded")

	// ErrNotInitialized indicates the vault has no account yet, so its mint is unknown
	ErrNotInitialized = errors.New("vault is not initialized")
)

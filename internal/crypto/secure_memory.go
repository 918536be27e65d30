// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package crypto

import "runtime"

// ZeroBytes overwrites b with zeros. Used for passphrases and derived keys
// once they are no longer needed.
func ZeroBytes(b []byte) {
	clear(b)
	runtime.KeepAlive(b)
}

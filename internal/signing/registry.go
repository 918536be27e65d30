// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package signing

import (
	"sort"
	"sync"
)

var (
	mu      sync.RWMutex
	schemes = make(map[string]Scheme)
)

// Register adds a scheme to the registry.
// Panics if a scheme for the same family is already registered.
func Register(s Scheme) {
	mu.Lock()
	defer mu.Unlock()
	family := s.Family()
	if _, exists := schemes[family]; exists {
		panic("duplicate signature scheme registration for family: " + family)
	}
	schemes[family] = s
}

// Get retrieves a scheme by family.
func Get(family string) (Scheme, bool) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := schemes[family]
	return s, ok
}

// Families returns a sorted list of all registered scheme families.
func Families() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(schemes))
	for f := range schemes {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

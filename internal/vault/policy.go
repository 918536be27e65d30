// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package vault

import (
	"fmt"
	"os"
	"sort"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"gopkg.in/yaml.v3"

	"github.com/aplane-algo/apvault/internal/ledger"
)

// Policy names accepted by ParsePolicy.
const (
	PolicySignerOwned = "signer-owned"
	PolicyAllowlist   = "allowlist"
	PolicyAny         = "any"
)

// DestinationPolicy decides whether the verified call signer may direct a
// withdrawal to dest.
type DestinationPolicy interface {
	Name() string
	Allows(signer types.Address, dest ledger.Account) bool
}

// SignerOwned allows only destinations whose authority is the call signer.
type SignerOwned struct{}

func (SignerOwned) Name() string { return PolicySignerOwned }

func (SignerOwned) Allows(signer types.Address, dest ledger.Account) bool {
	return !signer.IsZero() && dest.Authority == signer
}

// AnyDestination allows every destination. Whoever can submit a signed
// withdraw can drain the vault to an account of their choosing.
type AnyDestination struct{}

func (AnyDestination) Name() string { return PolicyAny }

func (AnyDestination) Allows(types.Address, ledger.Account) bool { return true }

// Allowlist allows destinations whose token account address or authority is
// listed.
type Allowlist struct {
	entries map[types.Address]struct{}
}

func NewAllowlist(addrs ...types.Address) *Allowlist {
	a := &Allowlist{entries: make(map[types.Address]struct{}, len(addrs))}
	for _, addr := range addrs {
		a.entries[addr] = struct{}{}
	}
	return a
}

func (a *Allowlist) Name() string { return PolicyAllowlist }

func (a *Allowlist) Allows(_ types.Address, dest ledger.Account) bool {
	if _, ok := a.entries[dest.Address]; ok {
		return true
	}
	_, ok := a.entries[dest.Authority]
	return ok
}

// Len returns the number of entries.
func (a *Allowlist) Len() int {
	return len(a.entries)
}

// Entries returns the listed addresses in sorted text order.
func (a *Allowlist) Entries() []types.Address {
	out := make([]types.Address, 0, len(a.entries))
	for addr := range a.entries {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// allowlistFile is the YAML layout of an allow-list file.
type allowlistFile struct {
	Destinations []string `yaml:"destinations"`
}

// LoadAllowlist reads an allow-list file.
//
//	destinations:
//	  - <address>
//	  - <address>
func LoadAllowlist(path string) (*Allowlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read allow-list: %w", err)
	}
	var f allowlistFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse allow-list %s: %w", path, err)
	}
	addrs := make([]types.Address, 0, len(f.Destinations))
	for i, s := range f.Destinations {
		addr, err := types.DecodeAddress(s)
		if err != nil {
			return nil, fmt.Errorf("allow-list %s entry %d: %w", path, i, err)
		}
		addrs = append(addrs, addr)
	}
	return NewAllowlist(addrs...), nil
}

// ParsePolicy builds the named policy. allowlistPath is required for
// PolicyAllowlist and ignored otherwise.
func ParsePolicy(name, allowlistPath string) (DestinationPolicy, error) {
	switch name {
	case "", PolicySignerOwned:
		return SignerOwned{}, nil
	case PolicyAny:
		return AnyDestination{}, nil
	case PolicyAllowlist:
		if allowlistPath == "" {
			return nil, fmt.Errorf("policy %q requires an allow-list file", PolicyAllowlist)
		}
		return LoadAllowlist(allowlistPath)
	default:
		return nil, fmt.Errorf("unknown destination policy %q (want %s, %s or %s)",
			name, PolicySignerOwned, PolicyAllowlist, PolicyAny)
	}
}

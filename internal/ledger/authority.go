// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package ledger

import (
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/apvault/internal/derive"
)

// Authority is a piece of evidence that some address approved a request.
type Authority interface {
	// Authorizes reports whether this authority speaks for addr.
	Authorizes(addr types.Address) bool

	String() string
}

// SignerAuthority is an address whose external signature was verified by the
// host before the request reached the ledger.
type SignerAuthority struct {
	Address types.Address
}

func (s SignerAuthority) Authorizes(addr types.Address) bool {
	return !s.Address.IsZero() && s.Address == addr
}

func (s SignerAuthority) String() string {
	return "signer:" + s.Address.String()
}

// ProgramAuthority is the proof a program presents for one of its derived
// addresses: the seeds and bump that reproduce the address under the
// program's identity. It carries no key material; it is checked by
// recomputing the derivation.
type ProgramAuthority struct {
	Program types.Address
	Seeds   [][]byte
	Bump    uint8
}

func (p ProgramAuthority) Authorizes(addr types.Address) bool {
	derived, err := p.Address()
	if err != nil {
		return false
	}
	return derived == addr
}

// Address recomputes the derived address this proof stands for.
func (p ProgramAuthority) Address() (types.Address, error) {
	seeds := make([][]byte, 0, len(p.Seeds)+1)
	seeds = append(seeds, p.Seeds...)
	seeds = append(seeds, []byte{p.Bump})
	return derive.CreateProgramAddress(p.Program, seeds...)
}

func (p ProgramAuthority) String() string {
	return fmt.Sprintf("program:%s bump=%d", p.Program, p.Bump)
}

// Signers is the set of authorities accompanying a request.
type Signers []Authority

// Authorizes reports whether any signer speaks for addr.
func (s Signers) Authorizes(addr types.Address) bool {
	for _, a := range s {
		if a != nil && a.Authorizes(addr) {
			return true
		}
	}
	return false
}

// Require returns ErrUnauthorized naming role when no signer speaks for addr.
func (s Signers) Require(role string, addr types.Address) error {
	if s.Authorizes(addr) {
		return nil
	}
	return fmt.Errorf("%w: %s %s not authorized", ErrUnauthorized, role, addr)
}

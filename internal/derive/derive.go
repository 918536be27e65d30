// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package derive computes program-derived addresses.
//
// A program-derived address is the SHA-512/256 hash of a seed list, a bump
// byte, the owning program's address and a fixed marker. The bump is chosen so
// that the hash does NOT decode as an edwards25519 point: no ed25519 private
// key can correspond to the address, so only the program that knows the seeds
// can ever authorize for it.
//
// The same counter-until-off-curve technique is used for Falcon LogicSig
// addresses (see signing/falcon1024), which must also never collide with
// ed25519 public keys.
package derive

import (
	"crypto/sha512"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

const (
	// MaxSeeds is the maximum number of seeds, bump included.
	MaxSeeds = 16

	// MaxSeedLength is the maximum length of a single seed in bytes.
	MaxSeedLength = 32

	// marker separates derived addresses from every other hash in the system.
	marker = "ProgramDerivedAddress"
)

var (
	// ErrOnCurve is returned when a candidate address is a valid ed25519 public key.
	ErrOnCurve = errors.New("derived address lies on the ed25519 curve")

	// ErrNoViableBump is returned when all 256 bumps produce on-curve addresses.
	ErrNoViableBump = errors.New("no viable bump found for seeds")

	ErrTooManySeeds  = errors.New("too many seeds")
	ErrMaxSeedLength = errors.New("seed exceeds maximum length")
)

// FindProgramAddress returns the derived address for program and seeds,
// together with the bump that produced it. The bump is the smallest value in
// 0..255 whose address is off the curve, so the result is unique for a given
// input and can be recomputed by anyone.
func FindProgramAddress(program types.Address, seeds ...[]byte) (types.Address, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return types.Address{}, 0, fmt.Errorf("%w: %d seeds plus bump, max %d", ErrTooManySeeds, len(seeds), MaxSeeds)
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	bump := []byte{0}
	withBump[len(seeds)] = bump

	for counter := 0; counter <= 255; counter++ {
		bump[0] = byte(counter)
		addr, err := CreateProgramAddress(program, withBump...)
		if errors.Is(err, ErrOnCurve) {
			continue
		}
		if err != nil {
			return types.Address{}, 0, err
		}
		return addr, byte(counter), nil
	}

	return types.Address{}, 0, ErrNoViableBump
}

// CreateProgramAddress computes a single derived address. The caller supplies
// the bump as the last seed. This is the verification half of
// FindProgramAddress: a proof (seeds, bump) is valid for an address exactly
// when CreateProgramAddress reproduces it.
func CreateProgramAddress(program types.Address, seeds ...[]byte) (types.Address, error) {
	if len(seeds) > MaxSeeds {
		return types.Address{}, fmt.Errorf("%w: %d seeds, max %d", ErrTooManySeeds, len(seeds), MaxSeeds)
	}

	h := sha512.New512_256()
	for i, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return types.Address{}, fmt.Errorf("%w: seed %d is %d bytes, max %d", ErrMaxSeedLength, i, len(seed), MaxSeedLength)
		}
		h.Write(seed)
	}
	h.Write(program[:])
	h.Write([]byte(marker))

	var addr types.Address
	copy(addr[:], h.Sum(nil))

	if IsOnCurve(addr[:]) {
		return types.Address{}, ErrOnCurve
	}
	return addr, nil
}

// IsOnCurve returns true if the 32-byte value decodes to a valid edwards25519
// curve point (i.e., could be an ed25519 public key), and false otherwise.
func IsOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

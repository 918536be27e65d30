// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package falcon1024

import (
	"errors"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/algorandfoundation/falcon-signatures/falcongo"

	"github.com/aplane-algo/apvault/internal/derive"
)

// ErrUnsuitablePublicKey is returned when every counter value yields an
// address that is also a valid ed25519 public key.
var ErrUnsuitablePublicKey = errors.New("unsuitable Falcon public key for address derivation")

// DeriveAddress returns the LogicSig address controlled by publicKey.
//
// The program embeds the public key behind a one-byte counter; the smallest
// counter whose program hash is off the ed25519 curve wins, so no ed25519
// key can ever sign for the same address. Bytecode layout (TEAL v12):
//
//	offset	|	bytes			| teal
//	_______________________________________________________________________
//	      0	|	0c				| #pragma version 12
//	      1	|	26 01 01 00		| bytecblock 0x00
//	      5	|	31 17			| txn TxID
//	      7	|	2d				| arg 0
//	      8	|	80 81 0e 00... 	| pushbytes 0x00... (1793 public key bytes)
//	   1804	|	85				| falcon_verify
func DeriveAddress(publicKey falcongo.PublicKey) (types.Address, error) {
	for counter := range 256 {
		lsig := crypto.LogicSigAccount{
			Lsig: types.LogicSig{Logic: program(publicKey, byte(counter))},
		}
		addr, err := lsig.Address()
		if err != nil {
			return types.Address{}, err
		}
		if !derive.IsOnCurve(addr[:]) {
			return addr, nil
		}
	}
	return types.Address{}, ErrUnsuitablePublicKey
}

func program(publicKey falcongo.PublicKey, counter byte) []byte {
	code := []byte{
		0x0c,
		0x26, 0x01, 0x01, counter,
		0x31, 0x17,
		0x2d,
		0x80, 0x81, 0x0e,
	}
	code = append(code, publicKey[:]...)
	return append(code, 0x85)
}

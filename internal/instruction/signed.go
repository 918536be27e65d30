// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package instruction

import (
	"fmt"

	sdkjson "github.com/algorand/go-algorand-sdk/v2/encoding/json"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/apvault/internal/signing"
)

// SignedInstruction is an instruction plus the external signature of its signer.
type SignedInstruction struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Instruction Instruction `codec:"ins"`
	Scheme      string      `codec:"scheme"`
	PublicKey   []byte      `codec:"pk"`
	Signature   []byte      `codec:"sig"`
}

// Sign signs ins with key. The key's address must be the instruction signer.
func Sign(ins Instruction, key signing.Key) (SignedInstruction, error) {
	if key.Address() != ins.Signer() {
		return SignedInstruction{}, fmt.Errorf("%w: key %s is not instruction signer %s",
			signing.ErrSignerMismatch, key.Address(), ins.Signer())
	}
	sig, err := key.Sign(ins.BytesToSign())
	if err != nil {
		return SignedInstruction{}, err
	}
	return SignedInstruction{
		Instruction: ins,
		Scheme:      key.Family(),
		PublicKey:   key.PublicKey(),
		Signature:   sig,
	}, nil
}

// Signer returns the address that claims to have signed.
func (s SignedInstruction) Signer() types.Address {
	return s.Instruction.Signer()
}

// Verify checks the external signature against the instruction signer.
func (s SignedInstruction) Verify() error {
	return signing.Verify(s.Scheme, s.Signer(), s.PublicKey, s.Instruction.BytesToSign(), s.Signature)
}

func (s SignedInstruction) Encode() []byte {
	return msgpack.Encode(s)
}

func (s SignedInstruction) EncodeJSON() []byte {
	return sdkjson.Encode(s)
}

// DecodeSigned parses a msgpack-encoded signed instruction.
func DecodeSigned(b []byte) (SignedInstruction, error) {
	var s SignedInstruction
	if err := msgpack.Decode(b, &s); err != nil {
		return SignedInstruction{}, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return s, nil
}

// DecodeSignedJSON parses a JSON-encoded signed instruction.
func DecodeSignedJSON(b []byte) (SignedInstruction, error) {
	var s SignedInstruction
	if err := sdkjson.Decode(b, &s); err != nil {
		return SignedInstruction{}, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return s, nil
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package instruction defines the vault instruction wire format.
//
// An instruction names the program it targets, an ordered list of account
// addresses, and an opaque data payload. The payload starts with an 8-byte
// discriminator selecting the operation, followed by little-endian operands.
package instruction

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/google/uuid"
)

const discriminatorSize = 8

// signPrefix domain-separates instruction bytes from other signed payloads.
var signPrefix = []byte("VI")

var (
	ErrInvalidDiscriminator = errors.New("invalid instruction discriminator")
	ErrInvalidData          = errors.New("unexpected instruction data")
	ErrInvalidAccounts      = errors.New("unexpected instruction accounts")
	ErrInvalidID            = errors.New("invalid instruction id")
)

// Kind names a vault operation.
type Kind string

const (
	KindInitializeVault Kind = "initialize_vault"
	KindDeposit         Kind = "deposit"
	KindWithdraw        Kind = "withdraw"
)

var kinds = []Kind{KindInitializeVault, KindDeposit, KindWithdraw}

// Discriminator returns the first 8 bytes of sha256("global:<kind>").
func (k Kind) Discriminator() [8]byte {
	h := sha256.Sum256([]byte("global:" + string(k)))
	var disc [8]byte
	copy(disc[:], h[:discriminatorSize])
	return disc
}

func (k Kind) hasAmount() bool {
	return k == KindDeposit || k == KindWithdraw
}

func kindOf(data []byte) (Kind, error) {
	if len(data) < discriminatorSize {
		return "", fmt.Errorf("%w: data too short", ErrInvalidDiscriminator)
	}
	var got [8]byte
	copy(got[:], data[:discriminatorSize])
	for _, k := range kinds {
		if k.Discriminator() == got {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %x", ErrInvalidDiscriminator, got)
}

// Instruction is a request to a program.
type Instruction struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	ID       string          `codec:"id"`
	Program  types.Address   `codec:"prog"`
	Accounts []types.Address `codec:"accts"`
	Data     []byte          `codec:"data"`
}

// Decoded is the typed view of an instruction.
// Only the accounts relevant to Kind are set.
type Decoded struct {
	Kind   Kind
	Amount uint64

	Signer      types.Address
	Mint        types.Address
	Source      types.Address
	Destination types.Address
	Vault       types.Address
}

func newInstruction(program types.Address, kind Kind, amount uint64, accounts ...types.Address) Instruction {
	disc := kind.Discriminator()
	data := append([]byte(nil), disc[:]...)
	if kind.hasAmount() {
		data = binary.LittleEndian.AppendUint64(data, amount)
	}
	return Instruction{
		ID:       uuid.NewString(),
		Program:  program,
		Accounts: accounts,
		Data:     data,
	}
}

// NewInitializeVault builds an initialize_vault instruction.
// Accounts: signer (rent payer), mint, vault.
func NewInitializeVault(program, signer, mint, vault types.Address) Instruction {
	return newInstruction(program, KindInitializeVault, 0, signer, mint, vault)
}

// NewDeposit builds a deposit instruction.
// Accounts: signer (source authority), source, vault.
func NewDeposit(program, signer, source, vault types.Address, amount uint64) Instruction {
	return newInstruction(program, KindDeposit, amount, signer, source, vault)
}

// NewWithdraw builds a withdraw instruction.
// Accounts: signer, destination, vault.
func NewWithdraw(program, signer, destination, vault types.Address, amount uint64) Instruction {
	return newInstruction(program, KindWithdraw, amount, signer, destination, vault)
}

// Signer returns the first account, which every kind treats as the signer.
func (ins Instruction) Signer() types.Address {
	if len(ins.Accounts) == 0 {
		return types.Address{}
	}
	return ins.Accounts[0]
}

// Kind returns the operation selected by the data discriminator.
func (ins Instruction) Kind() (Kind, error) {
	return kindOf(ins.Data)
}

// Decode validates the instruction shape and returns its typed view.
func (ins Instruction) Decode() (Decoded, error) {
	if _, err := uuid.Parse(ins.ID); err != nil {
		return Decoded{}, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	kind, err := kindOf(ins.Data)
	if err != nil {
		return Decoded{}, err
	}

	d := Decoded{Kind: kind}
	operands := ins.Data[discriminatorSize:]
	if kind.hasAmount() {
		if len(operands) != 8 {
			return Decoded{}, fmt.Errorf("%w: %s expects 8 operand bytes, got %d", ErrInvalidData, kind, len(operands))
		}
		d.Amount = binary.LittleEndian.Uint64(operands)
	} else if len(operands) != 0 {
		return Decoded{}, fmt.Errorf("%w: %s takes no operands", ErrInvalidData, kind)
	}

	if len(ins.Accounts) != 3 {
		return Decoded{}, fmt.Errorf("%w: %s expects 3 accounts, got %d", ErrInvalidAccounts, kind, len(ins.Accounts))
	}
	d.Signer, d.Vault = ins.Accounts[0], ins.Accounts[2]
	switch kind {
	case KindInitializeVault:
		d.Mint = ins.Accounts[1]
	case KindDeposit:
		d.Source = ins.Accounts[1]
	case KindWithdraw:
		d.Destination = ins.Accounts[1]
	}
	return d, nil
}

// Encode returns the canonical msgpack encoding.
func (ins Instruction) Encode() []byte {
	return msgpack.Encode(ins)
}

// BytesToSign returns the domain-separated bytes a signer signs.
func (ins Instruction) BytesToSign() []byte {
	return append(append([]byte(nil), signPrefix...), ins.Encode()...)
}

// Decode parses a msgpack-encoded instruction.
func Decode(b []byte) (Instruction, error) {
	var ins Instruction
	if err := msgpack.Decode(b, &ins); err != nil {
		return Instruction{}, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return ins, nil
}

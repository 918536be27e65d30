// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package instruction

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/crypto"

	"github.com/aplane-algo/apvault/internal/signing/ed25519"
)

func TestDiscriminators(t *testing.T) {
	seen := map[[8]byte]Kind{}
	for _, k := range kinds {
		h := sha256.Sum256([]byte("global:" + string(k)))
		d := k.Discriminator()
		if !bytes.Equal(d[:], h[:8]) {
			t.Fatalf("%s discriminator = %x, want %x", k, d, h[:8])
		}
		if prev, dup := seen[d]; dup {
			t.Fatalf("%s and %s share a discriminator", k, prev)
		}
		seen[d] = k
	}
}

func TestDecode(t *testing.T) {
	prog := crypto.GenerateAccount().Address
	a := crypto.GenerateAccount().Address
	b := crypto.GenerateAccount().Address
	v := crypto.GenerateAccount().Address

	tests := []struct {
		name string
		ins  Instruction
		want Decoded
	}{
		{"initialize", NewInitializeVault(prog, a, b, v), Decoded{Kind: KindInitializeVault, Signer: a, Mint: b, Vault: v}},
		{"deposit", NewDeposit(prog, a, b, v, 30), Decoded{Kind: KindDeposit, Amount: 30, Signer: a, Source: b, Vault: v}},
		{"withdraw", NewWithdraw(prog, a, b, v, 130), Decoded{Kind: KindWithdraw, Amount: 130, Signer: a, Destination: b, Vault: v}},
		{"zero amount", NewDeposit(prog, a, b, v, 0), Decoded{Kind: KindDeposit, Signer: a, Source: b, Vault: v}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decoded, err := Decode(tc.ins.Encode())
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			got, err := decoded.Decode()
			if err != nil {
				t.Fatalf("Instruction.Decode failed: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
			if decoded.ID != tc.ins.ID || decoded.Program != prog {
				t.Fatalf("header mismatch: %+v", decoded)
			}
		})
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	prog := crypto.GenerateAccount().Address
	a := crypto.GenerateAccount().Address

	good := NewDeposit(prog, a, a, a, 1)

	badID := good
	badID.ID = "not-a-uuid"

	badDisc := good
	badDisc.Data = append([]byte{0, 0, 0, 0, 0, 0, 0, 0}, good.Data[8:]...)

	short := good
	short.Data = good.Data[:4]

	truncatedAmount := good
	truncatedAmount.Data = good.Data[:12]

	extraOperand := NewInitializeVault(prog, a, a, a)
	extraOperand.Data = append(extraOperand.Data, 1)

	missingAccount := good
	missingAccount.Accounts = good.Accounts[:2]

	tests := []struct {
		name string
		ins  Instruction
		want error
	}{
		{"bad id", badID, ErrInvalidID},
		{"unknown discriminator", badDisc, ErrInvalidDiscriminator},
		{"short data", short, ErrInvalidDiscriminator},
		{"truncated amount", truncatedAmount, ErrInvalidData},
		{"extra operand", extraOperand, ErrInvalidData},
		{"missing account", missingAccount, ErrInvalidAccounts},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.ins.Decode(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if _, err := Decode([]byte{0xc1}); !errors.Is(err, ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData for garbage bytes, got %v", err)
	}
}

func TestUniqueIDs(t *testing.T) {
	prog := crypto.GenerateAccount().Address
	a := NewDeposit(prog, prog, prog, prog, 1)
	b := NewDeposit(prog, prog, prog, prog, 1)
	if a.ID == b.ID {
		t.Fatal("instructions share an id")
	}
	if bytes.Equal(a.BytesToSign(), b.BytesToSign()) {
		t.Fatal("distinct instructions produced identical signing bytes")
	}
	if !bytes.HasPrefix(a.BytesToSign(), []byte("VI")) {
		t.Fatal("signing bytes missing prefix")
	}
}

func TestSignAndVerify(t *testing.T) {
	ed25519.RegisterScheme()

	var scheme ed25519.Scheme
	key, _ := scheme.Generate()
	other, _ := scheme.Generate()
	prog := crypto.GenerateAccount().Address
	vault := crypto.GenerateAccount().Address

	ins := NewDeposit(prog, key.Address(), key.Address(), vault, 5)
	signed, err := Sign(ins, key)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if err := signed.Verify(); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	for name, codec := range map[string]struct {
		enc func(SignedInstruction) []byte
		dec func([]byte) (SignedInstruction, error)
	}{
		"msgpack": {SignedInstruction.Encode, DecodeSigned},
		"json":    {SignedInstruction.EncodeJSON, DecodeSignedJSON},
	} {
		decoded, err := codec.dec(codec.enc(signed))
		if err != nil {
			t.Fatalf("%s decode failed: %v", name, err)
		}
		if err := decoded.Verify(); err != nil {
			t.Fatalf("%s: decoded instruction failed verification: %v", name, err)
		}
	}

	tampered := signed
	tampered.Instruction = NewDeposit(prog, key.Address(), key.Address(), vault, 500)
	tampered.Instruction.ID = ins.ID
	if err := tampered.Verify(); err == nil {
		t.Fatal("expected verification failure after amount change")
	}

	if _, err := Sign(ins, other); err == nil {
		t.Fatal("expected Sign to refuse a key that is not the signer")
	}
}

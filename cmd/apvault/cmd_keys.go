// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/aplane-algo/apvault/internal/crypto"
	"github.com/aplane-algo/apvault/internal/signing"
)

func cmdKeygen(_ context.Context, a *app, args []string) error {
	fs := newFlagSet("keygen")
	keyType := fs.String("type", "ed25519", "Key type ("+strings.Join(signing.Families(), ", ")+")")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return errUsage
	}

	scheme, ok := signing.Get(*keyType)
	if !ok {
		return fmt.Errorf("unknown key type %q", *keyType)
	}
	store, err := a.keystore()
	if err != nil {
		return err
	}

	key, err := scheme.Generate()
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	defer key.Zero()

	pass, err := promptPassphrase("New passphrase: ", true)
	if err != nil {
		return err
	}
	defer crypto.ZeroBytes(pass)

	path, err := store.Save(key, pass)
	if err != nil {
		return err
	}
	fmt.Printf("Address: %s\n", key.Address())
	fmt.Printf("Type:    %s\n", key.Family())
	fmt.Printf("File:    %s\n", path)
	return nil
}

func cmdKeys(_ context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	store, err := a.keystore()
	if err != nil {
		return err
	}
	keys, err := store.List()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Printf("No keys in %s (run 'apvault keygen')\n", store.Dir())
		return nil
	}
	for _, k := range keys {
		fmt.Printf("%s  %-10s\n", k.Address, k.KeyType)
	}
	return nil
}

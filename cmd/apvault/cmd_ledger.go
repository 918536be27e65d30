// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/apvault/internal/ledger"
)

func cmdCreateMint(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("create-mint")
	decimals := fs.Uint("decimals", 6, "Decimal places")
	addrFlag := fs.String("address", "", "Mint address (default: random)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return errUsage
	}
	if *decimals > 255 {
		return fmt.Errorf("decimals must be at most 255")
	}

	var (
		addr types.Address
		err  error
	)
	if *addrFlag != "" {
		addr, err = parseAddress("mint", *addrFlag)
	} else {
		addr, err = randomAddress()
	}
	if err != nil {
		return err
	}

	l, err := a.ledgerStore()
	if err != nil {
		return err
	}
	if err := l.CreateMint(ctx, ledger.Mint{Address: addr, Decimals: uint8(*decimals)}); err != nil {
		return err
	}
	fmt.Printf("Mint: %s (decimals %d)\n", addr, *decimals)
	return nil
}

// cmdOpenAccount opens the owner's associated account for a mint. The owner
// pays rent and defaults to the current key.
func cmdOpenAccount(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("open-account")
	mintFlag := fs.String("mint", "", "Mint address")
	ownerFlag := fs.String("owner", "", "Owner address (default: current key)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *mintFlag == "" || fs.NArg() != 0 {
		return errUsage
	}
	mint, err := parseAddress("mint", *mintFlag)
	if err != nil {
		return err
	}

	var owner types.Address
	if *ownerFlag != "" {
		owner, err = parseAddress("owner", *ownerFlag)
	} else {
		owner, err = a.currentKeyAddress()
	}
	if err != nil {
		return err
	}

	l, err := a.ledgerStore()
	if err != nil {
		return err
	}
	// Operator commands act with the owner's authority directly.
	signers := ledger.Signers{ledger.SignerAuthority{Address: owner}}
	addr, err := ledger.OpenAssociatedAccount(ctx, l, owner, mint, owner, signers)
	if err != nil {
		return err
	}
	fmt.Printf("Account: %s\n", addr)
	fmt.Printf("Owner:   %s\n", owner)
	fmt.Printf("Mint:    %s\n", mint)
	return nil
}

func cmdMintTo(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	to, err := parseAddress("account", args[0])
	if err != nil {
		return err
	}
	amount, err := parseAmount(args[1])
	if err != nil {
		return err
	}
	l, err := a.ledgerStore()
	if err != nil {
		return err
	}
	if err := l.MintTo(ctx, to, amount); err != nil {
		return err
	}
	acct, err := l.Account(ctx, to)
	if err != nil {
		return err
	}
	fmt.Printf("%s  %d\n", to, acct.Balance)
	return nil
}

func cmdFund(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	addr, err := parseAddress("address", args[0])
	if err != nil {
		return err
	}
	amount, err := parseAmount(args[1])
	if err != nil {
		return err
	}
	l, err := a.ledgerStore()
	if err != nil {
		return err
	}
	if err := l.Fund(ctx, addr, amount); err != nil {
		return err
	}
	bal, err := l.NativeBalance(ctx, addr)
	if err != nil {
		return err
	}
	fmt.Printf("%s  native %d\n", addr, bal)
	return nil
}

func cmdAccounts(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	l, err := a.ledgerStore()
	if err != nil {
		return err
	}
	accts, err := l.Accounts(ctx)
	if err != nil {
		return err
	}
	if len(accts) == 0 {
		fmt.Println("No token accounts")
		return nil
	}
	fmt.Printf("%-58s %-58s %s\n", "ACCOUNT", "AUTHORITY", "BALANCE")
	for _, acct := range accts {
		fmt.Printf("%-58s %-58s %s\n", acct.Address, acct.Authority, strconv.FormatUint(acct.Balance, 10))
	}
	return nil
}

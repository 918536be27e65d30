// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/apvault/internal/config"
	"github.com/aplane-algo/apvault/internal/ledger"
	"github.com/aplane-algo/apvault/internal/runtime"
	"github.com/aplane-algo/apvault/internal/vault"
)

// parseAmount parses an integer amount in base units. Underscores may be
// used as digit separators.
func parseAmount(s string) (uint64, error) {
	clean := strings.ReplaceAll(s, "_", "")
	if clean == "" {
		return 0, fmt.Errorf("empty amount")
	}
	n, err := strconv.ParseUint(clean, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return n, nil
}

func parseAddress(what, s string) (types.Address, error) {
	addr, err := types.DecodeAddress(s)
	if err != nil {
		return types.Address{}, fmt.Errorf("invalid %s %q: %w", what, s, err)
	}
	return addr, nil
}

func randomAddress() (types.Address, error) {
	var addr types.Address
	if _, err := rand.Read(addr[:]); err != nil {
		return types.Address{}, err
	}
	return addr, nil
}

func printReceipt(r runtime.Receipt) {
	fmt.Printf("Executed %s\n", r.Kind)
	fmt.Printf("  id:     %s\n", r.InstructionID)
	fmt.Printf("  signer: %s\n", r.Signer)
	if r.Amount > 0 {
		fmt.Printf("  amount: %d\n", r.Amount)
	}
}

func cmdSetup(_ context.Context, a *app, args []string) error {
	fs := newFlagSet("setup")
	programFlag := fs.String("program", "", "Program id (default: random)")
	force := fs.Bool("force", false, "Replace an existing program id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return errUsage
	}

	path := config.Path(a.dataDir)
	// Re-read without path resolution so relative paths stay relative.
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return err
	}
	if cfg.ProgramID != "" && !*force {
		return fmt.Errorf("program_id already set in %s (use -force to replace)", path)
	}

	var program types.Address
	if *programFlag != "" {
		program, err = parseAddress("program", *programFlag)
	} else {
		program, err = randomAddress()
	}
	if err != nil {
		return err
	}
	cfg.ProgramID = program.String()
	if err := config.Save(path, cfg); err != nil {
		return err
	}

	vaultAddr, bump, err := vault.Address(program)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	fmt.Printf("Program: %s\n", program)
	fmt.Printf("Vault:   %s (bump %d)\n", vaultAddr, bump)
	return nil
}

func cmdDerive(_ context.Context, a *app, args []string) error {
	fs := newFlagSet("derive")
	programFlag := fs.String("program", "", "Program id (default: configured)")
	ownerFlag := fs.String("owner", "", "Owner for an associated account")
	mintFlag := fs.String("mint", "", "Mint for an associated account")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return errUsage
	}

	if *ownerFlag != "" || *mintFlag != "" {
		if *ownerFlag == "" || *mintFlag == "" {
			return errUsage
		}
		owner, err := parseAddress("owner", *ownerFlag)
		if err != nil {
			return err
		}
		mint, err := parseAddress("mint", *mintFlag)
		if err != nil {
			return err
		}
		addr, bump, err := ledger.AssociatedAddress(owner, mint)
		if err != nil {
			return err
		}
		fmt.Printf("Associated account: %s (bump %d)\n", addr, bump)
		return nil
	}

	var program types.Address
	var err error
	if *programFlag != "" {
		program, err = parseAddress("program", *programFlag)
	} else {
		program, err = a.cfg.ProgramAddress()
	}
	if err != nil {
		return err
	}
	addr, bump, err := vault.Address(program)
	if err != nil {
		return err
	}
	fmt.Printf("Program: %s\n", program)
	fmt.Printf("Vault:   %s (bump %d)\n", addr, bump)
	return nil
}

func cmdInfo(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	eng, err := a.engine(false)
	if err != nil {
		return err
	}
	info, err := eng.Vault(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Program:     %s\n", info.Program)
	fmt.Printf("Vault:       %s (bump %d)\n", info.Address, info.Bump)
	fmt.Printf("Policy:      %s\n", info.Policy)
	if !info.Initialized {
		fmt.Printf("Initialized: no (run 'apvault init -mint ADDR')\n")
		return nil
	}
	fmt.Printf("Initialized: yes\n")
	fmt.Printf("Mint:        %s\n", info.Mint)
	fmt.Printf("Balance:     %d\n", info.Balance)
	return nil
}

func cmdInit(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("init")
	mintFlag := fs.String("mint", "", "Mint the vault holds")
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
	eng, err := a.engine(true)
	if err != nil {
		return err
	}
	r, err := eng.Initialize(ctx, mint)
	if err != nil {
		return err
	}
	printReceipt(r)
	return nil
}

func cmdDeposit(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("deposit")
	fromFlag := fs.String("from", "", "Source token account (default: own associated account)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	amount, err := parseAmount(fs.Arg(0))
	if err != nil {
		return err
	}
	eng, err := a.engine(true)
	if err != nil {
		return err
	}

	var r runtime.Receipt
	if *fromFlag != "" {
		from, perr := parseAddress("source", *fromFlag)
		if perr != nil {
			return perr
		}
		r, err = eng.DepositFrom(ctx, from, amount)
	} else {
		r, err = eng.Deposit(ctx, amount)
	}
	if err != nil {
		return err
	}
	printReceipt(r)
	return nil
}

func cmdWithdraw(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("withdraw")
	toFlag := fs.String("to", "", "Destination token account (default: own associated account)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	amount, err := parseAmount(fs.Arg(0))
	if err != nil {
		return err
	}
	eng, err := a.engine(true)
	if err != nil {
		return err
	}

	var r runtime.Receipt
	if *toFlag != "" {
		to, perr := parseAddress("destination", *toFlag)
		if perr != nil {
			return perr
		}
		r, err = eng.WithdrawTo(ctx, to, amount)
	} else {
		r, err = eng.Withdraw(ctx, amount)
	}
	if err != nil {
		if errors.Is(err, vault.ErrDestinationNotAllowed) {
			fmt.Fprintln(os.Stderr, "The vault's destination policy rejected this account.")
		}
		return err
	}
	printReceipt(r)
	return nil
}

func cmdBalance(ctx context.Context, a *app, args []string) error {
	if len(args) > 1 {
		return errUsage
	}
	var (
		addr types.Address
		err  error
	)
	if len(args) == 1 {
		addr, err = parseAddress("account", args[0])
		if err != nil {
			return err
		}
	}

	eng, err := a.engine(len(args) == 0)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		if addr, err = eng.OwnAccount(ctx); err != nil {
			return err
		}
	}
	bal, err := eng.Balance(ctx, addr)
	if err != nil {
		return err
	}
	fmt.Printf("%s  %d\n", addr, bal)
	return nil
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// apvault is the client for the apvault vault program. It manages encrypted
// signing keys, submits vault instructions to apvaultd (or executes them
// in-process with -local), and administers a local SQLite ledger.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aplane-algo/apvault/internal/api"
	"github.com/aplane-algo/apvault/internal/config"
	"github.com/aplane-algo/apvault/internal/logging"
	"github.com/aplane-algo/apvault/internal/security"
	"github.com/aplane-algo/apvault/internal/version"
)

// errUsage reports bad arguments; the command's usage line is printed.
var errUsage = errors.New("usage")

type command struct {
	name  string
	usage string
	desc  string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands []*command

func init() {
	commands = []*command{
		{"setup", "setup [-program ADDR] [-force]", "Write config.yaml with a program id", cmdSetup},
		{"keygen", "keygen [-type ed25519|falcon1024]", "Generate and encrypt a signing key", cmdKeygen},
		{"keys", "keys", "List stored keys", cmdKeys},
		{"derive", "derive [-program ADDR] [-owner ADDR -mint ADDR]", "Show the vault (or associated account) address", cmdDerive},
		{"info", "info", "Show vault state", cmdInfo},
		{"init", "init -mint ADDR", "Initialize the vault for a mint", cmdInit},
		{"deposit", "deposit [-from ACCOUNT] AMOUNT", "Deposit tokens into the vault", cmdDeposit},
		{"withdraw", "withdraw [-to ACCOUNT] AMOUNT", "Withdraw tokens from the vault", cmdWithdraw},
		{"balance", "balance [ACCOUNT]", "Show a token account balance", cmdBalance},
		{"create-mint", "create-mint [-decimals N] [-address ADDR]", "Create a mint in the local ledger", cmdCreateMint},
		{"open-account", "open-account -mint ADDR [-owner ADDR]", "Open an associated token account in the local ledger", cmdOpenAccount},
		{"mint-to", "mint-to ACCOUNT AMOUNT", "Mint tokens into an account in the local ledger", cmdMintTo},
		{"fund", "fund ADDR AMOUNT", "Credit native balance in the local ledger", cmdFund},
		{"accounts", "accounts", "List token accounts in the local ledger", cmdAccounts},
		{"js", "js [-e CODE] [-timeout D] [FILE|-]", "Run a JavaScript vault script", cmdJS},
		{"watch", "watch [-interval D]", "Live view of the vault", cmdWatch},
		{"shell", "shell", "Interactive shell", cmdShell},
	}
}

func findCommand(name string) *command {
	for _, c := range commands {
		if c.name == name {
			return c
		}
	}
	return nil
}

func printCommands() {
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-52s %s\n", c.usage, c.desc)
	}
}

func main() {
	versionFlag := flag.Bool("version", false, "Show version information and exit")
	dataDir := flag.String("d", "", "Data directory (overrides APVAULT_DATA)")
	keyName := flag.String("k", "", "Signing key address (default: the only stored key)")
	local := flag.Bool("local", false, "Execute in-process against the configured ledger instead of apvaultd")
	timeout := flag.Duration("timeout", api.DefaultTimeout, "Request timeout for apvaultd")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "apvault - vault client\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  apvault [flags] <command> [args]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		printCommands()
		fmt.Fprintf(os.Stderr, "\nFlags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nAmounts are integer base units; underscores are allowed (1_000_000).\n")
	}
	flag.Parse()

	if *versionFlag {
		fmt.Printf("apvault %s\n", version.String())
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	logging.InitCLI()
	if err := security.DisableCoreDumps(); err != nil {
		logging.Debug("core dumps not disabled", "error", err)
	}
	RegisterProviders()
	ensureProviders()

	dir := config.RequireDataDir(*dataDir)
	cfg, err := config.Load(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	a := &app{
		dataDir: dir,
		cfg:     cfg,
		keyName: *keyName,
		local:   *local,
		timeout: *timeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = dispatch(ctx, a, args)
	stop()
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// dispatch runs the command named by args[0].
func dispatch(ctx context.Context, a *app, args []string) error {
	c := findCommand(args[0])
	if c == nil {
		return fmt.Errorf("unknown command %q (see 'apvault -h')", args[0])
	}
	err := c.run(ctx, a, args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if errors.Is(err, errUsage) {
		return fmt.Errorf("usage: apvault %s", c.usage)
	}
	return err
}

// newFlagSet returns a flag set for a subcommand that reports errors
// instead of exiting, so the shell survives bad input.
func newFlagSet(c string) *flag.FlagSet {
	fs := flag.NewFlagSet(c, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}


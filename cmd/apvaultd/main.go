// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// apvaultd serves the vault program over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aplane-algo/apvault/internal/api"
	"github.com/aplane-algo/apvault/internal/config"
	"github.com/aplane-algo/apvault/internal/logging"
	"github.com/aplane-algo/apvault/internal/service"
	"github.com/aplane-algo/apvault/internal/signing"
	"github.com/aplane-algo/apvault/internal/version"
)

func main() {
	printVersion := flag.Bool("version", false, "Print version and exit")
	dataDir := flag.String("d", "", "Data directory (default: ~/.apvault or APVAULT_DATA)")
	listen := flag.String("listen", "", "Listen address (overrides config)")
	flag.Parse()

	if *printVersion {
		fmt.Printf("apvaultd %s\n", version.String())
		os.Exit(0)
	}

	resolvedDataDir := config.RequireDataDir(*dataDir)
	cfg, err := config.Load(resolvedDataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if cfg.ProgramID == "" {
		fmt.Fprintf(os.Stderr, "Error: program_id is not set in %s\n", config.Path(resolvedDataDir))
		fmt.Fprintln(os.Stderr, "Run 'apvault setup' to create a configuration")
		os.Exit(1)
	}

	logging.InitServer(os.Stderr, cfg.LogFormat == "json")

	RegisterProviders()
	ensureProviders()

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	svc, err := service.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logging.Logger.Warn("close failed", "error", err)
		}
	}()

	vaultAddr, bump, err := svc.Vault.Address()
	if err != nil {
		return fmt.Errorf("failed to derive vault address: %w", err)
	}
	svc.Audit.LogServerStart(svc.Vault.ID().String())

	fmt.Printf("\n>> Starting apvaultd %s\n", version.Version)
	fmt.Printf("   Program:  %s\n", svc.Vault.ID())
	fmt.Printf("   Vault:    %s (bump %d)\n", vaultAddr, bump)
	fmt.Printf("   Ledger:   %s", cfg.Ledger.Backend)
	if cfg.Ledger.Backend == config.BackendSQLite {
		fmt.Printf(" (%s)", cfg.Ledger.Path)
	}
	fmt.Println()
	fmt.Printf("   Policy:   %s\n", svc.Vault.Policy().Name())
	fmt.Printf("   Schemes:  %s\n", strings.Join(signing.Families(), ", "))
	fmt.Printf("\nEndpoints:\n")
	fmt.Printf("  POST   /v1/instructions         - Execute a signed instruction (msgpack or JSON)\n")
	fmt.Printf("  GET    /v1/vault                - Vault address, balance and policy\n")
	fmt.Printf("  GET    /v1/accounts/{address}   - Token account lookup\n")
	fmt.Printf("  GET    /v1/health               - Health check\n")
	fmt.Println(strings.Repeat("=", 50))

	watcherCtx, watcherCancel := context.WithCancel(context.Background())
	defer watcherCancel()
	if err := svc.WatchPolicy(watcherCtx, service.DefaultDebounce); err != nil {
		logging.Logger.Warn("allow-list will not auto-reload", "error", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.NewServer(svc.Host, svc.Vault).Handler(),
		ReadHeaderTimeout: 10 * time.Second, // Prevent SlowLoris attacks
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logging.Logger.Info("listening", "addr", cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-sigChan:
		fmt.Println("\n[*] Shutdown signal received, cleaning up...")
	case runErr = <-serverErr:
		fmt.Printf("\n[X] Server error: %v\n", runErr)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	fmt.Println("[*] Shutting down HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Printf("Warning: Server shutdown error: %v\n", err)
	}
	svc.Audit.LogServerStop()
	fmt.Println("[✓] Shutdown complete")
	return runErr
}

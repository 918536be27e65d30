// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package api exposes the host runtime over HTTP and provides a Go client.
//
// Endpoints:
//
//	POST /v1/instructions        submit a SignedInstruction (msgpack or JSON)
//	GET  /v1/vault               vault address, bump, balance and policy
//	GET  /v1/accounts/{address}  token account lookup
//	GET  /v1/health              liveness
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/apvault/internal/instruction"
	"github.com/aplane-algo/apvault/internal/ledger"
	"github.com/aplane-algo/apvault/internal/logging"
	"github.com/aplane-algo/apvault/internal/runtime"
	"github.com/aplane-algo/apvault/internal/vault"
	"github.com/aplane-algo/apvault/internal/version"
)

const (
	ContentTypeMsgpack = "application/msgpack"
	ContentTypeJSON    = "application/json"

	// MaxInstructionSize bounds request bodies. A falcon1024 signed
	// instruction is under 4 KiB.
	MaxInstructionSize = 64 * 1024
)

// AccountView is the JSON form of a ledger account.
type AccountView struct {
	Address   string `json:"address"`
	Mint      string `json:"mint"`
	Authority string `json:"authority"`
	Balance   uint64 `json:"balance"`
}

// NewAccountView converts a ledger account to its JSON form.
func NewAccountView(a ledger.Account) AccountView {
	return AccountView{
		Address:   a.Address.String(),
		Mint:      a.Mint.String(),
		Authority: a.Authority.String(),
		Balance:   a.Balance,
	}
}

// HealthResponse is returned by GET /v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
	Program string `json:"program"`
}

// Server serves the HTTP API for one host and its vault program.
type Server struct {
	host  *runtime.Host
	vault *vault.Program
}

func NewServer(host *runtime.Host, program *vault.Program) *Server {
	return &Server{host: host, vault: program}
}

// Handler returns the API routes on a dedicated mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/instructions", s.handleSubmit)
	mux.HandleFunc("GET /v1/vault", s.handleVault)
	mux.HandleFunc("GET /v1/accounts/{address}", s.handleAccount)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return mux
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	resp, status := classify(err)
	if status == http.StatusInternalServerError {
		logging.Logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxInstructionSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "instruction too large", Kind: "malformed"})
			return
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "failed to read body", Kind: "malformed"})
		return
	}

	var signed instruction.SignedInstruction
	if strings.HasPrefix(r.Header.Get("Content-Type"), ContentTypeMsgpack) {
		signed, err = instruction.DecodeSigned(body)
	} else {
		signed, err = instruction.DecodeSignedJSON(body)
	}
	if err != nil {
		writeError(w, fmt.Errorf("%w: %w", runtime.ErrMalformed, err))
		return
	}

	ctx := runtime.WithRemoteAddr(r.Context(), r.RemoteAddr)
	receipt, err := s.host.Execute(ctx, signed)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleVault(w http.ResponseWriter, r *http.Request) {
	info, err := s.vault.Info(r.Context(), s.host.Ledger())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := types.DecodeAddress(r.PathValue("address"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid address: " + err.Error(), Kind: "malformed"})
		return
	}
	acct, err := s.host.Ledger().Account(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewAccountView(acct))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: "apvaultd",
		Version: version.Version,
		Program: s.vault.ID().String(),
	})
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aplane-algo/apvault/internal/instruction"
	"github.com/aplane-algo/apvault/internal/runtime"
	"github.com/aplane-algo/apvault/internal/vault"
)

const DefaultTimeout = 30 * time.Second

// Client talks to apvaultd.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the daemon at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach apvaultd at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if json.Unmarshal(data, &errResp) != nil || errResp.Error == "" {
			return fmt.Errorf("apvaultd error (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return errResp.asError()
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Health checks that the daemon is reachable.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var h HealthResponse
	err := c.do(ctx, http.MethodGet, "/v1/health", "", nil, &h)
	return h, err
}

// Submit sends a signed instruction msgpack-encoded and returns its receipt.
func (c *Client) Submit(ctx context.Context, s instruction.SignedInstruction) (runtime.Receipt, error) {
	var r runtime.Receipt
	err := c.do(ctx, http.MethodPost, "/v1/instructions", ContentTypeMsgpack, s.Encode(), &r)
	return r, err
}

// SubmitJSON sends a signed instruction JSON-encoded.
func (c *Client) SubmitJSON(ctx context.Context, s instruction.SignedInstruction) (runtime.Receipt, error) {
	var r runtime.Receipt
	err := c.do(ctx, http.MethodPost, "/v1/instructions", ContentTypeJSON, s.EncodeJSON(), &r)
	return r, err
}

// Vault returns the vault's current state.
func (c *Client) Vault(ctx context.Context) (vault.Info, error) {
	var info vault.Info
	err := c.do(ctx, http.MethodGet, "/v1/vault", "", nil, &info)
	return info, err
}

// Account looks up a token account.
func (c *Client) Account(ctx context.Context, addr types.Address) (AccountView, error) {
	var a AccountView
	err := c.do(ctx, http.MethodGet, "/v1/accounts/"+addr.String(), "", nil, &a)
	return a, err
}

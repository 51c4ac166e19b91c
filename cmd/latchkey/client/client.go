// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

// Package client is the CLI's transport to a running latchkey server.
//
// The client never asks the user to log in. It runs on the server's
// own machine, so it bootstraps itself through POST /v1/auth/local,
// which the server grants only to localhost callers. The minted token
// is cached in the session file (mode 0600) and reused across
// invocations; a 401 (expired token, revoked device, or rotated
// secret) triggers exactly one re-bootstrap and retry.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/latchkey-dev/latchkey/lib/auditlog"
	"github.com/latchkey-dev/latchkey/lib/authstore"
	"github.com/latchkey-dev/latchkey/lib/netutil"
)

// Client talks to a latchkey server's JSON API. Safe for concurrent
// use.
type Client struct {
	baseURL     string
	sessionPath string
	httpClient  *http.Client
	logger      *slog.Logger

	mu    sync.Mutex
	token string
}

// Config configures a Client.
type Config struct {
	// BaseURL is the server's base URL (e.g. "http://127.0.0.1:4770").
	// Required.
	BaseURL string

	// SessionPath is where the minted token is cached. Required.
	SessionPath string

	// Logger receives transport diagnostics. Required.
	Logger *slog.Logger

	// HTTPClient overrides the default 10-second-timeout client.
	// Tests inject one pointed at an httptest server.
	HTTPClient *http.Client
}

// New creates a client. Panics on missing required configuration.
func New(config Config) *Client {
	if config.BaseURL == "" {
		panic("client: BaseURL is required")
	}
	if config.SessionPath == "" {
		panic("client: SessionPath is required")
	}
	if config.Logger == nil {
		panic("client: Logger is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		sessionPath: config.SessionPath,
		httpClient:  httpClient,
		logger:      config.Logger,
	}
}

// BaseURL returns the server base URL this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError is a non-2xx response from the server, carrying the
// server's error message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server: %s (HTTP %d)", e.Message, e.StatusCode)
}

// session is the on-disk cached authentication state.
type session struct {
	Server   string `json:"server"`
	Token    string `json:"token"`
	DeviceID string `json:"deviceId"`
}

// loadToken reads the cached token, or "" when there is no usable
// cache. A cache written for a different server is ignored rather
// than sent to the wrong place.
func (c *Client) loadToken() string {
	data, err := os.ReadFile(c.sessionPath)
	if err != nil {
		return ""
	}
	var s session
	if err := json.Unmarshal(data, &s); err != nil {
		return ""
	}
	if s.Server != "" && s.Server != c.baseURL {
		return ""
	}
	return s.Token
}

// saveSession writes the session cache. The file holds a bearer
// token, so the directory is 0700 and the file 0600.
func (c *Client) saveSession(s session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	data = append(data, '\n')

	directory := filepath.Dir(c.sessionPath)
	if err := os.MkdirAll(directory, 0o700); err != nil {
		return fmt.Errorf("creating session directory %s: %w", directory, err)
	}
	if err := os.WriteFile(c.sessionPath, data, 0o600); err != nil {
		return fmt.Errorf("writing session file %s: %w", c.sessionPath, err)
	}
	return nil
}

// authResult is the subset of the server's auth response the client
// needs.
type authResult struct {
	Token    string `json:"token"`
	DeviceID string `json:"deviceId"`
}

// bootstrap mints a fresh token via local auto-auth and caches it. A
// cache write failure is logged, not fatal: the next invocation just
// bootstraps again.
func (c *Client) bootstrap(ctx context.Context) (string, error) {
	name, err := os.Hostname()
	if err != nil || name == "" {
		name = "cli"
	}
	body := map[string]any{
		"device": authstore.DeviceInfo{
			Name:         name,
			Platform:     runtime.GOOS,
			BrowserLabel: "CLI",
		},
	}

	var result authResult
	if err := c.send(ctx, http.MethodPost, "/v1/auth/local", body, "", &result); err != nil {
		return "", fmt.Errorf("authenticating with local server: %w", err)
	}

	if err := c.saveSession(session{Server: c.baseURL, Token: result.Token, DeviceID: result.DeviceID}); err != nil {
		c.logger.Warn("caching session", "error", err)
	}
	c.logger.Debug("bootstrapped local session", "device_id", result.DeviceID)
	return result.Token, nil
}

// do performs an authenticated API call, bootstrapping a token when
// none is cached and retrying exactly once on 401.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	c.mu.Lock()
	token := c.token
	if token == "" {
		token = c.loadToken()
		c.token = token
	}
	c.mu.Unlock()

	if token == "" {
		fresh, err := c.bootstrap(ctx)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.token = fresh
		c.mu.Unlock()
		token = fresh
	}

	err := c.send(ctx, method, path, body, token, out)
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		return err
	}

	// The cached token was rejected: expired, revoked, or the secret
	// rotated underneath it. Mint a fresh one and retry once.
	fresh, err := c.bootstrap(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.token = fresh
	c.mu.Unlock()
	return c.send(ctx, method, path, body, fresh, out)
}

// send performs a single HTTP round trip. A nil out discards the
// response body after the status check.
func (c *Client) send(ctx context.Context, method, path string, body any, token string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("cannot reach latchkey at %s (is \"latchkey serve\" running?): %w", c.baseURL, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return &APIError{StatusCode: response.StatusCode, Message: errorMessage(response.Body)}
	}
	if out == nil {
		return nil
	}
	if err := netutil.DecodeResponse(response.Body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// errorMessage extracts the server's error field, falling back to the
// raw body for responses that are not the standard envelope.
func errorMessage(body io.Reader) string {
	raw := netutil.ErrorBody(body)
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(raw), &envelope); err == nil && envelope.Error != "" {
		return envelope.Error
	}
	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		return trimmed
	}
	return "no response body"
}

// DeviceList mirrors GET /v1/devices.
type DeviceList struct {
	Devices         []authstore.Device `json:"devices"`
	CurrentDeviceID string             `json:"currentDeviceId"`
}

// Devices lists every enrolled device, newest first.
func (c *Client) Devices(ctx context.Context) (DeviceList, error) {
	var list DeviceList
	err := c.do(ctx, http.MethodGet, "/v1/devices", nil, &list)
	return list, err
}

type deviceEnvelope struct {
	Success bool             `json:"success"`
	Device  authstore.Device `json:"device"`
}

// RenameDevice sets a device's display name.
func (c *Client) RenameDevice(ctx context.Context, deviceID, name string) (authstore.Device, error) {
	var result deviceEnvelope
	body := map[string]string{"name": name}
	err := c.do(ctx, http.MethodPatch, "/v1/devices/"+url.PathEscape(deviceID), body, &result)
	return result.Device, err
}

// RevokeDevice removes a device and invalidates its token.
func (c *Client) RevokeDevice(ctx context.Context, deviceID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/devices/"+url.PathEscape(deviceID), nil, nil)
}

// RevokeOthers removes every device except the CLI's own, returning
// how many were removed.
func (c *Client) RevokeOthers(ctx context.Context) (int, error) {
	var result struct {
		Success      bool `json:"success"`
		RevokedCount int  `json:"revokedCount"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/devices/revoke-others", nil, &result)
	return result.RevokedCount, err
}

// PendingRequests lists access requests awaiting a decision, newest
// first.
func (c *Client) PendingRequests(ctx context.Context) ([]authstore.PendingRequest, error) {
	var result struct {
		Requests []authstore.PendingRequest `json:"requests"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/requests", nil, &result)
	return result.Requests, err
}

// ApproveRequest approves a pending access request, enrolling the
// requesting device.
func (c *Client) ApproveRequest(ctx context.Context, requestID string) (authstore.Device, error) {
	var result deviceEnvelope
	err := c.do(ctx, http.MethodPost, "/v1/requests/"+url.PathEscape(requestID)+"/approve", nil, &result)
	return result.Device, err
}

// DenyRequest denies a pending access request.
func (c *Client) DenyRequest(ctx context.Context, requestID string) error {
	return c.do(ctx, http.MethodPost, "/v1/requests/"+url.PathEscape(requestID)+"/deny", nil, nil)
}

// AccessCode returns the current six-digit pairing code.
func (c *Client) AccessCode(ctx context.Context) (string, error) {
	var result struct {
		Code string `json:"code"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/access-code", nil, &result)
	return result.Code, err
}

// RotateAccessCode rotates the signing secret, invalidating every
// outstanding token (including this client's; the next call
// re-bootstraps), and returns the new code.
func (c *Client) RotateAccessCode(ctx context.Context) (string, error) {
	var result struct {
		Code string `json:"code"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/access-code/rotate", nil, &result)
	return result.Code, err
}

// AuditEvents returns recent audit events, newest first. A zero limit
// uses the server default.
func (c *Client) AuditEvents(ctx context.Context, limit int) ([]auditlog.Event, error) {
	path := "/v1/audit"
	if limit > 0 {
		path = fmt.Sprintf("/v1/audit?limit=%d", limit)
	}
	var result struct {
		Events []auditlog.Event `json:"events"`
	}
	err := c.do(ctx, http.MethodGet, path, nil, &result)
	return result.Events, err
}

// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/latchkey-dev/latchkey/lib/auditlog"
	"github.com/latchkey-dev/latchkey/lib/gateway"
	"github.com/latchkey-dev/latchkey/lib/netutil"
)

// maxRequestBodySize caps JSON request bodies. Every body this API
// accepts is a small object; anything larger is abuse.
const maxRequestBodySize = 64 * 1024

// AuditReader lists recorded audit events. *auditlog.Store implements
// it.
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]auditlog.Event, error)
}

// Server is the HTTP front of the gateway. It owns routing, bearer
// extraction, client-address classification, rate limiting, and the
// JSON envelope; every decision is the gateway's.
type Server struct {
	address    string
	gateway    *gateway.Gateway
	audit      AuditReader
	logger     *slog.Logger
	trustProxy bool
	limiter    *ipLimiter
	mux        *http.ServeMux

	// shutdownTimeout is the maximum time to wait for active
	// requests to complete after the context is cancelled.
	shutdownTimeout time.Duration

	// ready is closed after the listener is bound and the server
	// is accepting connections.
	ready chan struct{}

	// addr is the resolved listen address, available after ready is
	// closed. With a port-0 address this carries the assigned port.
	addr net.Addr
}

// Config configures a Server.
type Config struct {
	// Address is the TCP listen address. Required.
	Address string

	// Gateway makes the decisions. Required.
	Gateway *gateway.Gateway

	// Audit serves GET /v1/audit. Optional; when nil the endpoint
	// is not registered.
	Audit AuditReader

	// Logger is the structured logger. Required.
	Logger *slog.Logger

	// TrustProxy honors X-Forwarded-For for the client address. Only
	// set this behind a reverse proxy you control.
	TrustProxy bool

	// ShutdownTimeout is the maximum time to wait for in-flight
	// requests during graceful shutdown. Defaults to 10 seconds.
	ShutdownTimeout time.Duration
}

// New creates the server and builds its routes. Call Serve to start
// accepting connections, or use the Server directly as an
// http.Handler in tests.
func New(config Config) *Server {
	if config.Address == "" {
		panic("httpapi: Address is required")
	}
	if config.Gateway == nil {
		panic("httpapi: Gateway is required")
	}
	if config.Logger == nil {
		panic("httpapi: Logger is required")
	}

	timeout := config.ShutdownTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	s := &Server{
		address:         config.Address,
		gateway:         config.Gateway,
		audit:           config.Audit,
		logger:          config.Logger,
		trustProxy:      config.TrustProxy,
		limiter:         newIPLimiter(rate.Limit(1), 5),
		shutdownTimeout: timeout,
		ready:           make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/code", s.handleVerifyCode)
	mux.HandleFunc("POST /v1/auth/local", s.handleLocalAuth)
	mux.HandleFunc("POST /v1/auth/request", s.handleRequestAccess)
	mux.HandleFunc("GET /v1/auth/request/{id}", s.handleCheckStatus)
	mux.HandleFunc("POST /v1/auth/validate", s.handleValidate)
	mux.HandleFunc("POST /v1/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /v1/devices", s.handleListDevices)
	mux.HandleFunc("PATCH /v1/devices/{id}", s.handleRenameDevice)
	mux.HandleFunc("DELETE /v1/devices/{id}", s.handleRevokeDevice)
	mux.HandleFunc("POST /v1/devices/revoke-others", s.handleRevokeOthers)
	mux.HandleFunc("GET /v1/requests", s.handleListPending)
	mux.HandleFunc("POST /v1/requests/{id}/approve", s.handleApprove)
	mux.HandleFunc("POST /v1/requests/{id}/deny", s.handleDeny)
	mux.HandleFunc("GET /v1/access-code", s.handleAccessCode)
	mux.HandleFunc("POST /v1/access-code/rotate", s.handleRotateSecret)
	if s.audit != nil {
		mux.HandleFunc("GET /v1/audit", s.handleAudit)
	}
	mux.HandleFunc("GET /health", s.handleHealth)
	s.mux = mux

	return s
}

// ServeHTTP implements http.Handler, dispatching to the route table.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Ready returns a channel that is closed once the server is bound
// and accepting connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the resolved listen address. Only valid after Ready()
// is closed.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Serve starts accepting HTTP connections. Blocks until ctx is
// cancelled, then performs graceful shutdown: stops accepting new
// connections and waits up to ShutdownTimeout for active requests
// to complete.
func (s *Server) Serve(ctx context.Context) error {
	// Bind the listener early so we can extract the resolved
	// address and signal readiness before entering the serve loop.
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.address, err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	server := &http.Server{
		Handler: s,

		// Human-paced JSON traffic with small bodies; generous
		// timeouts just keep dead connections from accumulating.
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("http server listening", "address", s.addr.String())

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("http server shutting down")
	case err := <-serveDone:
		if err != nil {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http server shutdown error", "error", err)
		return fmt.Errorf("http server shutdown: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}

// client resolves the request's client address and locality.
func (s *Server) client(r *http.Request) (ip string, local bool) {
	return netutil.ClientAddr(r.RemoteAddr, r.Header.Get("X-Forwarded-For"), s.trustProxy)
}

// bearerToken extracts the token from an Authorization: Bearer
// header. Missing or differently-shaped headers yield "", which the
// gateway rejects as unauthenticated.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}

// decodeBody parses a JSON request body into v with the size cap
// applied. On failure the error response has already been sent; the
// handler just returns.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.sendError(w, http.StatusRequestEntityTooLarge, "request body too large (max %d bytes)", maxRequestBodySize)
			return false
		}
		s.sendError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return false
	}
	return true
}

// gatewayError translates a gateway failure into the wire envelope.
// The taxonomy sentinels map to their statuses with fixed messages;
// validation errors carry their text (the caller needs to know what
// was wrong with the input); everything else is an internal error
// that gets logged but not leaked.
func (s *Server) gatewayError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, gateway.ErrUnauthenticated):
		s.sendError(w, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, gateway.ErrForbidden):
		s.sendError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, gateway.ErrNotFound):
		s.sendError(w, http.StatusNotFound, "not found")
	case errors.Is(err, gateway.ErrInvalidInput):
		s.sendError(w, http.StatusBadRequest, "%v", err)
	default:
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		s.sendError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{
		Error: fmt.Sprintf(format, args...),
	}); err != nil {
		s.logger.Warn("writing JSON error response", "error", err, "status", status)
	}
}

// writeJSON encodes value as JSON into w, setting the Content-Type
// header. If encoding fails (typically because the client
// disconnected), the error is logged — the caller cannot send a
// corrective response to a dead client.
func (s *Server) writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(value); err != nil {
		s.logger.Warn("writing JSON response", "error", err)
	}
}

// writeJSONStatus is writeJSON with an explicit status code.
func (s *Server) writeJSONStatus(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		s.logger.Warn("writing JSON response", "error", err, "status", status)
	}
}

// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/latchkey-dev/latchkey/cmd/latchkey/cli"
	"github.com/latchkey-dev/latchkey/httpapi"
	"github.com/latchkey-dev/latchkey/lib/auditlog"
	"github.com/latchkey-dev/latchkey/lib/authstore"
	"github.com/latchkey-dev/latchkey/lib/clock"
	"github.com/latchkey-dev/latchkey/lib/config"
	"github.com/latchkey-dev/latchkey/lib/gateway"
	"github.com/latchkey-dev/latchkey/lib/version"
)

type serveParams struct {
	Config   string `flag:"config,c" desc:"path to config file"`
	Listen   string `flag:"listen" desc:"listen address (overrides config)"`
	StateDir string `flag:"state-dir" desc:"state directory (overrides config)"`
}

func serveCommand() *cli.Command {
	var params serveParams
	return &cli.Command{
		Name:    "serve",
		Summary: "Run the authentication server",
		Description: `Run the latchkey server.

The server answers the device-authentication API on the configured
listen address (default 127.0.0.1:4770). State (the device registry,
the signing secret, and the audit trail) lives in the state
directory (default ~/.latchkey).`,
		Usage: "latchkey serve [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("serve", &params)
		},
		Examples: []cli.Example{
			{
				Description: "Run with defaults",
				Command:     "latchkey serve",
			},
			{
				Description: "Run against a shared state directory",
				Command:     "latchkey serve --state-dir /srv/latchkey",
			},
		},
		Run: func(ctx context.Context, _ []string, logger *slog.Logger) error {
			return runServe(ctx, params, logger)
		},
	}
}

func runServe(ctx context.Context, params serveParams, logger *slog.Logger) error {
	cfg, err := config.Load(params.Config)
	if err != nil {
		return err
	}
	if params.Listen != "" {
		cfg.Listen = params.Listen
	}
	if params.StateDir != "" {
		cfg.StateDir = params.StateDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Rebuild the logger at the configured level; the injected one is
	// fixed at Info for interactive commands.
	logger = cli.NewCommandLoggerAt(cfg.LogLevel())

	if err := cfg.EnsureStateDir(); err != nil {
		return err
	}

	clk := clock.Real()

	audit, err := auditlog.Open(auditlog.Config{
		Path:   cfg.AuditPath(),
		Clock:  clk,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := audit.Close(); err != nil {
			logger.Warn("closing audit store", "error", err)
		}
	}()

	store, err := authstore.Open(authstore.Config{
		Path:             cfg.SnapshotPath(),
		Clock:            clk,
		Logger:           logger,
		ReloadBeforeRead: cfg.Store.ReloadBeforeRead,
		OnExpire: func(request authstore.PendingRequest) {
			recordExpiry(audit, logger, request)
		},
	})
	if err != nil {
		return err
	}

	gw := gateway.New(gateway.Config{
		Store:    store,
		Clock:    clk,
		Logger:   logger,
		Audit:    audit,
		TokenTTL: cfg.TokenTTL(),
	})

	go pruneLoop(ctx, audit, clk, cfg.AuditRetention(), logger)

	server := httpapi.New(httpapi.Config{
		Address:    cfg.Listen,
		Gateway:    gw,
		Audit:      audit,
		Logger:     logger,
		TrustProxy: cfg.HTTP.TrustProxy,
	})

	logger.Info("latchkey starting",
		"version", version.Info(),
		"listen", cfg.Listen,
		"state_dir", cfg.StateDir,
	)
	return server.Serve(ctx)
}

// recordExpiry audits a lazily-expired pending request. The store
// invokes this after the expiry is persisted; audit failures are
// logged and swallowed so a broken trail never blocks reads.
func recordExpiry(audit *auditlog.Store, logger *slog.Logger, request authstore.PendingRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := audit.Record(ctx, auditlog.Event{
		Kind:      auditlog.KindRequestExpired,
		RequestID: request.ID,
		IP:        request.IP,
	})
	if err != nil {
		logger.Warn("recording request expiry", "request_id", request.ID, "error", err)
	}
}

// pruneLoop trims the audit trail once at startup and then daily.
// Maintenance only: expiry semantics live in the store's lazy reads,
// not here.
func pruneLoop(ctx context.Context, audit *auditlog.Store, clk clock.Clock, retention time.Duration, logger *slog.Logger) {
	ticker := clk.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		pruneCtx, cancel := context.WithTimeout(ctx, time.Minute)
		removed, err := audit.Prune(pruneCtx, retention)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("pruning audit trail", "error", err)
		} else if removed > 0 {
			logger.Info("pruned audit trail", "removed", removed)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

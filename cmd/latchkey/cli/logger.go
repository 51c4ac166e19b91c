// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewCommandLogger creates a structured logger for CLI command
// operations at the default Info level. When stderr is a terminal, it
// uses slog.TextHandler for human-readable output. When stderr is
// piped or redirected (CI, scripts, integration tests), it uses
// slog.JSONHandler for machine-parseable output compatible with the
// server's log format.
//
// Callers scope the logger with command-specific context via With():
//
//	logger := cli.NewCommandLogger().With("command", "device/revoke")
func NewCommandLogger() *slog.Logger {
	return NewCommandLoggerAt(slog.LevelInfo)
}

// NewCommandLoggerAt is NewCommandLogger with an explicit level. The
// serve command uses it to honor the configured log level.
func NewCommandLoggerAt(level slog.Level) *slog.Logger {
	var handler slog.Handler
	options := &slog.HandlerOptions{Level: level}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}

// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the latchkey CLI command tree.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/latchkey-dev/latchkey/cmd/latchkey/cli"
	"github.com/latchkey-dev/latchkey/lib/version"
)

// Root builds and returns the complete latchkey command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "latchkey",
		Description: `Latchkey: device authentication for a single-user server.

Run the server with "latchkey serve". Devices on this machine pair
with the six-digit access code; devices anywhere else file a request
that you approve from here.`,
		Subcommands: []*cli.Command{
			serveCommand(),
			codeCommand(),
			deviceCommand(),
			requestCommand(),
			auditCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, _ []string, _ *slog.Logger) error {
					fmt.Printf("latchkey %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Start the server with the default config",
				Command:     "latchkey serve",
			},
			{
				Description: "Show the pairing code for a new device",
				Command:     "latchkey code show",
			},
			{
				Description: "See devices waiting for approval",
				Command:     "latchkey request list",
			},
			{
				Description: "Approve a pending device",
				Command:     "latchkey request approve 4f1c9a2e77b05d83",
			},
			{
				Description: "List enrolled devices as JSON",
				Command:     "latchkey device list --json",
			},
		},
	}
}

// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/latchkey-dev/latchkey/cmd/latchkey/cli"
)

type auditParams struct {
	cli.JSONOutput
	cli.ClientConfig
	Limit int `flag:"limit,n" desc:"maximum events to show" default:"50"`
}

func auditCommand() *cli.Command {
	var params auditParams
	return &cli.Command{
		Name:    "audit",
		Summary: "Show recent authentication events",
		Description: `Show the audit trail, newest first.

Every authentication decision is recorded: code verifications and
rejections, local auto-auths, request filings and outcomes, device
renames and revocations, and secret rotations.`,
		Usage: "latchkey audit [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("audit", &params)
		},
		Examples: []cli.Example{
			{
				Description: "The last 200 events as JSON",
				Command:     "latchkey audit --limit 200 --json",
			},
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			api, err := params.Connect(logger)
			if err != nil {
				return err
			}
			events, err := api.AuditEvents(ctx, params.Limit)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(events); done {
				return err
			}

			if len(events) == 0 {
				fmt.Fprintln(os.Stderr, "No audit events recorded.")
				return nil
			}

			writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "TIME\tKIND\tDEVICE\tREQUEST\tIP\tDETAIL")
			for _, event := range events {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n",
					formatTime(event.Time),
					event.Kind,
					orDash(event.DeviceID),
					orDash(event.RequestID),
					orDash(event.IP),
					orDash(event.Detail),
				)
			}
			writer.Flush()
			return nil
		},
	}
}

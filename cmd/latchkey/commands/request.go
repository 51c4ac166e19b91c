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

func requestCommand() *cli.Command {
	return &cli.Command{
		Name:    "request",
		Summary: "Approve or deny remote access requests",
		Subcommands: []*cli.Command{
			requestListCommand(),
			requestApproveCommand(),
			requestDenyCommand(),
		},
	}
}

type requestParams struct {
	cli.JSONOutput
	cli.ClientConfig
}

func requestListCommand() *cli.Command {
	var params requestParams
	return &cli.Command{
		Name:    "list",
		Summary: "List requests awaiting a decision",
		Usage:   "latchkey request list [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("list", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			api, err := params.Connect(logger)
			if err != nil {
				return err
			}
			requests, err := api.PendingRequests(ctx)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(requests); done {
				return err
			}

			if len(requests) == 0 {
				fmt.Fprintln(os.Stderr, "No pending requests.")
				return nil
			}

			writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "ID\tNAME\tPLATFORM\tIP\tREQUESTED")
			for _, request := range requests {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
					request.ID,
					orDash(request.Device.Name),
					orDash(request.Device.Platform),
					orDash(request.IP),
					formatTime(request.CreatedAt),
				)
			}
			writer.Flush()
			return nil
		},
	}
}

func requestApproveCommand() *cli.Command {
	var params requestParams
	return &cli.Command{
		Name:    "approve",
		Summary: "Approve a pending request",
		Description: `Approve a pending request.

The requesting device is enrolled and picks up its token on its next
status poll. Requests expire two minutes after they are filed; an
expired request cannot be approved.`,
		Usage: "latchkey request approve <request-id> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("approve", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: latchkey request approve <request-id>")
			}

			api, err := params.Connect(logger)
			if err != nil {
				return err
			}
			device, err := api.ApproveRequest(ctx, args[0])
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(device); done {
				return err
			}
			fmt.Printf("Approved %q (device %s).\n", device.Name, device.ID)
			return nil
		},
	}
}

func requestDenyCommand() *cli.Command {
	var params requestParams
	return &cli.Command{
		Name:    "deny",
		Summary: "Deny a pending request",
		Usage:   "latchkey request deny <request-id> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("deny", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: latchkey request deny <request-id>")
			}

			api, err := params.Connect(logger)
			if err != nil {
				return err
			}
			if err := api.DenyRequest(ctx, args[0]); err != nil {
				return err
			}

			if done, err := params.EmitJSON(map[string]bool{"success": true}); done {
				return err
			}
			fmt.Printf("Denied %s.\n", args[0])
			return nil
		},
	}
}

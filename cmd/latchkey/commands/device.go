// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/latchkey-dev/latchkey/cmd/latchkey/cli"
)

func deviceCommand() *cli.Command {
	return &cli.Command{
		Name:    "device",
		Summary: "Manage enrolled devices",
		Subcommands: []*cli.Command{
			deviceListCommand(),
			deviceRenameCommand(),
			deviceRevokeCommand(),
			deviceRevokeOthersCommand(),
		},
	}
}

type deviceParams struct {
	cli.JSONOutput
	cli.ClientConfig
}

func deviceListCommand() *cli.Command {
	var params deviceParams
	return &cli.Command{
		Name:    "list",
		Summary: "List enrolled devices",
		Usage:   "latchkey device list [flags]",
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
			list, err := api.Devices(ctx)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(list); done {
				return err
			}

			if len(list.Devices) == 0 {
				fmt.Fprintln(os.Stderr, "No devices enrolled.")
				return nil
			}

			writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "ID\tNAME\tPLATFORM\tHOST\tLAST SEEN\tIP")
			for _, device := range list.Devices {
				name := device.Name
				if device.ID == list.CurrentDeviceID {
					name += " (this client)"
				}
				host := "-"
				if device.IsHost {
					host = "yes"
				}
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n",
					device.ID,
					orDash(name),
					orDash(device.Platform),
					host,
					formatTime(device.LastSeenAt),
					orDash(device.IP),
				)
			}
			writer.Flush()
			return nil
		},
	}
}

func deviceRenameCommand() *cli.Command {
	var params deviceParams
	return &cli.Command{
		Name:    "rename",
		Summary: "Rename a device",
		Usage:   "latchkey device rename <device-id> <new-name> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("rename", &params)
		},
		Examples: []cli.Example{
			{
				Description: "Names may contain spaces; quoting is optional",
				Command:     "latchkey device rename 4f1c9a2e77b05d83 Kitchen iPad",
			},
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) < 2 {
				return fmt.Errorf("usage: latchkey device rename <device-id> <new-name>")
			}
			deviceID := args[0]
			name := strings.Join(args[1:], " ")

			api, err := params.Connect(logger)
			if err != nil {
				return err
			}
			device, err := api.RenameDevice(ctx, deviceID, name)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(device); done {
				return err
			}
			fmt.Printf("Renamed %s to %q.\n", device.ID, device.Name)
			return nil
		},
	}
}

func deviceRevokeCommand() *cli.Command {
	var params deviceParams
	return &cli.Command{
		Name:    "revoke",
		Summary: "Revoke a device's access",
		Description: `Revoke a device.

The device is removed from the registry and its token stops
validating immediately. A device cannot revoke itself; the CLI's own
device counts as itself here.`,
		Usage: "latchkey device revoke <device-id> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("revoke", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: latchkey device revoke <device-id>")
			}

			api, err := params.Connect(logger)
			if err != nil {
				return err
			}
			if err := api.RevokeDevice(ctx, args[0]); err != nil {
				return err
			}

			if done, err := params.EmitJSON(map[string]bool{"success": true}); done {
				return err
			}
			fmt.Printf("Revoked %s.\n", args[0])
			return nil
		},
	}
}

func deviceRevokeOthersCommand() *cli.Command {
	var params deviceParams
	return &cli.Command{
		Name:    "revoke-others",
		Summary: "Revoke every device except this client",
		Usage:   "latchkey device revoke-others [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("revoke-others", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}

			api, err := params.Connect(logger)
			if err != nil {
				return err
			}
			removed, err := api.RevokeOthers(ctx)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(map[string]int{"revokedCount": removed}); done {
				return err
			}
			switch removed {
			case 0:
				fmt.Println("No other devices to revoke.")
			case 1:
				fmt.Println("Revoked 1 device.")
			default:
				fmt.Printf("Revoked %d devices.\n", removed)
			}
			return nil
		},
	}
}

// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/latchkey-dev/latchkey/cmd/latchkey/cli"
)

func codeCommand() *cli.Command {
	return &cli.Command{
		Name:    "code",
		Summary: "Show or rotate the six-digit access code",
		Subcommands: []*cli.Command{
			codeShowCommand(),
			codeRotateCommand(),
		},
	}
}

type codeParams struct {
	cli.JSONOutput
	cli.ClientConfig
}

func codeShowCommand() *cli.Command {
	var params codeParams
	return &cli.Command{
		Name:    "show",
		Summary: "Print the current access code",
		Description: `Print the six-digit access code.

Enter this code on a device on this machine to pair it directly, or
on a remote device to file an approval request.`,
		Usage: "latchkey code show [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("show", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			api, err := params.Connect(logger)
			if err != nil {
				return err
			}
			code, err := api.AccessCode(ctx)
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(map[string]string{"code": code}); done {
				return err
			}
			fmt.Println(code)
			return nil
		},
	}
}

func codeRotateCommand() *cli.Command {
	var params codeParams
	return &cli.Command{
		Name:    "rotate",
		Summary: "Rotate the signing secret and print the new code",
		Description: `Rotate the signing secret.

Every enrolled device is signed out: outstanding tokens stop
validating and the old access code stops working. Paired browsers
must enter the new code.`,
		Usage: "latchkey code rotate [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("rotate", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			api, err := params.Connect(logger)
			if err != nil {
				return err
			}
			code, err := api.RotateAccessCode(ctx)
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(map[string]string{"code": code}); done {
				return err
			}
			fmt.Printf("New access code: %s\n", code)
			fmt.Println("All devices have been signed out and must pair again.")
			return nil
		},
	}
}

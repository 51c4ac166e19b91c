// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// execute runs a command tree with a background context and a quiet
// logger, which is all these tests need.
func execute(command *Command, args ...string) error {
	return command.Execute(context.Background(), args, testLogger())
}

func TestCommand_Execute_DispatchesToSubcommand(t *testing.T) {
	var called string

	root := &Command{
		Name: "latchkey",
		Subcommands: []*Command{
			{
				Name: "version",
				Run: func(_ context.Context, _ []string, _ *slog.Logger) error {
					called = "version"
					return nil
				},
			},
			{
				Name: "device",
				Run: func(_ context.Context, _ []string, _ *slog.Logger) error {
					called = "device"
					return nil
				},
			},
		},
	}

	if err := execute(root, "device"); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "device" {
		t.Errorf("dispatched to %q, want %q", called, "device")
	}
}

func TestCommand_Execute_NestedSubcommands(t *testing.T) {
	var called string
	var receivedArgs []string

	root := &Command{
		Name: "latchkey",
		Subcommands: []*Command{
			{
				Name: "device",
				Subcommands: []*Command{
					{
						Name: "rename",
						Run: func(_ context.Context, args []string, _ *slog.Logger) error {
							called = "device rename"
							receivedArgs = args
							return nil
						},
					},
				},
			},
		},
	}

	if err := execute(root, "device", "rename", "extra-arg"); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "device rename" {
		t.Errorf("dispatched to %q, want %q", called, "device rename")
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "extra-arg" {
		t.Errorf("args = %v, want [extra-arg]", receivedArgs)
	}
}

func TestCommand_Execute_ThreadsContextAndLogger(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "present")
	logger := testLogger()

	var gotCtx context.Context
	var gotLogger *slog.Logger

	root := &Command{
		Name: "latchkey",
		Subcommands: []*Command{
			{
				Name: "probe",
				Run: func(ctx context.Context, _ []string, logger *slog.Logger) error {
					gotCtx = ctx
					gotLogger = logger
					return nil
				},
			},
		},
	}

	if err := root.Execute(ctx, []string{"probe"}, logger); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if gotCtx == nil || gotCtx.Value(key{}) != "present" {
		t.Error("context not threaded through dispatch")
	}
	if gotLogger != logger {
		t.Error("logger not threaded through dispatch")
	}
}

func TestCommand_Execute_FlagParsing(t *testing.T) {
	var listen string
	var target string

	command := &Command{
		Name: "serve",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("serve", pflag.ContinueOnError)
			flagSet.StringVar(&listen, "listen", "127.0.0.1:4770", "listen address")
			return flagSet
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				target = args[0]
			}
			return nil
		},
	}

	if err := execute(command, "--listen", "127.0.0.1:9000", "positional"); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if listen != "127.0.0.1:9000" {
		t.Errorf("listen = %q, want %q", listen, "127.0.0.1:9000")
	}
	if target != "positional" {
		t.Errorf("target = %q, want %q", target, "positional")
	}
}

func TestCommand_Execute_RunErrorPropagates(t *testing.T) {
	wantErr := errors.New("boom")
	command := &Command{
		Name: "fail",
		Run: func(_ context.Context, _ []string, _ *slog.Logger) error {
			return wantErr
		},
	}

	if err := execute(command); !errors.Is(err, wantErr) {
		t.Errorf("Execute() = %v, want %v", err, wantErr)
	}
}

func TestCommand_Execute_UnknownFlagSuggestion(t *testing.T) {
	command := &Command{
		Name: "list",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			flagSet.Bool("json", false, "output as JSON")
			flagSet.String("server", "", "server base URL")
			return flagSet
		},
		Run: func(_ context.Context, _ []string, _ *slog.Logger) error { return nil },
	}

	err := execute(command, "--jsno")
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown flag")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "did you mean --json") {
		t.Errorf("error = %q, want suggestion for '--json'", errStr)
	}
	if !strings.Contains(errStr, "jsno") {
		t.Errorf("error = %q, should mention the bad flag", errStr)
	}
	if !strings.Contains(errStr, "--help") {
		t.Errorf("error = %q, should point to --help", errStr)
	}
}

func TestCommand_Execute_UnknownFlagNoSuggestion(t *testing.T) {
	command := &Command{
		Name: "list",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			flagSet.Bool("json", false, "output as JSON")
			return flagSet
		},
		Run: func(_ context.Context, _ []string, _ *slog.Logger) error { return nil },
	}

	err := execute(command, "--zzzzzzzzz")
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown flag")
	}
	if strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error = %q, should not suggest for distant flag", err.Error())
	}
	if !strings.Contains(err.Error(), "--help") {
		t.Errorf("error = %q, should point to --help", err.Error())
	}
}

func TestCommand_Execute_UnknownSubcommandSuggestion(t *testing.T) {
	root := &Command{
		Name: "latchkey",
		Subcommands: []*Command{
			{Name: "device"},
			{Name: "request"},
			{Name: "version"},
		},
	}

	err := execute(root, "devcie")
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown subcommand")
	}
	if !strings.Contains(err.Error(), "did you mean \"device\"") {
		t.Errorf("error = %q, want suggestion for 'device'", err.Error())
	}
}

func TestCommand_Execute_UnknownSubcommandNoSuggestion(t *testing.T) {
	root := &Command{
		Name: "latchkey",
		Subcommands: []*Command{
			{Name: "device"},
			{Name: "request"},
		},
	}

	err := execute(root, "zzzzzzz")
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown subcommand")
	}
	if strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error = %q, should not contain suggestion for distant input", err.Error())
	}
}

func TestCommand_Execute_HelpFlag(t *testing.T) {
	for _, helpArg := range []string{"-h", "--help", "help"} {
		t.Run(helpArg, func(t *testing.T) {
			root := &Command{
				Name:    "latchkey",
				Summary: "Device authentication",
				Subcommands: []*Command{
					{Name: "device", Summary: "Manage devices"},
				},
			}

			if err := execute(root, helpArg); err != nil {
				t.Errorf("Execute(%q) error: %v", helpArg, err)
			}
		})
	}
}

func TestCommand_Execute_NoArgsShowsHelp(t *testing.T) {
	root := &Command{
		Name: "latchkey",
		Subcommands: []*Command{
			{Name: "device", Summary: "Manage devices"},
		},
	}

	err := execute(root)
	if err == nil {
		t.Fatal("Execute() = nil, want error for missing subcommand")
	}
	if !strings.Contains(err.Error(), "subcommand required") {
		t.Errorf("error = %q, want 'subcommand required'", err.Error())
	}
}

func TestCommand_PrintHelp(t *testing.T) {
	command := &Command{
		Name:        "latchkey",
		Description: "Device authentication for a single-user server.",
		Subcommands: []*Command{
			{Name: "serve", Summary: "Run the authentication server"},
			{Name: "device", Summary: "Manage enrolled devices"},
			{Name: "version", Summary: "Print version information"},
		},
		Examples: []Example{
			{
				Description: "Show the pairing code",
				Command:     "latchkey code show",
			},
		},
	}

	var buffer bytes.Buffer
	command.PrintHelp(&buffer)
	output := buffer.String()

	for _, want := range []string{
		"Device authentication for a single-user server.",
		"Usage:",
		"latchkey <command> [flags]",
		"Commands:",
		"serve",
		"Run the authentication server",
		"Examples:",
		"latchkey code show",
		"Run 'latchkey <command> --help'",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q:\n%s", want, output)
		}
	}
}

func TestCommand_PrintHelp_FullCommandPath(t *testing.T) {
	root := &Command{
		Name: "latchkey",
		Subcommands: []*Command{
			{
				Name: "device",
				Subcommands: []*Command{
					{Name: "rename", Summary: "Rename a device"},
				},
			},
		},
	}

	// Dispatch through a nonexistent leaf so the error names the full
	// path of the parent.
	err := execute(root, "device", "renmae")
	if err == nil {
		t.Fatal("Execute() = nil, want error")
	}
	if !strings.Contains(err.Error(), "latchkey device --help") {
		t.Errorf("error = %q, want full command path in help pointer", err.Error())
	}
}

// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"log/slog"
	"net"
	"os"

	"github.com/spf13/pflag"

	"github.com/latchkey-dev/latchkey/cmd/latchkey/client"
	"github.com/latchkey-dev/latchkey/lib/config"
)

// ClientConfig holds the shared flags for reaching a latchkey server.
// Commands embed it in their params struct; [BindFlags] detects the
// [FlagBinder] implementation and registers --server and --config.
//
// Usage pattern:
//
//	type listParams struct {
//	    cli.JSONOutput
//	    cli.ClientConfig
//	}
//
//	// In Run:
//	api, err := params.Connect(logger)
type ClientConfig struct {
	// Server is the server base URL. Empty means: LATCHKEY_SERVER
	// from the environment, then the config file's listen address.
	Server string

	// ConfigPath is an explicit config file path, passed through to
	// [config.Load].
	ConfigPath string
}

// AddFlags registers the connection flags, satisfying [FlagBinder].
func (c *ClientConfig) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.Server, "server", "", "server base URL (default: the configured listen address)")
	flagSet.StringVar(&c.ConfigPath, "config", "", "path to config file")
}

// Connect builds the API client. Server resolution order: --server,
// LATCHKEY_SERVER, then a loopback URL derived from the config file's
// listen address. The session cache lives in the configured state
// directory.
func (c *ClientConfig) Connect(logger *slog.Logger) (*client.Client, error) {
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return nil, err
	}

	server := c.Server
	if server == "" {
		server = os.Getenv("LATCHKEY_SERVER")
	}
	if server == "" {
		server = serverURL(cfg.Listen)
	}

	return client.New(client.Config{
		BaseURL:     server,
		SessionPath: cfg.SessionPath(),
		Logger:      logger,
	}), nil
}

// serverURL derives a loopback base URL from a listen address. A
// wildcard host binds every interface; the client still dials
// loopback, because local auto-auth only works from there anyway.
func serverURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

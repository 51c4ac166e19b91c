// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for the latchkey server.
type Config struct {
	// Listen is the TCP address the HTTP server binds. The default
	// is loopback-only; binding a routable address is how operators
	// expose the service (usually behind the tunnel).
	Listen string `yaml:"listen"`

	// StateDir holds everything durable: the state snapshot, the
	// audit database, and the discovered config file itself.
	StateDir string `yaml:"state_dir"`

	Auth  AuthConfig  `yaml:"auth"`
	Store StoreConfig `yaml:"store"`
	HTTP  HTTPConfig  `yaml:"http"`
	Audit AuditConfig `yaml:"audit"`
	Log   LogConfig   `yaml:"log"`
}

// AuthConfig configures token issuance.
type AuthConfig struct {
	// TokenTTLDays is the validity window for newly minted device
	// tokens, in days.
	TokenTTLDays int `yaml:"token_ttl_days"`
}

// StoreConfig configures the state snapshot.
type StoreConfig struct {
	// ReloadBeforeRead re-reads the snapshot from disk before every
	// read so that out-of-band edits (another process, a restored
	// backup) are visible without a restart.
	ReloadBeforeRead bool `yaml:"reload_before_read"`
}

// HTTPConfig configures the transport layer.
type HTTPConfig struct {
	// TrustProxy honors X-Forwarded-For when classifying the client
	// address. Leave false unless a reverse proxy you control sits
	// in front of the server; a forged header must never make a
	// remote caller look local.
	TrustProxy bool `yaml:"trust_proxy"`
}

// AuditConfig configures the audit trail.
type AuditConfig struct {
	// RetentionDays is how long audit events are kept before the
	// daily prune removes them.
	RetentionDays int `yaml:"retention_days"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// DefaultListen is loopback-only on the latchkey port.
const DefaultListen = "127.0.0.1:4770"

// Default returns the default configuration. Every field is
// populated; loading a config file overlays it.
func Default() *Config {
	return &Config{
		Listen:   DefaultListen,
		StateDir: defaultStateDir(),
		Auth:     AuthConfig{TokenTTLDays: 365},
		Store:    StoreConfig{ReloadBeforeRead: true},
		HTTP:     HTTPConfig{TrustProxy: false},
		Audit:    AuditConfig{RetentionDays: 90},
		Log:      LogConfig{Level: "info"},
	}
}

func defaultStateDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".latchkey")
}

// DefaultPath returns the discovery location for the config file,
// <state-dir>/config.yaml under the default state directory.
func DefaultPath() string {
	return filepath.Join(defaultStateDir(), "config.yaml")
}

// Load resolves and loads the configuration.
//
// An explicit path (flag or LATCHKEY_CONFIG) must exist. The
// discovered default may be absent, in which case the returned
// config is Default() with variables expanded.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = os.Getenv("LATCHKEY_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// Fresh install: defaults only.
	case err != nil:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// string fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.StateDir = expandVars(c.StateDir, vars)
	c.Listen = expandVars(c.Listen, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Validate checks the configuration, aggregating every problem.
func (c *Config) Validate() error {
	var errs []error

	if c.Listen == "" {
		errs = append(errs, fmt.Errorf("listen is required"))
	} else if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		errs = append(errs, fmt.Errorf("listen %q is not host:port: %w", c.Listen, err))
	}

	if c.StateDir == "" {
		errs = append(errs, fmt.Errorf("state_dir is required"))
	}

	if c.Auth.TokenTTLDays <= 0 {
		errs = append(errs, fmt.Errorf("auth.token_ttl_days must be positive, got %d", c.Auth.TokenTTLDays))
	}

	if c.Audit.RetentionDays <= 0 {
		errs = append(errs, fmt.Errorf("audit.retention_days must be positive, got %d", c.Audit.RetentionDays))
	}

	if !slices.Contains(validLogLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of %v, got %q", validLogLevels, c.Log.Level))
	}

	return errors.Join(errs...)
}

// LogLevel translates the configured level string. Call Validate
// first; unrecognized strings fall back to info.
func (c *Config) LogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// TokenTTL returns the configured token validity as a duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLDays) * 24 * time.Hour
}

// AuditRetention returns the configured audit retention as a duration.
func (c *Config) AuditRetention() time.Duration {
	return time.Duration(c.Audit.RetentionDays) * 24 * time.Hour
}

// SnapshotPath is the state snapshot file under the state directory.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.StateDir, "state.json")
}

// AuditPath is the audit database file under the state directory.
func (c *Config) AuditPath() string {
	return filepath.Join(c.StateDir, "audit.db")
}

// SessionPath is the CLI's cached-token file under the state
// directory.
func (c *Config) SessionPath() string {
	return filepath.Join(c.StateDir, "session.json")
}

// EnsureStateDir creates the state directory. Mode 0700: the signing
// secret lives inside.
func (c *Config) EnsureStateDir() error {
	if err := os.MkdirAll(c.StateDir, 0o700); err != nil {
		return fmt.Errorf("creating state dir %s: %w", c.StateDir, err)
	}
	return nil
}

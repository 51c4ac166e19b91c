// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Listen != "127.0.0.1:4770" {
		t.Errorf("Listen = %q, want loopback default", cfg.Listen)
	}
	if !strings.HasSuffix(cfg.StateDir, ".latchkey") {
		t.Errorf("StateDir = %q, want ~/.latchkey", cfg.StateDir)
	}
	if cfg.Auth.TokenTTLDays != 365 {
		t.Errorf("TokenTTLDays = %d, want 365", cfg.Auth.TokenTTLDays)
	}
	if !cfg.Store.ReloadBeforeRead {
		t.Error("ReloadBeforeRead should default on")
	}
	if cfg.HTTP.TrustProxy {
		t.Error("TrustProxy should default off")
	}
	if cfg.Audit.RetentionDays != 90 {
		t.Errorf("RetentionDays = %d, want 90", cfg.Audit.RetentionDays)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoadExplicitPath(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `
listen: "0.0.0.0:9000"
state_dir: /srv/latchkey
auth:
  token_ttl_days: 30
store:
  reload_before_read: false
http:
  trust_proxy: true
audit:
  retention_days: 7
log:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Listen != "0.0.0.0:9000" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.StateDir != "/srv/latchkey" {
		t.Errorf("StateDir = %q", cfg.StateDir)
	}
	if cfg.Auth.TokenTTLDays != 30 {
		t.Errorf("TokenTTLDays = %d", cfg.Auth.TokenTTLDays)
	}
	if cfg.Store.ReloadBeforeRead {
		t.Error("reload_before_read: false was not applied")
	}
	if !cfg.HTTP.TrustProxy {
		t.Error("trust_proxy: true was not applied")
	}
	if cfg.Audit.RetentionDays != 7 {
		t.Errorf("RetentionDays = %d", cfg.Audit.RetentionDays)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("listen: \"127.0.0.1:5000\"\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Listen != "127.0.0.1:5000" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	// Everything the file is silent on keeps its default.
	if cfg.Auth.TokenTTLDays != 365 || !cfg.Store.ReloadBeforeRead || cfg.Log.Level != "info" {
		t.Errorf("defaults were lost: %+v", cfg)
	}
}

func TestLoadExplicitPathMustExist(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load with a missing explicit path should fail")
	}
}

func TestLoadEnvVarPath(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("log:\n  level: warn\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("LATCHKEY_CONFIG", configPath)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn from LATCHKEY_CONFIG file", cfg.Log.Level)
	}

	// The env var is explicit intent: pointing it at nothing is an error.
	t.Setenv("LATCHKEY_CONFIG", filepath.Join(t.TempDir(), "gone.yaml"))
	if _, err := Load(""); err == nil {
		t.Fatal("Load with a missing LATCHKEY_CONFIG path should fail")
	}
}

func TestLoadMissingDiscoveredFileUsesDefaults(t *testing.T) {
	// Point discovery at an empty home so <state-dir>/config.yaml
	// does not exist.
	t.Setenv("LATCHKEY_CONFIG", "")
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.TokenTTLDays != 365 {
		t.Errorf("TokenTTLDays = %d, want default", cfg.Auth.TokenTTLDays)
	}
}

func TestLoadExpandsVariables(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("LATCHKEY_BIND", "")

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := "state_dir: ${HOME}/latchkey-state\nlisten: \"${LATCHKEY_BIND:-127.0.0.1}:4770\"\n"
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StateDir != filepath.Join(home, "latchkey-state") {
		t.Errorf("StateDir = %q, want ${HOME} expanded", cfg.StateDir)
	}
	if cfg.Listen != "127.0.0.1:4770" {
		t.Errorf("Listen = %q, want ${VAR:-default} fallback", cfg.Listen)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/latchkey",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/latchkey",
		},
		{
			input:    "${MISSING:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "port only listen is fine",
			modify: func(c *Config) {
				c.Listen = ":4770"
			},
			wantErr: false,
		},
		{
			name: "empty listen",
			modify: func(c *Config) {
				c.Listen = ""
			},
			wantErr: true,
		},
		{
			name: "listen without port",
			modify: func(c *Config) {
				c.Listen = "127.0.0.1"
			},
			wantErr: true,
		},
		{
			name: "empty state dir",
			modify: func(c *Config) {
				c.StateDir = ""
			},
			wantErr: true,
		},
		{
			name: "zero token ttl",
			modify: func(c *Config) {
				c.Auth.TokenTTLDays = 0
			},
			wantErr: true,
		},
		{
			name: "negative retention",
			modify: func(c *Config) {
				c.Audit.RetentionDays = -1
			},
			wantErr: true,
		},
		{
			name: "unknown log level",
			modify: func(c *Config) {
				c.Log.Level = "verbose"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAggregatesAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Listen = ""
	cfg.Auth.TokenTTLDays = 0
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate: expected error")
	}
	for _, want := range []string{"listen", "token_ttl_days", "log.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	cfg.Auth.TokenTTLDays = 2
	cfg.Audit.RetentionDays = 3

	if got := cfg.TokenTTL(); got != 48*time.Hour {
		t.Errorf("TokenTTL = %v, want 48h", got)
	}
	if got := cfg.AuditRetention(); got != 72*time.Hour {
		t.Errorf("AuditRetention = %v, want 72h", got)
	}
}

func TestStatePaths(t *testing.T) {
	cfg := Default()
	cfg.StateDir = "/srv/latchkey"

	if got := cfg.SnapshotPath(); got != "/srv/latchkey/state.json" {
		t.Errorf("SnapshotPath = %q", got)
	}
	if got := cfg.AuditPath(); got != "/srv/latchkey/audit.db" {
		t.Errorf("AuditPath = %q", got)
	}
	if got := cfg.SessionPath(); got != "/srv/latchkey/session.json" {
		t.Errorf("SessionPath = %q", got)
	}
}

func TestEnsureStateDir(t *testing.T) {
	cfg := Default()
	cfg.StateDir = filepath.Join(t.TempDir(), "latchkey")

	if err := cfg.EnsureStateDir(); err != nil {
		t.Fatalf("EnsureStateDir: %v", err)
	}
	info, err := os.Stat(cfg.StateDir)
	if err != nil {
		t.Fatalf("state dir not created: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("state dir is not a directory")
	}
	if info.Mode().Perm() != 0o700 {
		t.Errorf("state dir mode = %o, want 0700", info.Mode().Perm())
	}
}

// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the latchkey server configuration.
//
// Configuration is a single YAML file resolved in this order: an
// explicit --config flag path, the LATCHKEY_CONFIG environment
// variable, then <state-dir>/config.yaml. The first two are explicit
// intent and must exist; the discovered default may be absent, so a
// fresh install runs entirely on [Default] values. Environment
// variables never override individual config values.
//
// Variable expansion is performed on string fields after loading:
// ${HOME} and ${VAR:-default} patterns are expanded, nothing else.
//
// Key exports:
//
//   - [Config] -- listen address, state dir, auth/store/http/audit/log sections
//   - [Default] -- fully-populated defaults (loopback listen, ~/.latchkey)
//   - [Load] -- the single entry point for loading
//
// This package depends on no other latchkey packages.
package config

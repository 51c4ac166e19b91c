// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

// Package auditlog persists the authentication audit trail.
//
// Every decision the gateway makes (codes verified or rejected,
// requests created and resolved, devices revoked) lands here as one
// [Event] row in a SQLite database, separate from the snapshot that
// holds live auth state. The trail is an observation log, not a
// ledger the gateway consults: nothing reads it back to make a
// decision, and a write failure must never turn into an auth failure
// (callers log and move on).
//
// Events are pruned by age, not by count. The store never updates or
// rewrites rows; the only mutations are INSERT and the retention
// DELETE.
package auditlog

// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

// Package authstore persists the authentication state: the device
// registry, the pending-request queue, the legacy revoked-token list,
// and the signing secret. Everything lives in one JSON snapshot file
// that is loaded at startup and rewritten atomically (temp file, fsync,
// rename, fsync parent directory) after every mutation. Mutation
// frequency is human-paced, so whole-snapshot rewrites are cheap and
// keep recovery trivial: the file on disk is always a complete,
// parseable state.
//
// The Store is an explicit object — construct one with Open and pass
// it to whoever needs it. There is no package-level state, so tests
// run against isolated stores in temp directories.
//
// # Read-time side effects
//
// Pending requests expire lazily: there is no timer. Request,
// PendingRequests, and CreateRequest first flip any pending request
// older than PendingWindow to expired, and the list/create paths also
// purge resolved requests older than ResolvedRetention. These methods
// therefore mutate and persist state as a side effect of reading it.
// Callers get statuses that are correct as of the call; nothing is
// ever reported pending after its window has passed.
//
// # Multi-writer accommodation
//
// With ReloadBeforeRead set, every operation re-stats the snapshot
// file and reloads it when another process has rewritten it. That is
// a development-topology accommodation (two processes sharing one
// state file) and not a concurrency guarantee: concurrent writers can
// still lose updates between reload and write. Production runs one
// process per state file.
package authstore

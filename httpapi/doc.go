// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpapi is the HTTP transport for the gateway.
//
// The package owns everything transport-shaped and nothing
// policy-shaped: route patterns, bearer extraction, client-address
// classification (lib/netutil), per-address rate limiting on the
// code-bearing endpoints, the 64 KiB body cap, and the JSON envelope.
// Every authentication decision is delegated to lib/gateway, and the
// gateway's error taxonomy maps onto statuses in exactly one place:
// unauthenticated 401, forbidden 403, not found 404, invalid input
// 400, anything else 500 with the cause logged rather than leaked.
//
// Failure bodies are {"error": "..."}; success bodies are plain
// objects specific to each operation. One asymmetry: a check-status
// poll for an unknown or purged request answers 404 with
// {"status": "not_found"} so pollers can switch on the status field
// alone.
//
// [Server] implements http.Handler for tests and composes, and
// [Server.Serve] runs the full lifecycle: bind, signal [Server.Ready],
// serve until the context is cancelled, then drain gracefully.
package httpapi

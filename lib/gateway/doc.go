// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

// Package gateway implements the per-request authentication and
// authorization decisions. It is transport-independent: the HTTP
// layer extracts a bearer token, a client address, and a locality
// verdict, and every decision below that line happens here.
//
// # Trust model
//
// Latchkey serves exactly one human. Two tiers of trust exist:
//
//   - A caller on the server's own machine has physical access and is
//     the operator by definition. Local callers may authenticate
//     directly with the access code, or with no code at all through
//     the auto-auth path, where localhost origin alone is a
//     sufficient trust signal. Local callers also hold the approval
//     powers: listing, approving, and denying pending requests, and
//     rotating the secret.
//
//   - A caller anywhere else must know the access code to file a
//     pending request, and then wait for the operator to approve it
//     from the trusted machine. A leaked code alone never grants
//     remote access; it only lets someone knock.
//
// Because every enrolled device belongs to the same human, any valid
// token may rename any device (matching the companion UI, where the
// devices page manages all devices from whichever device is in hand).
// Revocation is stricter only in that a device cannot revoke itself
// through the admin path — that is what logout is for, and the
// distinction keeps "remove this other device" from being confused
// with "disconnect me".
//
// # Failure discipline
//
// Every operation fails closed into one of four caller-visible
// sentinel errors: ErrUnauthenticated, ErrForbidden, ErrNotFound,
// ErrInvalidInput. Storage problems surface as wrapped infrastructure
// errors distinct from all four. A token that is missing, malformed,
// forged, expired, revoked, or orphaned (its device record deleted)
// is uniformly ErrUnauthenticated — the caller learns nothing about
// which check failed.
package gateway

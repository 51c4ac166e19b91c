// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

// Package devicetoken implements Ed25519-signed bearer tokens that
// bind an authenticated device to its registry record.
//
// The gateway mints one token per successful authentication (local
// code entry, local auto-auth, or remote approval). Clients present
// the token on every subsequent request; verification is purely
// cryptographic plus a registry existence check, so deleting the
// device record invalidates every token ever minted for it.
//
// # Wire format
//
// A token is the CBOR-encoded payload followed by a 64-byte Ed25519
// signature over the payload bytes, base64url-encoded (no padding)
// for transport inside JSON and Authorization headers:
//
//	base64url( [CBOR payload] [64-byte Ed25519 signature] )
//
// The split point is always len(raw) - 64. No header and no algorithm
// field — the algorithm is fixed and the signature size is constant.
//
// The payload is signed, not encrypted: anyone holding a token can
// read the device ID and timestamps inside it. That is an accepted
// property — device IDs are opaque handles, not secrets, and the
// token's value is its signature.
//
// Verification fails closed. Malformed encoding, a wrong or truncated
// signature, an unparseable payload, and an expired timestamp all
// produce an error; no partial result is ever returned.
package devicetoken

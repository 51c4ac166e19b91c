// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

// Package accesscode derives the 6-digit access code shown to the
// operator from the signing secret.
//
// The code is the single shared human-readable credential: typed into
// the local browser for bootstrap and into remote devices when filing
// an access request. It is a password, not a nonce — it has no expiry
// of its own and lives exactly as long as the secret it is derived
// from. Rotating the secret changes the code.
package accesscode

import (
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	"github.com/zeebo/blake3"
)

// Digits is the length of the displayed code.
const Digits = 6

// modulus folds the digest into the displayable range.
const modulus = 1_000_000

// codeDomainKey is the BLAKE3 keyed-hash domain for access-code
// derivation. A fixed constant — changing it changes every displayed
// code. The byte values are the ASCII encoding of the domain name,
// zero-padded to 32 bytes, so the key is inspectable in hex dumps
// without sacrificing any cryptographic property.
var codeDomainKey = [32]byte{
	'l', 'a', 't', 'c', 'h', 'k', 'e', 'y', '.', 'a', 'c', 'c', 'e', 's', 's', '.',
	'c', 'o', 'd', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// FromSecret derives the 6-digit code for a signing secret: the first
// eight bytes of the domain-keyed BLAKE3 digest, big-endian, reduced
// mod 1,000,000 and zero-padded. Deterministic: the same secret always
// displays the same code.
func FromSecret(secret []byte) string {
	hasher, err := blake3.NewKeyed(codeDomainKey[:])
	if err != nil {
		panic("accesscode: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(secret)
	digest := hasher.Sum(nil)

	value := binary.BigEndian.Uint64(digest[:8]) % modulus
	return fmt.Sprintf("%0*d", Digits, value)
}

// Match reports whether a submitted code matches the secret's code.
// The comparison is constant-time; a length mismatch rejects without
// leaking anything beyond the length, which is public anyway.
func Match(secret []byte, code string) bool {
	want := FromSecret(secret)
	return subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1
}

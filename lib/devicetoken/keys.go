// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package devicetoken

import (
	"crypto/ed25519"
	"fmt"
)

// SeedSize is the number of signing-secret bytes consumed when
// deriving the token keypair.
const SeedSize = ed25519.SeedSize // 32 bytes

// KeypairFromSeed derives the token-signing Ed25519 keypair from the
// persisted signing secret. The derivation is deterministic: the same
// secret always yields the same keypair, so tokens minted before a
// restart verify after it. Rotating the secret yields a new keypair
// and strands every outstanding token.
//
// Secrets longer than SeedSize are accepted; only the first SeedSize
// bytes feed the derivation.
func KeypairFromSeed(seed []byte) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	if len(seed) < SeedSize {
		return nil, nil, fmt.Errorf("devicetoken: signing secret has %d bytes, need at least %d", len(seed), SeedSize)
	}
	private := ed25519.NewKeyFromSeed(seed[:SeedSize])
	public := private.Public().(ed25519.PublicKey)
	return public, private, nil
}

// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package authstore

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// secretSize is the length of a freshly generated signing secret.
// Verification accepts anything at least this long.
const secretSize = 32

// newSigningSecret returns a fresh cryptographically random secret.
func newSigningSecret() ([]byte, error) {
	secret := make([]byte, secretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("authstore: generating signing secret: %w", err)
	}
	return secret, nil
}

// SigningSeed returns a copy of the current signing secret.
func (s *Store) SigningSeed() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeReloadLocked()
	seed := make([]byte, len(s.secret))
	copy(seed, s.secret)
	return seed
}

// RevokedTokens returns the legacy token denylist. Nothing appends to
// it anymore, but entries carried over from old snapshots are still
// honored at validation.
func (s *Store) RevokedTokens() []string {
	var revoked []string
	s.view(func(snap *snapshot) {
		revoked = make([]string, len(snap.RevokedTokens))
		copy(revoked, snap.RevokedTokens)
	})
	return revoked
}

// RotateSecret replaces the signing secret with a fresh one and
// persists it. Every outstanding token and the displayed access code
// are invalidated; this is an explicit operator action and never
// happens implicitly. The cached secret and the snapshot swap under
// one lock hold so no caller can observe them disagreeing.
func (s *Store) RotateSecret() ([]byte, error) {
	secret, err := newSigningSecret()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeReloadLocked()

	working := s.state.clone()
	working.SigningSecret = hex.EncodeToString(secret)
	if err := s.writeLocked(working); err != nil {
		return nil, err
	}
	s.state = working
	s.secret = secret

	seed := make([]byte, len(secret))
	copy(seed, secret)
	return seed, nil
}

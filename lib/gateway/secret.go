// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"fmt"

	"github.com/latchkey-dev/latchkey/lib/accesscode"
	"github.com/latchkey-dev/latchkey/lib/auditlog"
)

// AccessCode returns the current six-digit code for display. Any
// enrolled device may ask; the code is what you hand to the next
// device you want to let in.
func (g *Gateway) AccessCode(token string) (string, error) {
	if _, err := g.authenticate(token); err != nil {
		return "", err
	}
	return accesscode.FromSecret(g.store.SigningSeed()), nil
}

// RotateSecret replaces the signing secret. Everything derived from
// it goes at once: every outstanding token stops verifying and the
// displayed access code changes. Local origin required — this is the
// panic button, and the panic button lives on the trusted machine.
func (g *Gateway) RotateSecret(token string, sourceIsLocal bool) (string, error) {
	caller, err := g.authenticate(token)
	if err != nil {
		return "", err
	}
	if !sourceIsLocal {
		return "", fmt.Errorf("%w: the secret is rotated from this machine only", ErrForbidden)
	}

	seed, err := g.store.RotateSecret()
	if err != nil {
		return "", fmt.Errorf("gateway: rotating secret: %w", err)
	}

	g.logger.Info("signing secret rotated", "rotated_by", caller.ID)
	g.record(auditlog.Event{
		Kind:     auditlog.KindSecretRotated,
		DeviceID: caller.ID,
	})
	return accesscode.FromSecret(seed), nil
}

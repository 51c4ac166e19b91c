// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/latchkey-dev/latchkey/lib/auditlog"
	"github.com/latchkey-dev/latchkey/lib/authstore"
	"github.com/latchkey-dev/latchkey/lib/clock"
	"github.com/latchkey-dev/latchkey/lib/devicetoken"
)

// The four caller-visible failure classes. Transports map these to
// status codes; everything else that comes out of a gateway operation
// is an infrastructure error.
var (
	ErrUnauthenticated = errors.New("gateway: unauthenticated")
	ErrForbidden       = errors.New("gateway: forbidden")
	ErrNotFound        = errors.New("gateway: not found")
	ErrInvalidInput    = errors.New("gateway: invalid input")
)

// auditTimeout bounds how long a decision path will wait on the audit
// trail before giving up on the write.
const auditTimeout = 5 * time.Second

// Recorder receives audit events. *auditlog.Store implements it. The
// gateway treats recording as best-effort: failures are logged, never
// propagated into the auth decision.
type Recorder interface {
	Record(ctx context.Context, event auditlog.Event) error
}

// Config assembles a Gateway.
type Config struct {
	// Store holds devices, pending requests, and the signing secret.
	// Required.
	Store *authstore.Store

	// Clock drives token lifetimes and last-seen stamps. Required.
	Clock clock.Clock

	// Logger receives decision logs. Required.
	Logger *slog.Logger

	// Audit receives one event per auth decision. Optional; nil
	// disables the trail.
	Audit Recorder

	// TokenTTL is the validity window for minted tokens. Defaults to
	// devicetoken.DefaultTTL.
	TokenTTL time.Duration
}

// Gateway makes every authentication and authorization decision. It
// is transport-independent and safe for concurrent use; all shared
// state lives in the store.
type Gateway struct {
	store    *authstore.Store
	clock    clock.Clock
	logger   *slog.Logger
	audit    Recorder
	tokenTTL time.Duration
}

// New assembles a Gateway. Panics if a required field is missing —
// this is a wiring error, not a runtime condition.
func New(cfg Config) *Gateway {
	if cfg.Store == nil {
		panic("gateway: Store is required")
	}
	if cfg.Clock == nil {
		panic("gateway: Clock is required")
	}
	if cfg.Logger == nil {
		panic("gateway: Logger is required")
	}

	ttl := cfg.TokenTTL
	if ttl == 0 {
		ttl = devicetoken.DefaultTTL
	}

	return &Gateway{
		store:    cfg.Store,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		audit:    cfg.Audit,
		tokenTTL: ttl,
	}
}

// authenticate resolves a bearer token to its device record. Every
// failure mode (missing, malformed, forged, expired, revoked, or
// orphaned token) comes back as ErrUnauthenticated; the specific
// cause is logged at debug level only.
func (g *Gateway) authenticate(token string) (authstore.Device, error) {
	if token == "" {
		return authstore.Device{}, fmt.Errorf("%w: no token presented", ErrUnauthenticated)
	}

	public, _, err := g.keys()
	if err != nil {
		return authstore.Device{}, err
	}

	claims, err := devicetoken.VerifyAt(public, token, g.clock.Now())
	if err != nil {
		g.logger.Debug("token rejected", "error", err)
		return authstore.Device{}, fmt.Errorf("%w: token rejected", ErrUnauthenticated)
	}

	// Legacy denylist from old snapshots. Nothing appends to it, but
	// membership still means rejection.
	for _, revoked := range g.store.RevokedTokens() {
		if token == revoked {
			g.logger.Debug("token rejected", "error", "on legacy revocation list")
			return authstore.Device{}, fmt.Errorf("%w: token rejected", ErrUnauthenticated)
		}
	}

	device, err := g.store.Device(claims.DeviceID)
	if errors.Is(err, authstore.ErrDeviceNotFound) {
		// Valid signature, deleted device: tokens die with the
		// device record.
		g.logger.Debug("token rejected", "error", "device no longer registered", "device_id", claims.DeviceID)
		return authstore.Device{}, fmt.Errorf("%w: token rejected", ErrUnauthenticated)
	}
	if err != nil {
		return authstore.Device{}, fmt.Errorf("gateway: loading device: %w", err)
	}
	return device, nil
}

// keys derives the token keypair from the current signing seed. Done
// per call rather than cached: rotation and reload-before-read both
// swap the seed underneath a running gateway.
func (g *Gateway) keys() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	public, private, err := devicetoken.KeypairFromSeed(g.store.SigningSeed())
	if err != nil {
		return nil, nil, fmt.Errorf("gateway: deriving keypair: %w", err)
	}
	return public, private, nil
}

// mintToken signs a fresh token for the device.
func (g *Gateway) mintToken(deviceID string) (string, error) {
	_, private, err := g.keys()
	if err != nil {
		return "", err
	}
	encoded, err := devicetoken.Mint(private, devicetoken.New(deviceID, g.clock.Now(), g.tokenTTL))
	if err != nil {
		return "", fmt.Errorf("gateway: minting token: %w", err)
	}
	return encoded, nil
}

// newDevice assembles a device record from the client-declared info.
// The id and timestamps are the gateway's; everything else is taken
// as declared.
func (g *Gateway) newDevice(info authstore.DeviceInfo, ip string, isHost bool) (authstore.Device, error) {
	id, err := newID()
	if err != nil {
		return authstore.Device{}, fmt.Errorf("gateway: minting device id: %w", err)
	}
	now := g.clock.Now().UnixMilli()
	return authstore.Device{
		ID:           id,
		Name:         info.Name,
		Platform:     info.Platform,
		BrowserLabel: info.BrowserLabel,
		CreatedAt:    now,
		LastSeenAt:   now,
		IP:           ip,
		IsHost:       isHost,
	}, nil
}

// newID mints a 16-byte crypto-random identifier, lowercase hex.
// Device ids and request ids share this format.
func newID() (string, error) {
	var buffer [16]byte
	if _, err := rand.Read(buffer[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buffer[:]), nil
}

// record appends an event to the audit trail. Best-effort: the trail
// observes decisions, it never gates them, so failures are logged and
// swallowed. The context is detached from the request: a client
// hanging up must not lose the record of its own attempt.
func (g *Gateway) record(event auditlog.Event) {
	if g.audit == nil {
		return
	}
	if event.Time == 0 {
		event.Time = g.clock.Now().UnixMilli()
	}

	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	if err := g.audit.Record(ctx, event); err != nil {
		g.logger.Warn("failed to record audit event",
			"error", err,
			"kind", event.Kind,
			"device_id", event.DeviceID,
			"request_id", event.RequestID,
		)
	}
}

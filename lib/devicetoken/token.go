// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package devicetoken

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/latchkey-dev/latchkey/lib/codec"
)

// signatureSize is the fixed size of an Ed25519 signature.
const signatureSize = ed25519.SignatureSize // 64 bytes

// DefaultTTL is the validity window for newly minted tokens. Devices
// are expected to re-authenticate roughly once a year; revocation is
// handled by deleting the device record, not by short expiry.
const DefaultTTL = 365 * 24 * time.Hour

// Token is the CBOR-encoded payload of a signed device token.
type Token struct {
	// DeviceID is the registry ID of the device this token was
	// minted for. Verification succeeds only if the record still
	// exists, so a device deletion orphans every token holding its
	// ID.
	DeviceID string `cbor:"1,keyasint"`

	// IssuedAt is a Unix timestamp (seconds) of when the token was
	// minted.
	IssuedAt int64 `cbor:"2,keyasint"`

	// ExpiresAt is a Unix timestamp (seconds) after which the token
	// is no longer valid.
	ExpiresAt int64 `cbor:"3,keyasint"`
}

// Errors returned by Verify and related functions.
var (
	ErrMalformedToken   = errors.New("devicetoken: malformed token encoding")
	ErrTokenTooShort    = errors.New("devicetoken: token too short for signature")
	ErrInvalidSignature = errors.New("devicetoken: invalid Ed25519 signature")
	ErrTokenExpired     = errors.New("devicetoken: token has expired")
)

// encoding is the transport encoding for token bytes: URL-safe
// base64 without padding, safe inside JSON strings and Authorization
// headers.
var encoding = base64.RawURLEncoding

// New builds a token payload for deviceID valid from now for ttl.
func New(deviceID string, now time.Time, ttl time.Duration) *Token {
	return &Token{
		DeviceID:  deviceID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
}

// Mint signs a token payload and returns the encoded wire string:
// base64url of the CBOR payload followed by the 64-byte Ed25519
// signature.
func Mint(privateKey ed25519.PrivateKey, token *Token) (string, error) {
	payload, err := codec.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("devicetoken: encoding token payload: %w", err)
	}

	signature := ed25519.Sign(privateKey, payload)

	raw := make([]byte, len(payload)+signatureSize)
	copy(raw, payload)
	copy(raw[len(payload):], signature)

	return encoding.EncodeToString(raw), nil
}

// Verify decodes an encoded token, verifies the Ed25519 signature,
// CBOR-decodes the payload, and checks expiry. Returns the decoded
// Token on success.
//
// The caller must additionally confirm the device record still exists
// in the registry — that check is what makes revocation effective.
func Verify(publicKey ed25519.PublicKey, encoded string) (*Token, error) {
	return VerifyAt(publicKey, encoded, time.Now())
}

// VerifyAt is like Verify but accepts an explicit time for expiry
// checks. This supports deterministic testing.
func VerifyAt(publicKey ed25519.PublicKey, encoded string, now time.Time) (*Token, error) {
	raw, err := encoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if len(raw) <= signatureSize {
		return nil, ErrTokenTooShort
	}

	splitPoint := len(raw) - signatureSize
	payload := raw[:splitPoint]
	signature := raw[splitPoint:]

	if !ed25519.Verify(publicKey, payload, signature) {
		return nil, ErrInvalidSignature
	}

	var token Token
	if err := codec.Unmarshal(payload, &token); err != nil {
		return nil, fmt.Errorf("%w: decoding payload: %v", ErrMalformedToken, err)
	}
	if token.DeviceID == "" {
		return nil, fmt.Errorf("%w: empty device ID", ErrMalformedToken)
	}

	if now.Unix() >= token.ExpiresAt {
		return nil, ErrTokenExpired
	}

	return &token, nil
}

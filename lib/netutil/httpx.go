// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides network origin classification and bounded
// HTTP I/O helpers.
//
// Origin classification (IsLocalHost, ClientAddr) decides whether a
// request reached the server from the machine it runs on. That
// decision gates the high-trust authentication paths, so the rules are
// narrow: loopback addresses and the literal "localhost", nothing
// else.
//
// HTTP response helpers (ReadResponse, DecodeResponse, ErrorBody)
// bound all response body reads at MaxResponseSize so a misbehaving
// server cannot run the client out of memory.
package netutil

import (
	"encoding/json"
	"fmt"
	"io"
)

// MaxResponseSize bounds JSON API response body reads: 8 MB. Every
// legitimate response in this API is a few kilobytes; the limit only
// exists to stop a pathological response from exhausting memory.
const MaxResponseSize int64 = 8 << 20

// ReadResponse reads a JSON API response body up to MaxResponseSize
// bytes. Use instead of io.ReadAll when reading HTTP response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// DecodeResponse reads a JSON API response body (up to MaxResponseSize
// bytes) and JSON-decodes it into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}

// ErrorBody reads an HTTP error response body and returns it as a
// string for diagnostic error messages. Read errors are ignored; a
// partial or empty body is still useful in an error message.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	return string(data)
}

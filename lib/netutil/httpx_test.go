// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"strings"
	"testing"
)

func TestDecodeResponse(t *testing.T) {
	var out struct {
		Code string `json:"code"`
	}
	if err := DecodeResponse(strings.NewReader(`{"code":"042919"}`), &out); err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if out.Code != "042919" {
		t.Fatalf("Code = %q, want 042919", out.Code)
	}
}

func TestDecodeResponseMalformed(t *testing.T) {
	var out map[string]any
	if err := DecodeResponse(strings.NewReader("{nope"), &out); err == nil {
		t.Fatal("expected decode error for malformed JSON")
	}
}

func TestErrorBodyTruncates(t *testing.T) {
	huge := strings.NewReader(strings.Repeat("x", int(MaxResponseSize)+1024))
	body := ErrorBody(huge)
	if int64(len(body)) != MaxResponseSize {
		t.Fatalf("ErrorBody length = %d, want %d", len(body), MaxResponseSize)
	}
}

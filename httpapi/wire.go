// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"github.com/latchkey-dev/latchkey/lib/auditlog"
	"github.com/latchkey-dev/latchkey/lib/authstore"
)

// errorResponse is the uniform failure envelope.
type errorResponse struct {
	Error string `json:"error"`
}

// codeAuthRequest is the body of verify-code and request-access:
// the access code plus the client's self-description.
type codeAuthRequest struct {
	Code   string               `json:"code"`
	Device authstore.DeviceInfo `json:"device"`
}

// localAuthRequest is the body of local auto-auth.
type localAuthRequest struct {
	Device authstore.DeviceInfo `json:"device"`
}

// requestAccessResponse hands the requester its polling capability.
type requestAccessResponse struct {
	RequestID string `json:"requestId"`
}

// statusResponse answers a check-status poll. DeviceID and Token are
// present only once the request is approved.
type statusResponse struct {
	Status   string `json:"status"`
	DeviceID string `json:"deviceId,omitempty"`
	Token    string `json:"token,omitempty"`
}

// validateResponse confirms a live token.
type validateResponse struct {
	Valid    bool             `json:"valid"`
	DeviceID string           `json:"deviceId"`
	Device   authstore.Device `json:"device"`
}

// successResponse acknowledges a side-effect-only operation.
type successResponse struct {
	Success bool `json:"success"`
}

// deviceResponse acknowledges an operation that returns the affected
// device (rename, approve).
type deviceResponse struct {
	Success bool             `json:"success"`
	Device  authstore.Device `json:"device"`
}

// revokeOthersResponse reports how many devices were removed.
type revokeOthersResponse struct {
	Success      bool `json:"success"`
	RevokedCount int  `json:"revokedCount"`
}

// renameRequest is the body of a device rename.
type renameRequest struct {
	Name string `json:"name"`
}

// pendingResponse lists outstanding approval requests.
type pendingResponse struct {
	Requests []authstore.PendingRequest `json:"requests"`
}

// accessCodeResponse carries the current (or freshly rotated) code.
type accessCodeResponse struct {
	Code string `json:"code"`
}

// auditResponse lists recent audit events, newest first.
type auditResponse struct {
	Events []auditlog.Event `json:"events"`
}

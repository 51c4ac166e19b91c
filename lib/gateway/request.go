// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"errors"
	"fmt"

	"github.com/latchkey-dev/latchkey/lib/accesscode"
	"github.com/latchkey-dev/latchkey/lib/auditlog"
	"github.com/latchkey-dev/latchkey/lib/authstore"
)

// RequestAccess files a pending request for a caller that knows the
// access code but is not on the trusted machine. No device or token
// is created here — only an entry for the operator to approve or
// deny. The returned request id is what the caller polls with.
func (g *Gateway) RequestAccess(code string, info authstore.DeviceInfo, ip string) (authstore.PendingRequest, error) {
	if !accesscode.Match(g.store.SigningSeed(), code) {
		g.logger.Warn("access code rejected on request", "ip", ip)
		g.record(auditlog.Event{Kind: auditlog.KindCodeRejected, IP: ip})
		return authstore.PendingRequest{}, fmt.Errorf("%w: wrong access code", ErrUnauthenticated)
	}

	id, err := newID()
	if err != nil {
		return authstore.PendingRequest{}, fmt.Errorf("gateway: minting request id: %w", err)
	}
	request, err := g.store.CreateRequest(id, info, ip)
	if err != nil {
		return authstore.PendingRequest{}, fmt.Errorf("gateway: filing request: %w", err)
	}

	g.logger.Info("access requested",
		"request_id", request.ID,
		"name", info.Name,
		"ip", ip,
	)
	g.record(auditlog.Event{
		Kind:      auditlog.KindRequestCreated,
		RequestID: request.ID,
		IP:        ip,
		Detail:    info.Name,
	})
	return request, nil
}

// CheckStatus reports where a request stands. No token is required:
// knowing the crypto-random request id is the capability, and the
// poller is exactly the party that was handed it. An approved request
// keeps answering with its token until garbage collection, so a
// poller that missed a cycle can still adopt it.
func (g *Gateway) CheckStatus(requestID string) (authstore.PendingRequest, error) {
	request, err := g.store.Request(requestID)
	if errors.Is(err, authstore.ErrRequestNotFound) {
		return authstore.PendingRequest{}, fmt.Errorf("%w: unknown request", ErrNotFound)
	}
	if err != nil {
		return authstore.PendingRequest{}, fmt.Errorf("gateway: reading request: %w", err)
	}
	return request, nil
}

// ListPending returns requests awaiting a decision, newest first.
// Operator surface: requires a valid token and local origin.
func (g *Gateway) ListPending(token string, sourceIsLocal bool) ([]authstore.PendingRequest, error) {
	if _, err := g.authenticate(token); err != nil {
		return nil, err
	}
	if !sourceIsLocal {
		return nil, fmt.Errorf("%w: approvals are managed from this machine only", ErrForbidden)
	}

	pending, err := g.store.PendingRequests()
	if err != nil {
		return nil, fmt.Errorf("gateway: listing requests: %w", err)
	}
	return pending, nil
}

// Approve resolves a pending request in the requester's favor: a
// device record is minted (isHost false — it came in remotely) and a
// token is attached to the request for the poller to collect.
// Approving a request twice never creates a second device; any
// terminal state answers as already processed.
func (g *Gateway) Approve(token string, sourceIsLocal bool, requestID string) (authstore.Device, error) {
	caller, err := g.authenticate(token)
	if err != nil {
		return authstore.Device{}, err
	}
	if !sourceIsLocal {
		return authstore.Device{}, fmt.Errorf("%w: approvals are managed from this machine only", ErrForbidden)
	}

	// Read first for the declared device info. ApproveRequest
	// re-checks pending status atomically, so a racing approve or a
	// lazy expiry between here and there still loses cleanly.
	request, err := g.store.Request(requestID)
	if errors.Is(err, authstore.ErrRequestNotFound) {
		return authstore.Device{}, fmt.Errorf("%w: unknown request", ErrNotFound)
	}
	if err != nil {
		return authstore.Device{}, fmt.Errorf("gateway: reading request: %w", err)
	}
	if request.Status != authstore.StatusPending {
		return authstore.Device{}, fmt.Errorf("%w: request already processed", ErrNotFound)
	}

	device, err := g.newDevice(request.Device, request.IP, false)
	if err != nil {
		return authstore.Device{}, err
	}
	deviceToken, err := g.mintToken(device.ID)
	if err != nil {
		return authstore.Device{}, err
	}

	approved, err := g.store.ApproveRequest(requestID, device, deviceToken)
	if errors.Is(err, authstore.ErrRequestNotFound) || errors.Is(err, authstore.ErrRequestNotPending) {
		return authstore.Device{}, fmt.Errorf("%w: request already processed", ErrNotFound)
	}
	if err != nil {
		return authstore.Device{}, fmt.Errorf("gateway: approving request: %w", err)
	}

	g.logger.Info("request approved",
		"request_id", approved.ID,
		"device_id", device.ID,
		"name", device.Name,
		"approved_by", caller.ID,
	)
	g.record(auditlog.Event{
		Kind:      auditlog.KindRequestApproved,
		RequestID: approved.ID,
		DeviceID:  device.ID,
		IP:        approved.IP,
		Detail:    "approved by " + caller.ID,
	})
	return device, nil
}

// Deny resolves a pending request against the requester. No side
// effect beyond the status flip; the poller sees "denied" until the
// request is garbage collected.
func (g *Gateway) Deny(token string, sourceIsLocal bool, requestID string) error {
	caller, err := g.authenticate(token)
	if err != nil {
		return err
	}
	if !sourceIsLocal {
		return fmt.Errorf("%w: approvals are managed from this machine only", ErrForbidden)
	}

	denied, err := g.store.DenyRequest(requestID)
	if errors.Is(err, authstore.ErrRequestNotFound) {
		return fmt.Errorf("%w: unknown request", ErrNotFound)
	}
	if errors.Is(err, authstore.ErrRequestNotPending) {
		return fmt.Errorf("%w: request already processed", ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("gateway: denying request: %w", err)
	}

	g.logger.Info("request denied",
		"request_id", denied.ID,
		"denied_by", caller.ID,
	)
	g.record(auditlog.Event{
		Kind:      auditlog.KindRequestDenied,
		RequestID: denied.ID,
		IP:        denied.IP,
		Detail:    "denied by " + caller.ID,
	})
	return nil
}

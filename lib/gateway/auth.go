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

// AuthResult is what a successful authentication hands back. DeviceID
// duplicates Device.ID on the wire; clients key their session storage
// off it without digging into the device object.
type AuthResult struct {
	Token    string           `json:"token"`
	DeviceID string           `json:"deviceId"`
	Device   authstore.Device `json:"device"`
}

// VerifyCode authenticates with the six-digit access code. Local
// callers only: from anywhere else the code alone is insufficient
// and the caller is sent to the pending-request flow before the code
// is even compared.
func (g *Gateway) VerifyCode(code string, info authstore.DeviceInfo, sourceIsLocal bool, ip string) (AuthResult, error) {
	if !sourceIsLocal {
		g.record(auditlog.Event{Kind: auditlog.KindCodeRejected, IP: ip, Detail: "code auth from remote origin"})
		return AuthResult{}, fmt.Errorf("%w: access code sign-in is limited to this machine", ErrForbidden)
	}
	if !accesscode.Match(g.store.SigningSeed(), code) {
		g.logger.Warn("access code rejected", "ip", ip)
		g.record(auditlog.Event{Kind: auditlog.KindCodeRejected, IP: ip})
		return AuthResult{}, fmt.Errorf("%w: wrong access code", ErrUnauthenticated)
	}

	result, err := g.createDevice(info, ip, true)
	if err != nil {
		return AuthResult{}, err
	}

	g.logger.Info("device authenticated with access code",
		"device_id", result.DeviceID,
		"name", result.Device.Name,
		"ip", ip,
	)
	g.record(auditlog.Event{
		Kind:     auditlog.KindCodeVerified,
		DeviceID: result.DeviceID,
		IP:       ip,
		Detail:   result.Device.Name,
	})
	return result, nil
}

// LocalAutoAuth authenticates a caller on the trusted machine with no
// code at all. Localhost origin alone is the trust signal: whoever can
// reach the loopback interface already has the machine. This is how
// the CLI and the desktop shell bootstrap.
func (g *Gateway) LocalAutoAuth(info authstore.DeviceInfo, sourceIsLocal bool, ip string) (AuthResult, error) {
	if !sourceIsLocal {
		return AuthResult{}, fmt.Errorf("%w: auto sign-in is limited to this machine", ErrForbidden)
	}

	result, err := g.createDevice(info, ip, false)
	if err != nil {
		return AuthResult{}, err
	}

	g.logger.Info("local device auto-authenticated",
		"device_id", result.DeviceID,
		"name", result.Device.Name,
	)
	g.record(auditlog.Event{
		Kind:     auditlog.KindLocalAuth,
		DeviceID: result.DeviceID,
		IP:       ip,
		Detail:   result.Device.Name,
	})
	return result, nil
}

// createDevice mints the id and token, then persists the device. The
// token is minted first so a signing failure never leaves an orphan
// device record behind.
func (g *Gateway) createDevice(info authstore.DeviceInfo, ip string, isHost bool) (AuthResult, error) {
	device, err := g.newDevice(info, ip, isHost)
	if err != nil {
		return AuthResult{}, err
	}
	token, err := g.mintToken(device.ID)
	if err != nil {
		return AuthResult{}, err
	}
	if err := g.store.CreateDevice(device); err != nil {
		return AuthResult{}, fmt.Errorf("gateway: registering device: %w", err)
	}
	return AuthResult{Token: token, DeviceID: device.ID, Device: device}, nil
}

// Validate checks a bearer token and returns the device it belongs
// to. On success the device's last-seen stamp moves (and its address,
// when the caller supplied one); on failure nothing changes.
func (g *Gateway) Validate(token string, ip string) (authstore.Device, error) {
	device, err := g.authenticate(token)
	if err != nil {
		return authstore.Device{}, err
	}

	touched, err := g.store.TouchDevice(device.ID, ip)
	if errors.Is(err, authstore.ErrDeviceNotFound) {
		return authstore.Device{}, fmt.Errorf("%w: token rejected", ErrUnauthenticated)
	}
	if err != nil {
		return authstore.Device{}, fmt.Errorf("gateway: updating last-seen: %w", err)
	}
	return touched, nil
}

// Logout deletes the caller's own device record, which invalidates
// every token minted for it — validation re-checks device existence.
func (g *Gateway) Logout(token string) (authstore.Device, error) {
	device, err := g.authenticate(token)
	if err != nil {
		return authstore.Device{}, err
	}

	err = g.store.DeleteDevice(device.ID)
	if err != nil && !errors.Is(err, authstore.ErrDeviceNotFound) {
		return authstore.Device{}, fmt.Errorf("gateway: deleting device: %w", err)
	}

	g.logger.Info("device logged out", "device_id", device.ID, "name", device.Name)
	g.record(auditlog.Event{
		Kind:     auditlog.KindDeviceLogout,
		DeviceID: device.ID,
		Detail:   device.Name,
	})
	return device, nil
}

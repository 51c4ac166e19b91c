// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/latchkey-dev/latchkey/lib/auditlog"
	"github.com/latchkey-dev/latchkey/lib/authstore"
)

// DeviceList is the registry as seen by one caller: every device,
// newest first, plus which one the caller is.
type DeviceList struct {
	Devices         []authstore.Device `json:"devices"`
	CurrentDeviceID string             `json:"currentDeviceId"`
}

// ListDevices returns every registered device. Any enrolled device may
// look — the registry belongs to a single human.
func (g *Gateway) ListDevices(token string) (DeviceList, error) {
	caller, err := g.authenticate(token)
	if err != nil {
		return DeviceList{}, err
	}
	return DeviceList{
		Devices:         g.store.Devices(),
		CurrentDeviceID: caller.ID,
	}, nil
}

// RenameDevice sets a device's display name. Any valid token may
// rename any device (see the package doc for why); the one hard rule
// is that a blank name is rejected before any state is touched.
func (g *Gateway) RenameDevice(token, targetID, name string) (authstore.Device, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return authstore.Device{}, fmt.Errorf("%w: device name is required", ErrInvalidInput)
	}

	caller, err := g.authenticate(token)
	if err != nil {
		return authstore.Device{}, err
	}

	device, err := g.store.UpdateDevice(targetID, authstore.DeviceUpdate{Name: &name})
	if errors.Is(err, authstore.ErrDeviceNotFound) {
		return authstore.Device{}, fmt.Errorf("%w: unknown device", ErrNotFound)
	}
	if err != nil {
		return authstore.Device{}, fmt.Errorf("gateway: renaming device: %w", err)
	}

	g.logger.Info("device renamed",
		"device_id", device.ID,
		"name", name,
		"renamed_by", caller.ID,
	)
	g.record(auditlog.Event{
		Kind:     auditlog.KindDeviceRenamed,
		DeviceID: device.ID,
		Detail:   name,
	})
	return device, nil
}

// RevokeDevice deletes another device, killing its tokens. A device
// cannot revoke itself through this path — that is what Logout is
// for, and the split keeps "remove that device" from silently meaning
// "disconnect me".
func (g *Gateway) RevokeDevice(token, targetID string) error {
	caller, err := g.authenticate(token)
	if err != nil {
		return err
	}
	if targetID == caller.ID {
		return fmt.Errorf("%w: a device cannot revoke itself; log out instead", ErrForbidden)
	}

	err = g.store.DeleteDevice(targetID)
	if errors.Is(err, authstore.ErrDeviceNotFound) {
		return fmt.Errorf("%w: unknown device", ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("gateway: revoking device: %w", err)
	}

	g.logger.Info("device revoked",
		"device_id", targetID,
		"revoked_by", caller.ID,
	)
	g.record(auditlog.Event{
		Kind:     auditlog.KindDeviceRevoked,
		DeviceID: targetID,
		Detail:   "revoked by " + caller.ID,
	})
	return nil
}

// RevokeOthers deletes every device except the caller's own and
// reports how many went. The caller's device survives, and with it
// the token used to make this call.
func (g *Gateway) RevokeOthers(token string) (int, error) {
	caller, err := g.authenticate(token)
	if err != nil {
		return 0, err
	}

	removed, err := g.store.DeleteDevicesExcept(caller.ID)
	if err != nil {
		return 0, fmt.Errorf("gateway: revoking devices: %w", err)
	}

	g.logger.Info("other devices revoked",
		"kept_device_id", caller.ID,
		"removed", removed,
	)
	g.record(auditlog.Event{
		Kind:     auditlog.KindRevokeOthers,
		DeviceID: caller.ID,
		Detail:   fmt.Sprintf("%d devices removed", removed),
	})
	return removed, nil
}

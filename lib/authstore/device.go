// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package authstore

import (
	"fmt"
	"sort"
)

// Device is an authorized client in the registry.
type Device struct {
	// ID is an opaque random identifier (16 bytes, lowercase hex),
	// generated by the gateway at creation and never reused.
	ID string `json:"id"`

	// Name, Platform, and BrowserLabel are client-supplied display
	// strings. Name is mutable via rename; the others are fixed at
	// creation.
	Name         string `json:"name"`
	Platform     string `json:"platform"`
	BrowserLabel string `json:"browserLabel"`

	// CreatedAt and LastSeenAt are milliseconds since the Unix
	// epoch. LastSeenAt moves on every successful token validation
	// that carries a client address.
	CreatedAt  int64 `json:"createdAt"`
	LastSeenAt int64 `json:"lastSeenAt"`

	// IP is the last network address the device was seen from.
	IP string `json:"ip"`

	// IsHost marks a device that authenticated with the access code
	// on the server's own machine rather than through remote
	// approval.
	IsHost bool `json:"isHost"`
}

// DeviceInfo is the client-declared description of a device, supplied
// at authentication time and snapshotted onto pending requests.
type DeviceInfo struct {
	Name         string `json:"name"`
	Platform     string `json:"platform"`
	BrowserLabel string `json:"browserLabel"`
}

// DeviceUpdate is a partial merge of the mutable display fields. Nil
// fields are left unchanged.
type DeviceUpdate struct {
	Name         *string
	Platform     *string
	BrowserLabel *string
}

// CreateDevice inserts a fully-formed device record. The store
// assigns nothing: the gateway mints the ID and timestamps.
func (s *Store) CreateDevice(device Device) error {
	if device.ID == "" {
		return fmt.Errorf("authstore: device id is required")
	}
	return s.update(func(snap *snapshot) (bool, error) {
		if findDevice(snap, device.ID) >= 0 {
			return false, ErrDeviceExists
		}
		snap.Devices = append(snap.Devices, device)
		return true, nil
	})
}

// Device returns the device with the given id.
func (s *Store) Device(id string) (Device, error) {
	var (
		device Device
		found  bool
	)
	s.view(func(snap *snapshot) {
		if i := findDevice(snap, id); i >= 0 {
			device = snap.Devices[i]
			found = true
		}
	})
	if !found {
		return Device{}, ErrDeviceNotFound
	}
	return device, nil
}

// Devices returns every registered device, newest first.
func (s *Store) Devices() []Device {
	var devices []Device
	s.view(func(snap *snapshot) {
		devices = make([]Device, len(snap.Devices))
		copy(devices, snap.Devices)
	})
	sort.SliceStable(devices, func(i, j int) bool {
		if devices[i].CreatedAt != devices[j].CreatedAt {
			return devices[i].CreatedAt > devices[j].CreatedAt
		}
		return devices[i].ID < devices[j].ID
	})
	return devices
}

// UpdateDevice merges the non-nil fields of update into the device
// and returns the result.
func (s *Store) UpdateDevice(id string, update DeviceUpdate) (Device, error) {
	var updated Device
	err := s.update(func(snap *snapshot) (bool, error) {
		i := findDevice(snap, id)
		if i < 0 {
			return false, ErrDeviceNotFound
		}
		device := &snap.Devices[i]
		if update.Name != nil {
			device.Name = *update.Name
		}
		if update.Platform != nil {
			device.Platform = *update.Platform
		}
		if update.BrowserLabel != nil {
			device.BrowserLabel = *update.BrowserLabel
		}
		updated = *device
		return true, nil
	})
	if err != nil {
		return Device{}, err
	}
	return updated, nil
}

// TouchDevice records a successful validation: LastSeenAt moves to
// now and IP is replaced when non-empty.
func (s *Store) TouchDevice(id string, ip string) (Device, error) {
	var touched Device
	err := s.update(func(snap *snapshot) (bool, error) {
		i := findDevice(snap, id)
		if i < 0 {
			return false, ErrDeviceNotFound
		}
		device := &snap.Devices[i]
		device.LastSeenAt = s.clock.Now().UnixMilli()
		if ip != "" {
			device.IP = ip
		}
		touched = *device
		return true, nil
	})
	if err != nil {
		return Device{}, err
	}
	return touched, nil
}

// DeleteDevice removes the device with the given id.
func (s *Store) DeleteDevice(id string) error {
	return s.update(func(snap *snapshot) (bool, error) {
		i := findDevice(snap, id)
		if i < 0 {
			return false, ErrDeviceNotFound
		}
		snap.Devices = append(snap.Devices[:i], snap.Devices[i+1:]...)
		return true, nil
	})
}

// DeleteDevicesExcept removes every device except keepID in one
// atomic snapshot write and returns the number removed. Used for
// "log out everywhere else."
func (s *Store) DeleteDevicesExcept(keepID string) (int, error) {
	removed := 0
	err := s.update(func(snap *snapshot) (bool, error) {
		kept := snap.Devices[:0]
		for _, device := range snap.Devices {
			if device.ID == keepID {
				kept = append(kept, device)
			}
		}
		removed = len(snap.Devices) - len(kept)
		snap.Devices = kept
		return removed > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func findDevice(snap *snapshot, id string) int {
	for i := range snap.Devices {
		if snap.Devices[i].ID == id {
			return i
		}
	}
	return -1
}

// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package authstore

import (
	"errors"
	"testing"
	"time"
)

func TestCreateAndGetDevice(t *testing.T) {
	store, _ := newTestStore(t)

	device := testDevice("aa11", testEpoch)
	if err := store.CreateDevice(device); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}

	got, err := store.Device("aa11")
	if err != nil {
		t.Fatalf("Device: %v", err)
	}
	if got != device {
		t.Fatalf("Device = %+v, want %+v", got, device)
	}
}

func TestCreateDeviceRejectsDuplicateID(t *testing.T) {
	store, _ := newTestStore(t)

	if err := store.CreateDevice(testDevice("aa11", testEpoch)); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	if err := store.CreateDevice(testDevice("aa11", testEpoch)); !errors.Is(err, ErrDeviceExists) {
		t.Fatalf("duplicate create: got %v, want ErrDeviceExists", err)
	}
}

func TestCreateDeviceRequiresID(t *testing.T) {
	store, _ := newTestStore(t)
	if err := store.CreateDevice(Device{Name: "nameless"}); err == nil {
		t.Fatal("CreateDevice accepted an empty id")
	}
}

func TestDeviceNotFound(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.Device("missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("got %v, want ErrDeviceNotFound", err)
	}
}

func TestDevicesNewestFirst(t *testing.T) {
	store, _ := newTestStore(t)

	for i, id := range []string{"old", "mid", "new"} {
		device := testDevice(id, testEpoch.Add(time.Duration(i)*time.Hour))
		if err := store.CreateDevice(device); err != nil {
			t.Fatalf("CreateDevice(%s): %v", id, err)
		}
	}

	devices := store.Devices()
	if len(devices) != 3 {
		t.Fatalf("len(Devices) = %d, want 3", len(devices))
	}
	wantOrder := []string{"new", "mid", "old"}
	for i, want := range wantOrder {
		if devices[i].ID != want {
			t.Fatalf("Devices[%d].ID = %q, want %q", i, devices[i].ID, want)
		}
	}
}

func TestUpdateDevicePartialMerge(t *testing.T) {
	store, _ := newTestStore(t)
	if err := store.CreateDevice(testDevice("aa11", testEpoch)); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}

	name := "Workbench"
	updated, err := store.UpdateDevice("aa11", DeviceUpdate{Name: &name})
	if err != nil {
		t.Fatalf("UpdateDevice: %v", err)
	}
	if updated.Name != "Workbench" {
		t.Fatalf("Name = %q, want Workbench", updated.Name)
	}
	if updated.Platform != "Android" || updated.BrowserLabel != "Chrome" {
		t.Fatalf("untouched fields changed: %+v", updated)
	}

	if _, err := store.UpdateDevice("missing", DeviceUpdate{Name: &name}); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("update of missing device: got %v, want ErrDeviceNotFound", err)
	}
}

func TestTouchDevice(t *testing.T) {
	store, fake := newTestStore(t)
	if err := store.CreateDevice(testDevice("aa11", testEpoch)); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}

	fake.Advance(45 * time.Minute)
	touched, err := store.TouchDevice("aa11", "10.0.0.9")
	if err != nil {
		t.Fatalf("TouchDevice: %v", err)
	}
	wantSeen := testEpoch.Add(45 * time.Minute).UnixMilli()
	if touched.LastSeenAt != wantSeen {
		t.Fatalf("LastSeenAt = %d, want %d", touched.LastSeenAt, wantSeen)
	}
	if touched.IP != "10.0.0.9" {
		t.Fatalf("IP = %q, want 10.0.0.9", touched.IP)
	}

	// An empty address updates the timestamp but keeps the last IP.
	fake.Advance(time.Minute)
	touched, err = store.TouchDevice("aa11", "")
	if err != nil {
		t.Fatalf("TouchDevice with empty ip: %v", err)
	}
	if touched.IP != "10.0.0.9" {
		t.Fatalf("IP after empty touch = %q, want 10.0.0.9", touched.IP)
	}
}

func TestDeleteDevice(t *testing.T) {
	store, _ := newTestStore(t)
	if err := store.CreateDevice(testDevice("aa11", testEpoch)); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}

	if err := store.DeleteDevice("aa11"); err != nil {
		t.Fatalf("DeleteDevice: %v", err)
	}
	if _, err := store.Device("aa11"); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("device survived delete: %v", err)
	}
	if err := store.DeleteDevice("aa11"); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("second delete: got %v, want ErrDeviceNotFound", err)
	}
}

func TestDeleteDevicesExcept(t *testing.T) {
	store, _ := newTestStore(t)

	for _, id := range []string{"keep", "drop1", "drop2", "drop3"} {
		if err := store.CreateDevice(testDevice(id, testEpoch)); err != nil {
			t.Fatalf("CreateDevice(%s): %v", id, err)
		}
	}

	removed, err := store.DeleteDevicesExcept("keep")
	if err != nil {
		t.Fatalf("DeleteDevicesExcept: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}

	devices := store.Devices()
	if len(devices) != 1 || devices[0].ID != "keep" {
		t.Fatalf("Devices after bulk delete = %+v, want exactly [keep]", devices)
	}

	// Nothing else to remove: count is zero, no error.
	removed, err = store.DeleteDevicesExcept("keep")
	if err != nil {
		t.Fatalf("second DeleteDevicesExcept: %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
}

// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package authstore

import (
	"fmt"
	"sort"
	"time"
)

// PendingWindow is how long a request may stay pending before lazy
// expiry. An operator approving a remote device is sitting at the
// trusted machine; two minutes is plenty, and a short window limits
// how long a leaked access code can keep a request alive.
const PendingWindow = 2 * time.Minute

// ResolvedRetention is how long resolved requests are kept for the
// requester to poll before garbage collection.
const ResolvedRetention = 24 * time.Hour

// RequestStatus is the lifecycle state of a pending request. The
// machine is strictly one-way: pending is the only state that
// transitions, and approved, denied, and expired are terminal.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusDenied   RequestStatus = "denied"
	StatusExpired  RequestStatus = "expired"
)

// Terminal reports whether the status can never change again.
func (s RequestStatus) Terminal() bool { return s != StatusPending }

// PendingRequest is an outstanding remote-access approval.
type PendingRequest struct {
	// ID is an opaque random identifier minted by the gateway.
	// Knowing it is what lets the requester poll for the outcome.
	ID string `json:"id"`

	// Device is the client-declared description snapshotted at
	// request time; a real Device record exists only after approval.
	Device DeviceInfo `json:"device"`

	// IP is the requester's network address.
	IP string `json:"ip"`

	Status RequestStatus `json:"status"`

	// CreatedAt is milliseconds since the Unix epoch. ResolvedAt is
	// set on any terminal transition, including lazy expiry.
	CreatedAt  int64 `json:"createdAt"`
	ResolvedAt int64 `json:"resolvedAt,omitempty"`

	// DeviceID and Token are populated only on approval — approval
	// is the moment the Device is actually created.
	DeviceID string `json:"deviceId,omitempty"`
	Token    string `json:"token,omitempty"`
}

// CreateRequest files a new pending request under the given id.
// Housekeeping runs first: stale pendings expire and old resolved
// requests are purged in the same snapshot write.
func (s *Store) CreateRequest(id string, info DeviceInfo, ip string) (PendingRequest, error) {
	if id == "" {
		return PendingRequest{}, fmt.Errorf("authstore: request id is required")
	}
	now := s.clock.Now()
	request := PendingRequest{
		ID:        id,
		Device:    info,
		IP:        ip,
		Status:    StatusPending,
		CreatedAt: now.UnixMilli(),
	}
	var expired []PendingRequest
	err := s.update(func(snap *snapshot) (bool, error) {
		expired, _ = housekeep(snap, now)
		if findRequest(snap, id) >= 0 {
			return false, fmt.Errorf("authstore: request id already exists")
		}
		snap.PendingRequests = append(snap.PendingRequests, request)
		return true, nil
	})
	if err != nil {
		return PendingRequest{}, err
	}
	s.notifyExpired(expired)
	return request, nil
}

// Request returns the request with the given id, applying lazy expiry
// first so a request past its window is never reported pending.
func (s *Store) Request(id string) (PendingRequest, error) {
	var (
		request PendingRequest
		found   bool
		expired []PendingRequest
	)
	now := s.clock.Now()
	err := s.update(func(snap *snapshot) (bool, error) {
		expired = expireStale(snap, now)
		if i := findRequest(snap, id); i >= 0 {
			request = snap.PendingRequests[i]
			found = true
		}
		return len(expired) > 0, nil
	})
	if err != nil {
		return PendingRequest{}, err
	}
	s.notifyExpired(expired)
	if !found {
		return PendingRequest{}, ErrRequestNotFound
	}
	return request, nil
}

// PendingRequests returns all requests still awaiting a decision,
// newest first. Housekeeping runs first: lazy expiry plus purging of
// resolved requests past retention.
func (s *Store) PendingRequests() ([]PendingRequest, error) {
	var (
		pending []PendingRequest
		expired []PendingRequest
	)
	now := s.clock.Now()
	err := s.update(func(snap *snapshot) (bool, error) {
		var changed bool
		expired, changed = housekeep(snap, now)
		for _, request := range snap.PendingRequests {
			if request.Status == StatusPending {
				pending = append(pending, request)
			}
		}
		return changed, nil
	})
	if err != nil {
		return nil, err
	}
	s.notifyExpired(expired)
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].CreatedAt != pending[j].CreatedAt {
			return pending[i].CreatedAt > pending[j].CreatedAt
		}
		return pending[i].ID < pending[j].ID
	})
	return pending, nil
}

// ApproveRequest transitions a pending request to approved and
// creates the device record in the same snapshot write, so a crash
// can never leave an approved request without its device (or the
// reverse). Only a request still pending after lazy expiry can be
// approved; anything else fails with ErrRequestNotFound or
// ErrRequestNotPending and mints nothing.
func (s *Store) ApproveRequest(id string, device Device, token string) (PendingRequest, error) {
	if device.ID == "" {
		return PendingRequest{}, fmt.Errorf("authstore: device id is required")
	}
	var (
		approved PendingRequest
		expired  []PendingRequest
	)
	now := s.clock.Now()
	err := s.update(func(snap *snapshot) (bool, error) {
		expired = expireStale(snap, now)
		i := findRequest(snap, id)
		if i < 0 {
			return false, ErrRequestNotFound
		}
		request := &snap.PendingRequests[i]
		if request.Status != StatusPending {
			return false, ErrRequestNotPending
		}
		if findDevice(snap, device.ID) >= 0 {
			return false, ErrDeviceExists
		}

		snap.Devices = append(snap.Devices, device)
		request.Status = StatusApproved
		request.ResolvedAt = now.UnixMilli()
		request.DeviceID = device.ID
		request.Token = token
		approved = *request
		return true, nil
	})
	if err != nil {
		return PendingRequest{}, err
	}
	s.notifyExpired(expired)
	return approved, nil
}

// DenyRequest transitions a pending request to denied. No side effect
// beyond the status change.
func (s *Store) DenyRequest(id string) (PendingRequest, error) {
	var (
		denied  PendingRequest
		expired []PendingRequest
	)
	now := s.clock.Now()
	err := s.update(func(snap *snapshot) (bool, error) {
		expired = expireStale(snap, now)
		i := findRequest(snap, id)
		if i < 0 {
			return false, ErrRequestNotFound
		}
		request := &snap.PendingRequests[i]
		if request.Status != StatusPending {
			return false, ErrRequestNotPending
		}
		request.Status = StatusDenied
		request.ResolvedAt = now.UnixMilli()
		denied = *request
		return true, nil
	})
	if err != nil {
		return PendingRequest{}, err
	}
	s.notifyExpired(expired)
	return denied, nil
}

// housekeep applies lazy expiry and purges resolved requests past
// retention. Returns the requests newly flipped to expired and
// whether anything changed.
func housekeep(snap *snapshot, now time.Time) ([]PendingRequest, bool) {
	expired := expireStale(snap, now)
	changed := len(expired) > 0
	nowMilli := now.UnixMilli()
	kept := snap.PendingRequests[:0]
	for _, request := range snap.PendingRequests {
		stale := request.Status.Terminal() &&
			request.ResolvedAt > 0 &&
			nowMilli-request.ResolvedAt > ResolvedRetention.Milliseconds()
		if stale {
			changed = true
			continue
		}
		kept = append(kept, request)
	}
	snap.PendingRequests = kept
	return expired, changed
}

// expireStale flips pending requests older than PendingWindow to
// expired, returning copies of the requests it flipped.
func expireStale(snap *snapshot, now time.Time) []PendingRequest {
	var expired []PendingRequest
	nowMilli := now.UnixMilli()
	for i := range snap.PendingRequests {
		request := &snap.PendingRequests[i]
		if request.Status != StatusPending {
			continue
		}
		if nowMilli-request.CreatedAt > PendingWindow.Milliseconds() {
			request.Status = StatusExpired
			request.ResolvedAt = nowMilli
			expired = append(expired, *request)
		}
	}
	return expired
}

// notifyExpired invokes the OnExpire callback for each request that
// was flipped to expired in a persisted snapshot write. Called after
// the store lock is released so the callback may call back into the
// store.
func (s *Store) notifyExpired(expired []PendingRequest) {
	if s.onExpire == nil {
		return
	}
	for _, request := range expired {
		s.onExpire(request)
	}
}

func findRequest(snap *snapshot, id string) int {
	for i := range snap.PendingRequests {
		if snap.PendingRequests[i].ID == id {
			return i
		}
	}
	return -1
}

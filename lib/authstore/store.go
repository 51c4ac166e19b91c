// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package authstore

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/latchkey-dev/latchkey/lib/clock"
)

// Errors returned by store operations.
var (
	ErrDeviceNotFound    = errors.New("authstore: device not found")
	ErrDeviceExists      = errors.New("authstore: device id already exists")
	ErrRequestNotFound   = errors.New("authstore: pending request not found")
	ErrRequestNotPending = errors.New("authstore: request already processed")
)

// snapshot is the durable record. The field names are the wire names
// the companion UI already understands; the file is meant to be
// readable with nothing fancier than a text editor.
type snapshot struct {
	Devices         []Device         `json:"devices"`
	PendingRequests []PendingRequest `json:"pendingRequests"`

	// RevokedTokens is a legacy denylist of encoded tokens. Current
	// code revokes by deleting the device record, which strands every
	// token minted for it; entries found here are still honored at
	// validation but nothing appends to the list anymore.
	RevokedTokens []string `json:"revokedTokens"`

	// SigningSecret is the hex-encoded token-signing seed.
	SigningSecret string `json:"signingSecret"`
}

func (s *snapshot) clone() *snapshot {
	working := &snapshot{
		Devices:         make([]Device, len(s.Devices)),
		PendingRequests: make([]PendingRequest, len(s.PendingRequests)),
		RevokedTokens:   make([]string, len(s.RevokedTokens)),
		SigningSecret:   s.SigningSecret,
	}
	copy(working.Devices, s.Devices)
	copy(working.PendingRequests, s.PendingRequests)
	copy(working.RevokedTokens, s.RevokedTokens)
	return working
}

// Config holds the parameters for opening a store.
type Config struct {
	// Path is the filesystem path of the snapshot file. The parent
	// directory is created if missing.
	Path string

	// Clock provides the current time for creation stamps, lazy
	// expiry, and garbage collection.
	Clock clock.Clock

	// Logger receives operational messages.
	Logger *slog.Logger

	// ReloadBeforeRead makes every operation re-stat the snapshot
	// file and reload it when another process has rewritten it. See
	// the package comment for the consistency caveats.
	ReloadBeforeRead bool

	// OnExpire, when non-nil, is invoked once for each pending
	// request this store flips to expired, after the flip has been
	// persisted. It is called without the store lock held, so the
	// callback may call back into the store. Used to feed the audit
	// trail; the store itself attaches no meaning to it.
	OnExpire func(request PendingRequest)
}

// Store owns the snapshot file. Safe for concurrent use within one
// process; see the package comment for the multi-process story.
type Store struct {
	path             string
	clock            clock.Clock
	logger           *slog.Logger
	reloadBeforeRead bool
	onExpire         func(request PendingRequest)

	mu     sync.Mutex
	state  *snapshot
	secret []byte

	// loadedModTime and loadedSize identify the file contents the
	// in-memory state was read from, so reloads trigger only when
	// some other process has replaced the file.
	loadedModTime time.Time
	loadedSize    int64
}

// Open loads the snapshot at cfg.Path, creating it with a fresh
// signing secret on first run. A present-but-unreadable secret is an
// error, never a trigger for regeneration — regenerating would
// silently strand every outstanding token.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("authstore: Path is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("authstore: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("authstore: Logger is required")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
		return nil, fmt.Errorf("authstore: creating state directory: %w", err)
	}

	store := &Store{
		path:             cfg.Path,
		clock:            cfg.Clock,
		logger:           cfg.Logger,
		reloadBeforeRead: cfg.ReloadBeforeRead,
		onExpire:         cfg.OnExpire,
	}

	state, err := readSnapshotFile(cfg.Path)
	if errors.Is(err, fs.ErrNotExist) {
		state = &snapshot{}
	} else if err != nil {
		return nil, err
	}

	if state.SigningSecret == "" {
		secret, err := newSigningSecret()
		if err != nil {
			return nil, err
		}
		state.SigningSecret = hex.EncodeToString(secret)
		store.logger.Info("generated new signing secret", "path", cfg.Path)
	}

	secret, err := hex.DecodeString(state.SigningSecret)
	if err != nil {
		return nil, fmt.Errorf("authstore: signing secret is not valid hex: %w", err)
	}
	if len(secret) < secretSize {
		return nil, fmt.Errorf("authstore: signing secret has %d bytes, need at least %d", len(secret), secretSize)
	}

	store.state = state
	store.secret = secret

	// Persist immediately so the secret survives a crash that happens
	// before the first mutation.
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.writeLocked(state); err != nil {
		return nil, err
	}
	return store, nil
}

// Path returns the snapshot file location.
func (s *Store) Path() string { return s.path }

// view runs fn against the current snapshot under the lock. fn must
// not retain references into the snapshot.
func (s *Store) view(fn func(snap *snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeReloadLocked()
	fn(s.state)
}

// update runs fn against a working copy of the snapshot. When fn
// reports a change, the copy is persisted and swapped in; a failed
// write leaves both memory and disk untouched, so a broken disk fails
// the single operation without corrupting state.
func (s *Store) update(fn func(snap *snapshot) (changed bool, err error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeReloadLocked()

	working := s.state.clone()
	changed, err := fn(working)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := s.writeLocked(working); err != nil {
		return err
	}
	s.state = working
	return nil
}

// maybeReloadLocked re-reads the snapshot file if another process has
// replaced it since we last touched it. A file that disappears or no
// longer parses is logged and ignored — the in-memory state stays
// authoritative rather than crashing mid-operation.
func (s *Store) maybeReloadLocked() {
	if !s.reloadBeforeRead {
		return
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return
	}
	if info.ModTime().Equal(s.loadedModTime) && info.Size() == s.loadedSize {
		return
	}

	state, err := readSnapshotFile(s.path)
	if err != nil {
		s.logger.Warn("state file changed underneath but is unreadable; keeping in-memory state",
			"path", s.path, "error", err)
		return
	}
	secret, err := hex.DecodeString(state.SigningSecret)
	if err != nil || len(secret) < secretSize {
		s.logger.Warn("state file changed underneath but its secret is invalid; keeping in-memory state",
			"path", s.path)
		return
	}

	s.state = state
	s.secret = secret
	s.loadedModTime = info.ModTime()
	s.loadedSize = info.Size()
}

// writeLocked atomically replaces the snapshot file: write a temp
// file, fsync it, rename it into place, fsync the parent directory.
// A crash at any point leaves either the old file or the new file,
// never a torn one.
func (s *Store) writeLocked(snap *snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("authstore: encoding snapshot: %w", err)
	}
	data = append(data, '\n')

	tempPath := s.path + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("authstore: creating temp snapshot: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("authstore: writing temp snapshot: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("authstore: syncing temp snapshot: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("authstore: closing temp snapshot: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("authstore: replacing snapshot: %w", err)
	}

	if dir, err := os.Open(filepath.Dir(s.path)); err == nil {
		dir.Sync()
		dir.Close()
	}

	if info, err := os.Stat(s.path); err == nil {
		s.loadedModTime = info.ModTime()
		s.loadedSize = info.Size()
	}
	return nil
}

func readSnapshotFile(path string) (*snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("authstore: reading snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("authstore: parsing snapshot: %w", err)
	}
	return &snap, nil
}

// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package auditlog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/latchkey-dev/latchkey/lib/clock"
	"github.com/latchkey-dev/latchkey/lib/sqlitepool"
)

// Event kinds. Dotted names group by subject: the code.* pair records
// access-code checks, request.* the approval lifecycle, device.* token
// and device management, secret.* rotations.
const (
	KindCodeVerified    = "code.verified"
	KindCodeRejected    = "code.rejected"
	KindLocalAuth       = "local.auth"
	KindRequestCreated  = "request.created"
	KindRequestApproved = "request.approved"
	KindRequestDenied   = "request.denied"
	KindRequestExpired  = "request.expired"
	KindDeviceRenamed   = "device.renamed"
	KindDeviceRevoked   = "device.revoked"
	KindDeviceLogout    = "device.logout"
	KindRevokeOthers    = "device.revoke_others"
	KindSecretRotated   = "secret.rotated"
)

// Event is one audit trail entry. DeviceID, RequestID, IP, and Detail
// are optional; which are set depends on the kind.
type Event struct {
	// Time is milliseconds since the Unix epoch. Zero means "stamp
	// at record time".
	Time      int64  `json:"time"`
	Kind      string `json:"kind"`
	DeviceID  string `json:"deviceId,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	IP        string `json:"ip,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

const (
	// DefaultRecentLimit is how many events Recent returns when the
	// caller passes a non-positive limit.
	DefaultRecentLimit = 100

	// MaxRecentLimit caps Recent regardless of what the caller asks
	// for.
	MaxRecentLimit = 500
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id         INTEGER PRIMARY KEY,
	time       INTEGER NOT NULL,
	kind       TEXT NOT NULL,
	device_id  TEXT NOT NULL DEFAULT '',
	request_id TEXT NOT NULL DEFAULT '',
	ip         TEXT NOT NULL DEFAULT '',
	detail     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS events_time ON events (time);
`

// Config holds the parameters for opening the audit store.
type Config struct {
	// Path is the filesystem path to the SQLite database file. The
	// parent directory must exist. Required.
	Path string

	// PoolSize is the connection pool size. Defaults per sqlitepool.
	PoolSize int

	// Clock stamps events and anchors retention decisions. Required.
	Clock clock.Clock

	// Logger receives operational messages. Required.
	Logger *slog.Logger
}

// Store is the audit trail backed by SQLite. Safe for concurrent use.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// Open creates the audit store, creating the database file and schema
// if they do not exist.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("auditlog: Path is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("auditlog: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("auditlog: Logger is required")
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   cfg.Logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("auditlog: %w", err)
	}

	return &Store{
		pool:   pool,
		clock:  cfg.Clock,
		logger: cfg.Logger,
	}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Record appends one event. If event.Time is zero it is stamped with
// the current time.
func (s *Store) Record(ctx context.Context, event Event) error {
	if event.Kind == "" {
		return fmt.Errorf("auditlog: event kind is required")
	}
	if event.Time == 0 {
		event.Time = s.clock.Now().UnixMilli()
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("auditlog: record: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO events (time, kind, device_id, request_id, ip, detail)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				event.Time,
				event.Kind,
				event.DeviceID,
				event.RequestID,
				event.IP,
				event.Detail,
			},
		})
	if err != nil {
		return fmt.Errorf("auditlog: record: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first. A non-positive
// limit means DefaultRecentLimit; anything above MaxRecentLimit is
// clamped.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("auditlog: recent: %w", err)
	}
	defer s.pool.Put(conn)

	var events []Event
	err = sqlitex.Execute(conn,
		`SELECT time, kind, device_id, request_id, ip, detail
		 FROM events ORDER BY time DESC, id DESC LIMIT ?`,
		&sqlitex.ExecOptions{
			Args: []any{limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				events = append(events, Event{
					Time:      stmt.ColumnInt64(0),
					Kind:      stmt.ColumnText(1),
					DeviceID:  stmt.ColumnText(2),
					RequestID: stmt.ColumnText(3),
					IP:        stmt.ColumnText(4),
					Detail:    stmt.ColumnText(5),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("auditlog: recent: %w", err)
	}
	return events, nil
}

// Prune deletes events older than the retention period, measured from
// the store's clock. Returns the number of rows deleted.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("auditlog: retention must be positive, got %v", retention)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("auditlog: prune: %w", err)
	}
	defer s.pool.Put(conn)

	cutoff := s.clock.Now().Add(-retention).UnixMilli()
	err = sqlitex.Execute(conn,
		`DELETE FROM events WHERE time < ?`,
		&sqlitex.ExecOptions{Args: []any{cutoff}})
	if err != nil {
		return 0, fmt.Errorf("auditlog: prune: %w", err)
	}

	deleted := conn.Changes()
	if deleted > 0 {
		s.logger.Info("audit events pruned",
			"deleted", deleted,
			"retention", retention,
		)
	}
	return deleted, nil
}

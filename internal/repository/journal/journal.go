// Package journal keeps an append-only audit trail of arm, disarm and
// alarm events in SQLite.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Registers the "sqlite" driver.

	"github.com/tankwatch/tank-guard/internal/domain/door"
	"github.com/tankwatch/tank-guard/internal/logger"
)

const (
	// DefaultLimit is the number of events Recent returns for a zero limit.
	DefaultLimit = 50
	// MaxLimit caps a single Recent query.
	MaxLimit = 1000

	queueSize = 128
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id       TEXT PRIMARY KEY,
	at       INTEGER NOT NULL,
	channel  INTEGER NOT NULL,
	kind     TEXT NOT NULL,
	operator TEXT NOT NULL DEFAULT '',
	detail   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_events_at ON events(at);
`

// Journal stores events. Record enqueues for a background writer so that
// callers holding locks never wait on disk.
type Journal struct {
	db    *sql.DB
	queue chan door.Event
	done  chan struct{}

	mu      sync.RWMutex
	closed  bool
	started bool
}

// Open opens or creates the journal database at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	// SQLite allows one writer; a single connection also keeps ":memory:" shared.
	db.SetMaxOpenConns(1)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("connect journal: %w", err)
	}

	if _, err = db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	return &Journal{
		db:    db,
		queue: make(chan door.Event, queueSize),
		done:  make(chan struct{}),
	}, nil
}

// Start launches the background writer.
func (j *Journal) Start(ctx context.Context) {
	ctx = logger.WithName(context.WithoutCancel(ctx), "journal")

	j.mu.Lock()
	j.started = true
	j.mu.Unlock()

	go func() {
		defer close(j.done)

		for ev := range j.queue {
			if err := j.Insert(ctx, ev); err != nil {
				logger.ErrorKV(ctx, "Failed to write journal event", "kind", string(ev.Kind), "error", err)
			}
		}
	}()
}

// Record enqueues an event. It never blocks; events are dropped when the
// writer falls behind.
func (j *Journal) Record(ev door.Event) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return
	}

	select {
	case j.queue <- ev:
	default:
		logger.WarnKV(context.Background(), "Journal queue full, event dropped", "kind", string(ev.Kind))
	}
}

// Insert writes an event synchronously, assigning an id and time if unset.
func (j *Journal) Insert(ctx context.Context, ev door.Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (id, at, channel, kind, operator, detail) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.At.UnixNano(), int(ev.Channel), string(ev.Kind), ev.Operator, ev.Detail)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	return nil
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]door.Event, error) {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, at, channel, kind, operator, detail FROM events ORDER BY at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := make([]door.Event, 0, limit)

	for rows.Next() {
		var (
			ev      door.Event
			at      int64
			channel int
			kind    string
		)

		if err = rows.Scan(&ev.ID, &at, &channel, &kind, &ev.Operator, &ev.Detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		ev.At = time.Unix(0, at)
		ev.Channel = door.ChannelID(channel)
		ev.Kind = door.EventKind(kind)

		events = append(events, ev)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}

// Close stops accepting events, waits for queued ones until ctx is done
// and closes the database.
func (j *Journal) Close(ctx context.Context) error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()

		return nil
	}

	j.closed = true
	close(j.queue)
	started := j.started
	j.mu.Unlock()

	var waitErr error

	if started {
		select {
		case <-j.done:
		case <-ctx.Done():
			waitErr = ctx.Err()
		}
	}

	if err := j.db.Close(); err != nil {
		return fmt.Errorf("close journal: %w", err)
	}

	return waitErr
}

// Package journal keeps an optional local record of operator activity:
// broadcast runs and privilege grants. It is bookkeeping only — a journal
// write failing must never change delivery accounting.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	logx "funnelbot/pkg/logx"
)

var ErrDisabled = errors.New("journal disabled")

type BroadcastEntry struct {
	At                time.Time
	AuthorID          int64
	Snapshot          int
	Delivered         int
	FailedEligibility int
	Skipped           int
	TookMS            int64
}

type GrantEntry struct {
	At       time.Time
	ByID     int64
	TargetID int64
}

type Store interface {
	AppendBroadcast(ctx context.Context, e BroadcastEntry) error
	AppendGrant(ctx context.Context, e GrantEntry) error
	RecentBroadcasts(ctx context.Context, limit int) ([]BroadcastEntry, error)
	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS broadcasts (
	at        TEXT NOT NULL,
	author_id INTEGER NOT NULL,
	snapshot  INTEGER NOT NULL,
	delivered INTEGER NOT NULL,
	failed    INTEGER NOT NULL,
	skipped   INTEGER NOT NULL,
	took_ms   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS grants (
	at        TEXT NOT NULL,
	by_id     INTEGER NOT NULL,
	target_id INTEGER NOT NULL
);
`

type sqliteJournal struct {
	db  *sql.DB
	log logx.Logger
}

// Open initializes the SQLite journal. An empty path disables journaling and
// returns (nil, nil); callers must treat a nil Store as a no-op.
func Open(path string, log logx.Logger) (Store, error) {
	if path == "" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info("journal opened", logx.String("path", path))
	return &sqliteJournal{db: db, log: log}, nil
}

func (j *sqliteJournal) AppendBroadcast(ctx context.Context, e BroadcastEntry) error {
	if j == nil || j.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO broadcasts(at, author_id, snapshot, delivered, failed, skipped, took_ms)
		 VALUES(?,?,?,?,?,?,?)`,
		e.At.Format(time.RFC3339Nano), e.AuthorID, e.Snapshot, e.Delivered, e.FailedEligibility, e.Skipped, e.TookMS,
	)
	return err
}

func (j *sqliteJournal) AppendGrant(ctx context.Context, e GrantEntry) error {
	if j == nil || j.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO grants(at, by_id, target_id) VALUES(?,?,?)`,
		e.At.Format(time.RFC3339Nano), e.ByID, e.TargetID,
	)
	return err
}

func (j *sqliteJournal) RecentBroadcasts(ctx context.Context, limit int) ([]BroadcastEntry, error) {
	if j == nil || j.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = 5
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT at, author_id, snapshot, delivered, failed, skipped, took_ms
		 FROM broadcasts ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BroadcastEntry
	for rows.Next() {
		var e BroadcastEntry
		var at string
		if err := rows.Scan(&at, &e.AuthorID, &e.Snapshot, &e.Delivered, &e.FailedEligibility, &e.Skipped, &e.TookMS); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *sqliteJournal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

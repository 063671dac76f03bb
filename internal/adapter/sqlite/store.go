// Package sqlite persists records in a SQLite database, one row per element
// keyed by type and id.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"

	"github.com/couchcryptid/osm-data-etl/internal/domain"
)

// ErrNotFound is returned by Get when no record has the requested identity.
var ErrNotFound = errors.New("record not found")

const migration = `
CREATE TABLE IF NOT EXISTS records (
	type         TEXT    NOT NULL,
	id           INTEGER NOT NULL,
	doc          TEXT    NOT NULL,
	processed_at TEXT    NOT NULL,
	PRIMARY KEY (type, id)
);
`

const upsertRecord = `
INSERT INTO records (type, id, doc, processed_at) VALUES (?, ?, ?, ?)
ON CONFLICT (type, id) DO UPDATE SET doc = excluded.doc, processed_at = excluded.processed_at`

// Store implements pipeline.BatchLoader on a SQLite database.
type Store struct {
	db    *sql.DB
	clock clockwork.Clock
}

// Open opens the database at dsn, configures WAL mode and creates the
// records table.
func Open(ctx context.Context, dsn string, clock clockwork.Clock) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: exec %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, migration); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return &Store{db: db, clock: clock}, nil
}

// LoadBatch upserts the records in one transaction. A record seen again
// replaces the earlier row.
func (s *Store) LoadBatch(ctx context.Context, records []domain.Record) (err error) {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, upsertRecord)
	if err != nil {
		return fmt.Errorf("sqlite: prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := s.clock.Now().UTC().Format(time.RFC3339)
	for i := range records {
		doc, err := json.Marshal(records[i])
		if err != nil {
			return fmt.Errorf("sqlite: marshal %s: %w", records[i].Key(), err)
		}
		if _, err := stmt.ExecContext(ctx, string(records[i].Type), records[i].ID, string(doc), now); err != nil {
			return fmt.Errorf("sqlite: upsert %s: %w", records[i].Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count: %w", err)
	}
	return n, nil
}

// Get loads one record by kind and id.
func (s *Store) Get(ctx context.Context, kind domain.Kind, id int64) (domain.Record, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM records WHERE type = ? AND id = ?`, string(kind), id,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, fmt.Errorf("%s/%d: %w", kind, id, ErrNotFound)
	}
	if err != nil {
		return domain.Record{}, fmt.Errorf("sqlite: get %s/%d: %w", kind, id, err)
	}

	var rec domain.Record
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return domain.Record{}, fmt.Errorf("sqlite: decode %s/%d: %w", kind, id, err)
	}
	return rec, nil
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

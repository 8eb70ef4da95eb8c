// Package sqlite provides a checkpoint store for travel-time records backed by
// an SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/commute-heatmap/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS travel_times (
	seq      INTEGER PRIMARY KEY AUTOINCREMENT,
	lat_key  INTEGER NOT NULL,
	lon_key  INTEGER NOT NULL,
	lat      REAL NOT NULL,
	lon      REAL NOT NULL,
	minutes  REAL,
	UNIQUE (lat_key, lon_key)
)`

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
}

// CheckpointStore keeps one row per sample point. Saving is append-only: records
// whose coordinates are already stored are ignored.
type CheckpointStore struct {
	db   *sql.DB
	path string
}

// Open creates or opens the checkpoint database at path.
func Open(ctx context.Context, path string) (*CheckpointStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &CheckpointStore{db: db, path: path}, nil
}

// Load returns all stored records in insertion order.
func (s *CheckpointStore) Load(ctx context.Context) ([]domain.TravelTimeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT lat, lon, minutes FROM travel_times ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query checkpoint: %w", err)
	}
	defer rows.Close()

	var records []domain.TravelTimeRecord
	for rows.Next() {
		var (
			r       domain.TravelTimeRecord
			minutes sql.NullFloat64
		)
		if err := rows.Scan(&r.Lat, &r.Lon, &minutes); err != nil {
			return nil, fmt.Errorf("scan checkpoint row: %w", err)
		}
		if minutes.Valid {
			m := minutes.Float64
			r.Minutes = &m
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Save stores records not yet present in a single transaction.
func (s *CheckpointStore) Save(ctx context.Context, records []domain.TravelTimeRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO travel_times (lat_key, lon_key, lat, lon, minutes) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		k := r.Key()
		var minutes sql.NullFloat64
		if r.Minutes != nil {
			minutes = sql.NullFloat64{Float64: *r.Minutes, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, k.Lat, k.Lon, r.Lat, r.Lon, minutes); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
	}
	return tx.Commit()
}

// Path returns the database file location.
func (s *CheckpointStore) Path() string { return s.path }

// Close releases the database handle.
func (s *CheckpointStore) Close() error {
	return s.db.Close()
}

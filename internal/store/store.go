// Package store persists heatmap points in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang/geo/s2"

	"github.com/gogpu/heatmap"

	_ "modernc.org/sqlite"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

const schema = `
CREATE TABLE IF NOT EXISTS points (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	lat        REAL    NOT NULL,
	lng        REAL    NOT NULL,
	intensity  REAL    NOT NULL DEFAULT 1,
	created_at TEXT    NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_points_lat_lng ON points(lat, lng);
`

// Store is a SQLite-backed point table.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and migrates it.
// The special path ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	if path == ":memory:" {
		// Every connection would see its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	heatmap.Logger().Debug("store: database ready", "path", path)
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Load returns every stored point in insertion order.
func (s *Store) Load(ctx context.Context) ([]heatmap.Point, error) {
	if s.db == nil {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `SELECT lat, lng, intensity FROM points ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: query points: %w", err)
	}
	defer rows.Close()

	var points []heatmap.Point
	for rows.Next() {
		var lat, lng, intensity float64
		if err := rows.Scan(&lat, &lng, &intensity); err != nil {
			return nil, fmt.Errorf("store: scan point: %w", err)
		}
		points = append(points, heatmap.Point{
			Coordinate: s2.LatLngFromDegrees(lat, lng),
			Intensity:  float32(intensity),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: read points: %w", err)
	}
	return points, nil
}

// Count returns the number of stored points.
func (s *Store) Count(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, ErrClosed
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM points`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count points: %w", err)
	}
	return n, nil
}

// Add appends points to the table.
func (s *Store) Add(ctx context.Context, points []heatmap.Point) error {
	return s.transaction(ctx, func(tx *sql.Tx) error {
		return insertPoints(ctx, tx, points)
	})
}

// Replace atomically replaces the table contents with points.
func (s *Store) Replace(ctx context.Context, points []heatmap.Point) error {
	return s.transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM points`); err != nil {
			return fmt.Errorf("store: clear points: %w", err)
		}
		return insertPoints(ctx, tx, points)
	})
}

func insertPoints(ctx context.Context, tx *sql.Tx, points []heatmap.Point) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO points (lat, lng, intensity) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		ll := p.Coordinate
		if _, err := stmt.ExecContext(ctx, ll.Lat.Degrees(), ll.Lng.Degrees(), float64(p.Intensity)); err != nil {
			return fmt.Errorf("store: insert point: %w", err)
		}
	}
	return nil
}

// transaction runs fn in a transaction, rolling back on error or panic.
func (s *Store) transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	if s.db == nil {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

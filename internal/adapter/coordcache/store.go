// Package coordcache persists geocoded station coordinates in a local
// SQLite database so later runs skip network resolution. The cache is read
// once at the start of a resolution pass and appended to after geocoding
// batches; there is no concurrent mutation.
package coordcache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/riverwatch/station-engine/internal/domain"
)

// Store is a SQLite-backed coordinate cache keyed by stable station id.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the cache database at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open coordinate cache: %w", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS coordinates (
		station_id TEXT PRIMARY KEY,
		latitude   REAL NOT NULL,
		longitude  REAL NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create coordinate cache schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Load reads the whole cache into memory.
func (s *Store) Load(ctx context.Context) (map[string]domain.GeocodeResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT station_id, latitude, longitude FROM coordinates`)
	if err != nil {
		return nil, fmt.Errorf("load coordinate cache: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.GeocodeResult)
	for rows.Next() {
		var id string
		var lat, lon float64
		if err := rows.Scan(&id, &lat, &lon); err != nil {
			return nil, fmt.Errorf("scan coordinate cache row: %w", err)
		}
		out[id] = domain.GeocodeResult{Latitude: lat, Longitude: lon, Found: true}
	}
	return out, rows.Err()
}

// SaveBatch upserts a batch of freshly geocoded coordinates in one
// transaction.
func (s *Store) SaveBatch(ctx context.Context, entries map[string]domain.GeocodeResult) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO coordinates(station_id, latitude, longitude)
		VALUES(?, ?, ?)
		ON CONFLICT(station_id) DO UPDATE SET
			latitude=excluded.latitude,
			longitude=excluded.longitude,
			updated_at=CURRENT_TIMESTAMP`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare cache upsert: %w", err)
	}
	defer stmt.Close()

	for id, coord := range entries {
		if !coord.Found {
			continue
		}
		if _, err := stmt.ExecContext(ctx, id, coord.Latitude, coord.Longitude); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert coordinate for %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cache transaction: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

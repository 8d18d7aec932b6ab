package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Orinks/AccessiWeather-sub007/internal/weather"
)

// SQLiteStore persists the last successful weather snapshot per location
// key so the app can come up with data before any network access. One row
// per key; stores always fully overwrite the prior entry.
type SQLiteStore struct {
	db     *sql.DB
	maxAge time.Duration
}

const schema = `
CREATE TABLE IF NOT EXISTS weather_cache (
	location_key TEXT PRIMARY KEY,
	snapshot     TEXT NOT NULL,
	stored_at    TIMESTAMP NOT NULL
);`

// OpenSQLite opens (creating if needed) the cache database at path.
// maxAge is the freshness TTL; entries older than it are served only as
// stale.
func OpenSQLite(path string, maxAge time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}
	return &SQLiteStore{db: db, maxAge: maxAge}, nil
}

// Store overwrites the cached snapshot for the location. Idempotent; no
// field-level merging happens here.
func (s *SQLiteStore) Store(loc weather.Location, data *weather.WeatherData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}
	storedAt := data.LastUpdated
	if storedAt.IsZero() {
		storedAt = time.Now().UTC()
	}
	_, err = s.db.Exec(
		`INSERT INTO weather_cache (location_key, snapshot, stored_at) VALUES (?, ?, ?)
		 ON CONFLICT(location_key) DO UPDATE SET snapshot=excluded.snapshot, stored_at=excluded.stored_at`,
		loc.Key(), string(raw), storedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

// Load returns the cached snapshot for the location. Staleness is derived
// from the stored timestamp on every read, never persisted. With
// allowStale=false a stale entry behaves like a miss.
func (s *SQLiteStore) Load(loc weather.Location, allowStale bool) (*weather.WeatherData, error) {
	var raw string
	var storedAt time.Time
	err := s.db.QueryRow(
		`SELECT snapshot, stored_at FROM weather_cache WHERE location_key = ?`,
		loc.Key(),
	).Scan(&raw, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, weather.ErrNoCacheEntry
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	// Unknown JSON fields are ignored on decode, keeping old entries
	// readable as the snapshot schema grows.
	var data weather.WeatherData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	stale := time.Since(storedAt) > s.maxAge
	if stale && !allowStale {
		return nil, weather.ErrNoCacheEntry
	}
	data.Stale = stale
	return &data, nil
}

// Clear removes every cached entry.
func (s *SQLiteStore) Clear() error {
	_, err := s.db.Exec(`DELETE FROM weather_cache`)
	return err
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

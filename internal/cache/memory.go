package cache

import (
	"sync"
	"time"

	"github.com/Orinks/AccessiWeather-sub007/internal/weather"
)

// entry couples a snapshot with the instant it was stored.
type entry struct {
	data     weather.WeatherData
	storedAt time.Time
}

// MemoryStore is a concurrency-safe in-memory weather cache with the same
// staleness semantics as the SQLite store. It backs tests and serves as the
// fail-open fallback when the on-disk cache cannot be opened.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]entry
	maxAge time.Duration
}

// NewMemoryStore creates an empty in-memory cache with the given TTL.
func NewMemoryStore(maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:   make(map[string]entry),
		maxAge: maxAge,
	}
}

// Store overwrites the entry for the location.
func (s *MemoryStore) Store(loc weather.Location, data *weather.WeatherData) error {
	storedAt := data.LastUpdated
	if storedAt.IsZero() {
		storedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[loc.Key()] = entry{data: *data, storedAt: storedAt}
	return nil
}

// Load returns a copy of the entry for the location, recomputing staleness
// against the TTL on every read.
func (s *MemoryStore) Load(loc weather.Location, allowStale bool) (*weather.WeatherData, error) {
	s.mu.RLock()
	e, ok := s.data[loc.Key()]
	s.mu.RUnlock()
	if !ok {
		return nil, weather.ErrNoCacheEntry
	}

	stale := time.Since(e.storedAt) > s.maxAge
	if stale && !allowStale {
		return nil, weather.ErrNoCacheEntry
	}
	data := e.data
	data.Stale = stale
	return &data, nil
}

// Clear removes every cached entry.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]entry)
	return nil
}

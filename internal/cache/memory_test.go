package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/Orinks/AccessiWeather-sub007/internal/weather"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore(time.Hour)

	if _, err := s.Load(testLoc, true); !errors.Is(err, weather.ErrNoCacheEntry) {
		t.Fatalf("expected miss on empty store, got %v", err)
	}

	if err := s.Store(testLoc, snapshot(70)); err != nil {
		t.Fatal(err)
	}
	data, err := s.Load(testLoc, false)
	if err != nil {
		t.Fatal(err)
	}
	if data.Stale || *data.Current.TempF != 70 {
		t.Errorf("unexpected load result: %+v", data)
	}
}

func TestMemoryStoreStaleness(t *testing.T) {
	s := NewMemoryStore(0)
	if err := s.Store(testLoc, snapshot(70)); err != nil {
		t.Fatal(err)
	}

	data, err := s.Load(testLoc, true)
	if err != nil {
		t.Fatal(err)
	}
	if !data.Stale {
		t.Error("expected stale entry with zero TTL")
	}

	if _, err := s.Load(testLoc, false); !errors.Is(err, weather.ErrNoCacheEntry) {
		t.Errorf("strict load of stale entry must miss, got %v", err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	if err := s.Store(testLoc, snapshot(70)); err != nil {
		t.Fatal(err)
	}

	first, err := s.Load(testLoc, true)
	if err != nil {
		t.Fatal(err)
	}
	first.Stale = true
	first.Discussion = "mutated"

	second, err := s.Load(testLoc, true)
	if err != nil {
		t.Fatal(err)
	}
	if second.Stale || second.Discussion != "" {
		t.Error("mutating a loaded snapshot must not affect the stored entry")
	}
}

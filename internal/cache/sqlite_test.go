package cache

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Orinks/AccessiWeather-sub007/internal/weather"
)

var testLoc = weather.Location{Name: "Philadelphia", Latitude: 39.95, Longitude: -75.17, CountryCode: "US"}

func snapshot(tempF float64) *weather.WeatherData {
	data := weather.EmptyWeatherData(testLoc)
	data.Current = &weather.CurrentConditions{TempF: weather.Float(tempF)}
	return data
}

func openTestStore(t *testing.T, maxAge time.Duration) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"), maxAge)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreAndLoadFresh(t *testing.T) {
	s := openTestStore(t, time.Hour)

	if err := s.Store(testLoc, snapshot(70)); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	data, err := s.Load(testLoc, false)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if data.Stale {
		t.Error("entry stored moments ago must not be stale")
	}
	if data.Current.TempF == nil || *data.Current.TempF != 70 {
		t.Errorf("snapshot did not round-trip: %+v", data.Current)
	}
}

func TestLoadMissReturnsSentinelError(t *testing.T) {
	s := openTestStore(t, time.Hour)

	if _, err := s.Load(testLoc, true); !errors.Is(err, weather.ErrNoCacheEntry) {
		t.Errorf("expected ErrNoCacheEntry, got %v", err)
	}
}

func TestStalenessSemantics(t *testing.T) {
	// maxAge 0 makes every entry stale immediately after storing.
	s := openTestStore(t, 0)

	if err := s.Store(testLoc, snapshot(70)); err != nil {
		t.Fatal(err)
	}

	data, err := s.Load(testLoc, true)
	if err != nil {
		t.Fatalf("allow-stale load failed: %v", err)
	}
	if !data.Stale {
		t.Error("aged entry must be flagged stale on read")
	}

	if _, err := s.Load(testLoc, false); !errors.Is(err, weather.ErrNoCacheEntry) {
		t.Errorf("strict load of a stale entry must miss, got %v", err)
	}
}

func TestStoreOverwritesEntirely(t *testing.T) {
	s := openTestStore(t, time.Hour)

	first := snapshot(60)
	first.Current.Humidity = weather.Float(80)
	if err := s.Store(testLoc, first); err != nil {
		t.Fatal(err)
	}
	if err := s.Store(testLoc, snapshot(70)); err != nil {
		t.Fatal(err)
	}

	data, err := s.Load(testLoc, false)
	if err != nil {
		t.Fatal(err)
	}
	if *data.Current.TempF != 70 {
		t.Errorf("expected the newer snapshot, got %v", *data.Current.TempF)
	}
	if data.Current.Humidity != nil {
		t.Error("store must fully overwrite, not merge, the prior entry")
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := OpenSQLite(path, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Store(testLoc, snapshot(70)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := OpenSQLite(path, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	data, err := s2.Load(testLoc, false)
	if err != nil {
		t.Fatalf("load after reopen failed: %v", err)
	}
	if *data.Current.TempF != 70 {
		t.Errorf("snapshot lost across reopen: %+v", data.Current)
	}
}

func TestUnknownSnapshotFieldsIgnored(t *testing.T) {
	s := openTestStore(t, time.Hour)
	if err := s.Store(testLoc, snapshot(70)); err != nil {
		t.Fatal(err)
	}

	// Simulate a snapshot written by a future version with extra fields.
	_, err := s.db.Exec(
		`UPDATE weather_cache SET snapshot = ? WHERE location_key = ?`,
		`{"location":{"name":"Philadelphia","latitude":39.95,"longitude":-75.17},"current":{"temp_f":70,"solar_flux":12.5},"future_field":true}`,
		testLoc.Key(),
	)
	if err != nil {
		t.Fatal(err)
	}

	data, err := s.Load(testLoc, true)
	if err != nil {
		t.Fatalf("load of forward-versioned snapshot failed: %v", err)
	}
	if data.Current.TempF == nil || *data.Current.TempF != 70 {
		t.Errorf("known fields must still decode: %+v", data.Current)
	}
}

func TestClearRemovesEverything(t *testing.T) {
	s := openTestStore(t, time.Hour)
	if err := s.Store(testLoc, snapshot(70)); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(testLoc, true); !errors.Is(err, weather.ErrNoCacheEntry) {
		t.Errorf("expected empty cache after clear, got %v", err)
	}
}

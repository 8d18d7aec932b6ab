package weather_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Orinks/AccessiWeather-sub007/internal/cache"
	"github.com/Orinks/AccessiWeather-sub007/internal/weather"
)

// fakeAdapter is a scriptable provider. Unset operations report
// ErrNotSupported; currentFn is counted so tests can assert how many
// underlying fetches ran.
type fakeAdapter struct {
	id           weather.ProviderID
	delay        time.Duration
	currentCalls atomic.Int64
	currentFn    func() (*weather.CurrentConditions, error)
}

func (f *fakeAdapter) ID() weather.ProviderID { return f.id }

func (f *fakeAdapter) FetchCurrent(ctx context.Context, loc weather.Location) (*weather.CurrentConditions, error) {
	f.currentCalls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.currentFn == nil {
		return nil, weather.ErrNotSupported
	}
	return f.currentFn()
}

func (f *fakeAdapter) FetchForecast(ctx context.Context, loc weather.Location) (*weather.Forecast, error) {
	return nil, weather.ErrNotSupported
}

func (f *fakeAdapter) FetchHourly(ctx context.Context, loc weather.Location) (*weather.HourlyForecast, error) {
	return nil, weather.ErrNotSupported
}

func (f *fakeAdapter) FetchAlerts(ctx context.Context, loc weather.Location) (*weather.WeatherAlerts, error) {
	return nil, weather.ErrNotSupported
}

func tempConditions(f float64) func() (*weather.CurrentConditions, error) {
	return func() (*weather.CurrentConditions, error) {
		return &weather.CurrentConditions{TempF: weather.Float(f)}, nil
	}
}

func newTestClient(c weather.Cache, adapters ...weather.Adapter) *weather.Client {
	engine := weather.NewEngine(weather.NewPriorityTable(0))
	return weather.NewClient(c, engine, adapters, weather.Options{
		DataSource:       "auto",
		ProviderTimeout:  2 * time.Second,
		EnrichmentWindow: 200 * time.Millisecond,
	})
}

var usLoc = weather.Location{Name: "Philadelphia", Latitude: 39.95, Longitude: -75.17, CountryCode: "US"}

func TestConcurrentCallersShareOneFetch(t *testing.T) {
	adapter := &fakeAdapter{id: weather.ProviderNWS, delay: 50 * time.Millisecond, currentFn: tempConditions(70)}
	client := newTestClient(cache.NewMemoryStore(time.Hour), adapter)

	const n = 8
	results := make([]*weather.WeatherData, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = client.GetWeather(context.Background(), usLoc, false)
		}()
	}
	wg.Wait()

	if got := adapter.currentCalls.Load(); got != 1 {
		t.Fatalf("expected exactly 1 underlying fetch, got %d", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d got error: %v", i, errs[i])
		}
		if results[i] == nil || results[i].Current.TempF == nil || *results[i].Current.TempF != 70 {
			t.Fatalf("caller %d got wrong result: %+v", i, results[i])
		}
	}
}

func TestFreshCacheShortCircuitsNetwork(t *testing.T) {
	adapter := &fakeAdapter{id: weather.ProviderNWS, currentFn: tempConditions(70)}
	store := cache.NewMemoryStore(time.Hour)
	client := newTestClient(store, adapter)

	if _, err := client.GetWeather(context.Background(), usLoc, false); err != nil {
		t.Fatalf("seed fetch failed: %v", err)
	}
	if got := adapter.currentCalls.Load(); got != 1 {
		t.Fatalf("expected 1 fetch after seed, got %d", got)
	}

	data, err := client.GetWeather(context.Background(), usLoc, false)
	if err != nil {
		t.Fatalf("cached read failed: %v", err)
	}
	if data.Stale {
		t.Error("fresh cache entry must not be stale")
	}
	if got := adapter.currentCalls.Load(); got != 1 {
		t.Errorf("fresh cache hit must not refetch, got %d fetches", got)
	}
}

func TestForceRefreshBypassesFreshCache(t *testing.T) {
	adapter := &fakeAdapter{id: weather.ProviderNWS, currentFn: tempConditions(70)}
	client := newTestClient(cache.NewMemoryStore(time.Hour), adapter)

	if _, err := client.GetWeather(context.Background(), usLoc, false); err != nil {
		t.Fatalf("seed fetch failed: %v", err)
	}

	adapter.currentFn = tempConditions(71)
	data, err := client.GetWeather(context.Background(), usLoc, true)
	if err != nil {
		t.Fatalf("forced fetch failed: %v", err)
	}
	if got := adapter.currentCalls.Load(); got != 2 {
		t.Fatalf("forced refresh must fetch despite fresh cache, got %d fetches", got)
	}
	if *data.Current.TempF != 71 {
		t.Errorf("forced refresh must return the live value, got %v", *data.Current.TempF)
	}
}

func TestForceRefreshDoesNotDisturbInflightFetch(t *testing.T) {
	adapter := &fakeAdapter{id: weather.ProviderNWS, delay: 100 * time.Millisecond, currentFn: tempConditions(70)}
	client := newTestClient(cache.NewMemoryStore(time.Hour), adapter)

	done := make(chan struct{})
	var shared *weather.WeatherData
	var sharedErr error
	go func() {
		defer close(done)
		shared, sharedErr = client.GetWeather(context.Background(), usLoc, false)
	}()

	time.Sleep(20 * time.Millisecond)
	if _, err := client.GetWeather(context.Background(), usLoc, true); err != nil {
		t.Fatalf("forced fetch failed: %v", err)
	}

	<-done
	if sharedErr != nil {
		t.Fatalf("in-flight caller failed: %v", sharedErr)
	}
	if shared == nil || !shared.HasData() {
		t.Fatal("in-flight caller must still resolve with data")
	}
	if got := adapter.currentCalls.Load(); got != 2 {
		t.Errorf("expected 2 fetches (shared + forced), got %d", got)
	}
}

func TestStaleCacheServedImmediatelyThenRefreshed(t *testing.T) {
	// maxAge 0 makes every stored entry stale on the next read.
	store := cache.NewMemoryStore(0)
	old := weather.EmptyWeatherData(usLoc)
	old.Current = &weather.CurrentConditions{TempF: weather.Float(50)}
	old.LastUpdated = time.Now().UTC().Add(-time.Hour)
	if err := store.Store(usLoc, old); err != nil {
		t.Fatal(err)
	}

	adapter := &fakeAdapter{id: weather.ProviderNWS, delay: 30 * time.Millisecond, currentFn: tempConditions(70)}
	client := newTestClient(store, adapter)

	start := time.Now()
	data, err := client.GetWeather(context.Background(), usLoc, false)
	if err != nil {
		t.Fatalf("stale read failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed >= adapter.delay {
		t.Errorf("stale read must not block on the network (took %s)", elapsed)
	}
	if !data.Stale {
		t.Error("expected stale flag on aged entry")
	}
	if *data.Current.TempF != 50 {
		t.Errorf("stale read must return the cached value, got %v", *data.Current.TempF)
	}

	// The background refresh happens without the caller waiting on it.
	deadline := time.Now().Add(2 * time.Second)
	for adapter.currentCalls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("background refresh never fetched")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestTotalFailureReturnsEmptySentinel(t *testing.T) {
	adapter := &fakeAdapter{id: weather.ProviderNWS, currentFn: func() (*weather.CurrentConditions, error) {
		return nil, errors.New("connection refused")
	}}
	client := newTestClient(cache.NewMemoryStore(time.Hour), adapter)

	data, err := client.GetWeather(context.Background(), usLoc, false)
	if err != nil {
		t.Fatalf("cache-first call must not surface total failure, got %v", err)
	}
	if data == nil {
		t.Fatal("expected the empty sentinel, got nil")
	}
	if data.Current == nil || data.Fcast == nil || data.Hourly == nil || data.Alerts == nil {
		t.Fatal("sentinel must have all sub-objects present")
	}
	if data.HasData() {
		t.Errorf("sentinel must be empty, got %+v", data)
	}

	// A forced call opted into a live round trip and may see the error.
	if _, err := client.GetWeather(context.Background(), usLoc, true); !errors.Is(err, weather.ErrTotalFetchFailure) {
		t.Errorf("forced call should surface ErrTotalFetchFailure, got %v", err)
	}
}

// brokenCache fails every operation with a non-sentinel error, as a
// corrupted or unwritable backing store would.
type brokenCache struct {
	loadCalls  atomic.Int64
	storeCalls atomic.Int64
}

func (b *brokenCache) Store(loc weather.Location, data *weather.WeatherData) error {
	b.storeCalls.Add(1)
	return errors.New("disk full")
}

func (b *brokenCache) Load(loc weather.Location, allowStale bool) (*weather.WeatherData, error) {
	b.loadCalls.Add(1)
	return nil, errors.New("database disk image is malformed")
}

func TestCacheFailuresFailOpen(t *testing.T) {
	adapter := &fakeAdapter{id: weather.ProviderNWS, currentFn: tempConditions(70)}
	broken := &brokenCache{}
	client := newTestClient(broken, adapter)

	data, err := client.GetWeather(context.Background(), usLoc, false)
	if err != nil {
		t.Fatalf("a broken cache must not fail the call: %v", err)
	}
	if broken.loadCalls.Load() == 0 {
		t.Fatal("cache load was never attempted")
	}
	if got := adapter.currentCalls.Load(); got != 1 {
		t.Fatalf("load failure must be treated as a miss and trigger a fetch, got %d fetches", got)
	}
	if data.Current.TempF == nil || *data.Current.TempF != 70 {
		t.Errorf("fetched data must be returned despite the broken cache: %+v", data.Current)
	}
	if broken.storeCalls.Load() == 0 {
		t.Fatal("cache store was never attempted")
	}

	// A cache-only read degrades to a miss rather than an error.
	if cached := client.GetCachedWeather(usLoc); cached != nil {
		t.Errorf("broken cache must read as a miss, got %+v", cached)
	}
}

func TestGetCachedWeatherNeverFetches(t *testing.T) {
	adapter := &fakeAdapter{id: weather.ProviderNWS, currentFn: tempConditions(70)}
	client := newTestClient(cache.NewMemoryStore(time.Hour), adapter)

	if data := client.GetCachedWeather(usLoc); data != nil {
		t.Fatalf("expected nil on cache miss, got %+v", data)
	}
	if got := adapter.currentCalls.Load(); got != 0 {
		t.Errorf("cache-only read must never call providers, got %d fetches", got)
	}
}

func TestEnrichmentSourcesContribute(t *testing.T) {
	primary := &fakeAdapter{id: weather.ProviderNWS, currentFn: tempConditions(70)}
	enrich := &fakeAdapter{id: weather.ProviderWeatherAPI, currentFn: func() (*weather.CurrentConditions, error) {
		return &weather.CurrentConditions{UVIndex: weather.Float(7)}, nil
	}}
	client := newTestClient(cache.NewMemoryStore(time.Hour), primary, enrich)

	data, err := client.GetWeather(context.Background(), usLoc, false)
	if err != nil {
		t.Fatal(err)
	}
	if data.Current.UVIndex == nil || *data.Current.UVIndex != 7 {
		t.Errorf("enrichment field missing from fused result: %+v", data.Current)
	}
	attr := data.Attribution.Current
	if attr.FieldSources["temp_f"] != weather.ProviderNWS || attr.FieldSources["uv_index"] != weather.ProviderWeatherAPI {
		t.Errorf("attribution wrong: %v", attr.FieldSources)
	}
}

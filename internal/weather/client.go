package weather

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Orinks/AccessiWeather-sub007/internal/metrics"
)

// ErrTotalFetchFailure means every contacted provider failed. It is surfaced
// only to callers that forced a live fetch; cache-first callers receive the
// empty sentinel instead.
var ErrTotalFetchFailure = errors.New("all weather providers failed")

// Continental US bounding box used by the region rule when no country code
// is present.
const (
	domesticLatMin = 24.5
	domesticLatMax = 49.5
	domesticLonMin = -125.0
	domesticLonMax = -66.5
)

// Options configures the client's fetch behaviour.
type Options struct {
	// DataSource selects the primary provider: "auto" applies the region
	// rule, "domestic"/"international" force a region, and a provider ID
	// bypasses the rule entirely.
	DataSource string

	// EnableAlerts controls whether alert fetches are issued at all.
	EnableAlerts bool

	// ProviderTimeout bounds each individual adapter operation.
	ProviderTimeout time.Duration

	// EnrichmentWindow bounds how long a fetch waits for secondary
	// providers after the primary has settled.
	EnrichmentWindow time.Duration
}

func (o Options) withDefaults() Options {
	if o.DataSource == "" {
		o.DataSource = "auto"
	}
	if o.ProviderTimeout <= 0 {
		o.ProviderTimeout = 10 * time.Second
	}
	if o.EnrichmentWindow <= 0 {
		o.EnrichmentWindow = 5 * time.Second
	}
	return o
}

// inflightFetch is a shared pending handle for one fetch-and-fuse cycle.
// data and err are written exactly once, before done is closed.
type inflightFetch struct {
	done chan struct{}
	data *WeatherData
	err  error
}

// Client is the fetch orchestrator. It serves cached data first, refreshes
// stale entries in the background, deduplicates concurrent fetches per
// location key, and fuses multi-provider results via the engine.
type Client struct {
	cache    Cache
	engine   *Engine
	adapters []Adapter
	byID     map[ProviderID]Adapter
	opts     Options

	mu       sync.Mutex
	inflight map[string]*inflightFetch
}

// NewClient creates a Client over the given cache, fusion engine and
// provider adapters. Adapter order is the tie-break order for unranked
// sources and the launch order for enrichment fetches.
func NewClient(cache Cache, engine *Engine, adapters []Adapter, opts Options) *Client {
	byID := make(map[ProviderID]Adapter, len(adapters))
	for _, a := range adapters {
		byID[a.ID()] = a
	}
	return &Client{
		cache:    cache,
		engine:   engine,
		adapters: adapters,
		byID:     byID,
		opts:     opts.withDefaults(),
		inflight: make(map[string]*inflightFetch),
	}
}

// GetWeather returns weather for the location, cache-first. A fresh cache
// entry is returned immediately; a stale one is returned immediately while
// a background refresh is kicked off. Otherwise the caller joins or starts
// the single in-flight fetch for the location key.
//
// forceRefresh bypasses both the cache and the in-flight map: it always
// starts its own fetch and is the only mode in which total provider failure
// is returned as an error.
func (c *Client) GetWeather(ctx context.Context, loc Location, forceRefresh bool) (*WeatherData, error) {
	if forceRefresh {
		data, err := c.fetchAndFuse(ctx, loc, true)
		if err != nil {
			return nil, err
		}
		return data, nil
	}

	if cached := c.loadCached(loc); cached != nil {
		if !cached.Stale {
			return cached, nil
		}
		c.refreshInBackground(loc)
		return cached, nil
	}

	return c.joinOrStart(ctx, loc)
}

// GetCachedWeather returns the cached snapshot for the location, stale or
// not, without ever touching the network. Returns nil when nothing is
// cached.
func (c *Client) GetCachedWeather(loc Location) *WeatherData {
	return c.loadCached(loc)
}

// loadCached reads the cache, failing open: any cache error is logged and
// treated as a miss so a network fetch can proceed.
func (c *Client) loadCached(loc Location) *WeatherData {
	data, err := c.cache.Load(loc, true)
	if err != nil {
		if errors.Is(err, ErrNoCacheEntry) {
			metrics.CacheOpsTotal.WithLabelValues("load", "miss").Inc()
		} else {
			metrics.CacheOpsTotal.WithLabelValues("load", "error").Inc()
			log.Printf("ERROR: cache load failed for %s: %v", loc.Key(), err)
		}
		return nil
	}
	if data.Stale {
		metrics.CacheOpsTotal.WithLabelValues("load", "hit_stale").Inc()
	} else {
		metrics.CacheOpsTotal.WithLabelValues("load", "hit").Inc()
	}
	return data
}

// refreshInBackground triggers a fire-and-forget refresh. Its failure is
// observable only via logs and metrics; the caller already has a stale
// answer. The in-flight map guarantees at most one refresh per key even if
// many stale reads race.
func (c *Client) refreshInBackground(loc Location) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.fetchBudget())
		defer cancel()
		if _, err := c.joinOrStart(ctx, loc); err != nil {
			log.Printf("background refresh failed for %s: %v", loc.Key(), err)
		}
	}()
}

// joinOrStart attaches to an existing in-flight fetch for the location key
// or starts one. Lookup and insert happen in a single critical section so
// two callers can never both observe "no entry" and start duplicate fetches.
func (c *Client) joinOrStart(ctx context.Context, loc Location) (*WeatherData, error) {
	key := loc.Key()

	c.mu.Lock()
	if f, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		metrics.DedupJoinsTotal.Inc()
		return awaitFetch(ctx, f)
	}
	f := &inflightFetch{done: make(chan struct{})}
	c.inflight[key] = f
	c.mu.Unlock()

	// The fetch runs detached from any single caller's context so that a
	// caller timing out does not cancel the cycle for the other waiters.
	go c.runFetch(f, key, loc)

	return awaitFetch(ctx, f)
}

func awaitFetch(ctx context.Context, f *inflightFetch) (*WeatherData, error) {
	select {
	case <-f.done:
		return f.data, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// runFetch executes one shared fetch-and-fuse cycle and resolves all
// waiters. The in-flight entry is removed on every path, panics included,
// so a crashed fetch never leaves the key stuck.
func (c *Client) runFetch(f *inflightFetch, key string, loc Location) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: fetch for %s panicked: %v", key, r)
			f.data = EmptyWeatherData(loc)
		}
		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
		close(f.done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), c.fetchBudget())
	defer cancel()

	data, err := c.fetchAndFuse(ctx, loc, false)
	if err != nil {
		// Total failure is swallowed here: shared waiters get the empty
		// sentinel so the UI keeps rendering "no data" instead of an error.
		log.Printf("ERROR: fetch for %s: %v", key, err)
	}
	f.data = data
}

// fetchBudget bounds one full fetch-and-fuse cycle.
func (c *Client) fetchBudget() time.Duration {
	return c.opts.ProviderTimeout + c.opts.EnrichmentWindow + 5*time.Second
}

// fetchAndFuse runs one complete cycle: primary fetch, concurrent
// enrichment fetches within a bounded window, fusion, cache store.
// On total failure it returns the empty sentinel along with
// ErrTotalFetchFailure; the caller decides whether the error surfaces.
func (c *Client) fetchAndFuse(ctx context.Context, loc Location, forced bool) (*WeatherData, error) {
	start := time.Now()
	fetchID := uuid.NewString()
	forcedLabel := "false"
	if forced {
		forcedLabel = "true"
	}

	domestic := c.isDomestic(loc)
	primary := c.primaryAdapter(domestic)
	if primary == nil {
		metrics.FetchCyclesTotal.WithLabelValues("failure", forcedLabel).Inc()
		return EmptyWeatherData(loc), ErrTotalFetchFailure
	}

	var secondaries []Adapter
	for _, a := range c.adapters {
		if a.ID() != primary.ID() {
			secondaries = append(secondaries, a)
		}
	}

	log.Printf("INFO: fetch %s: %s via %s (+%d enrichment), domestic=%t",
		fetchID, loc.Key(), primary.ID(), len(secondaries), domestic)

	// Enrichment fetches run concurrently with, not after, the primary.
	primCh := make(chan SourceData, 1)
	go func() { primCh <- c.fetchSource(ctx, primary, loc) }()

	secCh := make(chan SourceData, len(secondaries))
	for _, a := range secondaries {
		a := a
		go func() { secCh <- c.fetchSource(ctx, a, loc) }()
	}

	sources := make([]SourceData, 0, 1+len(secondaries))

	var prim SourceData
	select {
	case prim = <-primCh:
	case <-ctx.Done():
		prim = SourceData{Source: primary.ID()}
	}
	sources = append(sources, prim)

	// Collect secondaries until all settle or the enrichment window closes.
	if len(secondaries) > 0 {
		window := time.NewTimer(c.opts.EnrichmentWindow)
		settled := make(map[ProviderID]bool, len(secondaries))
	collect:
		for len(settled) < len(secondaries) {
			select {
			case s := <-secCh:
				settled[s.Source] = true
				sources = append(sources, s)
			case <-window.C:
				break collect
			case <-ctx.Done():
				break collect
			}
		}
		window.Stop()
		for _, a := range secondaries {
			if !settled[a.ID()] {
				sources = append(sources, SourceData{Source: a.ID()})
			}
		}
	}

	anySuccess := false
	for _, s := range sources {
		if s.Success {
			anySuccess = true
			break
		}
	}
	if !anySuccess {
		metrics.FetchCyclesTotal.WithLabelValues("failure", forcedLabel).Inc()
		return EmptyWeatherData(loc), ErrTotalFetchFailure
	}

	cur, curAttr := c.engine.MergeCurrent(sources, loc, domestic)
	fc, fcAttr := c.engine.MergeForecast(sources, loc, domestic)
	hr, hrAttr := c.engine.MergeHourly(sources, loc, domestic)
	var al *WeatherAlerts
	var alAttr SourceAttribution
	if c.opts.EnableAlerts {
		al, alAttr = c.engine.MergeAlerts(sources, loc, domestic)
	}

	for _, conf := range curAttr.Conflicts {
		metrics.ConflictsTotal.WithLabelValues(conf.FieldName).Inc()
	}

	data := EmptyWeatherData(loc)
	if cur != nil {
		data.Current = cur
	}
	if fc != nil {
		data.Fcast = fc
	}
	if hr != nil {
		data.Hourly = hr
	}
	if al != nil {
		data.Alerts = al
	}
	data.Attribution = AttributionSet{Current: curAttr, Fcast: fcAttr, Hourly: hrAttr, Alerts: alAttr}
	data.LastUpdated = time.Now().UTC()

	// Forecast discussion is best-effort from the primary provider.
	if dp, ok := primary.(DiscussionProvider); ok && prim.Success {
		dctx, dcancel := context.WithTimeout(ctx, c.opts.ProviderTimeout)
		if text, err := dp.FetchDiscussion(dctx, loc); err != nil {
			log.Printf("fetch %s: discussion from %s failed: %v", fetchID, primary.ID(), err)
		} else {
			data.Discussion = text
		}
		dcancel()
	}

	if err := c.cache.Store(loc, data); err != nil {
		// Fail open: a cache write failure must not fail the fetch.
		metrics.CacheOpsTotal.WithLabelValues("store", "error").Inc()
		log.Printf("ERROR: cache store failed for %s: %v", loc.Key(), err)
	} else {
		metrics.CacheOpsTotal.WithLabelValues("store", "ok").Inc()
	}

	metrics.FetchCyclesTotal.WithLabelValues("success", forcedLabel).Inc()
	metrics.FetchCycleDuration.Observe(time.Since(start).Seconds())
	log.Printf("INFO: fetch %s: done in %s, %d/%d sources succeeded",
		fetchID, time.Since(start).Round(time.Millisecond), len(curAttr.ContributingSources), len(sources))

	return data, nil
}

// fetchSource runs all data-kind operations for one adapter concurrently,
// each under its own timeout. Any adapter error is absorbed into
// Success=false for that kind; the source is successful when at least one
// kind came back.
func (c *Client) fetchSource(ctx context.Context, a Adapter, loc Location) SourceData {
	sd := SourceData{Source: a.ID()}
	var mu sync.Mutex
	var wg sync.WaitGroup

	run := func(op string, fetch func(context.Context) (func(*SourceData), error)) {
		defer wg.Done()
		opCtx, cancel := context.WithTimeout(ctx, c.opts.ProviderTimeout)
		defer cancel()
		apply, err := fetch(opCtx)
		switch {
		case err == nil:
			metrics.ProviderFetchesTotal.WithLabelValues(string(a.ID()), op, "ok").Inc()
			mu.Lock()
			apply(&sd)
			sd.Success = true
			mu.Unlock()
		case errors.Is(err, ErrNotSupported):
			metrics.ProviderFetchesTotal.WithLabelValues(string(a.ID()), op, "unsupported").Inc()
		default:
			metrics.ProviderFetchesTotal.WithLabelValues(string(a.ID()), op, "error").Inc()
			log.Printf("provider %s %s fetch failed for %s: %v", a.ID(), op, loc.Key(), err)
		}
	}

	wg.Add(3)
	go run("current", func(ctx context.Context) (func(*SourceData), error) {
		v, err := a.FetchCurrent(ctx, loc)
		return func(s *SourceData) { s.Current = v }, err
	})
	go run("forecast", func(ctx context.Context) (func(*SourceData), error) {
		v, err := a.FetchForecast(ctx, loc)
		return func(s *SourceData) { s.Fcast = v }, err
	})
	go run("hourly", func(ctx context.Context) (func(*SourceData), error) {
		v, err := a.FetchHourly(ctx, loc)
		return func(s *SourceData) { s.Hourly = v }, err
	})
	if c.opts.EnableAlerts {
		wg.Add(1)
		go run("alerts", func(ctx context.Context) (func(*SourceData), error) {
			v, err := a.FetchAlerts(ctx, loc)
			return func(s *SourceData) { s.Alerts = v }, err
		})
	}
	wg.Wait()

	return sd
}

// isDomestic applies the region rule: explicit DataSource region override,
// then country code, then the continental US bounding box.
func (c *Client) isDomestic(loc Location) bool {
	switch strings.ToLower(c.opts.DataSource) {
	case "domestic":
		return true
	case "international":
		return false
	}
	cc := strings.ToUpper(strings.TrimSpace(loc.CountryCode))
	if cc != "" {
		return cc == "US"
	}
	return loc.Latitude >= domesticLatMin && loc.Latitude <= domesticLatMax &&
		loc.Longitude >= domesticLonMin && loc.Longitude <= domesticLonMax
}

// primaryAdapter picks the primary provider: an explicit provider override
// in DataSource wins, otherwise the region decides, with a fallback to the
// first configured adapter.
func (c *Client) primaryAdapter(domestic bool) Adapter {
	if a, ok := c.byID[ProviderID(strings.ToLower(c.opts.DataSource))]; ok {
		return a
	}
	preferred := ProviderOpenMeteo
	if domestic {
		preferred = ProviderNWS
	}
	if a, ok := c.byID[preferred]; ok {
		return a
	}
	if len(c.adapters) > 0 {
		return c.adapters[0]
	}
	return nil
}

package weather

import (
	"context"
	"errors"
)

// ErrNotSupported is returned by adapters for data kinds the underlying
// provider cannot serve (e.g. Open-Meteo has no alert feed). The client
// treats it as an empty result, not a provider failure.
var ErrNotSupported = errors.New("data kind not supported by provider")

// Adapter abstracts one weather data provider. Each method returns
// the provider's view of one data kind, or an error. Adapters may retry
// and rate-limit internally but must respect the passed context.
type Adapter interface {
	ID() ProviderID
	FetchCurrent(ctx context.Context, loc Location) (*CurrentConditions, error)
	FetchForecast(ctx context.Context, loc Location) (*Forecast, error)
	FetchHourly(ctx context.Context, loc Location) (*HourlyForecast, error)
	FetchAlerts(ctx context.Context, loc Location) (*WeatherAlerts, error)
}

// DiscussionProvider is an optional extension for adapters that can serve
// a textual forecast discussion. The client type-asserts for it on the
// primary adapter.
type DiscussionProvider interface {
	FetchDiscussion(ctx context.Context, loc Location) (string, error)
}

// Cache is the contract the offline cache must satisfy. Load returns
// ErrNoCacheEntry when nothing usable is stored for the location;
// with allowStale=false a stale entry counts as unusable, with
// allowStale=true it is returned with Stale set.
type Cache interface {
	Store(loc Location, data *WeatherData) error
	Load(loc Location, allowStale bool) (*WeatherData, error)
}

// ErrNoCacheEntry is returned by Cache.Load when no usable entry exists.
var ErrNoCacheEntry = errors.New("no cached weather for location")

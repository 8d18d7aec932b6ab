package geo

import (
	"fmt"
	"strings"

	"github.com/kelvins/geocoder"

	"github.com/Orinks/AccessiWeather-sub007/internal/weather"
)

// Resolver turns a free-form place name into a weather.Location using the
// Google geocoding API.
type Resolver struct{}

// NewResolver configures the geocoder with the given API key. Returns nil
// when no key is configured, in which case name-only lookups are rejected
// upstream.
func NewResolver(apiKey string) *Resolver {
	if apiKey == "" {
		return nil
	}
	geocoder.ApiKey = apiKey
	return &Resolver{}
}

// Resolve geocodes a city (and optional country) into coordinates.
func (r *Resolver) Resolve(city, country string) (weather.Location, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return weather.Location{}, fmt.Errorf("city must not be empty")
	}

	addr := geocoder.Address{City: city, Country: country}
	loc, err := geocoder.Geocoding(addr)
	if err != nil {
		return weather.Location{}, fmt.Errorf("failed to geocode %q: %w", city, err)
	}

	return weather.Location{
		Name:        city,
		Latitude:    loc.Latitude,
		Longitude:   loc.Longitude,
		CountryCode: strings.ToUpper(country),
	}, nil
}

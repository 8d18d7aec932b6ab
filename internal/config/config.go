package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Orinks/AccessiWeather-sub007/internal/weather"
)

var validate = validator.New()

// AppConfig is the full application configuration. Every field has a typed
// default; values are validated once at load time.
type AppConfig struct {
	// Provider credentials. Adapters without a key are not registered.
	WeatherAPIKey        string
	VisualCrossingAPIKey string
	GeocoderAPIKey       string
	NWSUserAgent         string

	// DataSource selects the primary provider: auto applies the region
	// rule; domestic/international force a region; a provider ID is an
	// explicit override.
	DataSource string `validate:"oneof=auto domestic international nws openmeteo weatherapi visualcrossing"`

	// MaxAge is the cache freshness TTL.
	MaxAge time.Duration `validate:"min=0"`

	EnableAlerts bool

	// ConflictThreshold overrides the fusion disagreement threshold (°F);
	// 0 keeps the default.
	ConflictThreshold float64 `validate:"min=0"`

	// ProviderTimeout bounds each provider operation; EnrichmentWindow
	// bounds the wait for secondary providers after the primary settles.
	ProviderTimeout  time.Duration `validate:"gt=0"`
	EnrichmentWindow time.Duration `validate:"gt=0"`

	// RefreshInterval controls the background refresh of saved locations.
	RefreshInterval time.Duration `validate:"gt=0"`

	// Saved locations kept warm by the scheduler.
	Locations []weather.Location

	CachePath   string
	Port        string
	MetricsPort string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{
		WeatherAPIKey:        os.Getenv("WEATHERAPI_API_KEY"),
		VisualCrossingAPIKey: os.Getenv("VISUALCROSSING_API_KEY"),
		GeocoderAPIKey:       os.Getenv("GEOCODER_API_KEY"),
		NWSUserAgent:         os.Getenv("NWS_USER_AGENT"),
		DataSource:           getenvDefault("DATA_SOURCE", "auto"),
		EnableAlerts:         getenvBool("ENABLE_ALERTS", true),
		ConflictThreshold:    getenvFloat("CONFLICT_THRESHOLD", 0),
		CachePath:            getenvDefault("CACHE_PATH", "weather_cache.db"),
		Port:                 getenvDefault("PORT", "8080"),
		MetricsPort:          getenvDefault("METRICS_PORT", "9090"),
	}

	var err error
	if cfg.MaxAge, err = getenvDuration("MAX_AGE", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ProviderTimeout, err = getenvDuration("PROVIDER_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.EnrichmentWindow, err = getenvDuration("ENRICHMENT_WINDOW", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}

	if path := os.Getenv("LOCATIONS_FILE"); path != "" {
		locs, err := loadLocationsFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Locations = locs
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// locationsFile is the YAML shape of the saved-locations file.
type locationsFile struct {
	Locations []struct {
		Name        string  `yaml:"name"`
		Latitude    float64 `yaml:"latitude"`
		Longitude   float64 `yaml:"longitude"`
		CountryCode string  `yaml:"country_code"`
	} `yaml:"locations"`
}

func loadLocationsFile(path string) ([]weather.Location, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read locations file %s: %w", path, err)
	}
	var lf locationsFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("failed to parse locations file: %w", err)
	}
	var locs []weather.Location
	for _, l := range lf.Locations {
		if l.Name == "" {
			return nil, fmt.Errorf("locations file: every location needs a name")
		}
		locs = append(locs, weather.Location{
			Name:        l.Name,
			Latitude:    l.Latitude,
			Longitude:   l.Longitude,
			CountryCode: l.CountryCode,
		})
	}
	return locs, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

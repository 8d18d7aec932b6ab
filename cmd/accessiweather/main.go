package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/Orinks/AccessiWeather-sub007/internal/api/http"
	"github.com/Orinks/AccessiWeather-sub007/internal/cache"
	"github.com/Orinks/AccessiWeather-sub007/internal/config"
	"github.com/Orinks/AccessiWeather-sub007/internal/geo"
	"github.com/Orinks/AccessiWeather-sub007/internal/scheduler"
	"github.com/Orinks/AccessiWeather-sub007/internal/weather"
	"github.com/Orinks/AccessiWeather-sub007/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.ProviderTimeout,
	}

	// Provider adapters. Keyless providers are always available; keyed
	// enrichment providers join only when configured.
	adapters := []weather.Adapter{
		providers.NewNWSProvider(httpClient, cfg.NWSUserAgent),
		providers.NewOpenMeteoProvider(httpClient),
	}
	if cfg.WeatherAPIKey != "" {
		adapters = append(adapters, providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey))
	}
	if cfg.VisualCrossingAPIKey != "" {
		adapters = append(adapters, providers.NewVisualCrossingProvider(httpClient, cfg.VisualCrossingAPIKey))
	}

	// Offline cache. Failing to open the on-disk store degrades to an
	// in-memory cache rather than refusing to start.
	var weatherCache weather.Cache
	sqliteCache, err := cache.OpenSQLite(cfg.CachePath, cfg.MaxAge)
	if err != nil {
		log.Printf("ERROR: failed to open cache at %s, using in-memory cache: %v", cfg.CachePath, err)
		weatherCache = cache.NewMemoryStore(cfg.MaxAge)
	} else {
		defer sqliteCache.Close()
		weatherCache = sqliteCache
	}

	// Fusion engine and fetch orchestrator.
	engine := weather.NewEngine(weather.NewPriorityTable(cfg.ConflictThreshold))
	client := weather.NewClient(weatherCache, engine, adapters, weather.Options{
		DataSource:       cfg.DataSource,
		EnableAlerts:     cfg.EnableAlerts,
		ProviderTimeout:  cfg.ProviderTimeout,
		EnrichmentWindow: cfg.EnrichmentWindow,
	})

	// Optional geocoder for name-only lookups.
	var resolver httpapi.LocationResolver
	if r := geo.NewResolver(cfg.GeocoderAPIKey); r != nil {
		resolver = r
	}

	// Scheduler keeping saved locations warm.
	sched := scheduler.New(cfg.Locations, cfg.RefreshInterval, client)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "accessiweather",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "accessiweather",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, client, resolver)

	// Prometheus metrics on a separate listener.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":"+cfg.MetricsPort, mux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	// Start server with graceful shutdown
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}

// Package app builds the shared services of the API server, the refresh
// worker and the command-line tool from a loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/morningready/morningready/internal/config"
	"github.com/morningready/morningready/internal/database"
	"github.com/morningready/morningready/internal/event"
	"github.com/morningready/morningready/internal/eventparser"
	"github.com/morningready/morningready/internal/geocoding"
	"github.com/morningready/morningready/internal/geocoding/nominatim"
	"github.com/morningready/morningready/internal/items"
	"github.com/morningready/morningready/internal/plan"
	"github.com/morningready/morningready/internal/profile"
	"github.com/morningready/morningready/internal/provider/resilience"
	"github.com/morningready/morningready/internal/telemetry"
	"github.com/morningready/morningready/internal/travel"
	"github.com/morningready/morningready/internal/weather"
	"github.com/morningready/morningready/internal/weather/openmeteo"
	"github.com/morningready/morningready/internal/weather/openweathermap"
	"github.com/morningready/morningready/internal/weather/rediscache"
)

// ErrUnknownProvider is returned for an unsupported WEATHER_PROVIDER.
var ErrUnknownProvider = errors.New("unknown weather provider")

// NewLogger returns a JSON logger tagged with the service and version at the
// configured level. Unknown levels fall back to info.
func NewLogger(w io.Writer, serviceName string, cfg *config.Config) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	level, err := zerolog.ParseLevel(cfg.App.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", cfg.App.Version).
		Logger()
}

// Options tunes New.
type Options struct {
	// Meter records plan outcomes. Nil disables plan metrics.
	Meter metric.Meter

	// SkipMigrations leaves the schema untouched on postgres storage.
	SkipMigrations bool
}

// App holds the services built from one configuration.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Registry *resilience.Registry

	Weather  *weather.Service
	Geocoder *geocoding.Service
	Planner  *plan.Planner
	Parser   *eventparser.Parser
	Events   *event.Service
	Items    *items.Service
	Profiles *profile.Service

	// Subsystems are the hard dependencies reported by readiness.
	Subsystems map[string]database.Pinger

	pool  *pgxpool.Pool
	redis *redis.Client
}

// New connects the configured storage and cache and builds every service.
// Close releases the connections.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*App, error) {
	a := &App{
		Config:     cfg,
		Logger:     logger,
		Registry:   resilience.NewRegistry(),
		Subsystems: make(map[string]database.Pinger),
	}

	if err := a.openStorage(ctx, opts.SkipMigrations); err != nil {
		a.Close()
		return nil, err
	}

	var shared weather.Cache
	if cfg.Redis.Addr != "" {
		client, err := rediscache.NewClient(ctx, rediscache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.redis = client
		cache := rediscache.New(client, cfg.Redis.Prefix)
		a.Subsystems["redis"] = cache
		shared = cache
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis cache connected")
	}

	provider, err := NewWeatherProvider(cfg.Weather, a.Registry, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Weather = weather.NewService(weather.ServiceConfig{
		Provider:        provider,
		Cache:           shared,
		Logger:          logger.With().Str("component", "weather").Logger(),
		CacheTTL:        cfg.Weather.CacheTTL,
		CacheGridSize:   cfg.Weather.GridSize,
		StaleIfErrorTTL: cfg.Weather.StaleTTL,
	})

	a.Geocoder = NewGeocoder(cfg.Geocoding, a.Registry, logger)

	var recorder plan.Recorder
	if opts.Meter != nil {
		m, err := telemetry.NewPlanMetrics(opts.Meter)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("plan metrics: %w", err)
		}
		recorder = m
	}
	a.Planner = plan.NewPlanner(plan.Config{
		Estimator: travel.NewEstimator(cfg.Heuristics.TravelConfig()),
		Recorder:  recorder,
		Logger:    logger,
	})
	a.Parser = eventparser.New(eventparser.Config{Location: cfg.Location()})

	return a, nil
}

func (a *App) openStorage(ctx context.Context, skipMigrations bool) error {
	if !a.Config.UsesPostgres() {
		a.Events = event.NewService(event.ServiceConfig{Repository: event.NewInMemoryRepository(), Logger: a.Logger})
		a.Items = items.NewService(items.NewInMemoryRepository())
		a.Profiles = profile.NewService(profile.NewInMemoryRepository())
		a.Logger.Warn().Msg("using in-memory storage, data is lost on restart")
		return nil
	}

	dbConfig := database.FromConfig(a.Config.Database)
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	a.pool = pool
	a.Subsystems["database"] = pool
	a.Logger.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	if !skipMigrations {
		if _, err := database.Migrate(ctx, pool, a.Logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	a.Events = event.NewService(event.ServiceConfig{Repository: event.NewPostgresRepository(pool), Logger: a.Logger})
	a.Items = items.NewService(items.NewPostgresRepository(pool))
	a.Profiles = profile.NewService(profile.NewPostgresRepository(pool))
	return nil
}

// Pool returns the database pool, or nil on memory storage.
func (a *App) Pool() *pgxpool.Pool {
	return a.pool
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("closing redis")
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// NewWeatherProvider builds the configured forecast provider behind a
// resilient client registered in registry.
func NewWeatherProvider(c config.Weather, registry *resilience.Registry, logger zerolog.Logger) (weather.Provider, error) {
	clientConfig := resilience.ClientConfig{
		Name:       c.Provider,
		Timeout:    c.Timeout,
		MaxRetries: c.MaxRetries,
		Registry:   registry,
	}

	switch c.Provider {
	case config.WeatherOpenMeteo:
		return openmeteo.NewClient(openmeteo.ClientConfig{
			BaseURL:    c.BaseURL,
			HTTPClient: resilience.NewClient(clientConfig),
			Logger:     logger,
		}), nil
	case config.WeatherOpenWeatherMap:
		return openweathermap.NewClient(openweathermap.ClientConfig{
			APIKey:     c.APIKey,
			HTTPClient: resilience.NewClient(clientConfig),
			Logger:     logger,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, c.Provider)
	}
}

// NewGeocoder builds the cached Nominatim resolver behind a resilient client
// registered in registry.
func NewGeocoder(c config.Geocoding, registry *resilience.Registry, logger zerolog.Logger) *geocoding.Service {
	return geocoding.NewService(geocoding.ServiceConfig{
		Resolver: nominatim.NewClient(nominatim.ClientConfig{
			BaseURL: c.BaseURL,
			HTTPClient: resilience.NewClient(resilience.ClientConfig{
				Name:      nominatim.ProviderName,
				UserAgent: c.UserAgent,
				Registry:  registry,
			}),
			Logger: logger,
		}),
		Logger:   logger.With().Str("component", "geocoding").Logger(),
		CacheTTL: c.CacheTTL,
	})
}

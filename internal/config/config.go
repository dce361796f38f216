// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/morningready/morningready/internal/travel"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Weather providers.
const (
	WeatherOpenMeteo      = "open-meteo"
	WeatherOpenWeatherMap = "openweathermap"
)

// DevSigningKey is used when JWT_SIGNING_KEY is unset outside production.
const DevSigningKey = "local-dev-signing-key-change-in-production"

// Config is the full process configuration.
type Config struct {
	App        App        `envPrefix:"APP_"`
	Database   Database   `envPrefix:"DB_"`
	Redis      Redis      `envPrefix:"REDIS_"`
	Weather    Weather    `envPrefix:"WEATHER_"`
	Geocoding  Geocoding  `envPrefix:"GEOCODING_"`
	JWT        JWT        `envPrefix:"JWT_"`
	Telemetry  Telemetry  `envPrefix:"OTEL_"`
	Worker     Worker     `envPrefix:"WORKER_"`
	Heuristics Heuristics `envPrefix:"HEURISTICS_"`
}

// App holds process-wide settings.
type App struct {
	Port     string `env:"PORT" envDefault:"8080"`
	Env      string `env:"ENV" envDefault:"development"`
	Version  string `env:"VERSION" envDefault:"dev"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Storage selects the repository backend: memory or postgres.
	Storage string `env:"STORAGE" envDefault:"memory"`

	// TimeZone interprets wall-clock times in parsed event text.
	TimeZone string `env:"TIME_ZONE" envDefault:"Local"`
}

// Database holds PostgreSQL settings.
type Database struct {
	Host            string        `env:"HOST" envDefault:"localhost"`
	Port            int           `env:"PORT" envDefault:"5432"`
	User            string        `env:"USER" envDefault:"morningready"`
	Password        string        `env:"PASSWORD" envDefault:"localdev"`
	Name            string        `env:"NAME" envDefault:"morningready"`
	SSLMode         string        `env:"SSL_MODE" envDefault:"disable"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"2"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"5m"`
}

// Redis holds the shared weather cache settings. An empty Addr disables it.
type Redis struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
	Prefix   string `env:"PREFIX" envDefault:"morningready"`
}

// Weather holds forecast provider and cache settings.
type Weather struct {
	Provider     string        `env:"PROVIDER" envDefault:"open-meteo"`
	APIKey       string        `env:"API_KEY"`
	BaseURL      string        `env:"BASE_URL" envDefault:"https://api.open-meteo.com/v1"`
	CacheTTL     time.Duration `env:"CACHE_TTL" envDefault:"30m"`
	StaleTTL     time.Duration `env:"STALE_TTL" envDefault:"6h"`
	GridSize     float64       `env:"GRID_SIZE" envDefault:"0.1"`
	Timeout      time.Duration `env:"TIMEOUT" envDefault:"10s"`
	MaxRetries   uint64        `env:"MAX_RETRIES" envDefault:"3"`
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT" envDefault:"15s"`
}

// Geocoding holds Nominatim settings.
type Geocoding struct {
	BaseURL   string        `env:"BASE_URL" envDefault:"https://nominatim.openstreetmap.org"`
	UserAgent string        `env:"USER_AGENT" envDefault:"morningready/1.0 (+https://github.com/morningready/morningready)"`
	CacheTTL  time.Duration `env:"CACHE_TTL" envDefault:"24h"`
}

// JWT holds access token settings.
type JWT struct {
	SigningKey string        `env:"SIGNING_KEY"`
	Issuer     string        `env:"ISSUER" envDefault:"morningready"`
	Audience   string        `env:"AUDIENCE" envDefault:"morningready-api"`
	TTL        time.Duration `env:"TTL" envDefault:"1h"`
}

// Telemetry holds OpenTelemetry settings.
type Telemetry struct {
	Enabled  bool   `env:"ENABLED" envDefault:"false"`
	Endpoint string `env:"EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
}

// Worker holds the prefetch worker settings.
type Worker struct {
	Schedule     string        `env:"SCHEDULE" envDefault:"*/30 * * * *"`
	Concurrency  int           `env:"CONCURRENCY" envDefault:"3"`
	Timeout      time.Duration `env:"TIMEOUT" envDefault:"30s"`
	Lookahead    time.Duration `env:"LOOKAHEAD" envDefault:"48h"`
	ProjectID    string        `env:"PUBSUB_PROJECT_ID"`
	Subscription string        `env:"PUBSUB_SUBSCRIPTION" envDefault:"weather-refresh"`
	HealthPort   string        `env:"HEALTH_PORT" envDefault:"8081"`
}

// Heuristics holds the travel estimation constants.
type Heuristics struct {
	WalkKmh                float64 `env:"WALK_KMH" envDefault:"4.5"`
	BikeKmh                float64 `env:"BIKE_KMH" envDefault:"14"`
	CarKmh                 float64 `env:"CAR_KMH" envDefault:"22"`
	TrainKmh               float64 `env:"TRAIN_KMH" envDefault:"20"`
	BusKmh                 float64 `env:"BUS_KMH" envDefault:"20"`
	TransitOverheadMinutes int     `env:"TRANSIT_OVERHEAD_MINUTES" envDefault:"10"`
	MinimumMinutes         int     `env:"MINIMUM_MINUTES" envDefault:"5"`
	FallbackMinutes        int     `env:"FALLBACK_MINUTES" envDefault:"35"`
}

// Options controls Load.
type Options struct {
	// EnvFiles are loaded before parsing; missing files are skipped.
	// Defaults to ".env".
	EnvFiles []string

	// Environment replaces the process environment when non-nil.
	Environment map[string]string
}

// Load reads the optional env files and parses the environment.
// Variables already set in the process take precedence over file values.
func Load(opts Options) (*Config, error) {
	files := opts.EnvFiles
	if files == nil {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	parseOpts := env.Options{}
	if opts.Environment != nil {
		parseOpts.Environment = opts.Environment
	}
	if err := env.Parse(&cfg, parseOpts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints and fills the development signing key.
func (c *Config) Validate() error {
	var problems []string

	switch c.App.Storage {
	case StorageMemory, StoragePostgres:
	default:
		problems = append(problems, fmt.Sprintf("APP_STORAGE must be %q or %q", StorageMemory, StoragePostgres))
	}

	switch c.Weather.Provider {
	case WeatherOpenMeteo:
	case WeatherOpenWeatherMap:
		if c.Weather.APIKey == "" {
			problems = append(problems, "WEATHER_API_KEY is required for openweathermap")
		}
	default:
		problems = append(problems, fmt.Sprintf("WEATHER_PROVIDER must be %q or %q", WeatherOpenMeteo, WeatherOpenWeatherMap))
	}

	if _, err := time.LoadLocation(c.App.TimeZone); err != nil {
		problems = append(problems, fmt.Sprintf("APP_TIME_ZONE %q is not a known zone", c.App.TimeZone))
	}

	if c.JWT.SigningKey == "" {
		if c.IsProduction() {
			problems = append(problems, "JWT_SIGNING_KEY is required in production")
		} else {
			c.JWT.SigningKey = DevSigningKey
		}
	}

	if c.Worker.Concurrency < 1 {
		problems = append(problems, "WORKER_CONCURRENCY must be at least 1")
	}

	for name, v := range map[string]float64{
		"HEURISTICS_WALK_KMH":  c.Heuristics.WalkKmh,
		"HEURISTICS_BIKE_KMH":  c.Heuristics.BikeKmh,
		"HEURISTICS_CAR_KMH":   c.Heuristics.CarKmh,
		"HEURISTICS_TRAIN_KMH": c.Heuristics.TrainKmh,
		"HEURISTICS_BUS_KMH":   c.Heuristics.BusKmh,
	} {
		if v <= 0 {
			problems = append(problems, name+" must be positive")
		}
	}

	if c.Heuristics.TransitOverheadMinutes < 0 {
		problems = append(problems, "HEURISTICS_TRANSIT_OVERHEAD_MINUTES must not be negative")
	}

	if c.Heuristics.MinimumMinutes < 1 {
		problems = append(problems, "HEURISTICS_MINIMUM_MINUTES must be at least 1")
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// Location returns the configured time zone. Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

// UsesPostgres reports whether repositories are backed by PostgreSQL.
func (c *Config) UsesPostgres() bool {
	return c.App.Storage == StoragePostgres
}

// TravelConfig converts the heuristics into estimator settings.
func (h Heuristics) TravelConfig() travel.Config {
	overhead := h.TransitOverheadMinutes
	return travel.Config{
		Speeds: map[travel.Mode]float64{
			travel.ModeWalk:  h.WalkKmh,
			travel.ModeBike:  h.BikeKmh,
			travel.ModeCar:   h.CarKmh,
			travel.ModeTrain: h.TrainKmh,
			travel.ModeBus:   h.BusKmh,
		},
		TransitOverheadMinutes: &overhead,
		MinimumMinutes:         h.MinimumMinutes,
		FallbackMinutes:        h.FallbackMinutes,
	}
}

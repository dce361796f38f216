// Package main provides the entrypoint for the MorningReady API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/morningready/morningready/internal/api"
	"github.com/morningready/morningready/internal/api/middleware"
	"github.com/morningready/morningready/internal/app"
	"github.com/morningready/morningready/internal/auth"
	"github.com/morningready/morningready/internal/config"
	"github.com/morningready/morningready/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "morningready-api"

func main() {
	cfg, err := loadConfig(config.Options{})
	if err != nil {
		bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := app.NewLogger(os.Stdout, serviceName, cfg)
	log.Info().
		Str("build_time", BuildTime).
		Str("storage", cfg.App.Storage).
		Str("weather_provider", cfg.Weather.Provider).
		Msg("starting MorningReady API")

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

// loadConfig reads the configuration and stamps the build version unless
// APP_VERSION overrides it.
func loadConfig(opts config.Options) (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, err
	}
	if cfg.App.Version == "dev" {
		cfg.App.Version = Version
	}
	return cfg, nil
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.FromConfig(serviceName, cfg))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()
	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.Endpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics(tp.Meter)
	if err != nil {
		return err
	}

	services, err := app.New(ctx, cfg, log, app.Options{Meter: tp.Meter})
	if err != nil {
		return err
	}
	defer services.Close()

	if cfg.JWT.SigningKey == config.DevSigningKey {
		log.Warn().Msg("using development JWT signing key - not secure for production")
	}

	router := api.NewRouter(api.RouterConfig{
		Version:     cfg.App.Version,
		BuildTime:   BuildTime,
		ServiceName: serviceName,
		Logger:      log,
		Metrics:     metrics,
		RequireTLS:  cfg.IsProduction(),

		Tokens:   auth.NewJWTService(auth.FromConfig(cfg.JWT)),
		Planner:  services.Planner,
		Weather:  services.Weather,
		Geocoder: services.Geocoder,
		Events:   services.Events,
		Items:    services.Items,
		Profiles: services.Profiles,
		Parser:   services.Parser,

		WeatherTimeout: cfg.Weather.FetchTimeout,
		Location:       cfg.Location(),

		Registry:   services.Registry,
		Subsystems: services.Subsystems,
	})

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

// Package main provides the entrypoint for the forecast refresh worker.
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

	"github.com/morningready/morningready/internal/app"
	"github.com/morningready/morningready/internal/config"
	"github.com/morningready/morningready/internal/telemetry"
	"github.com/morningready/morningready/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "morningready-worker"

func main() {
	cfg, err := loadConfig(config.Options{})
	if err != nil {
		bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := app.NewLogger(os.Stdout, serviceName, cfg)
	log.Info().
		Str("build_time", BuildTime).
		Str("schedule", cfg.Worker.Schedule).
		Msg("starting MorningReady worker")

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("worker exited")
		os.Exit(1)
	}
	log.Info().Msg("worker stopped")
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
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	// The API server owns migrations.
	services, err := app.New(ctx, cfg, log, app.Options{SkipMigrations: true})
	if err != nil {
		return err
	}
	defer services.Close()

	job, err := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:   worker.FromConfig(cfg.Worker),
		Logger:   log.With().Str("component", "refresh").Logger(),
		Weather:  services.Weather,
		Events:   services.Events,
		Profiles: services.Profiles,
		Meter:    tp.Meter,
		Location: cfg.Location(),
	})
	if err != nil {
		return err
	}

	scheduler, err := worker.NewScheduler(job.Config().Schedule, job, log)
	if err != nil {
		return err
	}
	scheduler.Start()
	log.Info().Time("next_run_at", scheduler.Next()).Msg("refresh scheduled")

	errCh := make(chan error, 2)

	if cfg.Worker.ProjectID != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.Worker.ProjectID,
			SubscriptionName: cfg.Worker.Subscription,
			Refresher:        job,
			Logger:           log.With().Str("component", "pubsub").Logger(),
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := handler.Close(); err != nil {
				log.Warn().Err(err).Msg("closing pubsub client")
			}
		}()

		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()
	}

	server := &http.Server{
		Addr:         ":" + cfg.Worker.HealthPort,
		Handler:      worker.HealthHandler(cfg.App.Version, job, scheduler.Next),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case runErr = <-errCh:
	case <-quit:
		log.Info().Msg("shutting down worker")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := scheduler.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("refresh still running at shutdown")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

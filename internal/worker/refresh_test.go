package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/morningready/morningready/internal/config"
	"github.com/morningready/morningready/internal/event"
	"github.com/morningready/morningready/internal/geo"
	"github.com/morningready/morningready/internal/profile"
	"github.com/morningready/morningready/internal/weather"
	"github.com/morningready/morningready/internal/weather/weathertest"
	"github.com/morningready/morningready/internal/worker"
)

var (
	now      = time.Date(2025, 1, 10, 6, 0, 0, 0, time.UTC)
	kamakura = geo.Coordinate{Lat: 35.3192, Lon: 139.5467}
)

func clock() time.Time { return now }

type fixture struct {
	events   *event.Service
	profiles *profile.Service
	provider *weathertest.Provider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		events: event.NewService(event.ServiceConfig{
			Repository: event.NewInMemoryRepository(),
			Logger:     zerolog.Nop(),
			Now:        clock,
		}),
		profiles: profile.NewService(profile.NewInMemoryRepository()),
		provider: weathertest.NewProvider(),
	}

	_, err := f.profiles.Apply(ctx, "usr_1", profile.Update{Home: &kamakura})
	require.NoError(t, err)

	for _, e := range []struct {
		user  string
		title string
		start time.Time
	}{
		{"usr_1", "Morning meeting", time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)},
		{"usr_1", "Dinner", time.Date(2025, 1, 10, 18, 0, 0, 0, time.UTC)},
		{"usr_2", "Gym", time.Date(2025, 1, 11, 9, 0, 0, 0, time.UTC)},
		{"usr_2", "Trip", time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)},
	} {
		_, err := f.events.Create(ctx, e.user, event.Draft{Title: e.title, Start: e.start, Place: "somewhere"})
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) job(t *testing.T, mutate func(*worker.RefreshJobConfig)) *worker.RefreshJob {
	t.Helper()
	cfg := worker.RefreshJobConfig{
		Config:   worker.DefaultRefreshConfig(),
		Logger:   zerolog.Nop(),
		Weather:  f.provider,
		Events:   f.events,
		Profiles: f.profiles,
		Now:      clock,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	job, err := worker.NewRefreshJob(cfg)
	require.NoError(t, err)
	return job
}

func TestDefaultRefreshConfig(t *testing.T) {
	cfg := worker.DefaultRefreshConfig()

	assert.Equal(t, worker.DefaultSchedule, cfg.Schedule)
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 48*time.Hour, cfg.Lookahead)
	require.Len(t, cfg.Anchors, 1)
	assert.Equal(t, profile.DefaultHome, cfg.Anchors[0].Coordinate)
}

func TestFromConfig(t *testing.T) {
	cfg := worker.FromConfig(config.Worker{
		Schedule:    "0 5 * * *",
		Concurrency: 8,
		Timeout:     5 * time.Second,
		Lookahead:   24 * time.Hour,
	})

	assert.Equal(t, "0 5 * * *", cfg.Schedule)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Lookahead)

	defaults := worker.FromConfig(config.Worker{})
	assert.Equal(t, worker.DefaultRefreshConfig(), defaults)
}

func TestNewRefreshJob_FillsZeroConfig(t *testing.T) {
	job, err := worker.NewRefreshJob(worker.RefreshJobConfig{Logger: zerolog.Nop()})
	require.NoError(t, err)

	cfg := job.Config()
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, worker.DefaultSchedule, cfg.Schedule)
	assert.Empty(t, cfg.Anchors)
}

func TestRefreshJob_Targets(t *testing.T) {
	f := newFixture(t)
	job := f.job(t, nil)

	targets, err := job.Targets(context.Background())
	require.NoError(t, err)

	type key struct {
		coord geo.Coordinate
		date  string
	}
	got := make([]key, 0, len(targets))
	for _, tg := range targets {
		got = append(got, key{tg.Coordinate, tg.Date.Format(weather.DateLayout)})
	}

	// Same-day events share a target, the trip is beyond the lookahead and
	// usr_2 lives at the default home, which the anchor already covers.
	assert.Equal(t, []key{
		{kamakura, "2025-01-10"},
		{profile.DefaultHome, "2025-01-11"},
		{profile.DefaultHome, "2025-01-10"},
	}, got)
}

func TestRefreshJob_TargetsUseLocation(t *testing.T) {
	f := newFixture(t)
	job := f.job(t, func(cfg *worker.RefreshJobConfig) {
		cfg.Location = time.FixedZone("JST", 9*60*60)
	})

	targets, err := job.Targets(context.Background())
	require.NoError(t, err)

	got := make([]string, 0, len(targets))
	for _, tg := range targets {
		got = append(got, tg.Name+" "+tg.Date.Format(weather.DateLayout))
	}

	// Dinner at 18:00 UTC falls on the next day in Tokyo.
	require.Len(t, targets, 4)
	assert.Equal(t, kamakura, targets[0].Coordinate)
	assert.Equal(t, "2025-01-10", targets[0].Date.Format(weather.DateLayout))
	assert.Equal(t, kamakura, targets[1].Coordinate)
	assert.Equal(t, "2025-01-11", targets[1].Date.Format(weather.DateLayout), got)
	assert.Equal(t, profile.DefaultHome, targets[2].Coordinate)
	assert.Equal(t, "2025-01-11", targets[2].Date.Format(weather.DateLayout))
	assert.Equal(t, profile.DefaultHome, targets[3].Coordinate)
	assert.Equal(t, "2025-01-10", targets[3].Date.Format(weather.DateLayout))
}

func TestRefreshJob_TargetsWithoutEvents(t *testing.T) {
	f := newFixture(t)
	job := f.job(t, func(cfg *worker.RefreshJobConfig) { cfg.Events = nil })

	targets, err := job.Targets(context.Background())
	require.NoError(t, err)
	assert.Len(t, targets, 2)
}

func TestRefreshJob_TargetsDedupeByCacheGrid(t *testing.T) {
	f := newFixture(t)
	svc := weather.NewService(weather.ServiceConfig{Provider: f.provider, Logger: zerolog.Nop(), Now: clock})

	near := geo.Coordinate{Lat: kamakura.Lat + 0.01, Lon: kamakura.Lon + 0.01}
	job := f.job(t, func(cfg *worker.RefreshJobConfig) {
		cfg.Weather = svc
		cfg.Config.Anchors = []worker.Anchor{{Name: "near", Coordinate: near}}
	})

	targets, err := job.Targets(context.Background())
	require.NoError(t, err)

	// The anchor's today target falls in the same grid cell as usr_1's home.
	dates := map[string]int{}
	for _, tg := range targets {
		dates[tg.Date.Format(weather.DateLayout)]++
	}
	assert.Equal(t, 1, dates["2025-01-10"])
}

func TestRefreshJob_Run(t *testing.T) {
	f := newFixture(t)
	job := f.job(t, nil)

	result := job.Run(context.Background())

	assert.Equal(t, 3, result.TotalTargets)
	assert.Equal(t, 3, result.Successful)
	assert.Zero(t, result.Failed)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 3, f.provider.CallCount())

	metrics := job.GetMetrics()
	assert.Equal(t, int64(1), metrics.TotalRuns)
	assert.Equal(t, int64(3), metrics.SuccessfulRefresh)
	assert.Equal(t, now, metrics.LastRefreshAt)
}

func TestRefreshJob_Run_WarmsWeatherCache(t *testing.T) {
	f := newFixture(t)
	svc := weather.NewService(weather.ServiceConfig{Provider: f.provider, Logger: zerolog.Nop(), Now: clock})
	job := f.job(t, func(cfg *worker.RefreshJobConfig) { cfg.Weather = svc })

	result := job.Run(context.Background())
	require.Equal(t, 3, result.Successful)
	assert.Equal(t, 3, svc.CacheStats().FreshEntries)

	_, err := svc.GetForecast(context.Background(), kamakura, time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 3, f.provider.CallCount(), "plan-time lookup must hit the cache")
}

func TestRefreshJob_Run_ProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.provider.SetError(errors.New("upstream down"))
	job := f.job(t, nil)

	result := job.Run(context.Background())

	assert.Zero(t, result.Successful)
	assert.Equal(t, 3, result.Failed)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0].Error, "upstream down")
	assert.Equal(t, int64(3), job.GetMetrics().FailedRefreshes)
}

func TestRefreshJob_Run_Timeout(t *testing.T) {
	f := newFixture(t)
	release := f.provider.Block()
	defer release()

	job := f.job(t, func(cfg *worker.RefreshJobConfig) {
		cfg.Config.Timeout = 20 * time.Millisecond
	})

	result := job.Run(context.Background())
	assert.Equal(t, 3, result.Failed)
}

func TestRefreshJob_Run_ContextCancelled(t *testing.T) {
	f := newFixture(t)
	job := f.job(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := job.Run(ctx)
	assert.Equal(t, result.TotalTargets, result.Failed)
	assert.Zero(t, f.provider.CallCount())
}

func TestRefreshJob_Run_NoProvider(t *testing.T) {
	f := newFixture(t)
	job := f.job(t, func(cfg *worker.RefreshJobConfig) { cfg.Weather = nil })

	result := job.Run(context.Background())
	assert.Zero(t, result.TotalTargets)
	assert.Zero(t, job.GetMetrics().TotalRuns)
}

type failingEvents struct{}

func (failingEvents) Upcoming(context.Context, time.Duration) ([]*event.Event, error) {
	return nil, errors.New("database unavailable")
}

func TestRefreshJob_Run_EventSourceFailure(t *testing.T) {
	f := newFixture(t)
	job := f.job(t, func(cfg *worker.RefreshJobConfig) { cfg.Events = failingEvents{} })

	result := job.Run(context.Background())

	assert.Equal(t, 2, result.TotalTargets, "anchors are still refreshed")
	assert.Equal(t, 2, result.Successful)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "events", result.Errors[0].Target.Name)
}

func TestRefreshJob_RecordsMetric(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	f := newFixture(t)
	job := f.job(t, func(cfg *worker.RefreshJobConfig) { cfg.Meter = mp.Meter("test") })
	job.Run(context.Background())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "weather.refresh" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				outcome, _ := dp.Attributes.Value("outcome")
				assert.Equal(t, "ok", outcome.AsString())
				total += dp.Value
			}
		}
	}
	assert.Equal(t, int64(3), total)
}

func TestRefreshJob_HealthCheck(t *testing.T) {
	f := newFixture(t)

	job := f.job(t, nil)
	require.NoError(t, job.HealthCheck(context.Background()))
	assert.Equal(t, 1, f.provider.CallCount())

	f.provider.SetError(errors.New("down"))
	assert.Error(t, job.HealthCheck(context.Background()))

	noProvider := f.job(t, func(cfg *worker.RefreshJobConfig) { cfg.Weather = nil })
	assert.ErrorIs(t, noProvider.HealthCheck(context.Background()), worker.ErrNoProvider)
}

func TestRefreshJob_MetricsSnapshot(t *testing.T) {
	f := newFixture(t)
	job := f.job(t, nil)
	job.Run(context.Background())

	snapshot := job.MetricsSnapshot()
	assert.Equal(t, int64(1), snapshot["total_runs"])
	assert.Contains(t, snapshot, "successful_refreshes")
	assert.Contains(t, snapshot, "failed_refreshes")
	assert.Contains(t, snapshot, "last_refresh_at")
	assert.Contains(t, snapshot, "last_refresh_duration")
}

func BenchmarkRefreshJob_Run(b *testing.B) {
	job, err := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:  worker.DefaultRefreshConfig(),
		Logger:  zerolog.Nop(),
		Weather: weathertest.NewProvider(),
		Now:     clock,
	})
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = job.Run(context.Background())
	}
}

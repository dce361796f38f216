package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/morningready/morningready/internal/event"
	"github.com/morningready/morningready/internal/geo"
	"github.com/morningready/morningready/internal/plan"
	"github.com/morningready/morningready/internal/profile"
	"github.com/morningready/morningready/internal/weather"
)

// ErrNoProvider is returned by HealthCheck when no weather provider is set.
var ErrNoProvider = errors.New("no weather provider configured")

// EventSource lists upcoming events of every user.
type EventSource interface {
	Upcoming(ctx context.Context, window time.Duration) ([]*event.Event, error)
}

// ProfileSource returns a user's profile, falling back to the default one.
type ProfileSource interface {
	Get(ctx context.Context, userID string) (*profile.Profile, error)
}

// Keyer buckets nearby targets. *weather.Service satisfies it.
type Keyer interface {
	CacheKey(coord geo.Coordinate, date time.Time) string
}

// Target is a forecast to prefetch.
type Target struct {
	Name       string
	Coordinate geo.Coordinate
	Date       time.Time
}

// RefreshJob prefetches forecasts for upcoming events and anchors.
type RefreshJob struct {
	config   RefreshConfig
	logger   zerolog.Logger
	weather  weather.Provider
	events   EventSource
	profiles ProfileSource
	now      func() time.Time
	loc      *time.Location

	refreshed metric.Int64Counter
	metrics   *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRuns         int64
	SuccessfulRefresh int64
	FailedRefreshes   int64

	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config   RefreshConfig
	Logger   zerolog.Logger
	Weather  weather.Provider
	Events   EventSource
	Profiles ProfileSource

	// Meter, when set, records a weather.refresh counter per fetch.
	Meter metric.Meter

	// Location fixes the forecast day of targets (default: the zone of each
	// event start and of Now).
	Location *time.Location

	Now func() time.Time
}

// NewRefreshJob creates a new refresh job. Events and Profiles may be nil,
// in which case only anchors are refreshed.
func NewRefreshJob(cfg RefreshJobConfig) (*RefreshJob, error) {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	j := &RefreshJob{
		config:   cfg.Config.withDefaults(),
		logger:   cfg.Logger,
		weather:  cfg.Weather,
		events:   cfg.Events,
		profiles: cfg.Profiles,
		now:      now,
		loc:      cfg.Location,
		metrics:  &RefreshMetrics{},
	}

	if cfg.Meter != nil {
		counter, err := cfg.Meter.Int64Counter("weather.refresh",
			metric.WithDescription("Forecast prefetches by outcome"),
			metric.WithUnit("{fetch}"),
		)
		if err != nil {
			return nil, fmt.Errorf("create refresh counter: %w", err)
		}
		j.refreshed = counter
	}

	return j, nil
}

// Config returns the effective configuration.
func (j *RefreshJob) Config() RefreshConfig {
	return j.config
}

// RefreshResult contains the result of a refresh run.
type RefreshResult struct {
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	TotalTargets int
	Successful   int
	Failed       int
	Errors       []RefreshError
}

// RefreshError records a failed prefetch.
type RefreshError struct {
	Target Target
	Error  string
}

// Targets returns the deduplicated forecasts to prefetch: the home of every
// user with an upcoming event on that event's day, and each anchor for today
// and tomorrow.
func (j *RefreshJob) Targets(ctx context.Context) ([]Target, error) {
	now := j.now()
	if j.loc != nil {
		now = now.In(j.loc)
	}
	var targets []Target
	var err error

	if j.events != nil {
		targets, err = j.eventTargets(ctx, now)
	}

	for _, a := range j.config.Anchors {
		for _, day := range []time.Time{now, now.AddDate(0, 0, 1)} {
			targets = append(targets, Target{Name: a.Name, Coordinate: a.Coordinate, Date: day})
		}
	}

	return j.dedupe(targets), err
}

func (j *RefreshJob) eventTargets(ctx context.Context, now time.Time) ([]Target, error) {
	upcoming, err := j.events.Upcoming(ctx, j.config.Lookahead)
	if err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}

	homes := make(map[string]geo.Coordinate)
	targets := make([]Target, 0, len(upcoming))
	for _, ev := range upcoming {
		home, ok := homes[ev.UserID]
		if !ok {
			home = profile.DefaultHome
			if j.profiles != nil {
				p, err := j.profiles.Get(ctx, ev.UserID)
				if err != nil {
					j.logger.Warn().Err(err).Str("user_id", ev.UserID).Msg("profile lookup failed, using default home")
				} else {
					home = p.Home
				}
			}
			homes[ev.UserID] = home
		}
		targets = append(targets, Target{
			Name:       ev.ID,
			Coordinate: home,
			Date:       plan.WeatherDate(ev, now, j.loc),
		})
	}
	return targets, nil
}

func (j *RefreshJob) dedupe(targets []Target) []Target {
	keyer, _ := j.weather.(Keyer)
	key := func(t Target) string {
		if keyer != nil {
			return keyer.CacheKey(t.Coordinate, t.Date)
		}
		return fmt.Sprintf("%.4f:%.4f:%s", t.Coordinate.Lat, t.Coordinate.Lon, t.Date.Format(weather.DateLayout))
	}

	seen := make(map[string]struct{}, len(targets))
	out := make([]Target, 0, len(targets))
	for _, t := range targets {
		k := key(t)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Run prefetches every target with the configured concurrency. A failed
// event listing is reported in the result; anchors are still refreshed.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	startTime := j.now()
	result := &RefreshResult{StartTime: startTime}

	if j.weather == nil {
		j.logger.Warn().Msg("weather refresh skipped: no provider configured")
		result.EndTime = j.now()
		return result
	}

	targets, err := j.Targets(ctx)
	if err != nil {
		j.logger.Error().Err(err).Msg("could not collect event targets")
		result.Errors = append(result.Errors, RefreshError{Target: Target{Name: "events"}, Error: err.Error()})
	}
	result.TotalTargets = len(targets)

	j.logger.Info().
		Int("total_targets", result.TotalTargets).
		Int("concurrency", j.config.Concurrency).
		Msg("starting weather refresh job")

	work := make(chan Target, len(targets))
	results := make(chan targetResult, len(targets))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.refreshWorker(ctx, work, results)
		}()
	}

	for _, t := range targets {
		work <- t
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	for tr := range results {
		if tr.err == nil {
			result.Successful++
			continue
		}
		result.Failed++
		result.Errors = append(result.Errors, RefreshError{Target: tr.target, Error: tr.err.Error()})
	}

	result.EndTime = j.now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("weather refresh job completed")

	return result
}

type targetResult struct {
	target Target
	err    error
}

func (j *RefreshJob) refreshWorker(ctx context.Context, targets <-chan Target, results chan<- targetResult) {
	for t := range targets {
		select {
		case <-ctx.Done():
			results <- targetResult{target: t, err: ctx.Err()}
		default:
			results <- targetResult{target: t, err: j.refresh(ctx, t)}
		}
	}
}

func (j *RefreshJob) refresh(ctx context.Context, t Target) error {
	fetchCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	_, err := j.weather.GetForecast(fetchCtx, t.Coordinate, t.Date)

	if j.refreshed != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		j.refreshed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}

	if err != nil {
		j.logger.Debug().Err(err).
			Str("target", t.Name).
			Str("date", t.Date.Format(weather.DateLayout)).
			Msg("forecast prefetch failed")
	}
	return err
}

// HealthCheck fetches today's forecast for the first anchor, or the default
// home when there are none.
func (j *RefreshJob) HealthCheck(ctx context.Context) error {
	if j.weather == nil {
		return ErrNoProvider
	}
	target := Target{Name: profile.DefaultHomeLabel, Coordinate: profile.DefaultHome, Date: j.now()}
	if len(j.config.Anchors) > 0 {
		a := j.config.Anchors[0]
		target.Name, target.Coordinate = a.Name, a.Coordinate
	}
	return j.refresh(ctx, target)
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulRefresh += int64(result.Successful)
	j.metrics.FailedRefreshes += int64(result.Failed)
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRuns:           j.metrics.TotalRuns,
		SuccessfulRefresh:   j.metrics.SuccessfulRefresh,
		FailedRefreshes:     j.metrics.FailedRefreshes,
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
		TotalDuration:       j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns the current metrics as a map for the health endpoint.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":            m.TotalRuns,
		"successful_refreshes":  m.SuccessfulRefresh,
		"failed_refreshes":      m.FailedRefreshes,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
	}
}

// Package worker prefetches the forecasts that morning plans will ask for,
// so plan requests are served from the weather cache.
package worker

import (
	"time"

	"github.com/morningready/morningready/internal/config"
	"github.com/morningready/morningready/internal/geo"
	"github.com/morningready/morningready/internal/profile"
)

// Anchor is a fixed place whose forecast is refreshed for today and
// tomorrow on every run.
type Anchor struct {
	Name       string
	Coordinate geo.Coordinate
}

// RefreshConfig holds configuration for the weather refresh job.
type RefreshConfig struct {
	// Schedule is a standard five-field cron expression.
	// Default: every 30 minutes
	Schedule string

	// Concurrency is the number of concurrent forecast fetches.
	// Default: 3
	Concurrency int

	// Timeout bounds each fetch.
	// Default: 30 seconds
	Timeout time.Duration

	// Lookahead is how far ahead events are considered.
	// Default: 48 hours
	Lookahead time.Duration

	// Anchors are refreshed regardless of stored events. DefaultRefreshConfig
	// sets DefaultAnchors; nil means none.
	Anchors []Anchor
}

// DefaultSchedule runs the refresh every 30 minutes.
const DefaultSchedule = "*/30 * * * *"

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Schedule:    DefaultSchedule,
		Concurrency: 3,
		Timeout:     30 * time.Second,
		Lookahead:   48 * time.Hour,
		Anchors:     DefaultAnchors(),
	}
}

// DefaultAnchors covers the default home used by users without a profile.
func DefaultAnchors() []Anchor {
	return []Anchor{
		{Name: profile.DefaultHomeLabel, Coordinate: profile.DefaultHome},
	}
}

// FromConfig builds a RefreshConfig from the worker settings.
func FromConfig(c config.Worker) RefreshConfig {
	cfg := DefaultRefreshConfig()
	if c.Schedule != "" {
		cfg.Schedule = c.Schedule
	}
	if c.Concurrency > 0 {
		cfg.Concurrency = c.Concurrency
	}
	if c.Timeout > 0 {
		cfg.Timeout = c.Timeout
	}
	if c.Lookahead > 0 {
		cfg.Lookahead = c.Lookahead
	}
	return cfg
}

func (c RefreshConfig) withDefaults() RefreshConfig {
	d := DefaultRefreshConfig()
	if c.Schedule == "" {
		c.Schedule = d.Schedule
	}
	if c.Concurrency < 1 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.Lookahead <= 0 {
		c.Lookahead = d.Lookahead
	}
	return c
}

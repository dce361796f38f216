// Package travel estimates door-to-door travel time from straight-line distance.
//
// The model is a deliberately crude average-speed heuristic; no routing
// provider is consulted.
package travel

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/morningready/morningready/internal/geo"
)

// Estimation errors.
var (
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrUnknownMode        = errors.New("unknown transport mode")
)

// Mode is a transport mode.
type Mode string

const (
	ModeTrain Mode = "train"
	ModeBus   Mode = "bus"
	ModeWalk  Mode = "walk"
	ModeBike  Mode = "bike"
	ModeCar   Mode = "car"
)

// Modes lists every supported transport mode.
var Modes = []Mode{ModeTrain, ModeBus, ModeWalk, ModeBike, ModeCar}

// Valid reports whether m is a supported mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeTrain, ModeBus, ModeWalk, ModeBike, ModeCar:
		return true
	}
	return false
}

// Heuristic defaults.
const (
	DefaultTransitOverheadMinutes = 10
	DefaultMinimumMinutes         = 5
	DefaultFallbackMinutes        = 35
)

// DefaultSpeeds returns the assumed average speed per mode in km/h.
func DefaultSpeeds() map[Mode]float64 {
	return map[Mode]float64{
		ModeWalk:  4.5,
		ModeBike:  14,
		ModeCar:   22,
		ModeTrain: 20,
		ModeBus:   20,
	}
}

// Estimate is a derived travel-time estimate. It is never persisted.
type Estimate struct {
	Minutes     int       `json:"minutes"`
	Mode        Mode      `json:"mode"`
	WalkMinutes *int      `json:"walkMinutes,omitempty"`
	Transfers   *int      `json:"transfers,omitempty"`
	ComputedAt  time.Time `json:"computedAt"`
}

// Config holds the heuristic constants for an Estimator.
type Config struct {
	// Speeds maps modes to average km/h. Missing modes fall back to DefaultSpeeds.
	Speeds map[Mode]float64

	// TransitOverheadMinutes is added for train and bus (default: 10 when nil).
	TransitOverheadMinutes *int

	// MinimumMinutes floors every estimate (default: 5).
	MinimumMinutes int

	// FallbackMinutes is used by Estimator.Fallback without an override (default: 35).
	FallbackMinutes int

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// Estimator converts distance and mode into a travel time.
type Estimator struct {
	speeds          map[Mode]float64
	transitOverhead int
	minimum         int
	fallback        int
	now             func() time.Time
}

// NewEstimator creates an Estimator, filling zero or nil config values with
// defaults. A non-nil TransitOverheadMinutes is kept even when 0.
func NewEstimator(cfg Config) *Estimator {
	speeds := DefaultSpeeds()
	for mode, kmh := range cfg.Speeds {
		if kmh > 0 {
			speeds[mode] = kmh
		}
	}

	overhead := DefaultTransitOverheadMinutes
	if cfg.TransitOverheadMinutes != nil && *cfg.TransitOverheadMinutes >= 0 {
		overhead = *cfg.TransitOverheadMinutes
	}

	minimum := cfg.MinimumMinutes
	if minimum == 0 {
		minimum = DefaultMinimumMinutes
	}

	fallback := cfg.FallbackMinutes
	if fallback == 0 {
		fallback = DefaultFallbackMinutes
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Estimator{
		speeds:          speeds,
		transitOverhead: overhead,
		minimum:         minimum,
		fallback:        fallback,
		now:             now,
	}
}

// Estimate returns the travel time from origin to dest using mode.
// It fails only for invalid coordinates or an unsupported mode.
func (e *Estimator) Estimate(origin, dest geo.Coordinate, mode Mode) (Estimate, error) {
	if !origin.Valid() || !dest.Valid() {
		return Estimate{}, ErrInvalidCoordinates
	}

	kmh, ok := e.speeds[mode]
	if !ok {
		return Estimate{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	km := geo.DistanceKm(origin, dest)
	minutes := int(math.Round(km / kmh * 60))
	if mode == ModeTrain || mode == ModeBus {
		minutes += e.transitOverhead
	}
	if minutes < e.minimum {
		minutes = e.minimum
	}

	transfers := 0
	if mode == ModeTrain {
		transfers = 1
	}

	est := Estimate{
		Minutes:    minutes,
		Mode:       mode,
		Transfers:  &transfers,
		ComputedAt: e.now(),
	}
	if mode == ModeWalk {
		walk := minutes
		est.WalkMinutes = &walk
	}

	return est, nil
}

// Fallback builds the estimate used when Estimate fails: the explicit
// override when present, otherwise DefaultFallbackMinutes. The override is
// taken as given and is not raised to the estimate floor.
func Fallback(mode Mode, override *int, now time.Time) Estimate {
	minutes := DefaultFallbackMinutes
	if override != nil {
		minutes = *override
	}
	return Estimate{
		Minutes:    minutes,
		Mode:       mode,
		ComputedAt: now,
	}
}

// Fallback is like the package-level Fallback but uses the configured
// default minutes and clock.
func (e *Estimator) Fallback(mode Mode, override *int) Estimate {
	est := Fallback(mode, override, e.now())
	if override == nil {
		est.Minutes = e.fallback
	}
	return est
}

// Package weather provides daily forecast snapshots with caching.
package weather

import (
	"errors"
	"fmt"
	"time"
)

// Weather errors.
var (
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
	ErrCacheMiss           = errors.New("weather cache miss")
)

// DateLayout formats snapshot dates.
const DateLayout = "2006-01-02"

// Condition represents the general weather condition of a day.
type Condition string

const (
	ConditionSunny  Condition = "sunny"
	ConditionCloudy Condition = "cloudy"
	ConditionRain   Condition = "rain"
	ConditionWind   Condition = "wind"
	ConditionSnow   Condition = "snow"
)

// Snapshot is the forecast for one location and date.
type Snapshot struct {
	// Date is the forecast day in YYYY-MM-DD form.
	Date string `json:"date"`

	Condition Condition `json:"condition"`

	// Temperatures in Celsius. TempMin <= TempMax.
	TempMin float64 `json:"tempMin"`
	TempMax float64 `json:"tempMax"`

	// Humidity percentage (0-100), when known.
	Humidity *float64 `json:"humidity,omitempty"`

	// WindKmh is the maximum wind speed in km/h, when known.
	WindKmh *float64 `json:"windKmh,omitempty"`

	// PrecipitationChance is the probability of precipitation (0-100).
	PrecipitationChance float64 `json:"precipitationChance"`

	FetchedAt time.Time `json:"fetchedAt"`
}

// Validate checks the snapshot invariants.
func (s *Snapshot) Validate() error {
	if _, err := time.Parse(DateLayout, s.Date); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	switch s.Condition {
	case ConditionSunny, ConditionCloudy, ConditionRain, ConditionWind, ConditionSnow:
	default:
		return fmt.Errorf("condition: unknown value %q", s.Condition)
	}
	if s.TempMin > s.TempMax {
		return errors.New("tempMin must not exceed tempMax")
	}
	if s.PrecipitationChance < 0 || s.PrecipitationChance > 100 {
		return errors.New("precipitationChance must be between 0 and 100")
	}
	return nil
}

// DeriveCondition classifies a day from its maximum temperature and
// precipitation chance.
func DeriveCondition(tempMax, precipitationChance float64) Condition {
	switch {
	case precipitationChance >= 50:
		return ConditionRain
	case tempMax >= 26:
		return ConditionSunny
	default:
		return ConditionCloudy
	}
}

// Fallback values used when no forecast can be obtained. A mild rainy day
// keeps outfit and packing suggestions on the cautious side.
const (
	FallbackTempMin             = 13
	FallbackTempMax             = 18
	FallbackPrecipitationChance = 70
	FallbackWindKmh             = 14
)

// FallbackSnapshot returns the conservative snapshot for date.
func FallbackSnapshot(date time.Time) *Snapshot {
	wind := float64(FallbackWindKmh)
	return &Snapshot{
		Date:                date.Format(DateLayout),
		Condition:           ConditionRain,
		TempMin:             FallbackTempMin,
		TempMax:             FallbackTempMax,
		WindKmh:             &wind,
		PrecipitationChance: FallbackPrecipitationChance,
	}
}

// FetchError reports a failed forecast fetch. It matches ErrProviderUnavailable
// with errors.Is and also unwraps to the underlying cause.
type FetchError struct {
	Provider string
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch forecast from %s", e.Provider)
	}
	return fmt.Sprintf("fetch forecast from %s: %v", e.Provider, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProviderUnavailable}
	}
	return []error{ErrProviderUnavailable, e.Err}
}

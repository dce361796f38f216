package plan

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/morningready/morningready/internal/event"
	"github.com/morningready/morningready/internal/geo"
	"github.com/morningready/morningready/internal/weather"
)

// WeatherDate is the day whose forecast matters for ev: its start, or now
// when there is no event. The result is expressed in loc so that the same
// instant maps to the same forecast day whatever zone it was stored in.
// A nil loc keeps the original zone.
func WeatherDate(ev *event.Event, now time.Time, loc *time.Location) time.Time {
	t := now
	if ev != nil && !ev.Start.IsZero() {
		t = ev.Start
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t
}

// ResolveEventWeather fetches the forecast at ev's location for its day. It
// returns nil when ev has no coordinate or the fetch fails.
func ResolveEventWeather(ctx context.Context, provider weather.Provider, ev *event.Event, date time.Time, logger zerolog.Logger) *weather.Snapshot {
	if provider == nil || ev == nil || ev.Coordinate == nil {
		return nil
	}
	snap, err := provider.GetForecast(ctx, *ev.Coordinate, date)
	if err != nil {
		logger.Info().Err(err).
			Str("provider", provider.Name()).
			Str("event_id", ev.ID).
			Msg("event location forecast unavailable")
		return nil
	}
	return snap
}

// ResolveWeather fetches the forecast and substitutes the fallback snapshot
// when the provider fails. The second result reports the substitution.
func ResolveWeather(ctx context.Context, provider weather.Provider, coord geo.Coordinate, date time.Time, logger zerolog.Logger) (*weather.Snapshot, bool) {
	snap, err := provider.GetForecast(ctx, coord, date)
	if err != nil {
		logger.Warn().Err(err).
			Str("provider", provider.Name()).
			Str("date", date.Format(weather.DateLayout)).
			Msg("using fallback weather")
		return weather.FallbackSnapshot(date), true
	}
	return snap, false
}

// Package plan composes travel, departure, outfit and packing decisions into
// a single morning plan.
//
// Compute never fails. Missing weather withholds the outfit, packing list and
// leave time; a failed travel estimate falls back to the event's override or
// a fixed default and is reported through the plan's advisory.
package plan

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/morningready/morningready/internal/departure"
	"github.com/morningready/morningready/internal/event"
	"github.com/morningready/morningready/internal/geo"
	"github.com/morningready/morningready/internal/outfit"
	"github.com/morningready/morningready/internal/packing"
	"github.com/morningready/morningready/internal/travel"
	"github.com/morningready/morningready/internal/weather"
)

// Advisory messages.
const (
	AdvisoryNoEvent         = "No upcoming event."
	AdvisoryNoCoordinate    = "Event location has no coordinates; using fallback travel time."
	AdvisoryEstimateFailed  = "Travel time could not be estimated; using fallback travel time."
	AdvisoryWeatherFallback = "Weather forecast unavailable; showing suggestions for a rainy day."
)

// Inputs are everything a plan is derived from.
type Inputs struct {
	Home    geo.Coordinate
	Event   *event.Event
	Weather *weather.Snapshot
	Style   outfit.Style
	Items   packing.UserItems

	// WeatherFallback marks Weather as a substituted fallback snapshot.
	WeatherFallback bool

	// EventWeather is the forecast at the event location, shown alongside
	// the home forecast. It never substitutes a fallback.
	EventWeather *weather.Snapshot
}

// Plan is a fully derived morning plan.
type Plan struct {
	Weather      *weather.Snapshot  `json:"weather,omitempty"`
	EventWeather *weather.Snapshot  `json:"eventWeather,omitempty"`
	Event        *event.Event       `json:"event,omitempty"`
	Travel       *travel.Estimate   `json:"travel,omitempty"`
	Outfit       *outfit.Suggestion `json:"outfit,omitempty"`
	Packing      []packing.Item     `json:"packing,omitempty"`
	LeaveAt      *time.Time         `json:"leaveAt,omitempty"`

	// Advisory carries non-fatal notes, joined with a space.
	Advisory string `json:"advisory,omitempty"`
}

// Outcome summarizes how a plan was derived.
type Outcome struct {
	FallbackTravel  bool
	FallbackWeather bool
	WeatherPending  bool
}

// Recorder receives plan outcomes for metrics.
type Recorder interface {
	PlanComputed(o Outcome)
}

// Config holds the collaborators of a Planner. Nil fields use defaults.
type Config struct {
	Estimator *travel.Estimator
	Selector  *outfit.Selector
	Builder   *packing.Builder
	Recorder  Recorder
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Planner computes plans.
type Planner struct {
	estimator *travel.Estimator
	selector  *outfit.Selector
	builder   *packing.Builder
	recorder  Recorder
	logger    zerolog.Logger
}

// NewPlanner creates a Planner.
func NewPlanner(cfg Config) *Planner {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	estimator := cfg.Estimator
	if estimator == nil {
		estimator = travel.NewEstimator(travel.Config{Now: now})
	}

	selector := cfg.Selector
	if selector == nil {
		selector = outfit.NewSelector(nil, nil)
	}

	builder := cfg.Builder
	if builder == nil {
		builder = packing.NewBuilder()
	}

	return &Planner{
		estimator: estimator,
		selector:  selector,
		builder:   builder,
		recorder:  cfg.Recorder,
		logger:    cfg.Logger,
	}
}

var defaultPlanner = NewPlanner(Config{Logger: zerolog.Nop()})

// ComputePlan computes a plan with the default Planner.
func ComputePlan(in Inputs) *Plan {
	return defaultPlanner.Compute(in)
}

// Compute derives a plan from in.
func (p *Planner) Compute(in Inputs) *Plan {
	out := &Plan{Weather: in.Weather, Event: in.Event}
	if in.Event != nil {
		out.EventWeather = in.EventWeather
	}
	var advisories []string

	style := in.Style
	if style == "" {
		style = outfit.DefaultStyle
	}

	outcome := Outcome{
		FallbackWeather: in.Weather != nil && in.WeatherFallback,
		WeatherPending:  in.Weather == nil,
	}
	if outcome.FallbackWeather {
		advisories = append(advisories, AdvisoryWeatherFallback)
	}

	if in.Event == nil {
		advisories = append(advisories, AdvisoryNoEvent)
	} else {
		eta, advisory := p.estimate(in.Home, in.Event)
		out.Travel = &eta
		if advisory != "" {
			outcome.FallbackTravel = true
			advisories = append(advisories, advisory)
			p.logger.Warn().
				Str("event_id", in.Event.ID).
				Int("minutes", eta.Minutes).
				Msg(advisory)
		}
	}

	if in.Weather != nil {
		suggestion := p.selector.Select(*in.Weather, style)
		out.Outfit = &suggestion

		ev := event.Event{}
		if in.Event != nil {
			ev = *in.Event
		}
		out.Packing = p.builder.Build(*in.Weather, ev, in.Items)

		if in.Event != nil && out.Travel != nil {
			leave := departure.ComputeLeaveTime(*in.Event, *out.Travel)
			out.LeaveAt = &leave
		}
	}

	out.Advisory = strings.Join(advisories, " ")

	if p.recorder != nil {
		p.recorder.PlanComputed(outcome)
	}

	return out
}

// estimate returns the travel estimate for ev and, when a fallback was used,
// the advisory explaining why.
func (p *Planner) estimate(home geo.Coordinate, ev *event.Event) (travel.Estimate, string) {
	mode := ev.Mode
	if mode == "" {
		mode = event.DefaultMode
	}

	if ev.Coordinate == nil {
		return p.estimator.Fallback(mode, ev.TravelMinutes), AdvisoryNoCoordinate
	}

	eta, err := p.estimator.Estimate(home, *ev.Coordinate, mode)
	if err != nil {
		return p.estimator.Fallback(mode, ev.TravelMinutes), AdvisoryEstimateFailed
	}
	return eta, ""
}

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/metric"

	"github.com/morningready/morningready/internal/plan"
)

// PlanMetrics counts computed plans and the fallbacks they took.
type PlanMetrics struct {
	computed        metric.Int64Counter
	fallbackTravel  metric.Int64Counter
	fallbackWeather metric.Int64Counter
	weatherPending  metric.Int64Counter
}

// NewPlanMetrics registers the plan counters on meter.
func NewPlanMetrics(meter metric.Meter) (*PlanMetrics, error) {
	computed, err := meter.Int64Counter("plan.computed",
		metric.WithDescription("Morning plans computed"),
		metric.WithUnit("{plan}"),
	)
	if err != nil {
		return nil, err
	}

	fallbackTravel, err := meter.Int64Counter("plan.fallback.travel",
		metric.WithDescription("Plans that used a fallback travel time"),
		metric.WithUnit("{plan}"),
	)
	if err != nil {
		return nil, err
	}

	fallbackWeather, err := meter.Int64Counter("plan.fallback.weather",
		metric.WithDescription("Plans that used the fallback weather snapshot"),
		metric.WithUnit("{plan}"),
	)
	if err != nil {
		return nil, err
	}

	weatherPending, err := meter.Int64Counter("plan.weather.pending",
		metric.WithDescription("Plans computed before weather was available"),
		metric.WithUnit("{plan}"),
	)
	if err != nil {
		return nil, err
	}

	return &PlanMetrics{
		computed:        computed,
		fallbackTravel:  fallbackTravel,
		fallbackWeather: fallbackWeather,
		weatherPending:  weatherPending,
	}, nil
}

// PlanComputed records o.
func (m *PlanMetrics) PlanComputed(o plan.Outcome) {
	ctx := context.Background()
	m.computed.Add(ctx, 1)
	if o.FallbackTravel {
		m.fallbackTravel.Add(ctx, 1)
	}
	if o.FallbackWeather {
		m.fallbackWeather.Add(ctx, 1)
	}
	if o.WeatherPending {
		m.weatherPending.Add(ctx, 1)
	}
}

var _ plan.Recorder = (*PlanMetrics)(nil)

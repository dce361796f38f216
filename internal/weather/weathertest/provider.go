// Package weathertest provides a controllable weather.Provider for tests.
package weathertest

import (
	"context"
	"sync"
	"time"

	"github.com/morningready/morningready/internal/geo"
	"github.com/morningready/morningready/internal/weather"
)

// Provider is an in-memory weather.Provider that counts calls and can be
// told to fail or to block until released.
type Provider struct {
	mu        sync.Mutex
	callCount int
	snapshot  *weather.Snapshot
	err       error
	gate      chan struct{}
}

// NewProvider returns a provider serving a mild cloudy day.
func NewProvider() *Provider {
	humidity := 60.0
	return &Provider{
		snapshot: &weather.Snapshot{
			Condition:           weather.ConditionCloudy,
			TempMin:             14,
			TempMax:             21,
			Humidity:            &humidity,
			PrecipitationChance: 20,
		},
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "stub"
}

// GetForecast returns a copy of the configured snapshot dated for date.
func (p *Provider) GetForecast(ctx context.Context, _ geo.Coordinate, date time.Time) (*weather.Snapshot, error) {
	p.mu.Lock()
	p.callCount++
	gate := p.gate
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &weather.FetchError{Provider: p.Name(), Err: ctx.Err()}
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return nil, &weather.FetchError{Provider: p.Name(), Err: p.err}
	}

	snap := *p.snapshot
	snap.Date = date.Format(weather.DateLayout)
	snap.FetchedAt = time.Now()
	return &snap, nil
}

// SetSnapshot replaces the served snapshot.
func (p *Provider) SetSnapshot(s weather.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot = &s
}

// SetError makes every subsequent call fail with err. Nil restores success.
func (p *Provider) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Block makes calls wait until the returned release function is called.
func (p *Provider) Block() (release func()) {
	gate := make(chan struct{})
	p.mu.Lock()
	p.gate = gate
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			if p.gate == gate {
				p.gate = nil
			}
			p.mu.Unlock()
			close(gate)
		})
	}
}

// CallCount returns the number of GetForecast calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.callCount
}

var _ weather.Provider = (*Provider)(nil)

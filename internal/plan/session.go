package plan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/morningready/morningready/internal/event"
	"github.com/morningready/morningready/internal/geo"
	"github.com/morningready/morningready/internal/geocoding"
	"github.com/morningready/morningready/internal/outfit"
	"github.com/morningready/morningready/internal/packing"
	"github.com/morningready/morningready/internal/weather"
)

// ErrNoGeocoder is returned by ResolveHome when the session has no resolver.
var ErrNoGeocoder = errors.New("session has no geocoder")

// SessionConfig configures a Session.
type SessionConfig struct {
	// Planner computes each plan (default NewPlanner with Logger).
	Planner *Planner

	// Weather is fetched whenever the home or event date changes, and for
	// the event location whenever the event changes. Without it the plan
	// stays partial.
	Weather weather.Provider

	// Geocoder backs ResolveHome (optional).
	Geocoder geocoding.Resolver

	// HomeQuery, when set, is resolved as the starting home. No home
	// forecast is fetched until a home is known.
	HomeQuery string

	// Event, Style and Items are the starting inputs.
	Event *event.Event
	Style outfit.Style
	Items packing.UserItems

	// OnUpdate receives newly computed plans, one call at a time. Superseded
	// plans are never delivered after a newer one, and plans superseded
	// while a call is running are skipped.
	OnUpdate func(*Plan)

	// Location fixes the forecast day of the event (default: the event's zone).
	Location *time.Location

	Logger zerolog.Logger
	Now    func() time.Time
}

// Session keeps the inputs of one user's morning plan and recomputes the plan
// on every change. Weather and geocoding lookups run in the background; each
// is tagged with a generation and its result is dropped if the inputs moved on.
type Session struct {
	planner  *Planner
	weather  weather.Provider
	geocoder geocoding.Resolver
	onUpdate func(*Plan)
	logger   zerolog.Logger
	now      func() time.Time
	loc      *time.Location

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	in            Inputs
	homeLabel     string
	weatherKey    string
	weatherGen    uint64
	cancelWeather context.CancelFunc
	homeGen       uint64
	cancelHome    context.CancelFunc
	homePending   bool
	current       *Plan

	eventWeatherKey    string
	eventWeatherGen    uint64
	cancelEventWeather context.CancelFunc

	seq    uint64
	closed bool

	notifyMu   sync.Mutex
	claimed    uint64
	pending    *Plan
	delivering bool
}

// NewSession starts a session at home, or at cfg.HomeQuery once resolved,
// and computes the first plan.
func NewSession(ctx context.Context, cfg SessionConfig, home geo.Coordinate) *Session {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	planner := cfg.Planner
	if planner == nil {
		planner = NewPlanner(Config{Logger: cfg.Logger, Now: now})
	}

	style := cfg.Style
	if style == "" {
		style = outfit.DefaultStyle
	}

	sctx, cancel := context.WithCancel(ctx)

	s := &Session{
		planner:  planner,
		weather:  cfg.Weather,
		geocoder: cfg.Geocoder,
		onUpdate: cfg.OnUpdate,
		logger:   cfg.Logger,
		now:      now,
		loc:      cfg.Location,
		ctx:      sctx,
		cancel:   cancel,
		in:       Inputs{Home: home, Event: cfg.Event, Style: style, Items: cfg.Items},
	}
	query := geocoding.Normalize(cfg.HomeQuery)
	s.homePending = query != ""

	s.mu.Lock()
	seq, p := s.refreshLocked()
	s.mu.Unlock()
	s.notify(seq, p)

	if s.homePending {
		if err := s.ResolveHome(cfg.HomeQuery); err != nil {
			s.logger.Warn().Err(err).Str("query", cfg.HomeQuery).Msg("home query not started")
		}
	}

	return s
}

// Current returns the latest plan.
func (s *Session) Current() *Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Home returns the current home and its label. While a HomeQuery is still
// unresolved the label is empty.
func (s *Session) Home() (geo.Coordinate, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.in.Home, s.homeLabel
}

// SetHome sets the home location and supersedes any pending ResolveHome.
func (s *Session) SetHome(coord geo.Coordinate, label string) {
	s.update(func() {
		s.homeGen++
		if s.cancelHome != nil {
			s.cancelHome()
			s.cancelHome = nil
		}
		s.in.Home = coord
		s.homeLabel = label
		s.homePending = false
	})
}

// SelectEvent sets the event the plan is for. Nil clears it.
func (s *Session) SelectEvent(ev *event.Event) {
	s.update(func() { s.in.Event = ev })
}

// SetStyle sets the outfit style.
func (s *Session) SetStyle(style outfit.Style) {
	s.update(func() { s.in.Style = style })
}

// SetItems replaces the user's pack items.
func (s *Session) SetItems(items packing.UserItems) {
	s.update(func() { s.in.Items = items })
}

// ResolveHome geocodes query in the background and moves home to the result.
// An unresolvable query leaves home unchanged.
func (s *Session) ResolveHome(query string) error {
	if s.geocoder == nil {
		return ErrNoGeocoder
	}
	if geocoding.Normalize(query) == "" {
		return geocoding.ErrEmptyQuery
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("resolve home: %w", context.Canceled)
	}

	s.homeGen++
	if s.cancelHome != nil {
		s.cancelHome()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelHome = cancel

	s.wg.Add(1)
	go s.resolveHome(ctx, s.homeGen, query)
	return nil
}

// Wait blocks until every background lookup started so far has settled.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close cancels outstanding lookups and waits for them. Later input changes
// still recompute the plan but start no lookups.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Session) update(mutate func()) {
	s.mu.Lock()
	mutate()
	seq, p := s.refreshLocked()
	s.mu.Unlock()
	s.notify(seq, p)
}

// refreshLocked starts a weather fetch when the weather target changed and
// recomputes the plan. It must be called with mu held.
func (s *Session) refreshLocked() (uint64, *Plan) {
	date := WeatherDate(s.in.Event, s.now(), s.loc)
	day := date.Format(weather.DateLayout)
	key := fmt.Sprintf("%.6f,%.6f|%s", s.in.Home.Lat, s.in.Home.Lon, day)

	if !s.homePending && key != s.weatherKey {
		s.weatherKey = key
		s.weatherGen++
		s.in.Weather = nil
		s.in.WeatherFallback = false

		if s.cancelWeather != nil {
			s.cancelWeather()
			s.cancelWeather = nil
		}

		if s.weather != nil && !s.closed {
			ctx, cancel := context.WithCancel(s.ctx)
			s.cancelWeather = cancel
			s.wg.Add(1)
			go s.fetchWeather(ctx, s.weatherGen, s.in.Home, date)
		}
	}

	s.refreshEventWeatherLocked(date, day)

	s.current = s.planner.Compute(s.in)
	s.seq++
	return s.seq, s.current
}

// refreshEventWeatherLocked starts a forecast fetch for the event location
// when the event location or day changed. It must be called with mu held.
func (s *Session) refreshEventWeatherLocked(date time.Time, day string) {
	var key string
	if ev := s.in.Event; ev != nil && ev.Coordinate != nil {
		key = fmt.Sprintf("%.6f,%.6f|%s", ev.Coordinate.Lat, ev.Coordinate.Lon, day)
	}
	if key == s.eventWeatherKey {
		return
	}

	s.eventWeatherKey = key
	s.eventWeatherGen++
	s.in.EventWeather = nil
	if s.cancelEventWeather != nil {
		s.cancelEventWeather()
		s.cancelEventWeather = nil
	}

	if key == "" || s.weather == nil || s.closed {
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelEventWeather = cancel
	s.wg.Add(1)
	go s.fetchEventWeather(ctx, s.eventWeatherGen, *s.in.Event.Coordinate, date)
}

func (s *Session) fetchWeather(ctx context.Context, gen uint64, coord geo.Coordinate, date time.Time) {
	defer s.wg.Done()

	snap, err := s.weather.GetForecast(ctx, coord, date)

	s.mu.Lock()
	if gen != s.weatherGen || s.closed {
		s.mu.Unlock()
		s.logger.Debug().Uint64("generation", gen).Msg("discarding superseded weather result")
		return
	}

	fallback := false
	if err != nil {
		s.logger.Warn().Err(err).
			Str("date", date.Format(weather.DateLayout)).
			Msg("weather fetch failed, using fallback snapshot")
		snap = weather.FallbackSnapshot(date)
		fallback = true
	}
	s.in.Weather = snap
	s.in.WeatherFallback = fallback
	s.cancelWeather = nil

	seq, p := s.refreshLocked()
	s.mu.Unlock()
	s.notify(seq, p)
}

func (s *Session) fetchEventWeather(ctx context.Context, gen uint64, coord geo.Coordinate, date time.Time) {
	defer s.wg.Done()

	snap, err := s.weather.GetForecast(ctx, coord, date)

	s.mu.Lock()
	if gen != s.eventWeatherGen || s.closed {
		s.mu.Unlock()
		s.logger.Debug().Uint64("generation", gen).Msg("discarding superseded event weather result")
		return
	}
	s.cancelEventWeather = nil

	if err != nil {
		s.mu.Unlock()
		s.logger.Info().Err(err).Msg("event location forecast unavailable")
		return
	}

	s.in.EventWeather = snap
	seq, p := s.refreshLocked()
	s.mu.Unlock()
	s.notify(seq, p)
}

func (s *Session) resolveHome(ctx context.Context, gen uint64, query string) {
	defer s.wg.Done()

	place, err := s.geocoder.Resolve(ctx, query)

	s.mu.Lock()
	if gen != s.homeGen || s.closed {
		s.mu.Unlock()
		s.logger.Debug().Uint64("generation", gen).Msg("discarding superseded geocoding result")
		return
	}
	s.cancelHome = nil

	if err != nil || place == nil {
		s.mu.Unlock()
		s.logger.Info().Err(err).Str("query", query).Msg("home location not resolved")
		return
	}

	s.in.Home = place.Coordinate
	s.homeLabel = place.Label
	s.homePending = false
	seq, p := s.refreshLocked()
	s.mu.Unlock()
	s.notify(seq, p)
}

// notify hands p to OnUpdate unless a newer plan was already claimed.
// Deliveries never overlap: while one callback runs, later plans queue and
// only the newest is delivered once it returns. OnUpdate may therefore call
// back into the session; the resulting plan is delivered after it returns.
func (s *Session) notify(seq uint64, p *Plan) {
	if s.onUpdate == nil {
		return
	}

	s.notifyMu.Lock()
	if seq <= s.claimed {
		s.notifyMu.Unlock()
		return
	}
	s.claimed = seq
	s.pending = p
	if s.delivering {
		s.notifyMu.Unlock()
		return
	}
	s.delivering = true

	for s.pending != nil {
		next := s.pending
		s.pending = nil
		s.notifyMu.Unlock()

		s.onUpdate(next)

		s.notifyMu.Lock()
	}
	s.delivering = false
	s.notifyMu.Unlock()
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/morningready/morningready/internal/app"
	"github.com/morningready/morningready/internal/config"
	"github.com/morningready/morningready/internal/event"
	"github.com/morningready/morningready/internal/geo"
	"github.com/morningready/morningready/internal/items"
	"github.com/morningready/morningready/internal/outfit"
	"github.com/morningready/morningready/internal/packing"
	"github.com/morningready/morningready/internal/plan"
	"github.com/morningready/morningready/internal/provider/resilience"
	"github.com/morningready/morningready/internal/travel"
	"github.com/morningready/morningready/internal/weather"
)

// ErrOfflineHomeQuery is returned when a scenario needs geocoding but
// --offline is set.
var ErrOfflineHomeQuery = errors.New("homeQuery needs geocoding; give home coordinates or drop --offline")

// scenario is the YAML input of the plan command.
type scenario struct {
	Home      *scenarioPoint   `yaml:"home"`
	HomeQuery string           `yaml:"homeQuery"`
	Event     *scenarioEvent   `yaml:"event"`
	Weather   *scenarioWeather `yaml:"weather"`
	Style     string           `yaml:"style"`
	Items     *scenarioItems   `yaml:"items"`
}

type scenarioPoint struct {
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
}

type scenarioEvent struct {
	Title         string         `yaml:"title"`
	Start         string         `yaml:"start"`
	End           string         `yaml:"end"`
	Place         string         `yaml:"place"`
	Location      *scenarioPoint `yaml:"location"`
	TravelMinutes *int           `yaml:"travelMinutes"`
	BufferMinutes int            `yaml:"bufferMinutes"`
	Mode          string         `yaml:"mode"`
}

type scenarioWeather struct {
	Date                string   `yaml:"date"`
	Condition           string   `yaml:"condition"`
	TempMin             float64  `yaml:"tempMin"`
	TempMax             float64  `yaml:"tempMax"`
	Humidity            *float64 `yaml:"humidity"`
	WindKmh             *float64 `yaml:"windKmh"`
	PrecipitationChance float64  `yaml:"precipitationChance"`
}

type scenarioItems struct {
	Essentials []string `yaml:"essentials"`
	Personal   []string `yaml:"personal"`
}

// scenarioTimeLayouts are tried in order; zone-less layouts use the
// configured time zone.
var scenarioTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04"}

func parseScenarioTime(field, v string, loc *time.Location) (time.Time, error) {
	for _, layout := range scenarioTimeLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%s: %q is not a time like 2025-01-10T09:00:00+09:00", field, v)
}

// decodeScenario reads one YAML document, rejecting unknown keys.
func decodeScenario(r io.Reader) (*scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s scenario
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("scenario is empty")
		}
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	return &s, nil
}

func (s *scenario) draft(loc *time.Location) (*event.Draft, error) {
	if s.Event == nil {
		return nil, nil
	}
	e := s.Event
	d := &event.Draft{
		Title:         e.Title,
		Place:         e.Place,
		TravelMinutes: e.TravelMinutes,
		BufferMinutes: e.BufferMinutes,
		Mode:          travel.Mode(strings.ToLower(e.Mode)),
	}
	if e.Start != "" {
		start, err := parseScenarioTime("event.start", e.Start, loc)
		if err != nil {
			return nil, err
		}
		d.Start = start
	}
	if e.End != "" {
		end, err := parseScenarioTime("event.end", e.End, loc)
		if err != nil {
			return nil, err
		}
		d.End = end
	}
	if e.Location != nil {
		d.Coordinate = &geo.Coordinate{Lat: e.Location.Lat, Lon: e.Location.Lon}
	}
	return d, nil
}

// snapshot converts the weather block. An empty date means day.
func (s *scenario) snapshot(day time.Time) (*weather.Snapshot, error) {
	if s.Weather == nil {
		return nil, nil
	}
	w := s.Weather
	date := w.Date
	if date == "" {
		date = day.Format(weather.DateLayout)
	}
	snap := &weather.Snapshot{
		Date:                date,
		Condition:           weather.Condition(strings.ToLower(w.Condition)),
		TempMin:             w.TempMin,
		TempMax:             w.TempMax,
		Humidity:            w.Humidity,
		WindKmh:             w.WindKmh,
		PrecipitationChance: w.PrecipitationChance,
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("weather: %w", err)
	}
	return snap, nil
}

func (s *scenario) userItems() packing.UserItems {
	if s.Items == nil {
		return packing.UserItems{Essentials: items.DefaultEssentials()}
	}
	var u packing.UserItems
	for _, name := range s.Items.Essentials {
		u.Essentials = append(u.Essentials, packing.Item{Name: name, Required: true, Category: packing.CategoryEssential})
	}
	for _, name := range s.Items.Personal {
		u.Personal = append(u.Personal, packing.Item{Name: name, Category: packing.CategoryPersonal})
	}
	u.Essentials = packing.Dedupe(u.Essentials)
	u.Personal = packing.Dedupe(u.Personal)
	return u
}

type planOptions struct {
	offline bool
}

func newPlanCmd(g *globalOptions) *cobra.Command {
	opts := &planOptions{}

	cmd := &cobra.Command{
		Use:   "plan [scenario.yaml | -]",
		Short: "Compute a morning plan from a YAML scenario",
		Long: `Compute a morning plan from a YAML scenario file, or from stdin when the
argument is "-" or omitted.

Without a weather block the forecast is fetched from the configured provider.
With --offline nothing is fetched and the plan omits weather-derived fields.`,
		Example: `  morningctl plan meeting.yaml
  morningctl plan --offline --json - < meeting.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open scenario: %w", err)
				}
				defer f.Close()
				in = f
			}

			s, err := decodeScenario(in)
			if err != nil {
				return err
			}

			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			log := g.logger(cmd.ErrOrStderr(), cfg)

			p, label, err := computeScenario(cmd.Context(), s, cfg, log, opts.offline)
			if err != nil {
				return err
			}

			if g.jsonOutput {
				return outputJSON(cmd.OutOrStdout(), p)
			}
			renderPlan(cmd.OutOrStdout(), p, label)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Do not call weather or geocoding providers")
	return cmd
}

// computeScenario resolves the scenario inputs and computes the plan. The
// second result labels the home when it was geocoded.
func computeScenario(ctx context.Context, s *scenario, cfg *config.Config, log zerolog.Logger, offline bool) (*plan.Plan, string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	loc := cfg.Location()

	style, err := outfit.ParseStyle(s.Style)
	if err != nil {
		return nil, "", err
	}

	draft, err := s.draft(loc)
	if err != nil {
		return nil, "", err
	}
	var ev *event.Event
	if draft != nil {
		events := event.NewService(event.ServiceConfig{Repository: event.NewInMemoryRepository(), Logger: log})
		ev, err = events.Preview("", *draft)
		var verr *event.ValidationError
		if errors.As(err, &verr) {
			return nil, "", fieldErrorsToError("event", verr)
		}
		if err != nil {
			return nil, "", err
		}
	}

	day := plan.WeatherDate(ev, time.Now(), loc)
	snap, err := s.snapshot(day)
	if err != nil {
		return nil, "", err
	}

	planner := plan.NewPlanner(plan.Config{
		Estimator: travel.NewEstimator(cfg.Heuristics.TravelConfig()),
		Logger:    log,
	})

	var home geo.Coordinate
	query := strings.TrimSpace(s.HomeQuery)
	switch {
	case s.Home != nil:
		home = geo.Coordinate{Lat: s.Home.Lat, Lon: s.Home.Lon}
		if !home.Valid() {
			return nil, "", errors.New("home: must be a valid latitude/longitude")
		}
		query = ""
	case query != "":
		if offline {
			return nil, "", ErrOfflineHomeQuery
		}
	default:
		return nil, "", errors.New("home or homeQuery is required")
	}

	in := plan.Inputs{
		Home:    home,
		Event:   ev,
		Weather: snap,
		Style:   style,
		Items:   s.userItems(),
	}
	if offline {
		return planner.Compute(in), "", nil
	}

	registry := resilience.NewRegistry()
	provider, err := app.NewWeatherProvider(cfg.Weather, registry, log)
	if err != nil {
		return nil, "", err
	}
	fetchCtx, cancel := context.WithTimeout(ctx, cfg.Weather.FetchTimeout)
	defer cancel()

	if snap != nil {
		var label string
		if query != "" {
			place, err := app.NewGeocoder(cfg.Geocoding, registry, log).Resolve(fetchCtx, query)
			if err != nil {
				return nil, "", fmt.Errorf("geocode home: %w", err)
			}
			if place == nil {
				return nil, "", fmt.Errorf("geocode home: no place matches %q", query)
			}
			in.Home, label = place.Coordinate, place.Label
		}
		in.EventWeather = plan.ResolveEventWeather(fetchCtx, provider, ev, day, log)
		return planner.Compute(in), label, nil
	}

	// Without a weather block the session resolves the home first and then
	// fetches both forecasts.
	sc := plan.SessionConfig{
		Planner:   planner,
		Weather:   provider,
		HomeQuery: query,
		Event:     ev,
		Style:     style,
		Items:     in.Items,
		Location:  loc,
		Logger:    log,
	}
	if query != "" {
		sc.Geocoder = app.NewGeocoder(cfg.Geocoding, registry, log)
	}
	session := plan.NewSession(fetchCtx, sc, home)
	defer session.Close()
	session.Wait()

	_, label := session.Home()
	if query != "" && label == "" {
		return nil, "", fmt.Errorf("geocode home: no place matches %q", query)
	}
	return session.Current(), label, nil
}

func fieldErrorsToError(prefix string, verr *event.ValidationError) error {
	parts := make([]string, 0, len(verr.Errors))
	for _, fe := range verr.Errors {
		parts = append(parts, fmt.Sprintf("%s.%s %s", prefix, fe.Field, fe.Message))
	}
	return fmt.Errorf("invalid scenario: %s", strings.Join(parts, "; "))
}

// renderPlan prints the plan for a terminal. Times use the event's zone.
func renderPlan(w io.Writer, p *plan.Plan, homeLabel string) {
	printSection(w, "Morning plan")

	if homeLabel != "" {
		printLabelValue(w, "Home", homeLabel)
	}

	if p.Event != nil {
		ev := p.Event
		printLabelValue(w, "Event", joinNonEmpty(" @ ", ev.Title, ev.Place))
		printLabelValue(w, "Starts", ev.Start.Format("Mon 2 Jan 15:04 MST"))
	}

	if p.Weather != nil {
		wx := p.Weather
		printLabelValue(w, "Weather", fmt.Sprintf("%s, %.0f to %.0f°C, %.0f%% chance of rain",
			wx.Condition, wx.TempMin, wx.TempMax, wx.PrecipitationChance))
	} else {
		printLabelValue(w, "Weather", "not available")
	}

	if p.EventWeather != nil {
		wx := p.EventWeather
		printLabelValue(w, "At event", fmt.Sprintf("%s, %.0f to %.0f°C, %.0f%% chance of rain",
			wx.Condition, wx.TempMin, wx.TempMax, wx.PrecipitationChance))
	}

	if p.Travel != nil {
		printLabelValue(w, "Travel", fmt.Sprintf("%d min by %s", p.Travel.Minutes, p.Travel.Mode))
	}

	if p.LeaveAt != nil {
		leave := *p.LeaveAt
		if p.Event != nil {
			leave = leave.In(p.Event.Start.Location())
		}
		printLabelValue(w, "Leave at", leave.Format("15:04"))
	}

	if p.Outfit != nil {
		o := p.Outfit
		printLabelValue(w, "Outfit", joinNonEmpty(", ", o.Tops, o.Outer, o.Bottoms, o.Shoes))
		if o.Notes != "" {
			printLabelValue(w, "Notes", o.Notes)
		}
	}

	if len(p.Packing) > 0 {
		printLabelValue(w, "Pack", plural(len(p.Packing), "item", "items"))
		lines := make([]string, 0, len(p.Packing))
		for _, item := range p.Packing {
			line := item.Name
			if item.Reason != "" {
				line += " (" + item.Reason + ")"
			}
			lines = append(lines, line)
		}
		printList(w, lines)
	} else if p.Weather == nil {
		printEmptyState(w, "Packing list needs a forecast.")
	}

	if p.Advisory != "" {
		printWarning(w, p.Advisory)
	}
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/morningready/morningready/internal/api/models"
	"github.com/morningready/morningready/internal/api/response"
	"github.com/morningready/morningready/internal/event"
	"github.com/morningready/morningready/internal/geo"
	"github.com/morningready/morningready/internal/geocoding"
	"github.com/morningready/morningready/internal/items"
	"github.com/morningready/morningready/internal/outfit"
	"github.com/morningready/morningready/internal/packing"
	"github.com/morningready/morningready/internal/plan"
	"github.com/morningready/morningready/internal/profile"
	"github.com/morningready/morningready/internal/weather"
)

// ComputePlanRequest is the body of POST /v1/plan:compute. Either Home or
// HomeQuery is required. When Weather is omitted both forecasts are fetched;
// otherwise EventWeather is taken as given.
type ComputePlanRequest struct {
	Home         *models.Point      `json:"home,omitempty"`
	HomeQuery    string             `json:"homeQuery,omitempty"`
	Event        *event.Draft       `json:"event,omitempty"`
	Weather      *weather.Snapshot  `json:"weather,omitempty"`
	EventWeather *weather.Snapshot  `json:"eventWeather,omitempty"`
	Style        string             `json:"style,omitempty"`
	Items        *packing.UserItems `json:"items,omitempty"`
}

// PlanConfig configures a PlanHandler.
type PlanConfig struct {
	Planner  *plan.Planner
	Weather  weather.Provider
	Geocoder geocoding.Resolver
	Events   *event.Service
	Items    *items.Service
	Profiles *profile.Service
	Logger   zerolog.Logger
	Now      func() time.Time

	// WeatherTimeout bounds the forecast lookup of one request (default 15s).
	WeatherTimeout time.Duration

	// Location fixes the forecast day of an event (default: the event's zone).
	Location *time.Location
}

// PlanHandler computes morning plans.
type PlanHandler struct {
	planner  *plan.Planner
	weather  weather.Provider
	geocoder geocoding.Resolver
	events   *event.Service
	items    *items.Service
	profiles *profile.Service
	logger   zerolog.Logger
	now      func() time.Time
	timeout  time.Duration
	loc      *time.Location
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(cfg PlanConfig) *PlanHandler {
	planner := cfg.Planner
	if planner == nil {
		planner = plan.NewPlanner(plan.Config{Logger: cfg.Logger})
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	timeout := cfg.WeatherTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &PlanHandler{
		planner:  planner,
		weather:  cfg.Weather,
		geocoder: cfg.Geocoder,
		events:   cfg.Events,
		items:    cfg.Items,
		profiles: cfg.Profiles,
		logger:   cfg.Logger,
		now:      now,
		timeout:  timeout,
		loc:      cfg.Location,
	}
}

// Compute handles POST /v1/plan:compute. Nothing is stored.
func (h *PlanHandler) Compute(w http.ResponseWriter, r *http.Request) {
	var req ComputePlanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	var errs []models.FieldError
	if req.Home != nil {
		errs = append(errs, req.Home.Validate("home")...)
	} else if strings.TrimSpace(req.HomeQuery) == "" {
		errs = append(errs, models.FieldError{Field: "home", Message: "home or homeQuery is required", Code: models.CodeRequired})
	}

	style, err := outfit.ParseStyle(req.Style)
	if err != nil {
		errs = append(errs, models.FieldError{Field: "style", Message: "must be one of the supported styles", Code: models.CodeInvalid})
	}

	if req.Weather != nil {
		if err := req.Weather.Validate(); err != nil {
			errs = append(errs, models.FieldError{Field: "weather", Message: err.Error(), Code: models.CodeInvalid})
		}
	}
	if req.EventWeather != nil {
		if err := req.EventWeather.Validate(); err != nil {
			errs = append(errs, models.FieldError{Field: "eventWeather", Message: err.Error(), Code: models.CodeInvalid})
		}
	}

	var ev *event.Event
	if req.Event != nil {
		ev, err = h.events.Preview("", *req.Event)
		if err != nil {
			if fe, ok := fieldErrors(err); ok {
				for _, e := range fe {
					e.Field = "event." + e.Field
					errs = append(errs, e)
				}
			} else {
				writeError(w, r, h.logger, err)
				return
			}
		}
	}

	if len(errs) > 0 {
		response.ValidationFailed(w, r, errs)
		return
	}

	var home geo.Coordinate
	if req.Home != nil {
		home = req.Home.Coordinate()
	} else {
		place, ok := resolvePlace(w, r, h.geocoder, h.logger, "homeQuery", req.HomeQuery)
		if !ok {
			return
		}
		home = place.Coordinate
	}

	userItems := packing.UserItems{Essentials: items.DefaultEssentials()}
	if req.Items != nil {
		userItems = *req.Items
	}

	in := plan.Inputs{
		Home:         home,
		Event:        ev,
		Weather:      req.Weather,
		EventWeather: req.EventWeather,
		Style:        style,
		Items:        userItems,
	}
	if in.Weather == nil {
		h.resolveWeather(r.Context(), &in)
	}

	response.JSON(w, r, http.StatusOK, h.planner.Compute(in))
}

// Mine handles GET /v1/me/plan from the stored profile, next event and items.
func (h *PlanHandler) Mine(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	prof, err := h.profiles.Get(ctx, userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	next, err := h.events.Next(ctx, userID)
	if err != nil && !errors.Is(err, event.ErrEventNotFound) {
		writeError(w, r, h.logger, err)
		return
	}

	owned, err := h.items.Get(ctx, userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	in := plan.Inputs{
		Home:  prof.Home,
		Event: next,
		Style: prof.Style,
		Items: *owned,
	}
	h.resolveWeather(ctx, &in)

	response.JSON(w, r, http.StatusOK, h.planner.Compute(in))
}

// resolveWeather fills the home forecast and the forecast at the event
// location. Without a provider the plan keeps no weather-derived fields.
func (h *PlanHandler) resolveWeather(ctx context.Context, in *plan.Inputs) {
	if h.weather == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	date := plan.WeatherDate(in.Event, h.now(), h.loc)
	in.Weather, in.WeatherFallback = plan.ResolveWeather(ctx, h.weather, in.Home, date, h.logger)
	in.EventWeather = plan.ResolveEventWeather(ctx, h.weather, in.Event, date, h.logger)
}

// GeocodeHandler resolves free-text places.
type GeocodeHandler struct {
	resolver geocoding.Resolver
	logger   zerolog.Logger
}

// NewGeocodeHandler creates a new GeocodeHandler.
func NewGeocodeHandler(resolver geocoding.Resolver, logger zerolog.Logger) *GeocodeHandler {
	return &GeocodeHandler{resolver: resolver, logger: logger}
}

// Geocode handles GET /v1/geocode?q=.
func (h *GeocodeHandler) Geocode(w http.ResponseWriter, r *http.Request) {
	if h.resolver == nil {
		response.ServiceUnavailable(w, r, "geocoding is not configured")
		return
	}

	q := r.URL.Query().Get("q")
	place, err := h.resolver.Resolve(r.Context(), q)
	switch {
	case errors.Is(err, geocoding.ErrEmptyQuery):
		response.ValidationFailed(w, r, []models.FieldError{{Field: "q", Message: "is required", Code: models.CodeRequired}})
	case err != nil:
		h.logger.Warn().Err(err).Str("provider", h.resolver.Name()).Msg("geocoding failed")
		response.ServiceUnavailable(w, r, "geocoding unavailable")
	case place == nil:
		response.NotFound(w, r, "no place matches the query")
	default:
		response.JSON(w, r, http.StatusOK, place)
	}
}

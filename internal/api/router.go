// Package api wires the HTTP routes of the morning planner.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/morningready/morningready/internal/api/handler"
	"github.com/morningready/morningready/internal/api/middleware"
	"github.com/morningready/morningready/internal/auth"
	"github.com/morningready/morningready/internal/database"
	"github.com/morningready/morningready/internal/event"
	"github.com/morningready/morningready/internal/eventparser"
	"github.com/morningready/morningready/internal/geocoding"
	"github.com/morningready/morningready/internal/items"
	"github.com/morningready/morningready/internal/plan"
	"github.com/morningready/morningready/internal/profile"
	"github.com/morningready/morningready/internal/provider/resilience"
	"github.com/morningready/morningready/internal/weather"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	ServiceName string
	Logger      zerolog.Logger
	Metrics     *middleware.Metrics
	RequireTLS  bool

	Tokens   auth.TokenValidator
	Planner  *plan.Planner
	Weather  weather.Provider
	Geocoder geocoding.Resolver
	Events   *event.Service
	Items    *items.Service
	Profiles *profile.Service
	Parser   *eventparser.Parser

	// WeatherTimeout bounds forecast lookups made while computing a plan.
	WeatherTimeout time.Duration

	// Location fixes the forecast day of events (APP_TIME_ZONE).
	Location *time.Location

	Registry   *resilience.Registry
	Subsystems map[string]database.Pinger
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "morningready-api"
	}

	// Order matters: the request ID must exist before spans and logs.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:    cfg.Version,
		BuildTime:  cfg.BuildTime,
		Subsystems: cfg.Subsystems,
		Registry:   cfg.Registry,
	})
	planHandler := handler.NewPlanHandler(handler.PlanConfig{
		Planner:  cfg.Planner,
		Weather:  cfg.Weather,
		Geocoder: cfg.Geocoder,
		Events:   cfg.Events,
		Items:    cfg.Items,
		Profiles: cfg.Profiles,
		Logger:   cfg.Logger,

		WeatherTimeout: cfg.WeatherTimeout,
		Location:       cfg.Location,
	})
	geocodeHandler := handler.NewGeocodeHandler(cfg.Geocoder, cfg.Logger)
	eventHandler := handler.NewEventHandler(cfg.Events, cfg.Parser, cfg.Geocoder, cfg.Logger)
	itemsHandler := handler.NewItemsHandler(cfg.Items, cfg.Logger)
	profileHandler := handler.NewProfileHandler(cfg.Profiles, cfg.Geocoder, cfg.Logger)

	authMiddleware := middleware.Auth(cfg.Tokens)
	computeRateLimit := middleware.RateLimitByIP(middleware.ComputeRateLimit)
	jsonOnly := middleware.RequireContentType("application/json")

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})

		r.With(computeRateLimit, jsonOnly).Post("/plan:compute", planHandler.Compute)
		r.With(computeRateLimit).Get("/geocode", geocodeHandler.Geocode)

		r.Route("/me", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByUser(middleware.StandardRateLimit))

			r.Get("/plan", planHandler.Mine)

			r.Get("/profile", profileHandler.Get)
			r.With(jsonOnly).Put("/profile", profileHandler.Update)

			r.Get("/events", eventHandler.List)
			r.With(jsonOnly).Post("/events", eventHandler.Create)
			r.With(jsonOnly).Post("/events:parse", eventHandler.Parse)
			r.With(middleware.RequireContentType("text/calendar", "text/plain", "application/octet-stream")).
				Post("/events:import", eventHandler.Import)
			r.Get("/events/{eventId}", eventHandler.Get)
			r.Delete("/events/{eventId}", eventHandler.Delete)

			r.Route("/items", func(r chi.Router) {
				r.Get("/", itemsHandler.Get)
				r.With(jsonOnly).Put("/essentials", itemsHandler.SetEssentials)
				r.With(jsonOnly).Post("/personal", itemsHandler.AddPersonal)
				r.Delete("/personal/{name}", itemsHandler.RemovePersonal)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		handler.NotFound(w, req)
	})

	return r
}

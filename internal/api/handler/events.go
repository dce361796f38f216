package handler

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/morningready/morningready/internal/api/models"
	"github.com/morningready/morningready/internal/api/response"
	"github.com/morningready/morningready/internal/event"
	"github.com/morningready/morningready/internal/eventparser"
	"github.com/morningready/morningready/internal/geocoding"
)

// MaxParseTextLength bounds the text accepted by events:parse.
const MaxParseTextLength = 500

// ParseEventRequest is the body of POST /v1/me/events:parse.
type ParseEventRequest struct {
	Text string `json:"text"`

	// DryRun returns the parsed event without storing it.
	DryRun bool `json:"dryRun,omitempty"`
}

// EventHandler handles the user's calendar events.
type EventHandler struct {
	events   *event.Service
	parser   *eventparser.Parser
	geocoder geocoding.Resolver
	logger   zerolog.Logger
}

// NewEventHandler creates a new EventHandler. geocoder may be nil, in which
// case parsed events carry no coordinate.
func NewEventHandler(events *event.Service, parser *eventparser.Parser, geocoder geocoding.Resolver, logger zerolog.Logger) *EventHandler {
	if parser == nil {
		parser = eventparser.New(eventparser.Config{})
	}
	return &EventHandler{events: events, parser: parser, geocoder: geocoder, logger: logger}
}

// List handles GET /v1/me/events.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	list, err := h.events.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if list == nil {
		list = []*event.Event{}
	}
	response.JSON(w, r, http.StatusOK, map[string]interface{}{"items": list})
}

// Create handles POST /v1/me/events.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var draft event.Draft
	if err := decodeJSON(w, r, &draft); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	ev, err := h.events.Create(r.Context(), userID, draft)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Created(w, r, "/v1/me/events/"+ev.ID, ev)
}

// Get handles GET /v1/me/events/{eventId}.
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	ev, err := h.events.Get(r.Context(), userID, chi.URLParam(r, "eventId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, ev)
}

// Delete handles DELETE /v1/me/events/{eventId}. Unknown IDs succeed.
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.events.Remove(r.Context(), userID, chi.URLParam(r, "eventId")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.NoContent(w, r)
}

// Parse handles POST /v1/me/events:parse.
func (h *EventHandler) Parse(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req ParseEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	text := strings.TrimSpace(req.Text)
	switch {
	case text == "":
		response.ValidationFailed(w, r, []models.FieldError{{Field: "text", Message: "is required", Code: models.CodeRequired}})
		return
	case len(text) > MaxParseTextLength:
		response.ValidationFailed(w, r, []models.FieldError{{Field: "text", Message: "must be at most 500 characters", Code: models.CodeTooLong}})
		return
	}

	draft := h.parser.Parse(text)
	if draft == nil {
		response.ValidationFailed(w, r, []models.FieldError{{Field: "text", Message: "no date or time found", Code: models.CodeInvalid}})
		return
	}
	h.locate(r, draft)

	if req.DryRun {
		ev, err := h.events.Preview(userID, *draft)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		response.JSON(w, r, http.StatusOK, ev)
		return
	}

	ev, err := h.events.Create(r.Context(), userID, *draft)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Created(w, r, "/v1/me/events/"+ev.ID, ev)
}

// locate fills the draft coordinate from its place when possible. Failures
// leave it unset; the plan then falls back to a fixed travel time.
func (h *EventHandler) locate(r *http.Request, draft *event.Draft) {
	if h.geocoder == nil || draft.Place == "" || draft.Place == event.UnspecifiedPlace {
		return
	}
	place, err := h.geocoder.Resolve(r.Context(), draft.Place)
	if err != nil {
		h.logger.Warn().Err(err).Str("place", draft.Place).Msg("could not locate parsed event")
		return
	}
	if place != nil {
		c := place.Coordinate
		draft.Coordinate = &c
	}
}

// Import handles POST /v1/me/events:import with an iCalendar body.
func (h *EventHandler) Import(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		response.BadRequest(w, r, "could not read calendar body", nil)
		return
	}

	result, err := h.events.Import(r.Context(), userID, bytes.NewReader(body))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, result)
}

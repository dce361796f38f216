package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/morningready/morningready/internal/api/response"
	"github.com/morningready/morningready/internal/geocoding"
	"github.com/morningready/morningready/internal/profile"
)

// UpdateProfileRequest is the body of PUT /v1/me/profile. HomeQuery is
// geocoded into Home, and into HomeLabel unless one is given.
type UpdateProfileRequest struct {
	profile.Update
	HomeQuery *string `json:"homeQuery,omitempty"`
}

// ProfileHandler handles the user's home location and outfit style.
type ProfileHandler struct {
	profiles *profile.Service
	geocoder geocoding.Resolver
	logger   zerolog.Logger
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(svc *profile.Service, geocoder geocoding.Resolver, logger zerolog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: svc, geocoder: geocoder, logger: logger}
}

// Get handles GET /v1/me/profile.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	p, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, p)
}

// Update handles PUT /v1/me/profile. Omitted fields are left unchanged.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	u := req.Update
	if req.HomeQuery != nil {
		place, ok := resolvePlace(w, r, h.geocoder, h.logger, "homeQuery", *req.HomeQuery)
		if !ok {
			return
		}
		coord := place.Coordinate
		u.Home = &coord
		if u.HomeLabel == nil {
			label := place.Label
			u.HomeLabel = &label
		}
	}

	p, err := h.profiles.Apply(r.Context(), userID, u)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, p)
}

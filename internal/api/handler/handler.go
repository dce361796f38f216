// Package handler provides the HTTP handlers of the API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/morningready/morningready/internal/api/middleware"
	"github.com/morningready/morningready/internal/api/models"
	"github.com/morningready/morningready/internal/api/response"
	"github.com/morningready/morningready/internal/event"
	"github.com/morningready/morningready/internal/geocoding"
	"github.com/morningready/morningready/internal/items"
	"github.com/morningready/morningready/internal/profile"
)

// MaxBodyBytes bounds JSON request bodies.
const MaxBodyBytes = 1 << 20

// decodeJSON decodes a single JSON value from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if dec.More() {
		return errors.New("decode body: trailing data")
	}
	return nil
}

// requireUser returns the authenticated user ID, writing a 401 when absent.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "user not authenticated")
		return "", false
	}
	return userID, true
}

// fieldErrors extracts validation failures from any domain package.
func fieldErrors(err error) ([]models.FieldError, bool) {
	var evErr *event.ValidationError
	if errors.As(err, &evErr) {
		return evErr.Errors, true
	}
	var itemErr *items.ValidationError
	if errors.As(err, &itemErr) {
		return itemErr.Errors, true
	}
	var profErr *profile.ValidationError
	if errors.As(err, &profErr) {
		return profErr.Errors, true
	}
	return nil, false
}

// writeError maps a service error onto a problem response. Unexpected
// errors are logged and reported as a 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	if errs, ok := fieldErrors(err); ok {
		response.ValidationFailed(w, r, errs)
		return
	}

	switch {
	case errors.Is(err, event.ErrEventNotFound):
		response.NotFound(w, r, "event not found")
	case errors.Is(err, event.ErrInvalidCalendar):
		response.BadRequest(w, r, err.Error(), nil)
	default:
		log.Error().Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		response.InternalError(w, r, "internal server error")
	}
}

// readBody reads a raw request body up to MaxBodyBytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
}

// resolvePlace geocodes query for field, writing the problem on failure.
func resolvePlace(w http.ResponseWriter, r *http.Request, resolver geocoding.Resolver, log zerolog.Logger, field, query string) (*geocoding.Place, bool) {
	if resolver == nil {
		response.ServiceUnavailable(w, r, "geocoding is not configured")
		return nil, false
	}
	place, err := resolver.Resolve(r.Context(), query)
	switch {
	case errors.Is(err, geocoding.ErrEmptyQuery):
		response.ValidationFailed(w, r, []models.FieldError{{Field: field, Message: "is required", Code: models.CodeRequired}})
		return nil, false
	case err != nil:
		log.Warn().Err(err).Str("provider", resolver.Name()).Msg("geocoding failed")
		response.ServiceUnavailable(w, r, "geocoding unavailable")
		return nil, false
	case place == nil:
		response.ValidationFailed(w, r, []models.FieldError{{Field: field, Message: "could not be resolved", Code: models.CodeInvalid}})
		return nil, false
	}
	return place, true
}

// NotFound writes the 404 problem for unknown routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	response.NotFound(w, r, "no route for "+r.Method+" "+r.URL.Path)
}

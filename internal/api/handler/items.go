package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/morningready/morningready/internal/api/response"
	"github.com/morningready/morningready/internal/items"
	"github.com/morningready/morningready/internal/packing"
)

// SetEssentialsRequest is the body of PUT /v1/me/items/essentials.
type SetEssentialsRequest struct {
	Essentials []packing.Item `json:"essentials"`
}

// ItemsHandler handles the user's pack items.
type ItemsHandler struct {
	items  *items.Service
	logger zerolog.Logger
}

// NewItemsHandler creates a new ItemsHandler.
func NewItemsHandler(svc *items.Service, logger zerolog.Logger) *ItemsHandler {
	return &ItemsHandler{items: svc, logger: logger}
}

// Get handles GET /v1/me/items.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	owned, err := h.items.Get(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, owned)
}

// SetEssentials handles PUT /v1/me/items/essentials.
func (h *ItemsHandler) SetEssentials(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req SetEssentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	owned, err := h.items.SetEssentials(r.Context(), userID, req.Essentials)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, owned)
}

// AddPersonal handles POST /v1/me/items/personal. An item with the same
// name is replaced.
func (h *ItemsHandler) AddPersonal(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var item packing.Item
	if err := decodeJSON(w, r, &item); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	owned, err := h.items.AddPersonal(r.Context(), userID, item)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, owned)
}

// RemovePersonal handles DELETE /v1/me/items/personal/{name}.
func (h *ItemsHandler) RemovePersonal(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.items.RemovePersonal(r.Context(), userID, chi.URLParam(r, "name")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.NoContent(w, r)
}

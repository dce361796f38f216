// Package event provides calendar event storage and validation.
package event

import (
	"errors"
	"time"

	"github.com/morningready/morningready/internal/api/models"
	"github.com/morningready/morningready/internal/geo"
	"github.com/morningready/morningready/internal/travel"
)

// Repository errors.
var (
	ErrEventNotFound = errors.New("event not found")
)

// Defaults applied to drafts that leave fields unset.
const (
	DefaultBufferMinutes = 10
	DefaultDuration      = time.Hour
	DefaultMode          = travel.ModeTrain
	UnspecifiedPlace     = "unspecified"
)

// Event is a stored calendar event. Events are immutable once stored;
// the only mutation is removal by ID.
type Event struct {
	ID            string          `json:"id"`
	UserID        string          `json:"-"`
	Title         string          `json:"title"`
	Start         time.Time       `json:"start"`
	End           time.Time       `json:"end"`
	Place         string          `json:"place"`
	Coordinate    *geo.Coordinate `json:"coordinate,omitempty"`
	TravelMinutes *int            `json:"travelMinutes,omitempty"`
	BufferMinutes int             `json:"bufferMinutes"`
	Mode          travel.Mode     `json:"mode"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Draft is the user-supplied input for creating an event.
// An empty ID is replaced with a generated one.
type Draft struct {
	ID            string          `json:"id,omitempty"`
	Title         string          `json:"title"`
	Start         time.Time       `json:"start"`
	End           time.Time       `json:"end"`
	Place         string          `json:"place"`
	Coordinate    *geo.Coordinate `json:"coordinate,omitempty"`
	TravelMinutes *int            `json:"travelMinutes,omitempty"`
	BufferMinutes int             `json:"bufferMinutes"`
	Mode          travel.Mode     `json:"mode"`
}

// ValidationError represents validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

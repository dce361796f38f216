package event

import (
	"context"
	"time"
)

// Repository defines the interface for event persistence.
// Add and RemoveByID are idempotent per event ID.
type Repository interface {
	// List returns every event of a user ordered by start time.
	List(ctx context.Context, userID string) ([]*Event, error)

	// Get retrieves a user's event by ID.
	// Returns ErrEventNotFound if the event doesn't exist or doesn't belong to the user.
	Get(ctx context.Context, userID, eventID string) (*Event, error)

	// Next returns the earliest event of a user starting after now.
	Next(ctx context.Context, userID string, now time.Time) (*Event, error)

	// Upcoming returns events of every user starting in [from, until),
	// ordered by start time.
	Upcoming(ctx context.Context, from, until time.Time) ([]*Event, error)

	// Add stores an event. Adding an ID that already exists is a no-op.
	Add(ctx context.Context, ev *Event) error

	// RemoveByID deletes a user's event. Removing a missing ID is not an error.
	RemoveByID(ctx context.Context, userID, eventID string) error
}

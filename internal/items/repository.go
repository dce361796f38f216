package items

import (
	"context"

	"github.com/morningready/morningready/internal/packing"
)

// Repository defines the interface for user item persistence.
// A user that has never written items reads DefaultEssentials and no personal items.
type Repository interface {
	// Get returns the user's essentials and personal items in stored order.
	Get(ctx context.Context, userID string) (*packing.UserItems, error)

	// SetEssentials replaces the user's essentials.
	SetEssentials(ctx context.Context, userID string, essentials []packing.Item) error

	// AddPersonal appends a personal item, replacing one with the same name in place.
	AddPersonal(ctx context.Context, userID string, item packing.Item) error

	// RemovePersonalByName deletes a personal item. Removing a missing name is not an error.
	RemovePersonalByName(ctx context.Context, userID, name string) error
}

// Package items stores the pack items a user owns: essentials carried every
// day and personal items suggested alongside event-specific ones.
package items

import (
	"github.com/morningready/morningready/internal/api/models"
	"github.com/morningready/morningready/internal/packing"
)

// MaxNameLength bounds item names.
const MaxNameLength = 80

// DefaultEssentials are the essentials of a user who has stored none.
func DefaultEssentials() []packing.Item {
	return []packing.Item{
		{Name: "IC card", Required: true, Category: packing.CategoryEssential},
		{Name: "keys", Required: true, Category: packing.CategoryEssential},
	}
}

// ValidationError represents validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

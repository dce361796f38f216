package items

import (
	"context"
	"fmt"
	"strings"

	"github.com/morningready/morningready/internal/api/models"
	"github.com/morningready/morningready/internal/packing"
)

// Service provides item operations with validation.
type Service struct {
	repo Repository
}

// NewService creates a new item service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the user's items.
func (s *Service) Get(ctx context.Context, userID string) (*packing.UserItems, error) {
	return s.repo.Get(ctx, userID)
}

// SetEssentials validates and replaces the user's essentials.
// Duplicate names keep their first occurrence.
func (s *Service) SetEssentials(ctx context.Context, userID string, essentials []packing.Item) (*packing.UserItems, error) {
	normalized := make([]packing.Item, 0, len(essentials))
	var errs []models.FieldError
	for i, item := range essentials {
		item, fieldErrs := normalize(item, packing.CategoryEssential, fmt.Sprintf("essentials[%d]", i))
		errs = append(errs, fieldErrs...)
		normalized = append(normalized, item)
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	if err := s.repo.SetEssentials(ctx, userID, packing.Dedupe(normalized)); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID)
}

// AddPersonal validates and stores a personal item.
func (s *Service) AddPersonal(ctx context.Context, userID string, item packing.Item) (*packing.UserItems, error) {
	item, errs := normalize(item, packing.CategoryPersonal, "")
	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	if err := s.repo.AddPersonal(ctx, userID, item); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID)
}

// RemovePersonal deletes a personal item by name.
func (s *Service) RemovePersonal(ctx context.Context, userID, name string) error {
	return s.repo.RemovePersonalByName(ctx, userID, strings.TrimSpace(name))
}

// normalize trims the item, forces its category and validates it.
func normalize(item packing.Item, category packing.Category, prefix string) (packing.Item, []models.FieldError) {
	field := func(name string) string {
		if prefix == "" {
			return name
		}
		return prefix + "." + name
	}

	item.Name = strings.TrimSpace(item.Name)
	item.Reason = strings.TrimSpace(item.Reason)
	item.Category = category

	var errs []models.FieldError
	if item.Name == "" {
		errs = append(errs, models.FieldError{Field: field("name"), Message: "is required"})
	} else if len(item.Name) > MaxNameLength {
		errs = append(errs, models.FieldError{Field: field("name"), Message: "must be at most 80 characters"})
	}
	return item, errs
}

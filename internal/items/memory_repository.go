package items

import (
	"context"
	"sync"

	"github.com/morningready/morningready/internal/packing"
)

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*packing.UserItems
}

// NewInMemoryRepository creates a new in-memory item repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		users: make(map[string]*packing.UserItems),
	}
}

// Get returns the user's items.
func (r *InMemoryRepository) Get(_ context.Context, userID string) (*packing.UserItems, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		return &packing.UserItems{Essentials: DefaultEssentials(), Personal: []packing.Item{}}, nil
	}

	return cloneItems(u), nil
}

// SetEssentials replaces the user's essentials.
func (r *InMemoryRepository) SetEssentials(_ context.Context, userID string, essentials []packing.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.ensure(userID)
	u.Essentials = append([]packing.Item{}, essentials...)
	return nil
}

// AddPersonal appends or replaces a personal item.
func (r *InMemoryRepository) AddPersonal(_ context.Context, userID string, item packing.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.ensure(userID)
	for i := range u.Personal {
		if u.Personal[i].Name == item.Name {
			u.Personal[i] = item
			return nil
		}
	}
	u.Personal = append(u.Personal, item)
	return nil
}

// RemovePersonalByName deletes a personal item.
func (r *InMemoryRepository) RemovePersonalByName(_ context.Context, userID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return nil
	}

	kept := u.Personal[:0]
	for _, item := range u.Personal {
		if item.Name != name {
			kept = append(kept, item)
		}
	}
	u.Personal = kept
	return nil
}

// ensure must be called with the write lock held.
func (r *InMemoryRepository) ensure(userID string) *packing.UserItems {
	u, ok := r.users[userID]
	if !ok {
		u = &packing.UserItems{Essentials: DefaultEssentials(), Personal: []packing.Item{}}
		r.users[userID] = u
	}
	return u
}

func cloneItems(u *packing.UserItems) *packing.UserItems {
	return &packing.UserItems{
		Essentials: append([]packing.Item{}, u.Essentials...),
		Personal:   append([]packing.Item{}, u.Personal...),
	}
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)

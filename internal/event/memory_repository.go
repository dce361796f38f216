package event

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing and the CLI. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu     sync.RWMutex
	events map[string]*Event
}

// NewInMemoryRepository creates a new in-memory event repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		events: make(map[string]*Event),
	}
}

// List returns every event of a user ordered by start time.
func (r *InMemoryRepository) List(_ context.Context, userID string) ([]*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := make([]*Event, 0)
	for _, ev := range r.events {
		if ev.UserID == userID {
			cpy := *ev
			events = append(events, &cpy)
		}
	}

	sortByStart(events)
	return events, nil
}

func sortByStart(events []*Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Start.Equal(events[j].Start) {
			return events[i].ID < events[j].ID
		}
		return events[i].Start.Before(events[j].Start)
	})
}

// Get retrieves a user's event by ID.
func (r *InMemoryRepository) Get(_ context.Context, userID, eventID string) (*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ev, ok := r.events[eventID]
	if !ok || ev.UserID != userID {
		return nil, ErrEventNotFound
	}

	cpy := *ev
	return &cpy, nil
}

// Next returns the earliest event of a user starting after now.
func (r *InMemoryRepository) Next(ctx context.Context, userID string, now time.Time) (*Event, error) {
	events, err := r.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, ev := range events {
		if ev.Start.After(now) {
			return ev, nil
		}
	}

	return nil, ErrEventNotFound
}

// Upcoming returns events of every user starting in [from, until).
func (r *InMemoryRepository) Upcoming(_ context.Context, from, until time.Time) ([]*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := make([]*Event, 0)
	for _, ev := range r.events {
		if ev.Start.Before(from) || !ev.Start.Before(until) {
			continue
		}
		cpy := *ev
		events = append(events, &cpy)
	}
	sortByStart(events)
	return events, nil
}

// Add stores an event unless its ID is already present.
func (r *InMemoryRepository) Add(_ context.Context, ev *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.events[ev.ID]; ok {
		return nil
	}

	cpy := *ev
	r.events[ev.ID] = &cpy
	return nil
}

// RemoveByID deletes a user's event.
func (r *InMemoryRepository) RemoveByID(_ context.Context, userID, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ev, ok := r.events[eventID]; ok && ev.UserID == userID {
		delete(r.events, eventID)
	}
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)

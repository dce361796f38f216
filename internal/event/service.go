package event

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/morningready/morningready/internal/api/models"
)

// Validation constants.
const (
	MaxTitleLength         = 200
	MaxPlaceLength         = 200
	MaxIDLength            = 128
	MaxTravelMinutes       = 24 * 60
	DefaultRecurrenceRange = 14 * 24 * time.Hour
	DefaultMaxOccurrences  = 50
)

// ServiceConfig holds configuration for the event service.
type ServiceConfig struct {
	// Repository stores events.
	Repository Repository

	// Logger for service operations.
	Logger zerolog.Logger

	// Now returns the current time (default: time.Now).
	Now func() time.Time

	// RecurrenceRange bounds how far ahead recurring calendar entries are
	// expanded on import (default: 14 days).
	RecurrenceRange time.Duration

	// MaxOccurrences caps the occurrences imported per recurring entry (default: 50).
	MaxOccurrences int
}

// Service provides event operations with validation.
type Service struct {
	repo            Repository
	logger          zerolog.Logger
	now             func() time.Time
	recurrenceRange time.Duration
	maxOccurrences  int
}

// NewService creates a new event service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	recurrenceRange := cfg.RecurrenceRange
	if recurrenceRange == 0 {
		recurrenceRange = DefaultRecurrenceRange
	}

	maxOccurrences := cfg.MaxOccurrences
	if maxOccurrences == 0 {
		maxOccurrences = DefaultMaxOccurrences
	}

	return &Service{
		repo:            cfg.Repository,
		logger:          cfg.Logger,
		now:             now,
		recurrenceRange: recurrenceRange,
		maxOccurrences:  maxOccurrences,
	}
}

// List returns a user's events ordered by start time.
func (s *Service) List(ctx context.Context, userID string) ([]*Event, error) {
	return s.repo.List(ctx, userID)
}

// Get returns a single event of a user.
func (s *Service) Get(ctx context.Context, userID, eventID string) (*Event, error) {
	return s.repo.Get(ctx, userID, eventID)
}

// Next returns the user's next upcoming event.
func (s *Service) Next(ctx context.Context, userID string) (*Event, error) {
	return s.repo.Next(ctx, userID, s.now())
}

// Upcoming returns events of every user starting within window from now.
func (s *Service) Upcoming(ctx context.Context, window time.Duration) ([]*Event, error) {
	now := s.now()
	return s.repo.Upcoming(ctx, now, now.Add(window))
}

// Preview validates a draft and builds the event Create would store,
// without storing it.
func (s *Service) Preview(userID string, draft Draft) (*Event, error) {
	draft = applyDefaults(draft)

	if fieldErrors := validateDraft(draft); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	return s.newEvent(userID, draft), nil
}

// Create validates a draft and stores it as a new event.
func (s *Service) Create(ctx context.Context, userID string, draft Draft) (*Event, error) {
	ev, err := s.Preview(userID, draft)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Add(ctx, ev); err != nil {
		return nil, fmt.Errorf("store event: %w", err)
	}

	return ev, nil
}

// Remove deletes a user's event. Removing an unknown ID succeeds.
func (s *Service) Remove(ctx context.Context, userID, eventID string) error {
	return s.repo.RemoveByID(ctx, userID, eventID)
}

// ImportResult summarizes a calendar import.
type ImportResult struct {
	Imported []*Event           `json:"imported"`
	Skipped  []models.FieldError `json:"skipped,omitempty"`
}

// Import parses an iCalendar payload and stores every valid entry.
// Entries failing validation are reported in Skipped rather than aborting the import.
func (s *Service) Import(ctx context.Context, userID string, r io.Reader) (*ImportResult, error) {
	now := s.now()
	drafts, err := ParseICS(r, ICSOptions{
		From:           now,
		Until:          now.Add(s.recurrenceRange),
		MaxOccurrences: s.maxOccurrences,
		Logger:         s.logger,
	})
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Imported: make([]*Event, 0, len(drafts))}
	for _, d := range drafts {
		d = applyDefaults(d)
		if fieldErrors := validateDraft(d); len(fieldErrors) > 0 {
			result.Skipped = append(result.Skipped, models.FieldError{
				Field:   d.ID,
				Message: fieldErrors[0].Field + " " + fieldErrors[0].Message,
			})
			continue
		}

		ev := s.newEvent(userID, d)
		if err := s.repo.Add(ctx, ev); err != nil {
			return nil, fmt.Errorf("store imported event: %w", err)
		}
		result.Imported = append(result.Imported, ev)
	}

	s.logger.Info().
		Str("user_id", userID).
		Int("imported", len(result.Imported)).
		Int("skipped", len(result.Skipped)).
		Msg("calendar import completed")

	return result, nil
}

func (s *Service) newEvent(userID string, d Draft) *Event {
	id := d.ID
	if id == "" {
		id = "evt_" + uuid.New().String()[:22]
	}

	return &Event{
		ID:            id,
		UserID:        userID,
		Title:         d.Title,
		Start:         d.Start,
		End:           d.End,
		Place:         d.Place,
		Coordinate:    d.Coordinate,
		TravelMinutes: d.TravelMinutes,
		BufferMinutes: d.BufferMinutes,
		Mode:          d.Mode,
		CreatedAt:     s.now(),
	}
}

// applyDefaults fills optional draft fields.
func applyDefaults(d Draft) Draft {
	d.Title = strings.TrimSpace(d.Title)
	d.Place = strings.TrimSpace(d.Place)
	if d.Place == "" {
		d.Place = UnspecifiedPlace
	}
	if d.Mode == "" {
		d.Mode = DefaultMode
	}
	if d.End.IsZero() && !d.Start.IsZero() {
		d.End = d.Start.Add(DefaultDuration)
	}
	return d
}

// validateDraft validates a draft after defaults have been applied.
func validateDraft(d Draft) []models.FieldError {
	var errs []models.FieldError

	if len(d.ID) > MaxIDLength {
		errs = append(errs, models.FieldError{Field: "id", Message: "must be at most 128 characters"})
	}

	if d.Title == "" {
		errs = append(errs, models.FieldError{Field: "title", Message: "is required"})
	} else if len(d.Title) > MaxTitleLength {
		errs = append(errs, models.FieldError{Field: "title", Message: "must be at most 200 characters"})
	}

	if len(d.Place) > MaxPlaceLength {
		errs = append(errs, models.FieldError{Field: "place", Message: "must be at most 200 characters"})
	}

	if d.Start.IsZero() {
		errs = append(errs, models.FieldError{Field: "start", Message: "is required"})
	} else if !d.End.After(d.Start) {
		errs = append(errs, models.FieldError{Field: "end", Message: "must be after start"})
	}

	if d.BufferMinutes < 0 {
		errs = append(errs, models.FieldError{Field: "bufferMinutes", Message: "must be zero or greater"})
	}

	if d.TravelMinutes != nil && (*d.TravelMinutes < 0 || *d.TravelMinutes > MaxTravelMinutes) {
		errs = append(errs, models.FieldError{Field: "travelMinutes", Message: "must be between 0 and 1440"})
	}

	if !d.Mode.Valid() {
		errs = append(errs, models.FieldError{Field: "mode", Message: "must be one of train, bus, walk, bike, car"})
	}

	if d.Coordinate != nil && !d.Coordinate.Valid() {
		errs = append(errs, models.FieldError{Field: "coordinate", Message: "must be a valid latitude/longitude"})
	}

	return errs
}

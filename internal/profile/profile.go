// Package profile stores each user's home location and outfit style.
package profile

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morningready/morningready/internal/api/models"
	"github.com/morningready/morningready/internal/geo"
	"github.com/morningready/morningready/internal/outfit"
)

// ErrProfileNotFound is returned by repositories for users without a stored profile.
var ErrProfileNotFound = errors.New("profile not found")

// Default home when none has been set (Shibuya, Tokyo).
var (
	DefaultHome      = geo.Coordinate{Lat: 35.658034, Lon: 139.701636}
	DefaultHomeLabel = "Shibuya"
)

// MaxLabelLength bounds the home label.
const MaxLabelLength = 120

// Profile holds a user's planning preferences.
type Profile struct {
	UserID    string         `json:"-"`
	Home      geo.Coordinate `json:"home"`
	HomeLabel string         `json:"homeLabel"`
	Style     outfit.Style   `json:"style"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Default returns the profile used for a user that has none.
func Default(userID string) *Profile {
	return &Profile{
		UserID:    userID,
		Home:      DefaultHome,
		HomeLabel: DefaultHomeLabel,
		Style:     outfit.DefaultStyle,
	}
}

// Repository defines the interface for profile persistence.
type Repository interface {
	// Get returns ErrProfileNotFound for users without a profile.
	Get(ctx context.Context, userID string) (*Profile, error)
	Upsert(ctx context.Context, p *Profile) error
}

// Update is a partial profile change. Nil fields are left unchanged.
type Update struct {
	Home      *geo.Coordinate `json:"home,omitempty"`
	HomeLabel *string         `json:"homeLabel,omitempty"`
	Style     *string         `json:"style,omitempty"`
}

// ValidationError represents validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// Service provides profile operations.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new profile service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Get returns the user's profile, or the default profile.
func (s *Service) Get(ctx context.Context, userID string) (*Profile, error) {
	p, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		return Default(userID), nil
	}
	return p, err
}

// Apply validates and stores a partial update.
func (s *Service) Apply(ctx context.Context, userID string, u Update) (*Profile, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	var errs []models.FieldError
	if u.Home != nil {
		if !u.Home.Valid() {
			errs = append(errs, models.FieldError{Field: "home", Message: "must be a valid latitude/longitude"})
		} else {
			p.Home = *u.Home
		}
	}
	if u.HomeLabel != nil {
		label := strings.TrimSpace(*u.HomeLabel)
		if len(label) > MaxLabelLength {
			errs = append(errs, models.FieldError{Field: "homeLabel", Message: "must be at most 120 characters"})
		} else {
			p.HomeLabel = label
		}
	}
	if u.Style != nil {
		style, err := outfit.ParseStyle(*u.Style)
		if err != nil {
			errs = append(errs, models.FieldError{Field: "style", Message: "must be one of the supported styles"})
		} else {
			p.Style = style
		}
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	p.UpdatedAt = s.now()
	if err := s.repo.Upsert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewInMemoryRepository creates a new in-memory profile repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{profiles: make(map[string]Profile)}
}

// Get returns a stored profile.
func (r *InMemoryRepository) Get(_ context.Context, userID string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &p, nil
}

// Upsert stores a profile.
func (r *InMemoryRepository) Upsert(_ context.Context, p *Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.UserID] = *p
	return nil
}

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL profile repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Get returns a stored profile.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (*Profile, error) {
	query := `
		SELECT user_id, home_lat, home_lon, home_label, style, updated_at
		FROM profiles
		WHERE user_id = $1
	`

	var p Profile
	var style string
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.Home.Lat,
		&p.Home.Lon,
		&p.HomeLabel,
		&style,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	p.Style = outfit.Style(style)
	return &p, nil
}

// Upsert stores a profile.
func (r *PostgresRepository) Upsert(ctx context.Context, p *Profile) error {
	query := `
		INSERT INTO profiles (user_id, home_lat, home_lon, home_label, style, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			home_lat = EXCLUDED.home_lat,
			home_lon = EXCLUDED.home_lon,
			home_label = EXCLUDED.home_label,
			style = EXCLUDED.style,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query,
		p.UserID,
		p.Home.Lat,
		p.Home.Lon,
		p.HomeLabel,
		string(p.Style),
		p.UpdatedAt,
	)
	return err
}

// Ensure repositories implement Repository interface.
var (
	_ Repository = (*InMemoryRepository)(nil)
	_ Repository = (*PostgresRepository)(nil)
)

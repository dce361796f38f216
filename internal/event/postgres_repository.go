package event

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morningready/morningready/internal/geo"
	"github.com/morningready/morningready/internal/travel"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL event repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const selectEventColumns = `
	SELECT
		id, user_id, title, start_at, end_at, place,
		lat, lon, travel_minutes, buffer_minutes, mode,
		created_at
	FROM events
`

// List returns every event of a user ordered by start time.
func (r *PostgresRepository) List(ctx context.Context, userID string) ([]*Event, error) {
	query := selectEventColumns + `
		WHERE user_id = $1
		ORDER BY start_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// Upcoming returns events of every user starting in [from, until).
func (r *PostgresRepository) Upcoming(ctx context.Context, from, until time.Time) ([]*Event, error) {
	query := selectEventColumns + `
		WHERE start_at >= $1 AND start_at < $2
		ORDER BY start_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, from, until)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]*Event, error) {
	defer rows.Close()

	events := make([]*Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// Get retrieves a user's event by ID.
func (r *PostgresRepository) Get(ctx context.Context, userID, eventID string) (*Event, error) {
	query := selectEventColumns + `WHERE id = $1 AND user_id = $2`

	ev, err := scanEvent(r.pool.QueryRow(ctx, query, eventID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return ev, nil
}

// Next returns the earliest event of a user starting after now.
func (r *PostgresRepository) Next(ctx context.Context, userID string, now time.Time) (*Event, error) {
	query := selectEventColumns + `
		WHERE user_id = $1 AND start_at > $2
		ORDER BY start_at ASC, id ASC
		LIMIT 1
	`

	ev, err := scanEvent(r.pool.QueryRow(ctx, query, userID, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return ev, nil
}

// Add stores an event unless its ID is already present.
func (r *PostgresRepository) Add(ctx context.Context, ev *Event) error {
	query := `
		INSERT INTO events (
			id, user_id, title, start_at, end_at, place,
			lat, lon, travel_minutes, buffer_minutes, mode,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`

	var lat, lon *float64
	if ev.Coordinate != nil {
		lat, lon = &ev.Coordinate.Lat, &ev.Coordinate.Lon
	}

	_, err := r.pool.Exec(ctx, query,
		ev.ID,
		ev.UserID,
		ev.Title,
		ev.Start,
		ev.End,
		ev.Place,
		lat,
		lon,
		ev.TravelMinutes,
		ev.BufferMinutes,
		string(ev.Mode),
		ev.CreatedAt,
	)
	return err
}

// RemoveByID deletes a user's event.
func (r *PostgresRepository) RemoveByID(ctx context.Context, userID, eventID string) error {
	query := `DELETE FROM events WHERE id = $1 AND user_id = $2`
	_, err := r.pool.Exec(ctx, query, eventID, userID)
	return err
}

// scanEvent scans a single event row.
func scanEvent(row pgx.Row) (*Event, error) {
	var (
		ev       Event
		lat, lon *float64
		mode     string
	)

	err := row.Scan(
		&ev.ID,
		&ev.UserID,
		&ev.Title,
		&ev.Start,
		&ev.End,
		&ev.Place,
		&lat,
		&lon,
		&ev.TravelMinutes,
		&ev.BufferMinutes,
		&mode,
		&ev.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	ev.Mode = travel.Mode(mode)
	if lat != nil && lon != nil {
		ev.Coordinate = &geo.Coordinate{Lat: *lat, Lon: *lon}
	}

	return &ev, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)

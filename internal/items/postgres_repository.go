package items

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morningready/morningready/internal/packing"
)

const (
	kindEssential = "essential"
	kindPersonal  = "personal"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL item repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Get returns the user's items.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (*packing.UserItems, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM item_owners WHERE user_id = $1)`, userID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return &packing.UserItems{Essentials: DefaultEssentials(), Personal: []packing.Item{}}, nil
	}

	query := `
		SELECT kind, name, required, reason
		FROM user_items
		WHERE user_id = $1
		ORDER BY kind, position ASC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &packing.UserItems{Essentials: []packing.Item{}, Personal: []packing.Item{}}
	for rows.Next() {
		var kind string
		var item packing.Item
		if err := rows.Scan(&kind, &item.Name, &item.Required, &item.Reason); err != nil {
			return nil, err
		}

		switch kind {
		case kindEssential:
			item.Category = packing.CategoryEssential
			result.Essentials = append(result.Essentials, item)
		case kindPersonal:
			item.Category = packing.CategoryPersonal
			result.Personal = append(result.Personal, item)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// SetEssentials replaces the user's essentials.
func (r *PostgresRepository) SetEssentials(ctx context.Context, userID string, essentials []packing.Item) error {
	return r.inTx(ctx, userID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_items WHERE user_id = $1 AND kind = $2`, userID, kindEssential); err != nil {
			return err
		}
		return insertItems(ctx, tx, userID, kindEssential, essentials)
	})
}

// AddPersonal appends or replaces a personal item, keeping its position on replace.
func (r *PostgresRepository) AddPersonal(ctx context.Context, userID string, item packing.Item) error {
	return r.inTx(ctx, userID, func(tx pgx.Tx) error {
		query := `
			INSERT INTO user_items (user_id, kind, name, required, reason, position)
			VALUES ($1, $2, $3, $4, $5,
				(SELECT COALESCE(MAX(position) + 1, 0) FROM user_items WHERE user_id = $1 AND kind = $2))
			ON CONFLICT (user_id, kind, name) DO UPDATE SET
				required = EXCLUDED.required,
				reason = EXCLUDED.reason
		`
		_, err := tx.Exec(ctx, query, userID, kindPersonal, item.Name, item.Required, item.Reason)
		return err
	})
}

// RemovePersonalByName deletes a personal item.
func (r *PostgresRepository) RemovePersonalByName(ctx context.Context, userID, name string) error {
	query := `DELETE FROM user_items WHERE user_id = $1 AND kind = $2 AND name = $3`
	_, err := r.pool.Exec(ctx, query, userID, kindPersonal, name)
	return err
}

// inTx runs fn in a transaction after making sure the user owns an item set.
// A user's first write seeds DefaultEssentials.
func (r *PostgresRepository) inTx(ctx context.Context, userID string, fn func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var inserted string
	err = tx.QueryRow(ctx, `
		INSERT INTO item_owners (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING user_id
	`, userID).Scan(&inserted)
	switch {
	case err == nil:
		if err := insertItems(ctx, tx, userID, kindEssential, DefaultEssentials()); err != nil {
			return err
		}
	case !errors.Is(err, pgx.ErrNoRows):
		return err
	}

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func insertItems(ctx context.Context, tx pgx.Tx, userID, kind string, list []packing.Item) error {
	batch := &pgx.Batch{}
	for i, item := range list {
		batch.Queue(`
			INSERT INTO user_items (user_id, kind, name, required, reason, position)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id, kind, name) DO NOTHING
		`, userID, kind, item.Name, item.Required, item.Reason, i)
	}
	if batch.Len() == 0 {
		return nil
	}
	return tx.SendBatch(ctx, batch).Close()
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)

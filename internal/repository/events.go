package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRepository records gateway events that have already been handled.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// MarkProcessed stores key and reports whether it was new.
func (r *EventRepository) MarkProcessed(ctx context.Context, key string) (bool, error) {
	query := `
		INSERT INTO processed_events (key, processed_at)
		VALUES ($1, NOW())
		ON CONFLICT (key) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, key)
	if err != nil {
		return false, fmt.Errorf("failed to mark event processed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Forget removes key so a failed event can be delivered again.
func (r *EventRepository) Forget(ctx context.Context, key string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM processed_events WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to forget event: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tarotdeck/backend/internal/domain"
)

// ReadingRepository handles database operations for readings and their chat messages.
type ReadingRepository struct {
	db *pgxpool.Pool
}

// NewReadingRepository creates a new ReadingRepository.
func NewReadingRepository(db *pgxpool.Pool) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// Create inserts a new reading and stamps the owner's last_reading_at, which outlives
// the reading itself.
func (r *ReadingRepository) Create(ctx context.Context, rd *domain.Reading) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO readings (id, user_id, category, question, cards, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.Exec(ctx, query, rd.ID, rd.UserID, rd.Category, rd.Question, []byte(rd.Cards), rd.CreatedAt); err != nil {
		return fmt.Errorf("failed to create reading: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE users SET last_reading_at = GREATEST(COALESCE(last_reading_at, $1), $1) WHERE id = $2
	`, rd.CreatedAt, rd.UserID); err != nil {
		return fmt.Errorf("failed to stamp last reading: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reading: %w", err)
	}
	return nil
}

// FindByID returns a reading by ID and user ID (ownership check).
func (r *ReadingRepository) FindByID(ctx context.Context, id, userID string) (*domain.Reading, error) {
	query := `
		SELECT id, user_id, category, question, cards, created_at
		FROM readings WHERE id = $1 AND user_id = $2
	`
	rd, err := scanReading(r.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find reading: %w", err)
	}
	return rd, nil
}

// ListByUser returns all readings of a user, newest first.
func (r *ReadingRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Reading, error) {
	query := `
		SELECT id, user_id, category, question, cards, created_at
		FROM readings WHERE user_id = $1 ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	readings := []*domain.Reading{}
	for rows.Next() {
		rd, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading row: %w", err)
		}
		readings = append(readings, rd)
	}
	return readings, rows.Err()
}

// Delete removes a reading owned by userID. Chat messages go with it (ON DELETE CASCADE).
func (r *ReadingRepository) Delete(ctx context.Context, id, userID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM readings WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete reading: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// LatestByUser returns when the user last created a reading, or nil. Deleting readings
// does not move it back.
func (r *ReadingRepository) LatestByUser(ctx context.Context, userID string) (*time.Time, error) {
	return r.latest(ctx, `
		SELECT GREATEST(
			(SELECT last_reading_at FROM users WHERE id = $1),
			(SELECT MAX(created_at) FROM readings WHERE user_id = $1)
		)
	`, userID)
}

// CreateMessage inserts one chat message.
func (r *ReadingRepository) CreateMessage(ctx context.Context, m *domain.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, reading_id, is_user, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, m.ID, m.ReadingID, m.IsUser, m.Content, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create chat message: %w", err)
	}
	return nil
}

// ListMessages returns the chat history of a reading, oldest first.
func (r *ReadingRepository) ListMessages(ctx context.Context, readingID string) ([]*domain.ChatMessage, error) {
	query := `
		SELECT id, reading_id, is_user, content, created_at
		FROM chat_messages WHERE reading_id = $1 ORDER BY created_at ASC, is_user DESC
	`
	rows, err := r.db.Query(ctx, query, readingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer rows.Close()

	messages := []*domain.ChatMessage{}
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.ReadingID, &m.IsUser, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

// LatestUserMessage returns the time of the newest user-authored message in a reading, or nil.
func (r *ReadingRepository) LatestUserMessage(ctx context.Context, readingID string) (*time.Time, error) {
	return r.latest(ctx, `SELECT MAX(created_at) FROM chat_messages WHERE reading_id = $1 AND is_user`, readingID)
}

func (r *ReadingRepository) latest(ctx context.Context, query string, arg string) (*time.Time, error) {
	var t *time.Time
	if err := r.db.QueryRow(ctx, query, arg).Scan(&t); err != nil {
		return nil, fmt.Errorf("failed to query latest action: %w", err)
	}
	return t, nil
}

func scanReading(row pgx.Row) (*domain.Reading, error) {
	var rd domain.Reading
	var cards []byte
	if err := row.Scan(&rd.ID, &rd.UserID, &rd.Category, &rd.Question, &cards, &rd.CreatedAt); err != nil {
		return nil, err
	}
	rd.Cards = cards
	return &rd, nil
}

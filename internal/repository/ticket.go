package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tarotdeck/backend/internal/domain"
)

const ticketColumns = `id, user_id, subject, message, status, reply, created_at, updated_at`

// TicketRepository handles database operations for support tickets.
type TicketRepository struct {
	db *pgxpool.Pool
}

// NewTicketRepository creates a new TicketRepository.
func NewTicketRepository(db *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{db: db}
}

// Create inserts a new ticket.
func (r *TicketRepository) Create(ctx context.Context, t *domain.Ticket) error {
	query := `
		INSERT INTO tickets (id, user_id, subject, message, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query, t.ID, t.UserID, t.Subject, t.Message, string(t.Status), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}
	return nil
}

// FindByID returns a ticket by ID.
func (r *TicketRepository) FindByID(ctx context.Context, id string) (*domain.Ticket, error) {
	t, err := scanTicket(r.db.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find ticket: %w", err)
	}
	return t, nil
}

// ListByUser returns the tickets of one user, newest first.
func (r *TicketRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Ticket, error) {
	return r.list(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// ListAll returns every ticket, open ones first.
func (r *TicketRepository) ListAll(ctx context.Context) ([]*domain.Ticket, error) {
	return r.list(ctx, `SELECT `+ticketColumns+` FROM tickets ORDER BY (status = 'open') DESC, created_at DESC`)
}

// Update stores the status and reply of a ticket.
func (r *TicketRepository) Update(ctx context.Context, t *domain.Ticket) error {
	_, err := r.db.Exec(ctx, `
		UPDATE tickets SET status = $1, reply = $2, updated_at = $3 WHERE id = $4
	`, string(t.Status), t.Reply, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}
	return nil
}

func (r *TicketRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Ticket, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()

	tickets := []*domain.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var t domain.Ticket
	var status string
	if err := row.Scan(&t.ID, &t.UserID, &t.Subject, &t.Message, &status, &t.Reply, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = domain.TicketStatus(status)
	return &t, nil
}

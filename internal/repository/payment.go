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

const paymentColumns = `id, user_id, amount, currency, status, subscription_type, description, payment_url, activated_at, created_at, updated_at`

// PaymentRepository handles database operations for payments.
type PaymentRepository struct {
	db *pgxpool.Pool
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(db *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a new payment.
func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (id, user_id, amount, currency, status, subscription_type, description, payment_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		p.ID, p.UserID, p.Amount, p.Currency, string(p.Status), string(p.SubscriptionType),
		p.Description, p.PaymentURL, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// FindByID returns a payment by gateway id.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*domain.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	return p, nil
}

// ListByUser returns the payments of one user, newest first.
func (r *PaymentRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Payment, error) {
	return r.list(ctx, `SELECT `+paymentColumns+` FROM payments WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// ListAll returns every payment, newest first.
func (r *PaymentRepository) ListAll(ctx context.Context) ([]*domain.Payment, error) {
	return r.list(ctx, `SELECT `+paymentColumns+` FROM payments ORDER BY created_at DESC`)
}

// UpdateStatus records a non-succeeded status. A final status is never overwritten.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus) error {
	_, err := r.db.Exec(ctx, `
		UPDATE payments SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'pending'
	`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	return nil
}

// ApplySucceeded marks a payment succeeded and grants premium to its owner, once.
// The payment and user rows are locked so concurrent webhook and poll calls serialise;
// the second caller sees activated_at set and gets Applied == false. A canceled payment
// is final and is refused.
func (r *PaymentRepository) ApplySucceeded(ctx context.Context, id string, now time.Time) (*domain.Activation, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := scanPayment(tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound("payment not found")
		}
		return nil, fmt.Errorf("failed to lock payment: %w", err)
	}

	if p.Status == domain.PaymentCanceled {
		return nil, domain.ErrConflict("payment was canceled")
	}

	u, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, p.UserID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}

	if p.ActivatedAt != nil {
		return &domain.Activation{Applied: false, UserID: u.ID, PremiumExpiry: u.PremiumExpiry}, nil
	}

	expiry := domain.ExtendPremium(now, u, p.SubscriptionType)

	if _, err := tx.Exec(ctx, `
		UPDATE users SET is_premium = TRUE, premium_expiry = $1, updated_at = NOW() WHERE id = $2
	`, expiry, u.ID); err != nil {
		return nil, fmt.Errorf("failed to activate premium: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE payments SET status = 'succeeded', activated_at = $1, updated_at = NOW() WHERE id = $2
	`, now, p.ID); err != nil {
		return nil, fmt.Errorf("failed to mark payment succeeded: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit activation: %w", err)
	}

	return &domain.Activation{Applied: true, UserID: u.ID, PremiumExpiry: &expiry}, nil
}

func (r *PaymentRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Payment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	payments := []*domain.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var status, subType string
	err := row.Scan(
		&p.ID, &p.UserID, &p.Amount, &p.Currency, &status, &subType,
		&p.Description, &p.PaymentURL, &p.ActivatedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = domain.PaymentStatus(status)
	p.SubscriptionType = domain.SubscriptionType(subType)
	return &p, nil
}

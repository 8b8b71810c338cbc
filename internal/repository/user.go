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

const userColumns = `id, email, password, google_sub, role, is_premium, premium_expiry, created_at, updated_at`

// UserRepository handles database operations for users.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, email, password, google_sub, role, is_premium, premium_expiry, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		u.ID, u.Email, u.Password, u.GoogleSub, u.Role, u.IsPremium, u.PremiumExpiry, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// FindByID returns a user by ID.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByGoogleSub returns the user linked to a Google account.
func (r *UserRepository) FindByGoogleSub(ctx context.Context, sub string) (*domain.User, error) {
	return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE google_sub = $1`, sub)
}

// LinkGoogleSub attaches a Google subject to an existing account.
func (r *UserRepository) LinkGoogleSub(ctx context.Context, id, sub string) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET google_sub = $1, updated_at = NOW() WHERE id = $2`, sub, id)
	if err != nil {
		return fmt.Errorf("failed to link google account: %w", err)
	}
	return nil
}

// Exists checks if a user with the given email already exists.
func (r *UserRepository) Exists(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`
	var exists bool
	err := r.db.QueryRow(ctx, query, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// ListAll returns all users ordered by creation date.
func (r *UserRepository) ListAll(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Delete removes a user by ID.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// ExpirePremium clears a lapsed premium flag. It reports whether a row was corrected.
func (r *UserRepository) ExpirePremium(ctx context.Context, id string, now time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET is_premium = FALSE, updated_at = NOW()
		WHERE id = $1 AND is_premium AND premium_expiry < $2
	`, id, now)
	if err != nil {
		return false, fmt.Errorf("failed to expire premium: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ExpireAllPremium clears every lapsed premium flag and returns how many rows changed.
func (r *UserRepository) ExpireAllPremium(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET is_premium = FALSE, updated_at = NOW()
		WHERE is_premium AND premium_expiry < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep premium: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *UserRepository) scanOne(ctx context.Context, query string, args ...interface{}) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Password, &u.GoogleSub, &u.Role,
		&u.IsPremium, &u.PremiumExpiry, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

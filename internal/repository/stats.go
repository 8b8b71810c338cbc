package repository

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tarotdeck/backend/internal/domain"
)

// StatsRepository runs the admin dashboard count queries.
type StatsRepository struct {
	db *pgxpool.Pool
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(db *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{db: db}
}

// Collect returns system-wide counts. A failing query is logged and reported as zero.
func (r *StatsRepository) Collect(ctx context.Context) (*domain.Stats, error) {
	var s domain.Stats

	counts := []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM users", &s.Users},
		{"SELECT COUNT(*) FROM users WHERE is_premium AND (premium_expiry IS NULL OR premium_expiry > NOW())", &s.PremiumUsers},
		{"SELECT COUNT(*) FROM readings", &s.Readings},
		{"SELECT COUNT(*) FROM payments WHERE status = 'succeeded'", &s.SucceededPayments},
		{"SELECT COUNT(*) FROM tickets WHERE status = 'open'", &s.OpenTickets},
	}
	for _, c := range counts {
		if err := r.db.QueryRow(ctx, c.query).Scan(c.dst); err != nil {
			log.Printf("[Stats] %q failed: %v", c.query, err)
		}
	}
	return &s, nil
}

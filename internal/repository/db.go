package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewDB creates a new PostgreSQL connection pool.
func NewDB(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations creates the schema if it does not exist yet.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS users (
			id             TEXT PRIMARY KEY,
			email          TEXT NOT NULL UNIQUE,
			password       TEXT,
			google_sub     TEXT UNIQUE,
			role           TEXT NOT NULL DEFAULT 'user',
			is_premium     BOOLEAN NOT NULL DEFAULT FALSE,
			premium_expiry TIMESTAMPTZ,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_users_premium ON users(premium_expiry) WHERE is_premium;
		ALTER TABLE users ADD COLUMN IF NOT EXISTS last_reading_at TIMESTAMPTZ;

		CREATE TABLE IF NOT EXISTS readings (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			category   TEXT NOT NULL,
			question   TEXT NOT NULL,
			cards      JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_readings_user_created ON readings(user_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS chat_messages (
			id         TEXT PRIMARY KEY,
			reading_id TEXT NOT NULL REFERENCES readings(id) ON DELETE CASCADE,
			is_user    BOOLEAN NOT NULL,
			content    TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_chat_messages_reading ON chat_messages(reading_id, created_at);

		CREATE TABLE IF NOT EXISTS payments (
			id                TEXT PRIMARY KEY,
			user_id           TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			amount            BIGINT NOT NULL,
			currency          TEXT NOT NULL,
			status            TEXT NOT NULL DEFAULT 'pending',
			subscription_type TEXT NOT NULL,
			description       TEXT NOT NULL DEFAULT '',
			payment_url       TEXT NOT NULL DEFAULT '',
			activated_at      TIMESTAMPTZ,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_payments_user ON payments(user_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS tickets (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			subject    TEXT NOT NULL,
			message    TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'open',
			reply      TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_tickets_user ON tickets(user_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS processed_events (
			key          TEXT PRIMARY KEY,
			processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`
	_, err := pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS stock_items (
		id BIGSERIAL PRIMARY KEY,
		pharmacy_id BIGINT NOT NULL,
		medication_id BIGINT NOT NULL,
		quantity INT NOT NULL CHECK (quantity >= 0),
		price_cents BIGINT NOT NULL DEFAULT 0,
		available BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		stock_id BIGINT NOT NULL,
		pharmacy_id BIGINT NOT NULL,
		quantity INT NOT NULL CHECK (quantity > 0),
		status TEXT NOT NULL,
		code TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS reservations_user_idx ON reservations (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS reservations_pharmacy_idx ON reservations (pharmacy_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		read BOOLEAN NOT NULL DEFAULT FALSE,
		category TEXT NOT NULL,
		payload JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS notifications_user_idx ON notifications (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id BIGSERIAL PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		type TEXT NOT NULL,
		payload JSONB NOT NULL,
		headers JSONB,
		traceparent TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		relay_id TEXT,
		lease_until TIMESTAMPTZ,
		retry_count INT NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS outbox_pending_idx ON outbox (status, id)`,
}

// Migrate creates the core tables owned by this service. Catalog and
// identity tables belong to their own services and are not touched here.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

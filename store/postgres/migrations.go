package postgres

import (
	"context"
	"fmt"
)

// migrations run in order. Every statement is idempotent so Migrate is safe
// to call at each boot.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS herald_webhooks (
		id                    TEXT PRIMARY KEY,
		url                   TEXT NOT NULL,
		description           TEXT NOT NULL DEFAULT '',
		secret                TEXT NOT NULL,
		events                TEXT[] NOT NULL DEFAULT '{}',
		headers               JSONB,
		active                BOOLEAN NOT NULL DEFAULT TRUE,
		rate_limit            INTEGER NOT NULL DEFAULT 0,
		metadata              JSONB,
		total_deliveries      BIGINT NOT NULL DEFAULT 0,
		successful_deliveries BIGINT NOT NULL DEFAULT 0,
		failed_deliveries     BIGINT NOT NULL DEFAULT 0,
		last_delivery_at      TIMESTAMPTZ,
		last_delivery_status  TEXT NOT NULL DEFAULT '',
		created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_herald_webhooks_active ON herald_webhooks (active)`,

	`CREATE TABLE IF NOT EXISTS herald_deliveries (
		id           TEXT PRIMARY KEY,
		webhook_id   TEXT NOT NULL,
		event_id     TEXT NOT NULL,
		event_type   TEXT NOT NULL,
		status       TEXT NOT NULL,
		attempts     INTEGER NOT NULL DEFAULT 0,
		status_code  INTEGER NOT NULL DEFAULT 0,
		response     TEXT NOT NULL DEFAULT '',
		error        TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_herald_deliveries_webhook ON herald_deliveries (webhook_id, completed_at DESC)`,

	`CREATE TABLE IF NOT EXISTS herald_events (
		id        TEXT PRIMARY KEY,
		type      TEXT NOT NULL,
		payload   JSONB,
		timestamp TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_herald_events_type ON herald_events (type, timestamp DESC)`,
}

// Migrate creates the Herald tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("herald/postgres: migration %d: %w", i+1, err)
		}
	}
	return nil
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"booth-dispatch/internal/general/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied idempotently at startup. The (booth_id, queue_date)
// primary key is the per-booth document key; (ride_id, seq) uniqueness
// keeps the event log free of duplicated transitions.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS booth_queues (
		booth_id   TEXT NOT NULL,
		queue_date TEXT NOT NULL,
		entries    JSONB NOT NULL DEFAULT '[]'::jsonb,
		version    BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (booth_id, queue_date)
	)`,
	`CREATE TABLE IF NOT EXISTS rides (
		id                  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		ride_number         TEXT NOT NULL UNIQUE,
		pickup_booth        TEXT NOT NULL,
		vehicle_class       TEXT NOT NULL,
		status              TEXT NOT NULL,
		event_seq           BIGINT NOT NULL DEFAULT 0,
		driver_id           TEXT,
		driver_fare         BIGINT NOT NULL DEFAULT 0,
		commission_amount   BIGINT NOT NULL DEFAULT 0,
		gst_amount          BIGINT NOT NULL DEFAULT 0,
		night_charge_amount BIGINT NOT NULL DEFAULT 0,
		surge_amount        BIGINT NOT NULL DEFAULT 0,
		surge_factor        DOUBLE PRECISION NOT NULL DEFAULT 1,
		customer_fare       BIGINT NOT NULL DEFAULT 0,
		payment_status      TEXT NOT NULL DEFAULT 'PENDING',
		fare_needs_review   BOOLEAN NOT NULL DEFAULT false,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
		requested_at        TIMESTAMPTZ NOT NULL,
		assigned_at         TIMESTAMPTZ,
		started_at          TIMESTAMPTZ,
		ended_at            TIMESTAMPTZ,
		completed_at        TIMESTAMPTZ,
		cancelled_at        TIMESTAMPTZ,
		cancellation_reason TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rides_pending_booth
		ON rides (pickup_booth, vehicle_class, requested_at)
		WHERE status = 'PENDING'`,
	`CREATE TABLE IF NOT EXISTS ride_events (
		id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		ride_id    UUID NOT NULL REFERENCES rides(id),
		seq        BIGINT NOT NULL,
		event_type TEXT NOT NULL,
		data       JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (ride_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS drivers (
		id               TEXT PRIMARY KEY,
		vehicle_class    TEXT NOT NULL,
		is_online        BOOLEAN NOT NULL DEFAULT false,
		current_booth    TEXT,
		queue_position   INT,
		queue_entry_time TIMESTAMPTZ,
		current_ride_id  UUID,
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate applies the schema statements in order. Safe to run on every
// startup; every statement is IF NOT EXISTS.
func Migrate(ctx context.Context, pool *pgxpool.Pool, log *logger.Logger) error {
	start := time.Now()
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement %d: %w", i+1, err)
		}
	}
	log.Info(ctx, "db_migrated", "Schema ensured", map[string]any{
		"statements":  len(schema),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

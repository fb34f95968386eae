package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS tenant_usage (
	tenant_id                TEXT PRIMARY KEY,
	email                    TEXT,
	name                     TEXT,
	plan                     TEXT NOT NULL DEFAULT 'free',
	premium_expires_at       TIMESTAMPTZ,
	seconds_used_today       INTEGER NOT NULL DEFAULT 0,
	last_usage_date          TEXT,
	razorpay_subscription_id TEXT,
	last_heartbeat_at        TIMESTAMPTZ,
	created_at               TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at               TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_tenant_usage_subscription ON tenant_usage (razorpay_subscription_id);
`

// Execer is the subset of a pool EnsureSchema needs
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func NewPool(ctx context.Context, dsn string, maxConns int32, logger *zap.Logger) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connected", zap.Int32("max_conns", config.MaxConns))

	return pool, nil
}

// EnsureSchema creates the ledger table when it does not exist yet
func EnsureSchema(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

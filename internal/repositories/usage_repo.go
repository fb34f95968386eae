package repositories

import (
	"context"
	"errors"
	"fmt"

	"localclaw/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrUsageNotFound is returned when a tenant has no ledger record
var ErrUsageNotFound = errors.New("tenant usage record not found")

// DBTX is satisfied by *pgxpool.Pool and by pgxmock pools
type DBTX interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// MutateFunc edits a locked usage record in place and reports whether it changed
type MutateFunc func(usage *models.TenantUsage) (changed bool, err error)

type UsageRepository interface {
	GetByTenantID(ctx context.Context, tenantID string) (*models.TenantUsage, error)
	// Mutate runs fn against the row locked FOR UPDATE and persists the counters in the same transaction.
	Mutate(ctx context.Context, tenantID string, fn MutateFunc) (*models.TenantUsage, error)
	UpdatePlan(ctx context.Context, change models.PlanChange) error
}

type usageRepo struct {
	db DBTX
}

func NewUsageRepo(db DBTX) UsageRepository {
	return &usageRepo{db: db}
}

const usageColumns = `tenant_id, email, name, plan, premium_expires_at, seconds_used_today,
		       last_usage_date, razorpay_subscription_id, last_heartbeat_at, created_at, updated_at`

func scanUsage(row pgx.Row) (*models.TenantUsage, error) {
	usage := &models.TenantUsage{}
	var plan string
	err := row.Scan(
		&usage.TenantID, &usage.Email, &usage.Name, &plan, &usage.PremiumExpiresAt,
		&usage.SecondsUsedToday, &usage.LastUsageDate, &usage.RazorpaySubscriptionID,
		&usage.LastHeartbeatAt, &usage.CreatedAt, &usage.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUsageNotFound
		}
		return nil, err
	}
	usage.Plan = models.Plan(plan)
	return usage, nil
}

func (r *usageRepo) GetByTenantID(ctx context.Context, tenantID string) (*models.TenantUsage, error) {
	query := `
		SELECT ` + usageColumns + `
		FROM tenant_usage
		WHERE tenant_id = $1
	`
	return scanUsage(r.db.QueryRow(ctx, query, tenantID))
}

func (r *usageRepo) Mutate(ctx context.Context, tenantID string, fn MutateFunc) (*models.TenantUsage, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	query := `
		SELECT ` + usageColumns + `
		FROM tenant_usage
		WHERE tenant_id = $1
		FOR UPDATE
	`
	usage, err := scanUsage(tx.QueryRow(ctx, query, tenantID))
	if err != nil {
		return nil, err
	}

	changed, err := fn(usage)
	if err != nil {
		return nil, err
	}

	if changed {
		update := `
			UPDATE tenant_usage
			SET seconds_used_today = $1, last_usage_date = $2, last_heartbeat_at = $3, updated_at = NOW()
			WHERE tenant_id = $4
		`
		if _, err := tx.Exec(ctx, update, usage.SecondsUsedToday, usage.LastUsageDate, usage.LastHeartbeatAt, tenantID); err != nil {
			return nil, fmt.Errorf("failed to update usage: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit usage: %w", err)
	}
	committed = true

	return usage, nil
}

func (r *usageRepo) UpdatePlan(ctx context.Context, change models.PlanChange) error {
	var plan *string
	if change.Plan != nil {
		p := string(*change.Plan)
		plan = &p
	}

	query := `
		UPDATE tenant_usage
		SET plan = COALESCE($1, plan),
		    premium_expires_at = COALESCE($2, premium_expires_at),
		    razorpay_subscription_id = COALESCE($3, razorpay_subscription_id),
		    updated_at = NOW()
		WHERE tenant_id = $4
	`
	tag, err := r.db.Exec(ctx, query, plan, change.PremiumExpiresAt, change.SubscriptionID, change.TenantID)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUsageNotFound
	}
	return nil
}

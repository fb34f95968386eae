package models

import (
	"time"
)

// Plan is the billing tier of a tenant
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// TenantUsage is the ledger record the admission controller reads and mutates.
// SecondsUsedToday is only meaningful for LastUsageDate; a different date means zero.
type TenantUsage struct {
	TenantID               string     `json:"tenant_id" db:"tenant_id"`
	Email                  *string    `json:"email,omitempty" db:"email"`
	Name                   *string    `json:"name,omitempty" db:"name"`
	Plan                   Plan       `json:"plan" db:"plan"`
	PremiumExpiresAt       *time.Time `json:"premium_expires_at,omitempty" db:"premium_expires_at"`
	SecondsUsedToday       int        `json:"seconds_used_today" db:"seconds_used_today"`
	LastUsageDate          *string    `json:"last_usage_date,omitempty" db:"last_usage_date"`
	RazorpaySubscriptionID *string    `json:"razorpay_subscription_id,omitempty" db:"razorpay_subscription_id"`
	LastHeartbeatAt        *time.Time `json:"last_heartbeat_at,omitempty" db:"last_heartbeat_at"`
	CreatedAt              time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at" db:"updated_at"`
}

// IsPremium reports whether the tenant is exempt from quota enforcement at now.
func (t *TenantUsage) IsPremium(now time.Time) bool {
	if t.Plan == PlanPro {
		return true
	}
	return t.PremiumExpiresAt != nil && now.Before(*t.PremiumExpiresAt)
}

// UsageDate returns the stored usage date or "" when none was recorded.
func (t *TenantUsage) UsageDate() string {
	if t.LastUsageDate == nil {
		return ""
	}
	return *t.LastUsageDate
}

package models

import "time"

// CheckoutType selects between a recurring subscription and a one-time pass
type CheckoutType string

const (
	CheckoutSubscription CheckoutType = "subscription"
	CheckoutPass         CheckoutType = "pass"
)

// Checkout is the provider-side object the client completes payment against
type Checkout struct {
	ID   string       `json:"id"`
	Type CheckoutType `json:"type"`
}

// PlanChange is what a billing event does to a tenant's ledger record.
// Nil fields are left untouched.
type PlanChange struct {
	TenantID         string
	Plan             *Plan
	PremiumExpiresAt *time.Time
	SubscriptionID   *string
}

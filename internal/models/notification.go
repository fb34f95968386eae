package models

import "time"

// Invoice is a payment receipt sent to a tenant after a billing event
type Invoice struct {
	TenantID      string    `json:"tenant_id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	PlanName      string    `json:"plan_name"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	TransactionID string    `json:"transaction_id"`
	IssuedAt      time.Time `json:"issued_at"`
}

package model

import (
	"encoding/json"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // created locally; awaiting gateway outcome
	PaymentStatusCompleted PaymentStatus = "completed" // gateway confirmed capture
	PaymentStatusFailed    PaymentStatus = "failed"    // gateway reported failure
	PaymentStatusCancelled PaymentStatus = "cancelled" // user/admin cancel
	PaymentStatusRefunded  PaymentStatus = "refunded"  // explicit refund after completion
)

// Payment records a single PayMob payment intent and its lifecycle.
// Status moves forward only (pending -> completed|failed|cancelled); refunded
// and cancelled are explicit operator transitions. CompletedAt is set exactly
// when the payment enters completed.
type Payment struct {
	ID       string // ULID
	UserID   string
	PlanID   *string // subscription plan; nil means this payment funds a promotion
	Amount   float64 // major units (EGP)
	Currency string

	Status PaymentStatus

	// PayMob-side identifiers
	OrderID       string // PayMob order id
	TransactionID string // PayMob transaction id, set on completion
	PaymentToken  string // opaque checkout token

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// IsSubscription reports whether this payment funds a subscription plan.
func (p *Payment) IsSubscription() bool { return p.PlanID != nil && *p.PlanID != "" }

func (p *Payment) IsZero() bool { return p == nil || p.ID == "" }

// PaymentAuditRecord keeps the most recent webhook delivery for a payment,
// including rejected or forged attempts. One row per payment, upserted on
// every delivery.
type PaymentAuditRecord struct {
	PaymentID       string
	WebhookPayload  json.RawMessage
	Signature       string
	GatewayResponse json.RawMessage
	LastError       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

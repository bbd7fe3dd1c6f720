package model

import (
	"time"

	"rahala-payments/internal/domain"
)

type PlanDuration string

const (
	DurationMonthly PlanDuration = "monthly"
	DurationYearly  PlanDuration = "yearly"
)

// SubscriptionPlan is a purchasable tier upgrade with a fixed billing period
// and a price in EGP.
type SubscriptionPlan struct {
	ID        string
	Name      string
	PlanType  SubscriptionTier // premium | pro
	Duration  PlanDuration
	Price     float64
	Currency  string
	Active    bool
	CreatedAt time.Time
}

// NewSubscriptionPlan validates and constructs a plan.
func NewSubscriptionPlan(id, name string, tier SubscriptionTier, duration PlanDuration, price float64, currency string) (*SubscriptionPlan, error) {
	if id == "" || name == "" || price <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if tier != TierPremium && tier != TierPro {
		return nil, domain.ErrInvalidArgument
	}
	if currency == "" {
		currency = "EGP"
	}
	return &SubscriptionPlan{
		ID:        id,
		Name:      name,
		PlanType:  tier,
		Duration:  duration,
		Price:     price,
		Currency:  currency,
		Active:    true,
		CreatedAt: time.Now(),
	}, nil
}

// PeriodDays maps the billing period to a subscription window. Unknown
// durations fall back to monthly; callers are expected to log that case.
func (p *SubscriptionPlan) PeriodDays() (days int, known bool) {
	switch p.Duration {
	case DurationMonthly:
		return 30, true
	case DurationYearly:
		return 365, true
	default:
		return 30, false
	}
}

func (p *SubscriptionPlan) IsZero() bool { return p == nil || p.ID == "" }

package model

import (
	"time"

	"rahala-payments/internal/domain"
)

// PromotionPlan is a purchasable boost for a trip: a fixed number of days of
// elevated feed placement.
type PromotionPlan struct {
	ID              string
	Name            string
	DurationDays    int // 3 | 7 | 30
	Price           float64
	Currency        string
	ReachMultiplier string // "2x" | "3x" | "5x"
	Active          bool
	CreatedAt       time.Time
}

// OwnerCommissionAmount is the trip owner's cut of the promotion price.
func (p *PromotionPlan) OwnerCommissionAmount() float64 { return p.Price * 0.10 }

// PlatformAmount is the remainder kept by the platform.
func (p *PromotionPlan) PlatformAmount() float64 { return p.Price * 0.90 }

func (p *PromotionPlan) IsZero() bool { return p == nil || p.ID == "" }

type PromotionStatus string

const (
	PromotionStatusPending   PromotionStatus = "pending"
	PromotionStatusApproved  PromotionStatus = "approved"
	PromotionStatusRejected  PromotionStatus = "rejected"
	PromotionStatusActive    PromotionStatus = "active"
	PromotionStatusExpired   PromotionStatus = "expired"
	PromotionStatusCancelled PromotionStatus = "cancelled"
)

// PromotionRequest is a sponsor's paid request to boost someone else's trip.
// Lifecycle: pending -> approved -> active -> expired, with rejected and
// cancelled as terminal side exits. Approval requires a completed payment and
// an explicit action by the trip owner.
type PromotionRequest struct {
	ID             string
	SponsorID      string
	TripID         string
	OwnerID        string
	PlanID         string
	PaymentID      *string
	SponsorMessage string
	Status         PromotionStatus

	CreatedAt  time.Time
	ApprovedAt *time.Time
	RejectedAt *time.Time
	StartDate  *time.Time
	EndDate    *time.Time

	ViewsCount  int
	ClicksCount int
}

// Approve transitions pending -> approved. The payment precondition is the
// caller's responsibility (the request only holds a reference); pass the
// resolved payment here so the check cannot be skipped.
func (r *PromotionRequest) Approve(payment *Payment) bool {
	if r.Status != PromotionStatusPending {
		return false
	}
	if payment == nil || r.PaymentID == nil || payment.ID != *r.PaymentID {
		return false
	}
	if payment.Status != PaymentStatusCompleted {
		return false
	}
	now := time.Now()
	r.Status = PromotionStatusApproved
	r.ApprovedAt = &now
	return true
}

func (r *PromotionRequest) Reject() bool {
	if r.Status != PromotionStatusPending {
		return false
	}
	now := time.Now()
	r.Status = PromotionStatusRejected
	r.RejectedAt = &now
	return true
}

// Activate computes the promotion window from the plan duration.
func (r *PromotionRequest) Activate(plan *PromotionPlan) bool {
	if r.Status != PromotionStatusApproved || plan.IsZero() {
		return false
	}
	start := time.Now()
	end := start.Add(time.Duration(plan.DurationDays) * 24 * time.Hour)
	r.Status = PromotionStatusActive
	r.StartDate = &start
	r.EndDate = &end
	return true
}

// Cancel is a sponsor action, only legal before the promotion goes live.
func (r *PromotionRequest) Cancel() bool {
	if r.Status != PromotionStatusPending && r.Status != PromotionStatusApproved {
		return false
	}
	r.Status = PromotionStatusCancelled
	return true
}

// IsLive reports whether the promotion is inside its active window.
func (r *PromotionRequest) IsLive() bool {
	if r.Status != PromotionStatusActive || r.StartDate == nil || r.EndDate == nil {
		return false
	}
	now := time.Now()
	return !now.Before(*r.StartDate) && !now.After(*r.EndDate)
}

// PriorityScore ranks an active promotion in the feed: a flat base plus a
// duration-tier bonus plus one point per ten currency units of plan price.
func PriorityScore(plan *PromotionPlan) int {
	score := 100
	switch plan.DurationDays {
	case 30:
		score += 50
	case 7:
		score += 20
	}
	return score + int(plan.Price/10)
}

// ActivePromotion is the denormalized ranking row backing the feed query.
type ActivePromotion struct {
	RequestID     string
	PriorityScore int
	CreatedAt     time.Time
}

type CommissionStatus string

const (
	CommissionStatusPending   CommissionStatus = "pending"
	CommissionStatusPaid      CommissionStatus = "paid"
	CommissionStatusCancelled CommissionStatus = "cancelled"
)

// PromotionCommission is the trip owner's 10% cut, created exactly once per
// approved request.
type PromotionCommission struct {
	ID        string
	RequestID string
	OwnerID   string
	Amount    float64
	Currency  string
	Status    CommissionStatus
	CreatedAt time.Time
	PaidAt    *time.Time
}

// NewPromotionCommission derives the owner commission for an approved request.
func NewPromotionCommission(id string, r *PromotionRequest, plan *PromotionPlan) (*PromotionCommission, error) {
	if id == "" || r == nil || plan.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	return &PromotionCommission{
		ID:        id,
		RequestID: r.ID,
		OwnerID:   r.OwnerID,
		Amount:    plan.OwnerCommissionAmount(),
		Currency:  plan.Currency,
		Status:    CommissionStatusPending,
		CreatedAt: time.Now(),
	}, nil
}

func (c *PromotionCommission) MarkPaid() bool {
	if c.Status != CommissionStatusPending {
		return false
	}
	now := time.Now()
	c.Status = CommissionStatusPaid
	c.PaidAt = &now
	return true
}

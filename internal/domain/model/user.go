package model

import (
	"time"

	"rahala-payments/internal/domain"
)

type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "free"
	TierPremium SubscriptionTier = "premium"
	TierPro     SubscriptionTier = "pro"
)

// User carries the subscription state this service owns. Profile data lives
// in the accounts service; only the fields entitlement activation mutates are
// modeled here.
type User struct {
	ID       string
	Email    string
	Username string

	FirstName string
	LastName  string
	Phone     string

	SubscriptionPlan      SubscriptionTier
	SubscriptionStartDate *time.Time
	SubscriptionEndDate   *time.Time
}

func NewUser(id, email, username string) (*User, error) {
	if id == "" || email == "" || username == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &User{
		ID:               id,
		Email:            email,
		Username:         username,
		SubscriptionPlan: TierFree,
	}, nil
}

// IsSubscriptionActive reports whether the user currently holds a paid plan.
func (u *User) IsSubscriptionActive() bool {
	if u.SubscriptionPlan == TierFree || u.SubscriptionPlan == "" {
		return false
	}
	if u.SubscriptionEndDate == nil {
		return false
	}
	return !time.Now().After(*u.SubscriptionEndDate)
}

// HasVerifiedBadge is derived from the active subscription and gates
// sponsor-side promotion actions.
func (u *User) HasVerifiedBadge() bool { return u.IsSubscriptionActive() }

// SubscriptionDaysRemaining returns whole days left on the plan, zero when
// inactive.
func (u *User) SubscriptionDaysRemaining() int {
	if !u.IsSubscriptionActive() {
		return 0
	}
	d := int(time.Until(*u.SubscriptionEndDate).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

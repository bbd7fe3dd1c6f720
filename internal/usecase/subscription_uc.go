package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"rahala-payments/internal/domain"
	"rahala-payments/internal/domain/model"
	"rahala-payments/internal/domain/ports/repository"
	"rahala-payments/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

// SubscriptionStatus is the read model returned to clients.
type SubscriptionStatus struct {
	Plan             model.SubscriptionTier `json:"plan"`
	IsActive         bool                   `json:"is_active"`
	StartDate        *time.Time             `json:"start_date"`
	EndDate          *time.Time             `json:"end_date"`
	DaysRemaining    int                    `json:"days_remaining"`
	HasVerifiedBadge bool                   `json:"has_verified_badge"`
}

type SubscriptionUseCase interface {
	Status(ctx context.Context, userID string) (*SubscriptionStatus, error)
	ListPlans(ctx context.Context) ([]*model.SubscriptionPlan, error)

	// Cancel resets the user to the free tier immediately.
	Cancel(ctx context.Context, userID string) error

	// FinishExpired resets users whose paid plan ran out. Returns how many
	// users were downgraded.
	FinishExpired(ctx context.Context) (int, error)
}

type subscriptionUC struct {
	users repository.UserRepository
	plans repository.SubscriptionPlanRepository
	log   *zerolog.Logger
}

func NewSubscriptionUseCase(users repository.UserRepository, plans repository.SubscriptionPlanRepository, logger *zerolog.Logger) *subscriptionUC {
	l := logger.With().Str("component", "SubscriptionUseCase").Logger()
	return &subscriptionUC{users: users, plans: plans, log: &l}
}

func (u *subscriptionUC) Status(ctx context.Context, userID string) (*SubscriptionStatus, error) {
	user, err := u.users.FindByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	return &SubscriptionStatus{
		Plan:             user.SubscriptionPlan,
		IsActive:         user.IsSubscriptionActive(),
		StartDate:        user.SubscriptionStartDate,
		EndDate:          user.SubscriptionEndDate,
		DaysRemaining:    user.SubscriptionDaysRemaining(),
		HasVerifiedBadge: user.HasVerifiedBadge(),
	}, nil
}

func (u *subscriptionUC) ListPlans(ctx context.Context) ([]*model.SubscriptionPlan, error) {
	return u.plans.ListActive(ctx, nil)
}

func (u *subscriptionUC) Cancel(ctx context.Context, userID string) error {
	user, err := u.users.FindByID(ctx, nil, userID)
	if err != nil {
		return err
	}
	if !user.IsSubscriptionActive() {
		return domain.ErrNoActiveSubscription
	}
	if err := u.users.SetSubscription(ctx, nil, userID, model.TierFree, nil, nil); err != nil {
		return err
	}
	u.log.Info().Str("user_id", userID).Msg("subscription cancelled")
	return nil
}

func (u *subscriptionUC) FinishExpired(ctx context.Context) (int, error) {
	expired, err := u.users.ListExpiredSubscribers(ctx, nil, time.Now(), 500)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, user := range expired {
		if err := u.users.SetSubscription(ctx, nil, user.ID, model.TierFree, nil, nil); err != nil {
			u.log.Error().Err(err).Str("user_id", user.ID).Msg("expiry sweep: downgrade failed")
			continue
		}
		count++
		u.log.Info().Str("user_id", user.ID).Msg("subscription expired")
	}
	if count > 0 {
		metrics.AddSubscriptionsExpired(count)
	}
	return count, nil
}

package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"rahala-payments/internal/domain"
	"rahala-payments/internal/domain/model"
	"rahala-payments/internal/domain/ports/adapter"
	"rahala-payments/internal/domain/ports/repository"
	"rahala-payments/internal/infra/metrics"
)

// Compile-time check
var _ EntitlementActivator = (*entitlementUC)(nil)

// EntitlementActivator grants the downstream benefit of a completed payment.
// It is invoked exactly once per payment, on its first transition into
// completed; PaymentUseCase guarantees the once-ness.
type EntitlementActivator interface {
	Activate(ctx context.Context, p *model.Payment) error
}

type entitlementUC struct {
	users      repository.UserRepository
	subPlans   repository.SubscriptionPlanRepository
	promotions repository.PromotionRepository
	notifier   adapter.Notifier
	log        *zerolog.Logger
}

func NewEntitlementActivator(
	users repository.UserRepository,
	subPlans repository.SubscriptionPlanRepository,
	promotions repository.PromotionRepository,
	notifier adapter.Notifier,
	logger *zerolog.Logger,
) *entitlementUC {
	l := logger.With().Str("component", "EntitlementActivator").Logger()
	return &entitlementUC{
		users:      users,
		subPlans:   subPlans,
		promotions: promotions,
		notifier:   notifier,
		log:        &l,
	}
}

// Activate dispatches by payment purpose: a subscription-plan reference means
// a tier upgrade, its absence means the payment funds a trip promotion.
func (u *entitlementUC) Activate(ctx context.Context, p *model.Payment) error {
	var err error
	if p.IsSubscription() {
		err = u.activateSubscription(ctx, p)
		if err != nil {
			metrics.IncEntitlementFailure("subscription")
			return err
		}
		metrics.IncEntitlementActivated("subscription")
		return nil
	}
	err = u.activatePromotion(ctx, p)
	if err != nil {
		metrics.IncEntitlementFailure("promotion")
		return err
	}
	metrics.IncEntitlementActivated("promotion")
	return nil
}

func (u *entitlementUC) activateSubscription(ctx context.Context, p *model.Payment) error {
	plan, err := u.subPlans.FindByID(ctx, nil, *p.PlanID)
	if err != nil {
		return fmt.Errorf("plan %s for payment %s: %w", *p.PlanID, p.ID, err)
	}

	days, known := plan.PeriodDays()
	if !known {
		// Unknown billing periods fall back to a monthly window rather than
		// stranding a captured payment. Loud on purpose.
		u.log.Warn().Str("plan_id", plan.ID).Str("duration", string(plan.Duration)).Msg("unknown plan duration, defaulting to 30 days")
		metrics.IncUnknownPlanDuration()
	}
	start := time.Now()
	end := start.Add(time.Duration(days) * 24 * time.Hour)

	if err := u.users.SetSubscription(ctx, nil, p.UserID, plan.PlanType, &start, &end); err != nil {
		return fmt.Errorf("set subscription for user %s: %w", p.UserID, err)
	}

	metrics.IncSubscriptionActivated(string(plan.PlanType))
	u.log.Info().
		Str("user_id", p.UserID).
		Str("plan", string(plan.PlanType)).
		Time("end", end).
		Msg("subscription activated")

	u.notify(ctx, p.UserID, "subscription_activated", map[string]any{
		"payment_id": p.ID,
		"plan":       string(plan.PlanType),
		"end_date":   end,
	})
	return nil
}

// activatePromotion links the completed payment to its promotion request.
// Going live still requires the trip owner's explicit approval; this step
// only confirms payability and tells the owner a decision is waiting.
func (u *entitlementUC) activatePromotion(ctx context.Context, p *model.Payment) error {
	req, err := u.promotions.FindRequestByPaymentID(ctx, nil, p.ID)
	if err != nil {
		if err == domain.ErrNotFound {
			return fmt.Errorf("no promotion request references payment %s", p.ID)
		}
		return err
	}

	u.log.Info().
		Str("payment_id", p.ID).
		Str("request_id", req.ID).
		Msg("promotion payment completed, awaiting owner approval")

	u.notify(ctx, req.OwnerID, "promotion_request_paid", map[string]any{
		"request_id": req.ID,
		"trip_id":    req.TripID,
		"sponsor_id": req.SponsorID,
	})
	return nil
}

// notify is fire-and-forget: dispatch failures are logged, never propagated.
func (u *entitlementUC) notify(ctx context.Context, recipientID, eventType string, payload map[string]any) {
	if u.notifier == nil {
		return
	}
	if err := u.notifier.Notify(ctx, recipientID, eventType, payload); err != nil {
		u.log.Warn().Err(err).Str("event", eventType).Str("recipient", recipientID).Msg("notification dispatch failed")
	}
}

package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"rahala-payments/internal/domain"
	"rahala-payments/internal/domain/model"
	"rahala-payments/internal/domain/ports/adapter"
	"rahala-payments/internal/domain/ports/repository"
	"rahala-payments/internal/infra/metrics"
)

// Compile-time check
var _ PromotionUseCase = (*promotionUC)(nil)

// PromotionRequestResult bundles the created request with its checkout session.
type PromotionRequestResult struct {
	Request  *model.PromotionRequest
	Checkout *CheckoutSession
}

type PromotionUseCase interface {
	// Request creates a promotion request and initiates its payment. The
	// sponsor must hold a verified badge and must not already have an open
	// request for the trip.
	Request(ctx context.Context, sponsorID, tripID, ownerID, planID, message string) (*PromotionRequestResult, error)

	// Approve is the trip owner's human-in-the-loop step. It requires the
	// linked payment to be completed; on success the promotion activates,
	// the ranking record is written and exactly one owner commission is
	// created.
	Approve(ctx context.Context, ownerID, requestID string) error
	Reject(ctx context.Context, ownerID, requestID string) error

	// Cancel is a sponsor action, legal only while pending or approved.
	Cancel(ctx context.Context, sponsorID, requestID string) error

	ActiveFeed(ctx context.Context, limit int) ([]*model.ActivePromotion, error)

	// ExpireSweep closes active promotions past their end date and removes
	// their ranking rows. Returns how many were expired.
	ExpireSweep(ctx context.Context) (int, error)

	ListCommissions(ctx context.Context, ownerID string) ([]*model.PromotionCommission, error)
	MarkCommissionPaid(ctx context.Context, requestID string) error
}

type promotionUC struct {
	promotions repository.PromotionRepository
	promoPlans repository.PromotionPlanRepository
	payments   repository.PaymentRepository
	users      repository.UserRepository
	paymentUC  PaymentUseCase
	tm         repository.TransactionManager
	notifier   adapter.Notifier
	log        *zerolog.Logger
}

func NewPromotionUseCase(
	promotions repository.PromotionRepository,
	promoPlans repository.PromotionPlanRepository,
	payments repository.PaymentRepository,
	users repository.UserRepository,
	paymentUC PaymentUseCase,
	tm repository.TransactionManager,
	notifier adapter.Notifier,
	logger *zerolog.Logger,
) *promotionUC {
	l := logger.With().Str("component", "PromotionUseCase").Logger()
	return &promotionUC{
		promotions: promotions,
		promoPlans: promoPlans,
		payments:   payments,
		users:      users,
		paymentUC:  paymentUC,
		tm:         tm,
		notifier:   notifier,
		log:        &l,
	}
}

func (u *promotionUC) Request(ctx context.Context, sponsorID, tripID, ownerID, planID, message string) (*PromotionRequestResult, error) {
	sponsor, err := u.users.FindByID(ctx, nil, sponsorID)
	if err != nil {
		return nil, err
	}
	if !sponsor.HasVerifiedBadge() {
		return nil, domain.ErrPromotionNotEligible
	}

	open, err := u.promotions.HasOpenRequest(ctx, nil, sponsorID, tripID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, domain.ErrPromotionAlreadyExists
	}

	plan, err := u.promoPlans.FindByID(ctx, nil, planID)
	if err != nil {
		return nil, err
	}

	session, err := u.paymentUC.InitiatePromotion(ctx, sponsorID, plan)
	if err != nil {
		return nil, err
	}

	paymentID := session.PaymentID
	req := &model.PromotionRequest{
		ID:             ulid.Make().String(),
		SponsorID:      sponsorID,
		TripID:         tripID,
		OwnerID:        ownerID,
		PlanID:         planID,
		PaymentID:      &paymentID,
		SponsorMessage: message,
		Status:         model.PromotionStatusPending,
		CreatedAt:      time.Now(),
	}
	if err := u.promotions.SaveRequest(ctx, nil, req); err != nil {
		return nil, err
	}

	u.log.Info().Str("request_id", req.ID).Str("sponsor_id", sponsorID).Str("trip_id", tripID).Msg("promotion requested")
	return &PromotionRequestResult{Request: req, Checkout: session}, nil
}

func (u *promotionUC) Approve(ctx context.Context, ownerID, requestID string) error {
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		req, err := u.promotions.FindRequestByID(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if req.OwnerID != ownerID {
			return domain.ErrNotFound
		}
		if req.PaymentID == nil {
			return domain.ErrPromotionNotPayable
		}
		payment, err := u.payments.FindByID(ctx, tx, *req.PaymentID)
		if err != nil {
			return err
		}

		if !req.Approve(payment) {
			if payment.Status != model.PaymentStatusCompleted {
				return domain.ErrPromotionNotPayable
			}
			return domain.ErrOperationFailed
		}

		plan, err := u.promoPlans.FindByID(ctx, tx, req.PlanID)
		if err != nil {
			return err
		}
		if !req.Activate(plan) {
			return domain.ErrOperationFailed
		}
		if err := u.promotions.SaveRequest(ctx, tx, req); err != nil {
			return err
		}

		ap := &model.ActivePromotion{
			RequestID:     req.ID,
			PriorityScore: model.PriorityScore(plan),
			CreatedAt:     time.Now(),
		}
		if err := u.promotions.SaveActivePromotion(ctx, tx, ap); err != nil {
			return err
		}

		// The pending->approved transition above can only happen once, so
		// the commission is created exactly once per request.
		commission, err := model.NewPromotionCommission(ulid.Make().String(), req, plan)
		if err != nil {
			return err
		}
		if err := u.promotions.SaveCommission(ctx, tx, commission); err != nil {
			return err
		}

		metrics.IncPromotionActivated()
		metrics.IncCommissionCreated(commission.Currency)
		u.log.Info().
			Str("request_id", req.ID).
			Int("priority_score", ap.PriorityScore).
			Float64("commission", commission.Amount).
			Msg("promotion approved and activated")

		u.notify(ctx, req.SponsorID, "promotion_approved", map[string]any{
			"request_id": req.ID,
			"trip_id":    req.TripID,
			"end_date":   req.EndDate,
		})
		return nil
	})
}

func (u *promotionUC) Reject(ctx context.Context, ownerID, requestID string) error {
	req, err := u.promotions.FindRequestByID(ctx, nil, requestID)
	if err != nil {
		return err
	}
	if req.OwnerID != ownerID {
		return domain.ErrNotFound
	}
	if !req.Reject() {
		return domain.ErrOperationFailed
	}
	if err := u.promotions.SaveRequest(ctx, nil, req); err != nil {
		return err
	}
	u.log.Info().Str("request_id", req.ID).Msg("promotion rejected")
	u.notify(ctx, req.SponsorID, "promotion_rejected", map[string]any{"request_id": req.ID, "trip_id": req.TripID})
	return nil
}

func (u *promotionUC) Cancel(ctx context.Context, sponsorID, requestID string) error {
	req, err := u.promotions.FindRequestByID(ctx, nil, requestID)
	if err != nil {
		return err
	}
	if req.SponsorID != sponsorID {
		return domain.ErrNotFound
	}
	if !req.Cancel() {
		return domain.ErrOperationFailed
	}
	if err := u.promotions.SaveRequest(ctx, nil, req); err != nil {
		return err
	}
	u.log.Info().Str("request_id", req.ID).Msg("promotion cancelled by sponsor")
	return nil
}

func (u *promotionUC) ActiveFeed(ctx context.Context, limit int) ([]*model.ActivePromotion, error) {
	if limit <= 0 {
		limit = 50
	}
	return u.promotions.ListActivePromotions(ctx, nil, limit)
}

func (u *promotionUC) ExpireSweep(ctx context.Context) (int, error) {
	expired, err := u.promotions.ListActiveExpiredBefore(ctx, nil, time.Now(), 200)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, req := range expired {
		req.Status = model.PromotionStatusExpired
		if err := u.promotions.SaveRequest(ctx, nil, req); err != nil {
			u.log.Error().Err(err).Str("request_id", req.ID).Msg("expire sweep: save failed")
			continue
		}
		if err := u.promotions.DeleteActivePromotion(ctx, nil, req.ID); err != nil {
			u.log.Error().Err(err).Str("request_id", req.ID).Msg("expire sweep: ranking row delete failed")
		}
		count++
	}
	if count > 0 {
		metrics.AddPromotionsExpired(count)
		u.log.Info().Int("count", count).Msg("promotions expired")
	}
	return count, nil
}

func (u *promotionUC) ListCommissions(ctx context.Context, ownerID string) ([]*model.PromotionCommission, error) {
	return u.promotions.ListCommissionsByOwner(ctx, nil, ownerID)
}

func (u *promotionUC) MarkCommissionPaid(ctx context.Context, requestID string) error {
	c, err := u.promotions.FindCommissionByRequestID(ctx, nil, requestID)
	if err != nil {
		return err
	}
	if !c.MarkPaid() {
		return domain.ErrOperationFailed
	}
	if err := u.promotions.SaveCommission(ctx, nil, c); err != nil {
		return err
	}
	u.log.Info().Str("request_id", requestID).Float64("amount", c.Amount).Msg("commission marked paid")
	return nil
}

func (u *promotionUC) notify(ctx context.Context, recipientID, eventType string, payload map[string]any) {
	if u.notifier == nil {
		return
	}
	if err := u.notifier.Notify(ctx, recipientID, eventType, payload); err != nil {
		u.log.Warn().Err(err).Str("event", eventType).Msg("notification dispatch failed")
	}
}

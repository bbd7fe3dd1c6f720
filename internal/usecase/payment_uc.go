package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"rahala-payments/internal/domain"
	"rahala-payments/internal/domain/model"
	"rahala-payments/internal/domain/ports/adapter"
	"rahala-payments/internal/domain/ports/repository"
	"rahala-payments/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// CheckoutSession is what payment initiation hands back to the client.
type CheckoutSession struct {
	PaymentID    string `json:"payment_id"`
	OrderID      string `json:"order_id"`
	CheckoutURL  string `json:"checkout_url"`
	PaymentToken string `json:"-"`
}

// PaymentUseCase owns the Payment lifecycle. All status transitions funnel
// through the conditional pending-check in the repository, so concurrent
// webhook delivery and reconciliation sweeps cannot double-fire entitlements.
type PaymentUseCase interface {
	// InitiateSubscription creates a pending payment for a subscription plan
	// and opens a checkout session with the gateway.
	InitiateSubscription(ctx context.Context, userID, planID string) (*CheckoutSession, error)
	// InitiatePromotion creates a pending payment funding a trip promotion.
	// The promotion request itself is owned by PromotionUseCase.
	InitiatePromotion(ctx context.Context, userID string, plan *model.PromotionPlan) (*CheckoutSession, error)

	FindByOrderID(ctx context.Context, orderID string) (*model.Payment, error)

	// RecordWebhook upserts the audit record for a payment. It runs before
	// any status transition, for verified and forged deliveries alike.
	RecordWebhook(ctx context.Context, paymentID string, rawPayload []byte, signature, lastError string) error

	// MarkCompleted is the single entry into the completed state. It reports
	// whether this call performed the transition; a duplicate call is a
	// successful no-op. Entitlement activation fires exactly once, on the
	// call that actually transitioned the row.
	MarkCompleted(ctx context.Context, paymentID, transactionID string) (transitioned bool, err error)

	// MarkFailed moves a pending payment to failed. A failure arriving after
	// completion is logged as an anomaly and absorbed; completed is sticky.
	MarkFailed(ctx context.Context, paymentID, reason string) error

	// GetForUser returns a payment only to its owner.
	GetForUser(ctx context.Context, userID, paymentID string) (*model.Payment, error)
	ListForUser(ctx context.Context, userID string) ([]*model.Payment, error)
}

type paymentUC struct {
	payments  repository.PaymentRepository
	users     repository.UserRepository
	subPlans  repository.SubscriptionPlanRepository
	gateway   adapter.PaymentGateway
	activator EntitlementActivator
	log       *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	users repository.UserRepository,
	subPlans repository.SubscriptionPlanRepository,
	gateway adapter.PaymentGateway,
	activator EntitlementActivator,
	logger *zerolog.Logger,
) *paymentUC {
	l := logger.With().Str("component", "PaymentUseCase").Logger()
	return &paymentUC{
		payments:  payments,
		users:     users,
		subPlans:  subPlans,
		gateway:   gateway,
		activator: activator,
		log:       &l,
	}
}

func (u *paymentUC) InitiateSubscription(ctx context.Context, userID, planID string) (*CheckoutSession, error) {
	user, err := u.users.FindByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if user.IsSubscriptionActive() {
		return nil, domain.ErrActiveSubscription
	}
	plan, err := u.subPlans.FindByID(ctx, nil, planID)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, domain.ErrNotFound
	}

	pid := plan.ID
	p := newPendingPayment(userID, &pid, plan.Price, plan.Currency)
	if err := u.payments.Save(ctx, nil, p); err != nil {
		return nil, err
	}

	billing := adapter.BillingDetails{
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Phone:     user.Phone,
	}
	session, err := u.openCheckout(ctx, p, billing)
	if err != nil {
		// The gateway refused before any money moved; close the ledger row.
		if ferr := u.MarkFailed(ctx, p.ID, err.Error()); ferr != nil {
			u.log.Error().Err(ferr).Str("payment_id", p.ID).Msg("could not mark failed after gateway error")
		}
		return nil, err
	}
	u.log.Info().Str("payment_id", p.ID).Str("user_id", userID).Str("plan_id", planID).Msg("subscription payment initiated")
	return session, nil
}

func (u *paymentUC) InitiatePromotion(ctx context.Context, userID string, plan *model.PromotionPlan) (*CheckoutSession, error) {
	if plan.IsZero() || !plan.Active {
		return nil, domain.ErrNotFound
	}
	user, err := u.users.FindByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	// Promotion payments carry no subscription plan reference.
	p := newPendingPayment(userID, nil, plan.Price, plan.Currency)
	if err := u.payments.Save(ctx, nil, p); err != nil {
		return nil, err
	}

	billing := adapter.BillingDetails{
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Phone:     user.Phone,
	}
	session, err := u.openCheckout(ctx, p, billing)
	if err != nil {
		if ferr := u.MarkFailed(ctx, p.ID, err.Error()); ferr != nil {
			u.log.Error().Err(ferr).Str("payment_id", p.ID).Msg("could not mark failed after gateway error")
		}
		return nil, err
	}
	u.log.Info().Str("payment_id", p.ID).Str("user_id", userID).Msg("promotion payment initiated")
	return session, nil
}

// openCheckout registers the order and payment key with the gateway and
// attaches the identifiers to the ledger row. No database transaction is held
// across the outbound calls.
func (u *paymentUC) openCheckout(ctx context.Context, p *model.Payment, billing adapter.BillingDetails) (*CheckoutSession, error) {
	orderID, err := u.gateway.CreateOrder(ctx, p.Amount, p.Currency)
	if err != nil {
		return nil, err
	}
	if err := u.payments.AttachGatewayOrder(ctx, nil, p.ID, orderID); err != nil {
		return nil, err
	}

	token, err := u.gateway.CreatePaymentKey(ctx, orderID, p.Amount, billing, p.Currency)
	if err != nil {
		return nil, err
	}
	if err := u.payments.AttachPaymentToken(ctx, nil, p.ID, token); err != nil {
		return nil, err
	}

	return &CheckoutSession{
		PaymentID:    p.ID,
		OrderID:      orderID,
		CheckoutURL:  u.gateway.CheckoutURL(token),
		PaymentToken: token,
	}, nil
}

func (u *paymentUC) FindByOrderID(ctx context.Context, orderID string) (*model.Payment, error) {
	p, err := u.payments.FindByOrderID(ctx, nil, orderID)
	if err != nil {
		if err == domain.ErrNotFound {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return p, nil
}

func (u *paymentUC) RecordWebhook(ctx context.Context, paymentID string, rawPayload []byte, signature, lastError string) error {
	rec := &model.PaymentAuditRecord{
		PaymentID:      paymentID,
		WebhookPayload: json.RawMessage(rawPayload),
		Signature:      signature,
		LastError:      lastError,
	}
	return u.payments.UpsertAuditRecord(ctx, nil, rec)
}

func (u *paymentUC) MarkCompleted(ctx context.Context, paymentID, transactionID string) (bool, error) {
	now := time.Now()
	txID := transactionID
	transitioned, err := u.payments.UpdateStatusIfPending(ctx, nil, paymentID, model.PaymentStatusCompleted, &txID, &now)
	if err != nil {
		return false, err
	}
	if !transitioned {
		p, err := u.payments.FindByID(ctx, nil, paymentID)
		if err != nil {
			return false, err
		}
		if p.Status == model.PaymentStatusCompleted {
			// Duplicate delivery or a sweep re-confirming: absorbed.
			u.log.Debug().Str("payment_id", paymentID).Msg("payment already completed; duplicate confirmation absorbed")
			return false, nil
		}
		u.log.Warn().Str("payment_id", paymentID).Str("status", string(p.Status)).Msg("success callback for non-pending payment ignored")
		return false, domain.ErrPaymentNotPending
	}

	metrics.IncPayment(string(model.PaymentStatusCompleted))

	p, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		return true, err
	}
	metrics.AddPaymentRevenue(p.Currency, p.Amount)
	u.log.Info().Str("payment_id", paymentID).Str("transaction_id", transactionID).Msg("payment completed")

	// The money is captured; an activation failure leaves the payment
	// completed and surfaces as an operational alert, never a rollback.
	if err := u.activator.Activate(ctx, p); err != nil {
		u.log.Error().Err(err).Str("payment_id", paymentID).Msg("ALERT: entitlement activation failed for completed payment")
		return true, fmt.Errorf("%w: %v", domain.ErrEntitlementActivation, err)
	}
	return true, nil
}

func (u *paymentUC) MarkFailed(ctx context.Context, paymentID, reason string) error {
	transitioned, err := u.payments.UpdateStatusIfPending(ctx, nil, paymentID, model.PaymentStatusFailed, nil, nil)
	if err != nil {
		return err
	}
	if !transitioned {
		p, err := u.payments.FindByID(ctx, nil, paymentID)
		if err != nil {
			return err
		}
		if p.Status == model.PaymentStatusCompleted {
			// Completed is sticky: a late failure callback is an anomaly.
			u.log.Warn().Str("payment_id", paymentID).Str("reason", reason).Msg("failure callback after completion ignored")
			return nil
		}
		u.log.Debug().Str("payment_id", paymentID).Str("status", string(p.Status)).Msg("payment already terminal")
		return nil
	}
	metrics.IncPayment(string(model.PaymentStatusFailed))
	u.log.Info().Str("payment_id", paymentID).Str("reason", reason).Msg("payment failed")
	return nil
}

func (u *paymentUC) GetForUser(ctx context.Context, userID, paymentID string) (*model.Payment, error) {
	p, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		if err == domain.ErrNotFound {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	if p.UserID != userID {
		return nil, domain.ErrPaymentNotFound
	}
	return p, nil
}

func (u *paymentUC) ListForUser(ctx context.Context, userID string) ([]*model.Payment, error) {
	return u.payments.ListByUser(ctx, nil, userID)
}

func newPendingPayment(userID string, planID *string, amount float64, currency string) *model.Payment {
	now := time.Now()
	return &model.Payment{
		ID:        ulid.Make().String(),
		UserID:    userID,
		PlanID:    planID,
		Amount:    amount,
		Currency:  currency,
		Status:    model.PaymentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

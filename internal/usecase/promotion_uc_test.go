//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"rahala-payments/internal/domain"
	"rahala-payments/internal/domain/model"
	"rahala-payments/internal/usecase"
)

type promotionUCTestDeps struct {
	promotions *memPromotionRepo
	promoPlans *memPromoPlanRepo
	payments   *memPaymentRepo
	users      *memUserRepo
	gateway    *mockGateway
	notifier   *mockNotifier
	paymentUC  usecase.PaymentUseCase
}

func newPromotionUCDeps() *promotionUCTestDeps {
	deps := &promotionUCTestDeps{
		promotions: newMemPromotionRepo(),
		promoPlans: newMemPromoPlanRepo(),
		payments:   newMemPaymentRepo(),
		users:      newMemUserRepo(),
		gateway:    newMockGateway(),
		notifier:   &mockNotifier{},
	}
	deps.paymentUC = usecase.NewPaymentUseCase(deps.payments, deps.users, newMemSubPlanRepo(), deps.gateway, &mockActivator{}, newTestLogger())
	return deps
}

func (d *promotionUCTestDeps) build() usecase.PromotionUseCase {
	return usecase.NewPromotionUseCase(d.promotions, d.promoPlans, d.payments, d.users, d.paymentUC, &mockTxManager{}, d.notifier, newTestLogger())
}

func seedVerifiedSponsor(d *promotionUCTestDeps, id string) {
	end := time.Now().Add(20 * 24 * time.Hour)
	d.users.Save(context.Background(), nil, &model.User{
		ID: id, Email: id + "@example.com", Username: id,
		SubscriptionPlan: model.TierPremium, SubscriptionEndDate: &end,
	})
}

func seedPromoPlan(d *promotionUCTestDeps, days int, price float64) *model.PromotionPlan {
	plan := &model.PromotionPlan{
		ID: "pp-1", Name: "Boost", DurationDays: days,
		Price: price, Currency: "EGP", ReachMultiplier: "3x", Active: true,
	}
	d.promoPlans.Save(context.Background(), nil, plan)
	return plan
}

func TestPromotionUseCase_Request(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a pending request with a checkout session", func(t *testing.T) {
		deps := newPromotionUCDeps()
		seedVerifiedSponsor(deps, "sponsor-1")
		seedPromoPlan(deps, 7, 150.00)
		uc := deps.build()

		result, err := uc.Request(ctx, "sponsor-1", "trip-1", "owner-1", "pp-1", "boost my trip")
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if result.Request.Status != model.PromotionStatusPending {
			t.Errorf("expected pending request, got %q", result.Request.Status)
		}
		if result.Request.PaymentID == nil {
			t.Fatal("request must reference its payment")
		}
		if result.Checkout == nil || result.Checkout.CheckoutURL == "" {
			t.Error("expected a checkout session")
		}

		p, err := deps.payments.FindByID(ctx, nil, *result.Request.PaymentID)
		if err != nil {
			t.Fatalf("payment row missing: %v", err)
		}
		if p.IsSubscription() {
			t.Error("promotion payments must not carry a subscription plan")
		}
		if p.Amount != 150.00 {
			t.Errorf("expected plan price on payment, got %v", p.Amount)
		}
	})

	t.Run("rejects a sponsor without a verified badge", func(t *testing.T) {
		deps := newPromotionUCDeps()
		deps.users.Save(ctx, nil, &model.User{ID: "sponsor-1", Email: "s@example.com", Username: "s", SubscriptionPlan: model.TierFree})
		seedPromoPlan(deps, 7, 150.00)
		uc := deps.build()

		_, err := uc.Request(ctx, "sponsor-1", "trip-1", "owner-1", "pp-1", "")
		if !errors.Is(err, domain.ErrPromotionNotEligible) {
			t.Fatalf("expected ErrPromotionNotEligible, got %v", err)
		}
	})

	t.Run("rejects a duplicate open request for the same trip", func(t *testing.T) {
		deps := newPromotionUCDeps()
		seedVerifiedSponsor(deps, "sponsor-1")
		seedPromoPlan(deps, 7, 150.00)
		uc := deps.build()

		if _, err := uc.Request(ctx, "sponsor-1", "trip-1", "owner-1", "pp-1", ""); err != nil {
			t.Fatalf("first request: %v", err)
		}
		_, err := uc.Request(ctx, "sponsor-1", "trip-1", "owner-1", "pp-1", "")
		if !errors.Is(err, domain.ErrPromotionAlreadyExists) {
			t.Fatalf("expected ErrPromotionAlreadyExists, got %v", err)
		}
	})
}

func TestPromotionUseCase_Approve(t *testing.T) {
	ctx := context.Background()

	// request + completed payment, ready for approval
	setup := func(t *testing.T, days int, price float64) (*promotionUCTestDeps, usecase.PromotionUseCase, string) {
		t.Helper()
		deps := newPromotionUCDeps()
		seedVerifiedSponsor(deps, "sponsor-1")
		seedPromoPlan(deps, days, price)
		uc := deps.build()

		result, err := uc.Request(ctx, "sponsor-1", "trip-1", "owner-1", "pp-1", "")
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if _, err := deps.paymentUC.MarkCompleted(ctx, *result.Request.PaymentID, "tx-2001"); err != nil {
			t.Fatalf("complete payment: %v", err)
		}
		return deps, uc, result.Request.ID
	}

	t.Run("activates the promotion and creates the commission once", func(t *testing.T) {
		deps, uc, reqID := setup(t, 30, 500.00)

		if err := uc.Approve(ctx, "owner-1", reqID); err != nil {
			t.Fatalf("approve: %v", err)
		}

		req, _ := deps.promotions.FindRequestByID(ctx, nil, reqID)
		if req.Status != model.PromotionStatusActive {
			t.Errorf("expected active promotion, got %q", req.Status)
		}
		if req.StartDate == nil || req.EndDate == nil {
			t.Fatal("active promotion must carry its window")
		}
		wantEnd := time.Now().Add(30 * 24 * time.Hour)
		if diff := req.EndDate.Sub(wantEnd); diff < -time.Minute || diff > time.Minute {
			t.Errorf("end date off by %v", diff)
		}

		// 100 base + 50 for 30 days + 500/10
		aps, _ := deps.promotions.ListActivePromotions(ctx, nil, 10)
		if len(aps) != 1 {
			t.Fatalf("expected one ranking row, got %d", len(aps))
		}
		if aps[0].PriorityScore != 200 {
			t.Errorf("expected priority score 200, got %d", aps[0].PriorityScore)
		}

		c, err := deps.promotions.FindCommissionByRequestID(ctx, nil, reqID)
		if err != nil {
			t.Fatalf("commission missing: %v", err)
		}
		if c.Amount != 50.00 {
			t.Errorf("expected 10%% commission of 50.00, got %v", c.Amount)
		}
		if c.OwnerID != "owner-1" || c.Status != model.CommissionStatusPending {
			t.Errorf("commission fields wrong: %+v", c)
		}
	})

	t.Run("re-approval does not create a second commission", func(t *testing.T) {
		deps, uc, reqID := setup(t, 7, 150.00)
		if err := uc.Approve(ctx, "owner-1", reqID); err != nil {
			t.Fatalf("approve: %v", err)
		}
		first, _ := deps.promotions.FindCommissionByRequestID(ctx, nil, reqID)

		if err := uc.Approve(ctx, "owner-1", reqID); err == nil {
			t.Fatal("second approval must fail")
		}
		second, _ := deps.promotions.FindCommissionByRequestID(ctx, nil, reqID)
		if second.ID != first.ID {
			t.Error("commission must be created exactly once")
		}
	})

	t.Run("requires a completed payment", func(t *testing.T) {
		deps := newPromotionUCDeps()
		seedVerifiedSponsor(deps, "sponsor-1")
		seedPromoPlan(deps, 7, 150.00)
		uc := deps.build()

		result, err := uc.Request(ctx, "sponsor-1", "trip-1", "owner-1", "pp-1", "")
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		// payment stays pending
		err = uc.Approve(ctx, "owner-1", result.Request.ID)
		if !errors.Is(err, domain.ErrPromotionNotPayable) {
			t.Fatalf("expected ErrPromotionNotPayable, got %v", err)
		}
		req, _ := deps.promotions.FindRequestByID(ctx, nil, result.Request.ID)
		if req.Status != model.PromotionStatusPending {
			t.Errorf("request must stay pending, got %q", req.Status)
		}
	})

	t.Run("only the trip owner may approve", func(t *testing.T) {
		_, uc, reqID := setup(t, 7, 150.00)
		if err := uc.Approve(ctx, "someone-else", reqID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for non-owner, got %v", err)
		}
	})
}

func TestPromotionUseCase_RejectAndCancel(t *testing.T) {
	ctx := context.Background()

	newRequest := func(t *testing.T) (*promotionUCTestDeps, usecase.PromotionUseCase, string) {
		t.Helper()
		deps := newPromotionUCDeps()
		seedVerifiedSponsor(deps, "sponsor-1")
		seedPromoPlan(deps, 7, 150.00)
		uc := deps.build()
		result, err := uc.Request(ctx, "sponsor-1", "trip-1", "owner-1", "pp-1", "")
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		return deps, uc, result.Request.ID
	}

	t.Run("owner rejects a pending request", func(t *testing.T) {
		deps, uc, reqID := newRequest(t)
		if err := uc.Reject(ctx, "owner-1", reqID); err != nil {
			t.Fatalf("reject: %v", err)
		}
		req, _ := deps.promotions.FindRequestByID(ctx, nil, reqID)
		if req.Status != model.PromotionStatusRejected {
			t.Errorf("expected rejected, got %q", req.Status)
		}
	})

	t.Run("sponsor cancels before going live", func(t *testing.T) {
		deps, uc, reqID := newRequest(t)
		if err := uc.Cancel(ctx, "sponsor-1", reqID); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		req, _ := deps.promotions.FindRequestByID(ctx, nil, reqID)
		if req.Status != model.PromotionStatusCancelled {
			t.Errorf("expected cancelled, got %q", req.Status)
		}
	})

	t.Run("only the sponsor may cancel", func(t *testing.T) {
		_, uc, reqID := newRequest(t)
		if err := uc.Cancel(ctx, "owner-1", reqID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestPromotionUseCase_ExpireSweep(t *testing.T) {
	ctx := context.Background()
	deps := newPromotionUCDeps()
	uc := deps.build()

	past := time.Now().Add(-time.Hour)
	start := past.Add(-7 * 24 * time.Hour)
	deps.promotions.SaveRequest(ctx, nil, &model.PromotionRequest{
		ID: "req-old", SponsorID: "s", TripID: "t", OwnerID: "o", PlanID: "pp-1",
		Status: model.PromotionStatusActive, StartDate: &start, EndDate: &past,
	})
	deps.promotions.SaveActivePromotion(ctx, nil, &model.ActivePromotion{RequestID: "req-old", PriorityScore: 135})

	future := time.Now().Add(24 * time.Hour)
	deps.promotions.SaveRequest(ctx, nil, &model.PromotionRequest{
		ID: "req-live", SponsorID: "s", TripID: "t2", OwnerID: "o", PlanID: "pp-1",
		Status: model.PromotionStatusActive, StartDate: &start, EndDate: &future,
	})
	deps.promotions.SaveActivePromotion(ctx, nil, &model.ActivePromotion{RequestID: "req-live", PriorityScore: 135})

	n, err := uc.ExpireSweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expiry, got %d", n)
	}

	req, _ := deps.promotions.FindRequestByID(ctx, nil, "req-old")
	if req.Status != model.PromotionStatusExpired {
		t.Errorf("expected expired, got %q", req.Status)
	}
	aps, _ := deps.promotions.ListActivePromotions(ctx, nil, 10)
	if len(aps) != 1 || aps[0].RequestID != "req-live" {
		t.Errorf("expected only the live promotion to remain ranked, got %+v", aps)
	}
}

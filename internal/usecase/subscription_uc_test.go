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

func TestSubscriptionUseCase_Status(t *testing.T) {
	ctx := context.Background()
	users := newMemUserRepo()
	plans := newMemSubPlanRepo()
	uc := usecase.NewSubscriptionUseCase(users, plans, newTestLogger())

	end := time.Now().Add(12 * 24 * time.Hour)
	start := end.Add(-30 * 24 * time.Hour)
	users.Save(ctx, nil, &model.User{
		ID: "user-1", Email: "u@example.com", Username: "u",
		SubscriptionPlan:      model.TierPro,
		SubscriptionStartDate: &start,
		SubscriptionEndDate:   &end,
	})

	status, err := uc.Status(ctx, "user-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.IsActive || status.Plan != model.TierPro {
		t.Errorf("expected active pro subscription, got %+v", status)
	}
	if status.DaysRemaining < 11 || status.DaysRemaining > 12 {
		t.Errorf("expected ~12 days remaining, got %d", status.DaysRemaining)
	}
	if !status.HasVerifiedBadge {
		t.Error("active subscribers carry the verified badge")
	}
}

func TestSubscriptionUseCase_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels an active subscription", func(t *testing.T) {
		users := newMemUserRepo()
		uc := usecase.NewSubscriptionUseCase(users, newMemSubPlanRepo(), newTestLogger())
		end := time.Now().Add(5 * 24 * time.Hour)
		users.Save(ctx, nil, &model.User{
			ID: "user-1", Email: "u@example.com", Username: "u",
			SubscriptionPlan: model.TierPremium, SubscriptionEndDate: &end,
		})

		if err := uc.Cancel(ctx, "user-1"); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		u, _ := users.FindByID(ctx, nil, "user-1")
		if u.SubscriptionPlan != model.TierFree || u.SubscriptionEndDate != nil {
			t.Errorf("expected free tier with no dates, got %+v", u)
		}
	})

	t.Run("rejects a user without an active subscription", func(t *testing.T) {
		users := newMemUserRepo()
		uc := usecase.NewSubscriptionUseCase(users, newMemSubPlanRepo(), newTestLogger())
		users.Save(ctx, nil, &model.User{ID: "user-1", Email: "u@example.com", Username: "u", SubscriptionPlan: model.TierFree})

		if err := uc.Cancel(ctx, "user-1"); !errors.Is(err, domain.ErrNoActiveSubscription) {
			t.Fatalf("expected ErrNoActiveSubscription, got %v", err)
		}
	})
}

func TestSubscriptionUseCase_FinishExpired(t *testing.T) {
	ctx := context.Background()
	users := newMemUserRepo()
	uc := usecase.NewSubscriptionUseCase(users, newMemSubPlanRepo(), newTestLogger())

	past := time.Now().Add(-24 * time.Hour)
	future := time.Now().Add(24 * time.Hour)
	users.Save(ctx, nil, &model.User{ID: "expired-1", Email: "a@example.com", Username: "a", SubscriptionPlan: model.TierPremium, SubscriptionEndDate: &past})
	users.Save(ctx, nil, &model.User{ID: "expired-2", Email: "b@example.com", Username: "b", SubscriptionPlan: model.TierPro, SubscriptionEndDate: &past})
	users.Save(ctx, nil, &model.User{ID: "current", Email: "c@example.com", Username: "c", SubscriptionPlan: model.TierPremium, SubscriptionEndDate: &future})

	n, err := uc.FinishExpired(ctx)
	if err != nil {
		t.Fatalf("finish expired: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 downgrades, got %d", n)
	}

	for _, id := range []string{"expired-1", "expired-2"} {
		u, _ := users.FindByID(ctx, nil, id)
		if u.SubscriptionPlan != model.TierFree {
			t.Errorf("user %s not downgraded: %q", id, u.SubscriptionPlan)
		}
	}
	u, _ := users.FindByID(ctx, nil, "current")
	if u.SubscriptionPlan != model.TierPremium {
		t.Errorf("current subscriber must be untouched, got %q", u.SubscriptionPlan)
	}
}

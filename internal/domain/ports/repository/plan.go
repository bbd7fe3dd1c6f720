package repository

import (
	"context"

	"rahala-payments/internal/domain/model"
)

type SubscriptionPlanRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.SubscriptionPlan, error)
	ListActive(ctx context.Context, tx Tx) ([]*model.SubscriptionPlan, error)
	Save(ctx context.Context, tx Tx, p *model.SubscriptionPlan) error
}

type PromotionPlanRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.PromotionPlan, error)
	ListActive(ctx context.Context, tx Tx) ([]*model.PromotionPlan, error)
	Save(ctx context.Context, tx Tx, p *model.PromotionPlan) error
}

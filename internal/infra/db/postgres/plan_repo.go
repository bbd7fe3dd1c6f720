package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"rahala-payments/internal/domain"
	"rahala-payments/internal/domain/model"
	"rahala-payments/internal/domain/ports/repository"
)

var (
	_ repository.SubscriptionPlanRepository = (*subscriptionPlanRepo)(nil)
	_ repository.PromotionPlanRepository    = (*promotionPlanRepo)(nil)
)

type subscriptionPlanRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionPlanRepo(pool *pgxpool.Pool) *subscriptionPlanRepo {
	return &subscriptionPlanRepo{pool: pool}
}

const subPlanColumns = `id, name, plan_type, duration, price, currency, active, created_at`

func (r *subscriptionPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
	const q = `SELECT ` + subPlanColumns + ` FROM subscription_plans WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	p := &model.SubscriptionPlan{}
	if err := row.Scan(&p.ID, &p.Name, &p.PlanType, &p.Duration, &p.Price, &p.Currency, &p.Active, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *subscriptionPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.SubscriptionPlan, error) {
	const q = `SELECT ` + subPlanColumns + ` FROM subscription_plans WHERE active ORDER BY price ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, wrapListErr(err)
	}
	defer rows.Close()

	var out []*model.SubscriptionPlan
	for rows.Next() {
		p := new(model.SubscriptionPlan)
		if err := rows.Scan(&p.ID, &p.Name, &p.PlanType, &p.Duration, &p.Price, &p.Currency, &p.Active, &p.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *subscriptionPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.SubscriptionPlan) error {
	const q = `
INSERT INTO subscription_plans (id, name, plan_type, duration, price, currency, active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  name=$2, plan_type=$3, duration=$4, price=$5, currency=$6, active=$7;`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Name, p.PlanType, p.Duration, p.Price, p.Currency, p.Active, p.CreatedAt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

type promotionPlanRepo struct{ pool *pgxpool.Pool }

func NewPromotionPlanRepo(pool *pgxpool.Pool) *promotionPlanRepo {
	return &promotionPlanRepo{pool: pool}
}

const promoPlanColumns = `id, name, duration_days, price, currency, reach_multiplier, active, created_at`

func (r *promotionPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PromotionPlan, error) {
	const q = `SELECT ` + promoPlanColumns + ` FROM promotion_plans WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	p := &model.PromotionPlan{}
	if err := row.Scan(&p.ID, &p.Name, &p.DurationDays, &p.Price, &p.Currency, &p.ReachMultiplier, &p.Active, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *promotionPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.PromotionPlan, error) {
	const q = `SELECT ` + promoPlanColumns + ` FROM promotion_plans WHERE active ORDER BY duration_days ASC, price ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, wrapListErr(err)
	}
	defer rows.Close()

	var out []*model.PromotionPlan
	for rows.Next() {
		p := new(model.PromotionPlan)
		if err := rows.Scan(&p.ID, &p.Name, &p.DurationDays, &p.Price, &p.Currency, &p.ReachMultiplier, &p.Active, &p.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *promotionPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.PromotionPlan) error {
	const q = `
INSERT INTO promotion_plans (id, name, duration_days, price, currency, reach_multiplier, active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  name=$2, duration_days=$3, price=$4, currency=$5, reach_multiplier=$6, active=$7;`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Name, p.DurationDays, p.Price, p.Currency, p.ReachMultiplier, p.Active, p.CreatedAt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"rahala-payments/internal/domain"
	"rahala-payments/internal/domain/model"
	"rahala-payments/internal/domain/ports/repository"
)

var _ repository.PromotionRepository = (*promotionRepo)(nil)

type promotionRepo struct{ pool *pgxpool.Pool }

func NewPromotionRepo(pool *pgxpool.Pool) *promotionRepo {
	return &promotionRepo{pool: pool}
}

const requestColumns = `id, sponsor_id, trip_id, owner_id, plan_id, payment_id, sponsor_message, status, created_at, approved_at, rejected_at, start_date, end_date, views_count, clicks_count`

func (r *promotionRepo) SaveRequest(ctx context.Context, tx repository.Tx, req *model.PromotionRequest) error {
	const q = `
INSERT INTO promotion_requests (
  id, sponsor_id, trip_id, owner_id, plan_id, payment_id, sponsor_message, status,
  created_at, approved_at, rejected_at, start_date, end_date, views_count, clicks_count
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (id) DO UPDATE SET
  payment_id=$6, sponsor_message=$7, status=$8, approved_at=$10, rejected_at=$11,
  start_date=$12, end_date=$13, views_count=$14, clicks_count=$15;`

	_, err := execSQL(ctx, r.pool, tx, q,
		req.ID, req.SponsorID, req.TripID, req.OwnerID, req.PlanID, req.PaymentID, req.SponsorMessage, req.Status,
		req.CreatedAt, req.ApprovedAt, req.RejectedAt, req.StartDate, req.EndDate, req.ViewsCount, req.ClicksCount)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *promotionRepo) FindRequestByID(ctx context.Context, tx repository.Tx, id string) (*model.PromotionRequest, error) {
	q := `SELECT ` + requestColumns + ` FROM promotion_requests WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanRequest(row)
}

func (r *promotionRepo) FindRequestByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.PromotionRequest, error) {
	const q = `SELECT ` + requestColumns + ` FROM promotion_requests WHERE payment_id=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		return nil, err
	}
	return scanRequest(row)
}

func (r *promotionRepo) HasOpenRequest(ctx context.Context, tx repository.Tx, sponsorID, tripID string) (bool, error) {
	const q = `SELECT EXISTS (
  SELECT 1 FROM promotion_requests
   WHERE sponsor_id=$1 AND trip_id=$2 AND status IN ('pending','approved','active')
);`
	row, err := pickRow(ctx, r.pool, tx, q, sponsorID, tripID)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

func (r *promotionRepo) ListActiveExpiredBefore(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.PromotionRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + requestColumns + ` FROM promotion_requests
 WHERE status='active' AND end_date < $1 ORDER BY end_date ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, cutoff, limit)
	if err != nil {
		return nil, wrapListErr(err)
	}
	defer rows.Close()

	var out []*model.PromotionRequest
	for rows.Next() {
		req := new(model.PromotionRequest)
		if err := rows.Scan(&req.ID, &req.SponsorID, &req.TripID, &req.OwnerID, &req.PlanID, &req.PaymentID, &req.SponsorMessage, &req.Status,
			&req.CreatedAt, &req.ApprovedAt, &req.RejectedAt, &req.StartDate, &req.EndDate, &req.ViewsCount, &req.ClicksCount); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, req)
	}
	return out, nil
}

func (r *promotionRepo) SaveActivePromotion(ctx context.Context, tx repository.Tx, ap *model.ActivePromotion) error {
	const q = `
INSERT INTO active_promotions (request_id, priority_score, created_at)
VALUES ($1,$2,$3)
ON CONFLICT (request_id) DO UPDATE SET priority_score=$2;`
	_, err := execSQL(ctx, r.pool, tx, q, ap.RequestID, ap.PriorityScore, ap.CreatedAt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *promotionRepo) DeleteActivePromotion(ctx context.Context, tx repository.Tx, requestID string) error {
	const q = `DELETE FROM active_promotions WHERE request_id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, requestID)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *promotionRepo) ListActivePromotions(ctx context.Context, tx repository.Tx, limit int) ([]*model.ActivePromotion, error) {
	if limit <= 0 {
		limit = 50
	}
	// Only promotions whose request is still inside its active window rank.
	const q = `
SELECT ap.request_id, ap.priority_score, ap.created_at
  FROM active_promotions ap
  JOIN promotion_requests pr ON pr.id = ap.request_id
 WHERE pr.status='active' AND pr.end_date > NOW()
 ORDER BY ap.priority_score DESC, pr.start_date DESC
 LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, wrapListErr(err)
	}
	defer rows.Close()

	var out []*model.ActivePromotion
	for rows.Next() {
		ap := new(model.ActivePromotion)
		if err := rows.Scan(&ap.RequestID, &ap.PriorityScore, &ap.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, ap)
	}
	return out, nil
}

func (r *promotionRepo) SaveCommission(ctx context.Context, tx repository.Tx, c *model.PromotionCommission) error {
	const q = `
INSERT INTO promotion_commissions (id, request_id, owner_id, amount, currency, status, created_at, paid_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (request_id) DO UPDATE SET status=$6, paid_at=$8;`
	_, err := execSQL(ctx, r.pool, tx, q, c.ID, c.RequestID, c.OwnerID, c.Amount, c.Currency, c.Status, c.CreatedAt, c.PaidAt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *promotionRepo) FindCommissionByRequestID(ctx context.Context, tx repository.Tx, requestID string) (*model.PromotionCommission, error) {
	const q = `SELECT id, request_id, owner_id, amount, currency, status, created_at, paid_at FROM promotion_commissions WHERE request_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, requestID)
	if err != nil {
		return nil, err
	}
	c := &model.PromotionCommission{}
	if err := row.Scan(&c.ID, &c.RequestID, &c.OwnerID, &c.Amount, &c.Currency, &c.Status, &c.CreatedAt, &c.PaidAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return c, nil
}

func (r *promotionRepo) ListCommissionsByOwner(ctx context.Context, tx repository.Tx, ownerID string) ([]*model.PromotionCommission, error) {
	const q = `SELECT id, request_id, owner_id, amount, currency, status, created_at, paid_at FROM promotion_commissions WHERE owner_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, ownerID)
	if err != nil {
		return nil, wrapListErr(err)
	}
	defer rows.Close()

	var out []*model.PromotionCommission
	for rows.Next() {
		c := new(model.PromotionCommission)
		if err := rows.Scan(&c.ID, &c.RequestID, &c.OwnerID, &c.Amount, &c.Currency, &c.Status, &c.CreatedAt, &c.PaidAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, c)
	}
	return out, nil
}

func scanRequest(row pgx.Row) (*model.PromotionRequest, error) {
	req := &model.PromotionRequest{}
	if err := row.Scan(&req.ID, &req.SponsorID, &req.TripID, &req.OwnerID, &req.PlanID, &req.PaymentID, &req.SponsorMessage, &req.Status,
		&req.CreatedAt, &req.ApprovedAt, &req.RejectedAt, &req.StartDate, &req.EndDate, &req.ViewsCount, &req.ClicksCount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return req, nil
}

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

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, plan_id, amount, currency, status, order_id, transaction_id, payment_token, created_at, updated_at, completed_at`

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, user_id, plan_id, amount, currency, status, order_id, transaction_id, payment_token, created_at, updated_at, completed_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
) ON CONFLICT (id) DO UPDATE SET
  amount=$4, currency=$5, status=$6, order_id=$7, transaction_id=$8, payment_token=$9, updated_at=$11, completed_at=$12;`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.UserID, p.PlanID, p.Amount, p.Currency, p.Status, p.OrderID, p.TransactionID, p.PaymentToken, p.CreatedAt, p.UpdatedAt, p.CompletedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id=$1 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, orderID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE user_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, wrapListErr(err)
	}
	defer rows.Close()
	return scanPayments(rows)
}

// UpdateStatusIfPending atomically moves a pending payment into the given
// status. The WHERE clause is the check-and-set both the webhook handler and
// the reconciliation sweep rely on.
func (r *paymentRepo) UpdateStatusIfPending(
	ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, transactionID *string, completedAt *time.Time,
) (bool, error) {
	const q = `
UPDATE payments
   SET status = $2,
       transaction_id = COALESCE($3, transaction_id),
       completed_at = $4,
       updated_at = NOW()
 WHERE id = $1
   AND status = 'pending';`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(status), transactionID, completedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) AttachGatewayOrder(ctx context.Context, tx repository.Tx, id, orderID string) error {
	const q = `UPDATE payments SET order_id=$2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, orderID)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) AttachPaymentToken(ctx context.Context, tx repository.Tx, id, token string) error {
	const q = `UPDATE payments SET payment_token=$2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, token)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, wrapListErr(err)
	}
	defer rows.Close()
	return scanPayments(rows)
}

func (r *paymentRepo) UpsertAuditRecord(ctx context.Context, tx repository.Tx, rec *model.PaymentAuditRecord) error {
	const q = `
INSERT INTO payment_audit_records (
  payment_id, webhook_payload, signature, gateway_response, last_error, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,NOW(),NOW())
ON CONFLICT (payment_id) DO UPDATE SET
  webhook_payload=$2, signature=$3, gateway_response=$4, last_error=$5, updated_at=NOW();`

	_, err := execSQL(ctx, r.pool, tx, q, rec.PaymentID, rec.WebhookPayload, rec.Signature, rec.GatewayResponse, rec.LastError)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindAuditRecord(ctx context.Context, tx repository.Tx, paymentID string) (*model.PaymentAuditRecord, error) {
	const q = `SELECT payment_id, webhook_payload, signature, gateway_response, last_error, created_at, updated_at FROM payment_audit_records WHERE payment_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		return nil, err
	}
	rec := &model.PaymentAuditRecord{}
	if err := row.Scan(&rec.PaymentID, &rec.WebhookPayload, &rec.Signature, &rec.GatewayResponse, &rec.LastError, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return rec, nil
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	if err := row.Scan(&p.ID, &p.UserID, &p.PlanID, &p.Amount, &p.Currency, &p.Status, &p.OrderID, &p.TransactionID, &p.PaymentToken, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func scanPayments(rows pgx.Rows) ([]*model.Payment, error) {
	var out []*model.Payment
	for rows.Next() {
		p := new(model.Payment)
		if err := rows.Scan(&p.ID, &p.UserID, &p.PlanID, &p.Amount, &p.Currency, &p.Status, &p.OrderID, &p.TransactionID, &p.PaymentToken, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, nil
}

func wrapListErr(err error) error {
	switch err {
	case pgx.ErrNoRows:
		return domain.ErrNotFound
	case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
		return err
	default:
		return domain.ErrOperationFailed
	}
}

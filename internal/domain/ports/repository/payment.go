package repository

import (
	"context"
	"time"

	"rahala-payments/internal/domain/model"
)

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.Payment, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Payment, error)

	// UpdateStatusIfPending atomically flips a pending payment into the given
	// status and reports whether the row actually transitioned. This is the
	// check-and-set both the webhook path and the reconciliation sweep funnel
	// through; a false return with a nil error means another writer won.
	UpdateStatusIfPending(ctx context.Context, tx Tx, id string, status model.PaymentStatus, transactionID *string, completedAt *time.Time) (bool, error)

	// AttachGatewayOrder / AttachPaymentToken are idempotent field setters
	// used during initiation.
	AttachGatewayOrder(ctx context.Context, tx Tx, id, orderID string) error
	AttachPaymentToken(ctx context.Context, tx Tx, id, token string) error

	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)

	// UpsertAuditRecord writes the latest webhook delivery for a payment,
	// regardless of verification outcome.
	UpsertAuditRecord(ctx context.Context, tx Tx, rec *model.PaymentAuditRecord) error
	FindAuditRecord(ctx context.Context, tx Tx, paymentID string) (*model.PaymentAuditRecord, error)
}

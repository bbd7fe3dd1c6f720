package repository

import (
	"context"
	"time"

	"rahala-payments/internal/domain/model"
)

type PromotionRepository interface {
	SaveRequest(ctx context.Context, tx Tx, r *model.PromotionRequest) error
	FindRequestByID(ctx context.Context, tx Tx, id string) (*model.PromotionRequest, error)
	FindRequestByPaymentID(ctx context.Context, tx Tx, paymentID string) (*model.PromotionRequest, error)

	// HasOpenRequest reports whether the sponsor already has a pending,
	// approved or active request for the trip.
	HasOpenRequest(ctx context.Context, tx Tx, sponsorID, tripID string) (bool, error)

	// ListActiveExpiredBefore returns active requests whose end date passed.
	ListActiveExpiredBefore(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.PromotionRequest, error)

	SaveActivePromotion(ctx context.Context, tx Tx, ap *model.ActivePromotion) error
	DeleteActivePromotion(ctx context.Context, tx Tx, requestID string) error
	ListActivePromotions(ctx context.Context, tx Tx, limit int) ([]*model.ActivePromotion, error)

	SaveCommission(ctx context.Context, tx Tx, c *model.PromotionCommission) error
	FindCommissionByRequestID(ctx context.Context, tx Tx, requestID string) (*model.PromotionCommission, error)
	ListCommissionsByOwner(ctx context.Context, tx Tx, ownerID string) ([]*model.PromotionCommission, error)
}

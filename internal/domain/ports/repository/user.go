package repository

import (
	"context"
	"time"

	"rahala-payments/internal/domain/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	Save(ctx context.Context, tx Tx, u *model.User) error

	// SetSubscription writes the subscription fields entitlement activation
	// owns. Passing nil dates together with TierFree clears the plan.
	SetSubscription(ctx context.Context, tx Tx, userID string, tier model.SubscriptionTier, start, end *time.Time) error

	// ListExpiredSubscribers returns users on a paid tier whose subscription
	// end date is before the cutoff.
	ListExpiredSubscribers(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.User, error)
}

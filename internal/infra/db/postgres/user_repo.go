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

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

const userColumns = `id, email, username, first_name, last_name, phone, subscription_plan, subscription_start_date, subscription_end_date`

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func (r *userRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (id, email, username, first_name, last_name, phone, subscription_plan, subscription_start_date, subscription_end_date)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  email=$2, username=$3, first_name=$4, last_name=$5, phone=$6,
  subscription_plan=$7, subscription_start_date=$8, subscription_end_date=$9;`

	_, err := execSQL(ctx, r.pool, tx, q, u.ID, u.Email, u.Username, u.FirstName, u.LastName, u.Phone, u.SubscriptionPlan, u.SubscriptionStartDate, u.SubscriptionEndDate)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *userRepo) SetSubscription(ctx context.Context, tx repository.Tx, userID string, tier model.SubscriptionTier, start, end *time.Time) error {
	const q = `UPDATE users SET subscription_plan=$2, subscription_start_date=$3, subscription_end_date=$4 WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, userID, tier, start, end)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *userRepo) ListExpiredSubscribers(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.User, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + userColumns + ` FROM users
 WHERE subscription_end_date < $1 AND subscription_plan IN ('premium','pro')
 ORDER BY subscription_end_date ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, cutoff, limit)
	if err != nil {
		return nil, wrapListErr(err)
	}
	defer rows.Close()

	var out []*model.User
	for rows.Next() {
		u := new(model.User)
		if err := rows.Scan(&u.ID, &u.Email, &u.Username, &u.FirstName, &u.LastName, &u.Phone, &u.SubscriptionPlan, &u.SubscriptionStartDate, &u.SubscriptionEndDate); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, u)
	}
	return out, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.FirstName, &u.LastName, &u.Phone, &u.SubscriptionPlan, &u.SubscriptionStartDate, &u.SubscriptionEndDate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return u, nil
}

package referral

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

var (
	ErrRewardNotFound   = errors.New("referral reward not found")
	ErrAlreadyRewarded  = errors.New("referred user already has a reward")
	ErrRewardNotPending = errors.New("referral reward is not pending")
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const rewardColumns = `id, referrer_id, referred_id, amount_paise, status, created_at, claimed_at`

// Create inserts a pending reward. The unique index on referred_id
// makes a second reward for the same referred user impossible; that
// case surfaces as ErrAlreadyRewarded.
func (r *repository) Create(ctx context.Context, reward *Reward) (*Reward, error) {
	query := `
		INSERT INTO referral_rewards (referrer_id, referred_id, amount_paise, status)
		VALUES ($1, $2, $3, 'pending')
		ON CONFLICT (referred_id) DO NOTHING
		RETURNING ` + rewardColumns

	var created Reward
	err := r.db.GetContext(ctx, &created, query, reward.ReferrerID, reward.ReferredID, reward.AmountPaise)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlreadyRewarded
		}
		return nil, err
	}
	return &created, nil
}

func (r *repository) GetByReferredID(ctx context.Context, referredID int) (*Reward, error) {
	var reward Reward
	err := r.db.GetContext(ctx, &reward,
		`SELECT `+rewardColumns+` FROM referral_rewards WHERE referred_id = $1`, referredID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRewardNotFound
		}
		return nil, err
	}
	return &reward, nil
}

func (r *repository) MarkClaimed(ctx context.Context, q sqlx.ExtContext, id int) error {
	res, err := q.ExecContext(ctx, `
		UPDATE referral_rewards
		SET status = 'claimed', claimed_at = NOW()
		WHERE id = $1 AND status = 'pending'`,
		id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRewardNotPending
	}
	return nil
}

func (r *repository) List(ctx context.Context, f Filter) ([]Reward, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.ReferrerID != nil {
		add("referrer_id = $%d", *f.ReferrerID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM referral_rewards WHERE "+whereClause, args...); err != nil {
		return nil, 0, err
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	size := f.PageSize
	if size < 1 || size > 100 {
		size = 20
	}
	args = append(args, size, (page-1)*size)

	query := fmt.Sprintf("SELECT "+rewardColumns+" FROM referral_rewards WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		whereClause, len(args)-1, len(args))

	rewards := []Reward{}
	if err := r.db.SelectContext(ctx, &rewards, query, args...); err != nil {
		return nil, 0, err
	}

	return rewards, total, nil
}

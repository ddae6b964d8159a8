package referral

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Create(ctx context.Context, r *Reward) (*Reward, error)
	GetByReferredID(ctx context.Context, referredID int) (*Reward, error)
	MarkClaimed(ctx context.Context, q sqlx.ExtContext, id int) error
	List(ctx context.Context, f Filter) ([]Reward, int, error)
}

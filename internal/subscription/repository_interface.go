package subscription

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	// Activate expires the pair's current active plan and inserts the
	// new one inside the caller's transaction scope.
	Activate(ctx context.Context, q sqlx.ExtContext, p *ActivePlan) (*ActivePlan, error)
	GetActiveForPhone(ctx context.Context, userID int, phone string) (*ActivePlan, error)
	List(ctx context.Context, f Filter) ([]ActivePlanDetail, int, error)
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

package autopay

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, a *Autopay) (*Autopay, error)
	GetByID(ctx context.Context, id int) (*Autopay, error)
	Update(ctx context.Context, a *Autopay) (*Autopay, error)
	Delete(ctx context.Context, id int) error
	List(ctx context.Context, f Filter) ([]Autopay, int, error)

	// FindDue returns enabled entries whose next_due_date has passed,
	// oldest due first.
	FindDue(ctx context.Context, now time.Time) ([]Autopay, error)
	RecordRun(ctx context.Context, id int, run RunUpdate) error
}

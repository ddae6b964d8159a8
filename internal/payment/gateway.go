package payment

import "context"

type Status string

const (
	StatusSettled Status = "settled"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
)

type Request struct {
	UserID      int
	AmountPaise int64
	Method      string
	Reference   string
}

type Result struct {
	Status    Status
	Reference string
	Reason    string
}

// Gateway settles money movements with an external payment provider.
// Implementations must honor the context deadline; a settlement that
// cannot be confirmed in time is reported as pending, never as settled.
type Gateway interface {
	Settle(ctx context.Context, req Request) (*Result, error)
}

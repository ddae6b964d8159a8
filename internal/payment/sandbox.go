package payment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/saravananbs/genchargephase2/internal/logger"
)

// SandboxGateway is the stand-in PSP used outside production. Outcomes
// are deterministic on the amount so flows can be exercised end to end:
// amounts ending in 99 paise are declined, amounts ending in 98 paise
// stay pending, everything else settles.
type SandboxGateway struct {
	Latency time.Duration
}

func NewSandboxGateway(latency time.Duration) *SandboxGateway {
	return &SandboxGateway{Latency: latency}
}

func (g *SandboxGateway) Settle(ctx context.Context, req Request) (*Result, error) {
	if g.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.Latency):
		}
	}

	switch req.AmountPaise % 100 {
	case 99:
		logger.Info("sandbox settlement declined", "user_id", req.UserID, "amount_paise", req.AmountPaise)
		return &Result{Status: StatusFailed, Reason: "declined by gateway"}, nil
	case 98:
		logger.Info("sandbox settlement pending", "user_id", req.UserID, "amount_paise", req.AmountPaise)
		return &Result{Status: StatusPending}, nil
	}

	ref := "PYMT_" + uuid.NewString()
	logger.Info("sandbox settlement ok", "user_id", req.UserID, "amount_paise", req.AmountPaise, "reference", ref)
	return &Result{Status: StatusSettled, Reference: ref}, nil
}

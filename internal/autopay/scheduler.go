package autopay

import (
	"context"
	"time"

	"github.com/saravananbs/genchargephase2/internal/logger"
)

// Scheduler runs the due batch on a fixed interval until its context
// is cancelled.
type Scheduler struct {
	service  Service
	interval time.Duration
}

func NewScheduler(service Service, interval time.Duration) *Scheduler {
	return &Scheduler{service: service, interval: interval}
}

func (w *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logger.Info("autopay scheduler started", "interval", w.interval.String())

	for {
		select {
		case <-ctx.Done():
			logger.Info("autopay scheduler stopped")
			return
		case <-ticker.C:
			if _, err := w.service.ProcessDue(ctx); err != nil {
				logger.Error("autopay batch failed", "error", err)
			}
		}
	}
}

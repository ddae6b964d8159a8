package subscription

import (
	"context"
	"time"

	"github.com/saravananbs/genchargephase2/internal/logger"
	"github.com/saravananbs/genchargephase2/internal/metrics"
)

type Service interface {
	ListForUser(ctx context.Context, userID int, f Filter) ([]ActivePlanDetail, int, error)
	List(ctx context.Context, f Filter) ([]ActivePlanDetail, int, error)
	SweepExpired(ctx context.Context) (int64, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) ListForUser(ctx context.Context, userID int, f Filter) ([]ActivePlanDetail, int, error) {
	f.UserID = &userID
	return s.repo.List(ctx, f)
}

func (s *service) List(ctx context.Context, f Filter) ([]ActivePlanDetail, int, error) {
	return s.repo.List(ctx, f)
}

func (s *service) SweepExpired(ctx context.Context) (int64, error) {
	expired, err := s.repo.SweepExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		metrics.RecordActivePlansExpired(expired)
		logger.Info("expired active plans", "count", expired)
	}
	return expired, nil
}

// Sweeper periodically expires lapsed plans so reads never have to
// filter on valid_to themselves.
type Sweeper struct {
	service  Service
	interval time.Duration
}

func NewSweeper(service Service, interval time.Duration) *Sweeper {
	return &Sweeper{service: service, interval: interval}
}

func (w *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logger.Info("plan sweeper started", "interval", w.interval.String())

	for {
		select {
		case <-ctx.Done():
			logger.Info("plan sweeper stopped")
			return
		case <-ticker.C:
			if _, err := w.service.SweepExpired(ctx); err != nil {
				logger.Error("plan sweep failed", "error", err)
			}
		}
	}
}

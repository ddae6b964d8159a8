package autopay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/saravananbs/genchargephase2/internal/catalog"
	"github.com/saravananbs/genchargephase2/internal/logger"
	"github.com/saravananbs/genchargephase2/internal/metrics"
	"github.com/saravananbs/genchargephase2/internal/recharge"
	"github.com/saravananbs/genchargephase2/internal/user"
	"github.com/saravananbs/genchargephase2/internal/wallet"
)

// Subscriber is the slice of the transaction engine a batch needs:
// charge one user for one plan under a caller-chosen idempotency key.
type Subscriber interface {
	Subscribe(ctx context.Context, userID int, source, key string, req recharge.SubscribeRequest) (*recharge.Result, error)
}

type Service interface {
	Create(ctx context.Context, userID int, req CreateRequest) (*Autopay, error)
	Get(ctx context.Context, userID, id int) (*Autopay, error)
	Update(ctx context.Context, userID, id int, req UpdateRequest) (*Autopay, error)
	Delete(ctx context.Context, userID, id int) error
	ListForUser(ctx context.Context, userID int, f Filter) ([]Autopay, int, error)
	List(ctx context.Context, f Filter) ([]Autopay, int, error)

	// ProcessDue charges every enabled entry whose due date has
	// passed. One entry failing never aborts the batch.
	ProcessDue(ctx context.Context) (*BatchReport, error)
}

type service struct {
	repo             Repository
	users            user.Repository
	catalog          catalog.Repository
	subscriber       Subscriber
	planValidityDays int
}

func NewService(repo Repository, users user.Repository, catalog catalog.Repository, subscriber Subscriber, planValidityDays int) Service {
	if planValidityDays < 1 {
		planValidityDays = 30
	}
	return &service{
		repo:             repo,
		users:            users,
		catalog:          catalog,
		subscriber:       subscriber,
		planValidityDays: planValidityDays,
	}
}

func (s *service) Create(ctx context.Context, userID int, req CreateRequest) (*Autopay, error) {
	owner, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if _, err := s.catalog.GetActivePlanByID(ctx, req.PlanID); err != nil {
		return nil, err
	}

	phone := req.PhoneNumber
	if phone == "" {
		phone = owner.PhoneNumber
	}

	return s.repo.Create(ctx, &Autopay{
		UserID:      userID,
		PlanID:      req.PlanID,
		PhoneNumber: phone,
		Tag:         req.Tag,
		Status:      StatusEnabled,
		NextDueDate: req.NextDueDate,
	})
}

func (s *service) Get(ctx context.Context, userID, id int) (*Autopay, error) {
	return s.owned(ctx, userID, id)
}

func (s *service) Update(ctx context.Context, userID, id int, req UpdateRequest) (*Autopay, error) {
	entry, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if req.PlanID != nil {
		if _, err := s.catalog.GetActivePlanByID(ctx, *req.PlanID); err != nil {
			return nil, err
		}
		entry.PlanID = *req.PlanID
	}
	if req.PhoneNumber != nil {
		entry.PhoneNumber = *req.PhoneNumber
	}
	if req.Tag != nil {
		entry.Tag = *req.Tag
	}
	if req.Status != nil {
		entry.Status = *req.Status
	}
	if req.NextDueDate != nil {
		entry.NextDueDate = *req.NextDueDate
	}

	return s.repo.Update(ctx, entry)
}

func (s *service) Delete(ctx context.Context, userID, id int) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// owned loads an entry and hides it from everyone but its owner.
func (s *service) owned(ctx context.Context, userID, id int) (*Autopay, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.UserID != userID {
		return nil, ErrAutopayNotFound
	}
	return entry, nil
}

func (s *service) ListForUser(ctx context.Context, userID int, f Filter) ([]Autopay, int, error) {
	f.UserID = &userID
	return s.repo.List(ctx, f)
}

func (s *service) List(ctx context.Context, f Filter) ([]Autopay, int, error) {
	return s.repo.List(ctx, f)
}

func (s *service) ProcessDue(ctx context.Context) (*BatchReport, error) {
	start := time.Now()

	due, err := s.repo.FindDue(ctx, start)
	if err != nil {
		return nil, err
	}

	report := &BatchReport{
		StartedAt: start,
		Processed: len(due),
		Results:   make([]RunResult, 0, len(due)),
	}

	for i := range due {
		result := s.processEntry(ctx, &due[i])
		report.Results = append(report.Results, result)
		if result.Status == RunSuccess {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}

	metrics.ObserveAutopayBatch(time.Since(start).Seconds())
	if report.Processed > 0 {
		logger.Info("autopay batch finished",
			"processed", report.Processed, "succeeded", report.Succeeded, "failed", report.Failed,
			"duration", time.Since(start).String())
	}
	return report, nil
}

// cycleKey pins one idempotency key per entry per due date, so two
// overlapping batch runners cannot double-charge a cycle.
func cycleKey(entry *Autopay) string {
	return fmt.Sprintf("autopay:%d:%s", entry.ID, entry.NextDueDate.UTC().Format(time.RFC3339))
}

func (s *service) processEntry(ctx context.Context, entry *Autopay) RunResult {
	result, err := s.subscriber.Subscribe(ctx, entry.UserID, wallet.SourceAutopay, cycleKey(entry), recharge.SubscribeRequest{
		PlanID:        entry.PlanID,
		PhoneNumber:   entry.PhoneNumber,
		PaymentMethod: wallet.MethodWallet,
	})

	now := time.Now()
	switch {
	case err == nil:
		return s.recordSuccess(ctx, entry, result, now)

	case errors.Is(err, recharge.ErrDuplicateRequest):
		// Another runner holds this cycle's key. Report a failure for
		// this batch but leave the entry alone; the owner of the key
		// will finish the cycle.
		logger.Info("autopay cycle already in flight", "autopay_id", entry.ID, "key", cycleKey(entry))
		metrics.RecordAutopayRun(entry.Tag, RunFailure)
		return RunResult{AutopayID: entry.ID, Status: RunFailure, Error: err.Error()}

	default:
		if recordErr := s.repo.RecordRun(ctx, entry.ID, RunUpdate{Status: RunFailure, At: now}); recordErr != nil {
			logger.Error("autopay run not recorded", "autopay_id", entry.ID, "error", recordErr)
		}
		logger.Info("autopay charge failed",
			"autopay_id", entry.ID, "user_id", entry.UserID, "plan_id", entry.PlanID, "error", err)
		metrics.RecordAutopayRun(entry.Tag, RunFailure)
		return RunResult{AutopayID: entry.ID, Status: RunFailure, Error: err.Error()}
	}
}

func (s *service) recordSuccess(ctx context.Context, entry *Autopay, result *recharge.Result, now time.Time) RunResult {
	run := RunUpdate{Status: RunSuccess, At: now}
	if entry.Tag == TagOnetime {
		run.Disable = true
	} else {
		next := entry.NextDueDate.AddDate(0, 0, s.validityDays(ctx, entry.PlanID, result))
		run.NextDue = &next
	}

	if err := s.repo.RecordRun(ctx, entry.ID, run); err != nil {
		// The charge went through; the idempotency key shields the
		// next batch from charging this cycle twice.
		logger.Error("autopay charged but run not recorded", "autopay_id", entry.ID, "error", err)
	}

	metrics.RecordAutopayRun(entry.Tag, RunSuccess)
	out := RunResult{AutopayID: entry.ID, Status: RunSuccess}
	if result.Transaction != nil {
		out.TxnID = &result.Transaction.ID
	}
	return out
}

// validityDays prefers what the activation actually granted; a
// replayed cycle has no activation attached, so fall back to the
// catalog.
func (s *service) validityDays(ctx context.Context, planID int, result *recharge.Result) int {
	if result.ActivePlan != nil {
		granted := result.ActivePlan.ValidTo.Sub(result.ActivePlan.ValidFrom)
		if days := int(granted.Round(24*time.Hour) / (24 * time.Hour)); days > 0 {
			return days
		}
	}
	if plan, err := s.catalog.GetPlanByID(ctx, planID); err == nil {
		return plan.Validity(s.planValidityDays)
	}
	return s.planValidityDays
}

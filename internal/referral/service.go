package referral

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/saravananbs/genchargephase2/internal/db"
	"github.com/saravananbs/genchargephase2/internal/logger"
	"github.com/saravananbs/genchargephase2/internal/metrics"
	"github.com/saravananbs/genchargephase2/internal/notify"
	"github.com/saravananbs/genchargephase2/internal/user"
	"github.com/saravananbs/genchargephase2/internal/wallet"
)

// Policy is the reward configuration: how much a successful referral
// pays and whether the referrer must have recharged at least once
// before earning anything.
type Policy struct {
	RewardPaise             int64
	RequireReferrerRecharge bool
	WalletMaxRetries        int
}

type Service interface {
	// OnPurchaseSuccess is the hook the transaction processor fires
	// after every successful plan purchase. Best-effort: all failures
	// are logged and swallowed, the purchase stands regardless.
	OnPurchaseSuccess(ctx context.Context, userID int)

	ListForReferrer(ctx context.Context, referrerID int, f Filter) ([]Reward, int, error)
	List(ctx context.Context, f Filter) ([]Reward, int, error)
}

type service struct {
	db       *sqlx.DB
	repo     Repository
	users    user.Repository
	wallets  wallet.Repository
	notifier notify.Queue
	policy   Policy
}

func NewService(database *sqlx.DB, repo Repository, users user.Repository, wallets wallet.Repository, notifier notify.Queue, policy Policy) Service {
	if policy.WalletMaxRetries < 1 {
		policy.WalletMaxRetries = 3
	}
	return &service{
		db:       database,
		repo:     repo,
		users:    users,
		wallets:  wallets,
		notifier: notifier,
		policy:   policy,
	}
}

func (s *service) OnPurchaseSuccess(ctx context.Context, userID int) {
	if err := s.evaluate(ctx, userID); err != nil {
		logger.Error("referral evaluation failed", "user_id", userID, "error", err)
	}
}

func (s *service) evaluate(ctx context.Context, userID int) error {
	payer, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if payer.RefereeCode == nil || *payer.RefereeCode == "" {
		return nil
	}

	reward, err := s.repo.GetByReferredID(ctx, userID)
	switch {
	case err == nil:
		if reward.Status == StatusClaimed {
			return nil
		}
		// A previous claim attempt failed; retry it now.
		return s.claim(ctx, reward)
	case errors.Is(err, ErrRewardNotFound):
		// fall through to eligibility
	default:
		return err
	}

	purchases, err := s.wallets.CountSuccessByService(ctx, userID, wallet.ServicePlanPurchase)
	if err != nil {
		return err
	}
	if purchases != 1 {
		return nil
	}

	referrer, err := s.users.FindByReferralCode(ctx, *payer.RefereeCode)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			logger.Info("referee code resolves to no account", "user_id", userID, "code", *payer.RefereeCode)
			return nil
		}
		return err
	}
	if referrer.ID == payer.ID {
		return nil
	}
	if referrer.Status != user.StatusActive || payer.Status != user.StatusActive {
		return nil
	}

	if s.policy.RequireReferrerRecharge {
		n, err := s.wallets.CountSuccessByService(ctx, referrer.ID, wallet.ServicePlanPurchase)
		if err != nil {
			return err
		}
		if n == 0 {
			logger.Info("referrer has not recharged yet, reward withheld", "referrer_id", referrer.ID)
			return nil
		}
	}

	reward, err = s.repo.Create(ctx, &Reward{
		ReferrerID:  referrer.ID,
		ReferredID:  payer.ID,
		AmountPaise: s.policy.RewardPaise,
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyRewarded) {
			return nil
		}
		return err
	}

	return s.claim(ctx, reward)
}

// claim credits the referrer and flips the reward to claimed in one
// transaction. On failure the pending row survives and the next
// successful purchase by the referred user retries.
func (s *service) claim(ctx context.Context, reward *Reward) error {
	referrer, err := s.users.FindByID(ctx, reward.ReferrerID)
	if err != nil {
		return err
	}
	if referrer.Status != user.StatusActive {
		return nil
	}

	if _, err := s.wallets.GetOrCreateWallet(ctx, referrer.ID); err != nil {
		return err
	}

	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		w, err := s.wallets.ApplyDelta(ctx, tx, referrer.ID, reward.AmountPaise, s.policy.WalletMaxRetries)
		if err != nil {
			return err
		}
		if _, err := s.wallets.CreateTransaction(ctx, tx, &wallet.Transaction{
			UserID:            referrer.ID,
			Category:          wallet.CategoryWallet,
			Type:              wallet.TypeCredit,
			ServiceType:       wallet.ServiceReferralReward,
			AmountPaise:       reward.AmountPaise,
			Status:            wallet.StatusSuccess,
			Source:            wallet.SourceSystem,
			PaymentMethod:     wallet.MethodWallet,
			BalanceAfterPaise: &w.BalancePaise,
		}); err != nil {
			return err
		}
		return s.repo.MarkClaimed(ctx, tx, reward.ID)
	})
	if err != nil {
		if errors.Is(err, ErrRewardNotPending) {
			// Another claim won the race; nothing credited here.
			return nil
		}
		return err
	}

	metrics.RecordReferralRewardClaimed()
	logger.Info("referral reward claimed",
		"referrer_id", reward.ReferrerID, "referred_id", reward.ReferredID, "amount_paise", reward.AmountPaise)
	s.notifier.Enqueue(ctx, notify.Event{
		Type:        notify.EventReferralReward,
		UserID:      referrer.ID,
		Email:       referrer.Email,
		Name:        referrer.Name,
		AmountPaise: reward.AmountPaise,
	})
	return nil
}

func (s *service) ListForReferrer(ctx context.Context, referrerID int, f Filter) ([]Reward, int, error) {
	f.ReferrerID = &referrerID
	return s.repo.List(ctx, f)
}

func (s *service) List(ctx context.Context, f Filter) ([]Reward, int, error) {
	return s.repo.List(ctx, f)
}

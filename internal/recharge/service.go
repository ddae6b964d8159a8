package recharge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/saravananbs/genchargephase2/internal/catalog"
	"github.com/saravananbs/genchargephase2/internal/db"
	"github.com/saravananbs/genchargephase2/internal/idempotency"
	"github.com/saravananbs/genchargephase2/internal/logger"
	"github.com/saravananbs/genchargephase2/internal/metrics"
	"github.com/saravananbs/genchargephase2/internal/notify"
	"github.com/saravananbs/genchargephase2/internal/payment"
	"github.com/saravananbs/genchargephase2/internal/subscription"
	"github.com/saravananbs/genchargephase2/internal/user"
	"github.com/saravananbs/genchargephase2/internal/wallet"
)

// ReferralTrigger runs after a successful plan purchase. Implementations
// are best-effort: a failed evaluation never unwinds the purchase.
type ReferralTrigger interface {
	OnPurchaseSuccess(ctx context.Context, userID int)
}

type Options struct {
	GatewayTimeout   time.Duration
	WalletMaxRetries int
	PlanValidityDays int
}

// Service is the transaction processor. Both operations walk the same
// pipeline: validate, reserve the idempotency key, record a pending
// ledger row, settle the funding, commit the atomic unit, then close
// the key and emit signals.
type Service interface {
	TopUp(ctx context.Context, userID int, key string, req TopUpRequest) (*Result, error)
	Subscribe(ctx context.Context, userID int, source, key string, req SubscribeRequest) (*Result, error)
}

type service struct {
	db        *sqlx.DB
	opts      Options
	users     user.Repository
	wallets   wallet.Repository
	catalog   catalog.Repository
	plans     subscription.Repository
	guard     idempotency.Guard
	gateway   payment.Gateway
	notifier  notify.Queue
	referrals ReferralTrigger
}

func NewService(
	database *sqlx.DB,
	opts Options,
	users user.Repository,
	wallets wallet.Repository,
	cat catalog.Repository,
	plans subscription.Repository,
	guard idempotency.Guard,
	gateway payment.Gateway,
	notifier notify.Queue,
	referrals ReferralTrigger,
) Service {
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = 5 * time.Second
	}
	if opts.WalletMaxRetries < 1 {
		opts.WalletMaxRetries = 3
	}
	if opts.PlanValidityDays < 1 {
		opts.PlanValidityDays = 30
	}
	return &service{
		db:        database,
		opts:      opts,
		users:     users,
		wallets:   wallets,
		catalog:   cat,
		plans:     plans,
		guard:     guard,
		gateway:   gateway,
		notifier:  notifier,
		referrals: referrals,
	}
}

func (s *service) TopUp(ctx context.Context, userID int, key string, req TopUpRequest) (*Result, error) {
	if req.AmountPaise <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	u, err := s.loadActiveUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.PaymentMethod == wallet.MethodWallet {
		return s.transfer(ctx, u, key, req)
	}

	decision, err := s.guard.Reserve(ctx, userID, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	switch decision.Outcome {
	case idempotency.OutcomeCompleted:
		return s.replay(ctx, decision)
	case idempotency.OutcomeInFlight:
		return nil, ErrDuplicateRequest
	}

	if _, err := s.wallets.GetOrCreateWallet(ctx, userID); err != nil {
		s.releaseQuietly(ctx, userID, key)
		return nil, err
	}

	txn, err := s.wallets.CreateTransaction(ctx, s.db, &wallet.Transaction{
		UserID:         userID,
		Category:       wallet.CategoryWallet,
		Type:           wallet.TypeCredit,
		ServiceType:    wallet.ServiceWalletTopUp,
		AmountPaise:    req.AmountPaise,
		Status:         wallet.StatusPending,
		Source:         wallet.SourceUser,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: &key,
	})
	if err != nil {
		s.releaseQuietly(ctx, userID, key)
		return nil, err
	}

	res, err := s.settle(ctx, payment.Request{UserID: userID, AmountPaise: req.AmountPaise, Method: req.PaymentMethod})
	if err != nil {
		// Cannot tell whether money moved. The row stays pending and
		// the reservation ages out via stale_at.
		logger.Error("settlement unconfirmed", "txn_id", txn.ID, "error", err)
		metrics.RecordTransaction(wallet.ServiceWalletTopUp, wallet.StatusPending)
		return nil, fmt.Errorf("%w: gateway unreachable", ErrSettlementPending)
	}

	switch res.Status {
	case payment.StatusFailed:
		return nil, s.recordFailure(ctx, u, txn, key, res.Reason,
			fmt.Errorf("%w: %s", ErrSettlementFailed, res.Reason))
	case payment.StatusPending:
		metrics.RecordTransaction(wallet.ServiceWalletTopUp, wallet.StatusPending)
		return nil, fmt.Errorf("%w: awaiting confirmation", ErrSettlementPending)
	}

	var balanceAfter int64
	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		w, err := s.wallets.ApplyDelta(ctx, tx, userID, req.AmountPaise, s.opts.WalletMaxRetries)
		if err != nil {
			return err
		}
		balanceAfter = w.BalancePaise
		return s.wallets.MarkTransactionSuccess(ctx, tx, txn.ID, strPtr(res.Reference), &w.BalancePaise)
	})
	if err != nil {
		// The gateway confirmed but the credit did not commit. Keep the
		// reservation so the key cannot re-settle; the pending row is
		// the reconciliation breadcrumb.
		logger.Error("settled top-up not credited", "txn_id", txn.ID, "reference", res.Reference, "error", err)
		return nil, fmt.Errorf("%w: top-up recorded but not credited", ErrStorageUnavailable)
	}

	s.completeQuietly(ctx, userID, key, txn.ID)

	txn.Status = wallet.StatusSuccess
	txn.PaymentTxnID = strPtr(res.Reference)
	txn.BalanceAfterPaise = &balanceAfter

	metrics.RecordTransaction(wallet.ServiceWalletTopUp, wallet.StatusSuccess)
	metrics.RecordWalletTopUp()
	s.notifier.Enqueue(ctx, notify.Event{
		Type:        notify.EventTransactionSuccess,
		UserID:      userID,
		Email:       u.Email,
		Name:        u.Name,
		ServiceType: wallet.ServiceWalletTopUp,
		AmountPaise: req.AmountPaise,
		Detail:      "Wallet top-up credited",
	})

	return &Result{Transaction: txn}, nil
}

// transfer moves balance between two wallets with no gateway involved:
// a debit leg on the caller and a credit leg on the target, both inside
// one transaction so the pair can never half-apply.
func (s *service) transfer(ctx context.Context, u *user.User, key string, req TopUpRequest) (*Result, error) {
	if req.TargetPhone == "" || req.TargetPhone == u.PhoneNumber {
		return nil, fmt.Errorf("%w: wallet transfers need another account's phone number", ErrValidation)
	}

	target, err := s.users.FindByPhone(ctx, req.TargetPhone)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: no account for phone %s", ErrValidation, req.TargetPhone)
		}
		return nil, err
	}
	if target.Status != user.StatusActive {
		return nil, fmt.Errorf("%w: target account is %s", ErrValidation, target.Status)
	}

	decision, err := s.guard.Reserve(ctx, u.ID, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	switch decision.Outcome {
	case idempotency.OutcomeCompleted:
		return s.replay(ctx, decision)
	case idempotency.OutcomeInFlight:
		return nil, ErrDuplicateRequest
	}

	for _, id := range []int{u.ID, target.ID} {
		if _, err := s.wallets.GetOrCreateWallet(ctx, id); err != nil {
			s.releaseQuietly(ctx, u.ID, key)
			return nil, err
		}
	}

	debit, err := s.wallets.CreateTransaction(ctx, s.db, &wallet.Transaction{
		UserID:         u.ID,
		Category:       wallet.CategoryWallet,
		Type:           wallet.TypeDebit,
		ServiceType:    wallet.ServiceWalletTopUp,
		AmountPaise:    req.AmountPaise,
		Status:         wallet.StatusPending,
		Source:         wallet.SourceUser,
		PaymentMethod:  wallet.MethodWallet,
		IdempotencyKey: &key,
		PhoneNumber:    &req.TargetPhone,
	})
	if err != nil {
		s.releaseQuietly(ctx, u.ID, key)
		return nil, err
	}

	var senderBalance int64
	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		from, err := s.wallets.ApplyDelta(ctx, tx, u.ID, -req.AmountPaise, s.opts.WalletMaxRetries)
		if err != nil {
			return err
		}
		to, err := s.wallets.ApplyDelta(ctx, tx, target.ID, req.AmountPaise, s.opts.WalletMaxRetries)
		if err != nil {
			return err
		}
		senderBalance = from.BalancePaise
		if err := s.wallets.MarkTransactionSuccess(ctx, tx, debit.ID, nil, &from.BalancePaise); err != nil {
			return err
		}
		_, err = s.wallets.CreateTransaction(ctx, tx, &wallet.Transaction{
			UserID:            target.ID,
			Category:          wallet.CategoryWallet,
			Type:              wallet.TypeCredit,
			ServiceType:       wallet.ServiceWalletTopUp,
			AmountPaise:       req.AmountPaise,
			Status:            wallet.StatusSuccess,
			Source:            wallet.SourceUser,
			PaymentMethod:     wallet.MethodWallet,
			PhoneNumber:       &req.TargetPhone,
			BalanceAfterPaise: &to.BalancePaise,
		})
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrInsufficientBalance):
			return nil, s.recordFailure(ctx, u, debit, key, "insufficient balance", ErrInsufficientBalance)
		case errors.Is(err, wallet.ErrVersionConflict):
			return nil, s.recordFailure(ctx, u, debit, key, "wallet busy, try again", ErrConcurrentConflict)
		}
		return nil, s.recordFailure(ctx, u, debit, key, "transfer could not be committed", err)
	}

	s.completeQuietly(ctx, u.ID, key, debit.ID)

	debit.Status = wallet.StatusSuccess
	debit.BalanceAfterPaise = &senderBalance

	metrics.RecordTransaction(wallet.ServiceWalletTopUp, wallet.StatusSuccess)
	metrics.RecordWalletTopUp()
	s.notifier.Enqueue(ctx, notify.Event{
		Type:        notify.EventTransactionSuccess,
		UserID:      u.ID,
		Email:       u.Email,
		Name:        u.Name,
		ServiceType: wallet.ServiceWalletTopUp,
		AmountPaise: req.AmountPaise,
		PhoneNumber: req.TargetPhone,
		Detail:      "Wallet transfer sent",
	})
	s.notifier.Enqueue(ctx, notify.Event{
		Type:        notify.EventTransactionSuccess,
		UserID:      target.ID,
		Email:       target.Email,
		Name:        target.Name,
		ServiceType: wallet.ServiceWalletTopUp,
		AmountPaise: req.AmountPaise,
		PhoneNumber: req.TargetPhone,
		Detail:      "Wallet transfer received",
	})

	return &Result{Transaction: debit}, nil
}

func (s *service) Subscribe(ctx context.Context, userID int, source, key string, req SubscribeRequest) (*Result, error) {
	u, err := s.loadActiveUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	phone := req.PhoneNumber
	if phone == "" {
		phone = u.PhoneNumber
	}

	plan, err := s.catalog.GetActivePlanByID(ctx, req.PlanID)
	if err != nil {
		if errors.Is(err, catalog.ErrPlanNotFound) {
			return nil, fmt.Errorf("%w: plan %d", ErrCatalogNotFound, req.PlanID)
		}
		return nil, err
	}

	now := time.Now()
	eval := catalog.EvalContext{
		AmountPaise: plan.PricePaise,
		UserType:    u.UserType,
		IsNewUser:   u.IsNew(now),
		Source:      source,
		PlanGroup:   plan.Group(),
		Now:         now,
	}
	if err := plan.Criteria.Conditions.Evaluate(eval); err != nil {
		return nil, fmt.Errorf("%w: plan not eligible: %v", ErrValidation, err)
	}

	var discountPaise, cashbackPaise int64
	if req.OfferID != nil {
		offer, err := s.catalog.GetActiveOfferByID(ctx, *req.OfferID)
		if err != nil {
			if errors.Is(err, catalog.ErrOfferNotFound) {
				return nil, fmt.Errorf("%w: offer %d", ErrCatalogNotFound, *req.OfferID)
			}
			return nil, err
		}
		if err := offer.Criteria.Conditions.Evaluate(eval); err != nil {
			return nil, fmt.Errorf("%w: offer not applicable: %v", ErrValidation, err)
		}
		discountPaise, cashbackPaise = offer.Criteria.CalculateRewards()
		if discountPaise > plan.PricePaise {
			discountPaise = plan.PricePaise
		}
	}
	payable := plan.PricePaise - discountPaise

	if _, err := s.wallets.GetOrCreateWallet(ctx, userID); err != nil {
		return nil, err
	}

	decision, err := s.guard.Reserve(ctx, userID, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	switch decision.Outcome {
	case idempotency.OutcomeCompleted:
		return s.replay(ctx, decision)
	case idempotency.OutcomeInFlight:
		return nil, ErrDuplicateRequest
	}

	walletFunded := req.PaymentMethod == wallet.MethodWallet
	category := wallet.CategoryService
	if walletFunded {
		category = wallet.CategoryWallet
	}

	txn, err := s.wallets.CreateTransaction(ctx, s.db, &wallet.Transaction{
		UserID:         userID,
		Category:       category,
		Type:           wallet.TypeDebit,
		ServiceType:    wallet.ServicePlanPurchase,
		AmountPaise:    payable,
		Status:         wallet.StatusPending,
		Source:         source,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: &key,
		PlanID:         &plan.ID,
		OfferID:        req.OfferID,
		PhoneNumber:    &phone,
	})
	if err != nil {
		s.releaseQuietly(ctx, userID, key)
		return nil, err
	}

	var reference *string
	if !walletFunded {
		res, err := s.settle(ctx, payment.Request{UserID: userID, AmountPaise: payable, Method: req.PaymentMethod})
		if err != nil {
			logger.Error("settlement unconfirmed", "txn_id", txn.ID, "error", err)
			metrics.RecordTransaction(wallet.ServicePlanPurchase, wallet.StatusPending)
			return nil, fmt.Errorf("%w: gateway unreachable", ErrSettlementPending)
		}
		switch res.Status {
		case payment.StatusFailed:
			return nil, s.recordFailure(ctx, u, txn, key, res.Reason,
				fmt.Errorf("%w: %s", ErrSettlementFailed, res.Reason))
		case payment.StatusPending:
			metrics.RecordTransaction(wallet.ServicePlanPurchase, wallet.StatusPending)
			return nil, fmt.Errorf("%w: awaiting confirmation", ErrSettlementPending)
		}
		if res.Reference != "" {
			reference = strPtr(res.Reference)
		}
	}

	activatedAt := time.Now()
	validTo := activatedAt.AddDate(0, 0, plan.Validity(s.opts.PlanValidityDays))

	var (
		act          *subscription.ActivePlan
		balanceAfter *int64
	)
	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if walletFunded {
			w, err := s.wallets.ApplyDelta(ctx, tx, userID, -payable, s.opts.WalletMaxRetries)
			if err != nil {
				return err
			}
			balanceAfter = &w.BalancePaise
		}

		created, err := s.plans.Activate(ctx, tx, &subscription.ActivePlan{
			UserID:      userID,
			PlanID:      plan.ID,
			PhoneNumber: phone,
			ValidFrom:   activatedAt,
			ValidTo:     validTo,
		})
		if err != nil {
			return err
		}
		act = created

		if err := s.wallets.MarkTransactionSuccess(ctx, tx, txn.ID, reference, balanceAfter); err != nil {
			return err
		}

		if cashbackPaise > 0 {
			w, err := s.wallets.ApplyDelta(ctx, tx, userID, cashbackPaise, s.opts.WalletMaxRetries)
			if err != nil {
				return err
			}
			_, err = s.wallets.CreateTransaction(ctx, tx, &wallet.Transaction{
				UserID:            userID,
				Category:          wallet.CategoryWallet,
				Type:              wallet.TypeCredit,
				ServiceType:       wallet.ServiceOfferCashback,
				AmountPaise:       cashbackPaise,
				Status:            wallet.StatusSuccess,
				Source:            source,
				PaymentMethod:     req.PaymentMethod,
				OfferID:           req.OfferID,
				PhoneNumber:       &phone,
				BalanceAfterPaise: &w.BalancePaise,
			})
			return err
		}
		return nil
	})
	if err != nil {
		if walletFunded {
			switch {
			case errors.Is(err, wallet.ErrInsufficientBalance):
				return nil, s.recordFailure(ctx, u, txn, key, "insufficient balance", ErrInsufficientBalance)
			case errors.Is(err, wallet.ErrVersionConflict):
				return nil, s.recordFailure(ctx, u, txn, key, "wallet busy, try again", ErrConcurrentConflict)
			}
			return nil, s.recordFailure(ctx, u, txn, key, "purchase could not be committed", err)
		}
		// The gateway already took the money; keep the reservation and
		// the pending row for reconciliation.
		logger.Error("settled purchase not finalized", "txn_id", txn.ID, "error", err)
		return nil, fmt.Errorf("%w: purchase settled but not finalized", ErrStorageUnavailable)
	}

	s.completeQuietly(ctx, userID, key, txn.ID)

	s.referrals.OnPurchaseSuccess(ctx, userID)

	txn.Status = wallet.StatusSuccess
	txn.PaymentTxnID = reference
	txn.BalanceAfterPaise = balanceAfter

	metrics.RecordTransaction(wallet.ServicePlanPurchase, wallet.StatusSuccess)
	s.notifier.Enqueue(ctx, notify.Event{
		Type:        notify.EventTransactionSuccess,
		UserID:      userID,
		Email:       u.Email,
		Name:        u.Name,
		ServiceType: wallet.ServicePlanPurchase,
		AmountPaise: payable,
		PhoneNumber: phone,
		Detail:      plan.Name,
	})

	return &Result{
		Transaction:   txn,
		ActivePlan:    act,
		DiscountPaise: discountPaise,
		CashbackPaise: cashbackPaise,
	}, nil
}

func (s *service) loadActiveUser(ctx context.Context, userID int) (*user.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: account not found", ErrValidation)
		}
		return nil, err
	}
	if u.Status != user.StatusActive {
		return nil, fmt.Errorf("%w: account is %s", ErrValidation, u.Status)
	}
	return u, nil
}

func (s *service) settle(ctx context.Context, req payment.Request) (*payment.Result, error) {
	sctx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	defer cancel()

	res, err := s.gateway.Settle(sctx, req)
	if err != nil {
		metrics.RecordSettlement(req.Method, "unreachable")
		return nil, err
	}
	metrics.RecordSettlement(req.Method, string(res.Status))
	return res, nil
}

func (s *service) replay(ctx context.Context, d *idempotency.Decision) (*Result, error) {
	if d.TxnID == nil {
		return nil, ErrDuplicateRequest
	}
	txn, err := s.wallets.GetTransactionByID(ctx, *d.TxnID)
	if err != nil {
		return nil, err
	}
	return &Result{Transaction: txn, Replayed: true}, nil
}

// recordFailure closes out a terminal failure: the pending row is
// marked failed, the key is released so the client may retry, and the
// failure signals go out. Returns the error the caller should surface.
func (s *service) recordFailure(ctx context.Context, u *user.User, txn *wallet.Transaction, key, reason string, out error) error {
	if err := s.wallets.MarkTransactionFailed(ctx, s.db, txn.ID, reason); err != nil {
		logger.Error("failed to record transaction failure", "txn_id", txn.ID, "error", err)
	}
	s.releaseQuietly(ctx, u.ID, key)

	metrics.RecordTransaction(txn.ServiceType, wallet.StatusFailed)
	s.notifier.Enqueue(ctx, notify.Event{
		Type:        notify.EventTransactionFailed,
		UserID:      u.ID,
		Email:       u.Email,
		Name:        u.Name,
		ServiceType: txn.ServiceType,
		AmountPaise: txn.AmountPaise,
		PhoneNumber: derefStr(txn.PhoneNumber),
		Detail:      reason,
	})
	return out
}

func (s *service) releaseQuietly(ctx context.Context, userID int, key string) {
	if err := s.guard.Release(ctx, userID, key); err != nil {
		logger.Error("idempotency release failed", "user_id", userID, "key", key, "error", err)
	}
}

func (s *service) completeQuietly(ctx context.Context, userID int, key string, txnID int64) {
	if err := s.guard.Complete(ctx, userID, key, txnID); err != nil {
		logger.Error("idempotency complete failed", "user_id", userID, "key", key, "error", err)
	}
}

func strPtr(v string) *string { return &v }

func derefStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

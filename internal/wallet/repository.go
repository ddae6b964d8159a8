package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/saravananbs/genchargephase2/internal/metrics"
)

var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrVersionConflict     = errors.New("wallet version conflict")
	ErrTxnNotFound         = errors.New("transaction not found")
	ErrTxnNotPending       = errors.New("transaction is not pending")
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const walletColumns = `id, user_id, balance_paise, version, currency, created_at, updated_at`

func (r *repository) GetOrCreateWallet(ctx context.Context, userID int) (*Wallet, error) {
	var w Wallet
	err := r.db.GetContext(ctx, &w, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID)
	if err == nil {
		return &w, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	query := `
		INSERT INTO wallets (user_id, balance_paise, version, currency)
		VALUES ($1, 0, 0, $2)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING ` + walletColumns

	if err := r.db.GetContext(ctx, &w, query, userID, Currency); err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *repository) GetWalletByUserID(ctx context.Context, q sqlx.ExtContext, userID int) (*Wallet, error) {
	var w Wallet
	err := sqlx.GetContext(ctx, q, &w, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

// CompareAndSwapBalance writes the new balance only if nobody touched
// the wallet since it was read at oldVersion.
func (r *repository) CompareAndSwapBalance(ctx context.Context, q sqlx.ExtContext, walletID int, newBalancePaise int64, oldVersion int) error {
	if newBalancePaise < 0 {
		return ErrInsufficientBalance
	}

	res, err := q.ExecContext(ctx, `
		UPDATE wallets
		SET balance_paise = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3`,
		newBalancePaise, walletID, oldVersion)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// ApplyDelta moves the balance by deltaPaise under optimistic locking:
// read, check, compare-and-swap, re-read on conflict, at most
// maxRetries attempts. The wallet row must already exist.
func (r *repository) ApplyDelta(ctx context.Context, q sqlx.ExtContext, userID int, deltaPaise int64, maxRetries int) (*Wallet, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		w, err := r.GetWalletByUserID(ctx, q, userID)
		if err != nil {
			return nil, err
		}

		newBalance := w.BalancePaise + deltaPaise
		if newBalance < 0 {
			return nil, ErrInsufficientBalance
		}

		err = r.CompareAndSwapBalance(ctx, q, w.ID, newBalance, w.Version)
		if err == nil {
			w.BalancePaise = newBalance
			w.Version++
			return w, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		metrics.RecordWalletConflictRetry()
	}

	return nil, ErrVersionConflict
}

const txnColumns = `id, user_id, category, type, service_type, amount_paise, status, source, payment_method, payment_txn_id, idempotency_key, plan_id, offer_id, phone_number, failure_reason, balance_after_paise, created_at, updated_at`

func (r *repository) CreateTransaction(ctx context.Context, q sqlx.ExtContext, t *Transaction) (*Transaction, error) {
	query := `
		INSERT INTO transactions (user_id, category, type, service_type, amount_paise, status, source, payment_method, payment_txn_id, idempotency_key, plan_id, offer_id, phone_number, failure_reason, balance_after_paise)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING ` + txnColumns

	var created Transaction
	err := sqlx.GetContext(ctx, q, &created, query,
		t.UserID, t.Category, t.Type, t.ServiceType, t.AmountPaise, t.Status, t.Source, t.PaymentMethod,
		t.PaymentTxnID, t.IdempotencyKey, t.PlanID, t.OfferID, t.PhoneNumber, t.FailureReason, t.BalanceAfterPaise)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *repository) MarkTransactionSuccess(ctx context.Context, q sqlx.ExtContext, id int64, paymentTxnID *string, balanceAfter *int64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE transactions
		SET status = 'success', payment_txn_id = COALESCE($2, payment_txn_id), balance_after_paise = COALESCE($3, balance_after_paise), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`,
		id, paymentTxnID, balanceAfter)
	if err != nil {
		return err
	}
	return oneRowOr(res, ErrTxnNotPending)
}

func (r *repository) MarkTransactionFailed(ctx context.Context, q sqlx.ExtContext, id int64, reason string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE transactions
		SET status = 'failed', failure_reason = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`,
		id, reason)
	if err != nil {
		return err
	}
	return oneRowOr(res, ErrTxnNotPending)
}

func (r *repository) GetTransactionByID(ctx context.Context, id int64) (*Transaction, error) {
	var t Transaction
	err := r.db.GetContext(ctx, &t, `SELECT `+txnColumns+` FROM transactions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTxnNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *repository) ListTransactions(ctx context.Context, f TxnFilter) ([]Transaction, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.UserID != nil {
		add("user_id = $%d", *f.UserID)
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.Type != "" {
		add("type = $%d", f.Type)
	}
	if f.ServiceType != "" {
		add("service_type = $%d", f.ServiceType)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.PaymentMethod != "" {
		add("payment_method = $%d", f.PaymentMethod)
	}
	if f.PhoneNumber != "" {
		add("phone_number = $%d", f.PhoneNumber)
	}
	if f.MinAmount != nil {
		add("amount_paise >= $%d", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		add("amount_paise <= $%d", *f.MaxAmount)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM transactions WHERE " + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	sortBy := "created_at"
	if f.SortBy == "amount_paise" {
		sortBy = "amount_paise"
	}
	direction := "ASC"
	if f.SortDesc {
		direction = "DESC"
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	size := f.PageSize
	if size < 1 || size > 100 {
		size = 20
	}
	args = append(args, size, (page-1)*size)

	query := fmt.Sprintf("SELECT "+txnColumns+" FROM transactions WHERE %s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		whereClause, sortBy, direction, len(args)-1, len(args))

	txns := []Transaction{}
	if err := r.db.SelectContext(ctx, &txns, query, args...); err != nil {
		return nil, 0, err
	}

	return txns, total, nil
}

func (r *repository) CountSuccessByService(ctx context.Context, userID int, serviceType string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM transactions WHERE user_id = $1 AND service_type = $2 AND status = 'success'`,
		userID, serviceType)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Audit reconstructs the balance from successful wallet-category rows
// and compares it with the stored value.
func (r *repository) Audit(ctx context.Context, userID int) (*AuditReport, error) {
	w, err := r.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	var row struct {
		Sum   int64 `db:"ledger_sum"`
		Count int   `db:"txn_count"`
	}
	err = r.db.GetContext(ctx, &row, `
		SELECT COALESCE(SUM(CASE WHEN type = 'credit' THEN amount_paise ELSE -amount_paise END), 0) AS ledger_sum,
		       COUNT(*) AS txn_count
		FROM transactions
		WHERE user_id = $1 AND category = 'wallet' AND status = 'success'`,
		userID)
	if err != nil {
		return nil, err
	}

	return &AuditReport{
		UserID:            userID,
		BalancePaise:      w.BalancePaise,
		LedgerSumPaise:    row.Sum,
		Consistent:        w.BalancePaise == row.Sum,
		WalletTxnsCounted: row.Count,
	}, nil
}

func oneRowOr(res sql.Result, errIfNone error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errIfNone
	}
	return nil
}

package wallet

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Repository persists wallets and the transaction ledger. Methods that
// take an sqlx.ExtContext join whatever atomic unit the caller runs;
// pass the *sqlx.DB itself for standalone use.
type Repository interface {
	GetOrCreateWallet(ctx context.Context, userID int) (*Wallet, error)
	GetWalletByUserID(ctx context.Context, q sqlx.ExtContext, userID int) (*Wallet, error)
	CompareAndSwapBalance(ctx context.Context, q sqlx.ExtContext, walletID int, newBalancePaise int64, oldVersion int) error
	ApplyDelta(ctx context.Context, q sqlx.ExtContext, userID int, deltaPaise int64, maxRetries int) (*Wallet, error)

	CreateTransaction(ctx context.Context, q sqlx.ExtContext, t *Transaction) (*Transaction, error)
	MarkTransactionSuccess(ctx context.Context, q sqlx.ExtContext, id int64, paymentTxnID *string, balanceAfter *int64) error
	MarkTransactionFailed(ctx context.Context, q sqlx.ExtContext, id int64, reason string) error
	GetTransactionByID(ctx context.Context, id int64) (*Transaction, error)
	ListTransactions(ctx context.Context, f TxnFilter) ([]Transaction, int, error)
	CountSuccessByService(ctx context.Context, userID int, serviceType string) (int, error)
	Audit(ctx context.Context, userID int) (*AuditReport, error)
}

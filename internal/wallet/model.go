package wallet

import "time"

const (
	CategoryWallet  = "wallet"
	CategoryService = "service"

	TypeCredit = "credit"
	TypeDebit  = "debit"

	ServiceWalletTopUp    = "wallet_topup"
	ServicePlanPurchase   = "plan_purchase"
	ServiceAutopay        = "autopay"
	ServiceReferralReward = "referral_reward"
	ServiceOfferCashback  = "offer_cashback"

	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"

	SourceUser    = "user"
	SourceAutopay = "autopay"
	SourceAdmin   = "admin"
	SourceSystem  = "system"

	MethodUPI        = "upi"
	MethodCard       = "card"
	MethodNetBanking = "netbanking"
	MethodWallet     = "wallet"

	Currency = "INR"
)

type Wallet struct {
	ID           int       `db:"id" json:"id"`
	UserID       int       `db:"user_id" json:"user_id"`
	BalancePaise int64     `db:"balance_paise" json:"balance_paise"`
	Version      int       `db:"version" json:"version"`
	Currency     string    `db:"currency" json:"currency"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction is one immutable ledger row. Rows in category "wallet"
// moved the stored balance; the signed sum of a user's successful
// wallet rows always reconstructs the wallet balance. Externally
// settled purchases live in category "service" and leave the wallet
// untouched.
type Transaction struct {
	ID                int64     `db:"id" json:"id"`
	UserID            int       `db:"user_id" json:"user_id"`
	Category          string    `db:"category" json:"category"`
	Type              string    `db:"type" json:"type"`
	ServiceType       string    `db:"service_type" json:"service_type"`
	AmountPaise       int64     `db:"amount_paise" json:"amount_paise"`
	Status            string    `db:"status" json:"status"`
	Source            string    `db:"source" json:"source"`
	PaymentMethod     string    `db:"payment_method" json:"payment_method"`
	PaymentTxnID      *string   `db:"payment_txn_id" json:"payment_txn_id,omitempty"`
	IdempotencyKey    *string   `db:"idempotency_key" json:"idempotency_key,omitempty"`
	PlanID            *int      `db:"plan_id" json:"plan_id,omitempty"`
	OfferID           *int      `db:"offer_id" json:"offer_id,omitempty"`
	PhoneNumber       *string   `db:"phone_number" json:"phone_number,omitempty"`
	FailureReason     *string   `db:"failure_reason" json:"failure_reason,omitempty"`
	BalanceAfterPaise *int64    `db:"balance_after_paise" json:"balance_after_paise,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// SignedAmount is the ledger-relative delta: credits positive, debits negative.
func (t *Transaction) SignedAmount() int64 {
	if t.Type == TypeDebit {
		return -t.AmountPaise
	}
	return t.AmountPaise
}

type TxnFilter struct {
	UserID        *int
	Category      string
	Type          string
	ServiceType   string
	Status        string
	PaymentMethod string
	PhoneNumber   string
	MinAmount     *int64
	MaxAmount     *int64
	From          *time.Time
	To            *time.Time
	SortBy        string // created_at | amount_paise
	SortDesc      bool
	Page          int
	PageSize      int
}

// AuditReport compares the stored balance with what the success ledger
// rows reconstruct.
type AuditReport struct {
	UserID            int   `json:"user_id"`
	BalancePaise      int64 `json:"balance_paise"`
	LedgerSumPaise    int64 `json:"ledger_sum_paise"`
	Consistent        bool  `json:"consistent"`
	WalletTxnsCounted int   `json:"wallet_txns_counted"`
}

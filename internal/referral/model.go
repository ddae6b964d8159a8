package referral

import "time"

const (
	StatusPending = "pending"
	StatusClaimed = "claimed"
)

// Reward is one referral payout: at most one per referred user. It is
// created pending and flips to claimed once the referrer's wallet has
// actually been credited.
type Reward struct {
	ID          int        `db:"id" json:"id"`
	ReferrerID  int        `db:"referrer_id" json:"referrer_id"`
	ReferredID  int        `db:"referred_id" json:"referred_id"`
	AmountPaise int64      `db:"amount_paise" json:"amount_paise"`
	Status      string     `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ClaimedAt   *time.Time `db:"claimed_at" json:"claimed_at,omitempty"`
}

type Filter struct {
	ReferrerID *int
	Status     string
	Page       int
	PageSize   int
}

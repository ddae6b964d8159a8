package recharge

import (
	"github.com/saravananbs/genchargephase2/internal/subscription"
	"github.com/saravananbs/genchargephase2/internal/wallet"
)

type TopUpRequest struct {
	AmountPaise   int64  `json:"amount_paise" binding:"required,gt=0"`
	PaymentMethod string `json:"payment_method" binding:"required,oneof=upi card netbanking wallet"`
	// TargetPhone names the receiving account for wallet transfers.
	// Ignored for gateway methods.
	TargetPhone string `json:"target_phone" binding:"omitempty,len=10"`
}

type SubscribeRequest struct {
	PlanID        int    `json:"plan_id" binding:"required"`
	PhoneNumber   string `json:"phone_number" binding:"omitempty,len=10"`
	OfferID       *int   `json:"offer_id,omitempty"`
	PaymentMethod string `json:"payment_method" binding:"required,oneof=upi card netbanking wallet"`
}

// Result is what both operations hand back: the ledger row that
// recorded the money movement plus whatever the purchase activated.
// Replayed marks responses served from a completed idempotency key.
type Result struct {
	Transaction   *wallet.Transaction      `json:"transaction"`
	ActivePlan    *subscription.ActivePlan `json:"active_plan,omitempty"`
	DiscountPaise int64                    `json:"discount_paise,omitempty"`
	CashbackPaise int64                    `json:"cashback_paise,omitempty"`
	Replayed      bool                     `json:"replayed,omitempty"`
}

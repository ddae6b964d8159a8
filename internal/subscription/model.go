package subscription

import "time"

const (
	StatusActive  = "active"
	StatusExpired = "expired"
)

// ActivePlan is the plan currently serving a (user, phone) pair. At
// most one row per pair is active; activating a new plan expires the
// previous one in the same transaction.
type ActivePlan struct {
	ID          int       `db:"id" json:"id"`
	UserID      int       `db:"user_id" json:"user_id"`
	PlanID      int       `db:"plan_id" json:"plan_id"`
	PhoneNumber string    `db:"phone_number" json:"phone_number"`
	ValidFrom   time.Time `db:"valid_from" json:"valid_from"`
	ValidTo     time.Time `db:"valid_to" json:"valid_to"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

type ActivePlanDetail struct {
	ActivePlan
	PlanName   string `db:"plan_name" json:"plan_name"`
	PricePaise int64  `db:"price_paise" json:"price_paise"`
}

type Filter struct {
	UserID      *int
	PhoneNumber string
	Status      string
	Page        int
	PageSize    int
}

package autopay

import "time"

const (
	// TagOnetime entries disable themselves after one successful
	// charge; TagRegular entries roll forward by the plan validity.
	TagOnetime = "onetime"
	TagRegular = "regular"

	StatusEnabled  = "enabled"
	StatusDisabled = "disabled"

	RunSuccess = "success"
	RunFailure = "failure"
)

type Autopay struct {
	ID            int        `db:"id" json:"id"`
	UserID        int        `db:"user_id" json:"user_id"`
	PlanID        int        `db:"plan_id" json:"plan_id"`
	PhoneNumber   string     `db:"phone_number" json:"phone_number"`
	Tag           string     `db:"tag" json:"tag"`
	Status        string     `db:"status" json:"status"`
	NextDueDate   time.Time  `db:"next_due_date" json:"next_due_date"`
	LastRunStatus *string    `db:"last_run_status" json:"last_run_status,omitempty"`
	LastRunAt     *time.Time `db:"last_run_at" json:"last_run_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

type CreateRequest struct {
	PlanID      int       `json:"plan_id" binding:"required"`
	PhoneNumber string    `json:"phone_number" binding:"omitempty,len=10"`
	Tag         string    `json:"tag" binding:"required,oneof=onetime regular"`
	NextDueDate time.Time `json:"next_due_date" binding:"required"`
}

// UpdateRequest carries partial edits; nil fields are left as they
// are.
type UpdateRequest struct {
	PlanID      *int       `json:"plan_id,omitempty"`
	PhoneNumber *string    `json:"phone_number,omitempty" binding:"omitempty,len=10"`
	Tag         *string    `json:"tag,omitempty" binding:"omitempty,oneof=onetime regular"`
	Status      *string    `json:"status,omitempty" binding:"omitempty,oneof=enabled disabled"`
	NextDueDate *time.Time `json:"next_due_date,omitempty"`
}

type Filter struct {
	UserID      *int
	PhoneNumber string
	Tag         string
	Status      string
	Page        int
	PageSize    int
}

// RunUpdate is what a batch writes back onto an entry after
// attempting its charge.
type RunUpdate struct {
	Status  string
	At      time.Time
	NextDue *time.Time
	Disable bool
}

// RunResult is the per-entry outcome of one batch.
type RunResult struct {
	AutopayID int    `json:"autopay_id"`
	Status    string `json:"status"`
	TxnID     *int64 `json:"txn_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type BatchReport struct {
	StartedAt time.Time   `json:"started_at"`
	Processed int         `json:"processed"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Results   []RunResult `json:"results"`
}

package catalog

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"

	RewardDiscount = "discount"
	RewardCashback = "cashback"
)

type Plan struct {
	ID           int       `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	PricePaise   int64     `db:"price_paise" json:"price_paise"`
	ValidityDays *int      `db:"validity_days" json:"validity_days,omitempty"`
	PlanType     string    `db:"plan_type" json:"plan_type"`
	GroupName    *string   `db:"group_name" json:"group_name,omitempty"`
	Status       string    `db:"status" json:"status"`
	MostPopular  bool      `db:"most_popular" json:"most_popular"`
	Description  *string   `db:"description" json:"description,omitempty"`
	Criteria     Criteria  `db:"criteria" json:"criteria"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Validity returns the plan validity in days, falling back to the
// platform default for catalog rows that carry none.
func (p *Plan) Validity(defaultDays int) int {
	if p.ValidityDays != nil && *p.ValidityDays > 0 {
		return *p.ValidityDays
	}
	return defaultDays
}

func (p *Plan) Group() string {
	if p.GroupName == nil {
		return ""
	}
	return *p.GroupName
}

type Offer struct {
	ID          int       `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Status      string    `db:"status" json:"status"`
	Description *string   `db:"description" json:"description,omitempty"`
	Criteria    Criteria  `db:"criteria" json:"criteria"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Criteria is the JSONB payload attached to plans and offers: a set of
// eligibility conditions plus the rewards an offer grants.
type Criteria struct {
	Conditions *Conditions `json:"conditions,omitempty"`
	Rewards    []Reward    `json:"rewards,omitempty"`
}

type Conditions struct {
	ValidFrom         *time.Time `json:"valid_from,omitempty"`
	ValidTo           *time.Time `json:"valid_to,omitempty"`
	MinAmountPaise    *int64     `json:"min_amount_paise,omitempty"`
	UserType          *string    `json:"user_type,omitempty"`
	IsNewUser         *bool      `json:"is_new_user,omitempty"`
	ApplicableSources []string   `json:"applicable_sources,omitempty"`
	ValidPlanGroups   []string   `json:"valid_plan_groups,omitempty"`
}

type Reward struct {
	Type        string `json:"type"`
	IsFlat      bool   `json:"is_flat"`
	AmountPaise int64  `json:"amount_paise"`
}

func (c *Criteria) Scan(src interface{}) error {
	if src == nil {
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return errors.New("criteria: expected []byte from driver")
	}
	return json.Unmarshal(b, c)
}

func (c Criteria) Value() (driver.Value, error) {
	return json.Marshal(c)
}

type PlanFilter struct {
	PlanType    string
	GroupName   string
	MostPopular *bool
	Page        int
	PageSize    int
}

package catalog

import (
	"fmt"
	"time"
)

// EvalContext carries the facts a purchase is judged against.
type EvalContext struct {
	AmountPaise int64
	UserType    string
	IsNewUser   bool
	Source      string
	PlanGroup   string
	Now         time.Time
}

// Evaluate checks every configured condition against ctx and reports the
// first one that fails. A nil Conditions always passes.
func (c *Conditions) Evaluate(ctx EvalContext) error {
	if c == nil {
		return nil
	}

	if c.ValidFrom != nil && ctx.Now.Before(*c.ValidFrom) {
		return fmt.Errorf("not valid before %s", c.ValidFrom.Format(time.RFC3339))
	}
	if c.ValidTo != nil && ctx.Now.After(*c.ValidTo) {
		return fmt.Errorf("expired at %s", c.ValidTo.Format(time.RFC3339))
	}
	if c.MinAmountPaise != nil && ctx.AmountPaise < *c.MinAmountPaise {
		return fmt.Errorf("amount below minimum %d", *c.MinAmountPaise)
	}
	if c.UserType != nil && ctx.UserType != *c.UserType {
		return fmt.Errorf("restricted to %s users", *c.UserType)
	}
	if c.IsNewUser != nil && ctx.IsNewUser != *c.IsNewUser {
		if *c.IsNewUser {
			return fmt.Errorf("restricted to new users")
		}
		return fmt.Errorf("not available to new users")
	}
	if len(c.ApplicableSources) > 0 && !contains(c.ApplicableSources, ctx.Source) {
		return fmt.Errorf("not applicable for source %q", ctx.Source)
	}
	if len(c.ValidPlanGroups) > 0 && !contains(c.ValidPlanGroups, ctx.PlanGroup) {
		return fmt.Errorf("not applicable for plan group %q", ctx.PlanGroup)
	}

	return nil
}

// CalculateRewards totals the flat discount and cashback granted by the
// criteria. Non-flat entries are ignored.
func (c *Criteria) CalculateRewards() (discountPaise, cashbackPaise int64) {
	if c == nil {
		return 0, 0
	}
	for _, r := range c.Rewards {
		if !r.IsFlat {
			continue
		}
		switch r.Type {
		case RewardDiscount:
			discountPaise += r.AmountPaise
		case RewardCashback:
			cashbackPaise += r.AmountPaise
		}
	}
	return discountPaise, cashbackPaise
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

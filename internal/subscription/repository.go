package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

var ErrNoActivePlan = errors.New("no active plan")

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const activePlanColumns = `id, user_id, plan_id, phone_number, valid_from, valid_to, status, created_at, updated_at`

func (r *repository) Activate(ctx context.Context, q sqlx.ExtContext, p *ActivePlan) (*ActivePlan, error) {
	_, err := q.ExecContext(ctx, `
		UPDATE current_active_plans
		SET status = 'expired', updated_at = NOW()
		WHERE user_id = $1 AND phone_number = $2 AND status = 'active'`,
		p.UserID, p.PhoneNumber)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO current_active_plans (user_id, plan_id, phone_number, valid_from, valid_to, status)
		VALUES ($1, $2, $3, $4, $5, 'active')
		RETURNING ` + activePlanColumns

	var created ActivePlan
	err = sqlx.GetContext(ctx, q, &created, query,
		p.UserID, p.PlanID, p.PhoneNumber, p.ValidFrom, p.ValidTo)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

func (r *repository) GetActiveForPhone(ctx context.Context, userID int, phone string) (*ActivePlan, error) {
	var p ActivePlan
	err := r.db.GetContext(ctx, &p,
		`SELECT `+activePlanColumns+` FROM current_active_plans WHERE user_id = $1 AND phone_number = $2 AND status = 'active'`,
		userID, phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoActivePlan
		}
		return nil, err
	}
	return &p, nil
}

func (r *repository) List(ctx context.Context, f Filter) ([]ActivePlanDetail, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.UserID != nil {
		add("cap.user_id = $%d", *f.UserID)
	}
	if f.PhoneNumber != "" {
		add("cap.phone_number = $%d", f.PhoneNumber)
	}
	if f.Status != "" {
		add("cap.status = $%d", f.Status)
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM current_active_plans cap WHERE "+whereClause, args...); err != nil {
		return nil, 0, err
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

	query := fmt.Sprintf(`
		SELECT cap.id, cap.user_id, cap.plan_id, cap.phone_number, cap.valid_from, cap.valid_to, cap.status, cap.created_at, cap.updated_at,
		       p.name AS plan_name, p.price_paise
		FROM current_active_plans cap
		JOIN plans p ON p.id = cap.plan_id
		WHERE %s
		ORDER BY cap.valid_to DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, len(args)-1, len(args))

	plans := []ActivePlanDetail{}
	if err := r.db.SelectContext(ctx, &plans, query, args...); err != nil {
		return nil, 0, err
	}

	return plans, total, nil
}

// SweepExpired flips rows whose validity lapsed. Safe to run
// repeatedly; already-expired rows are untouched.
func (r *repository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE current_active_plans
		SET status = 'expired', updated_at = NOW()
		WHERE status = 'active' AND valid_to < $1`,
		now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

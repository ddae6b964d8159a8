package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

var (
	ErrPlanNotFound  = errors.New("plan not found")
	ErrOfferNotFound = errors.New("offer not found")
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const planColumns = `id, name, price_paise, validity_days, plan_type, group_name, status, most_popular, description, criteria, created_at`

func (r *repository) GetPlanByID(ctx context.Context, id int) (*Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`

	var p Plan
	err := r.db.GetContext(ctx, &p, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	return &p, nil
}

func (r *repository) GetActivePlanByID(ctx context.Context, id int) (*Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1 AND status = 'active'`

	var p Plan
	err := r.db.GetContext(ctx, &p, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	return &p, nil
}

func (r *repository) ListActivePlans(ctx context.Context, f PlanFilter) ([]Plan, error) {
	where := []string{"status = 'active'"}
	args := []interface{}{}

	if f.PlanType != "" {
		args = append(args, f.PlanType)
		where = append(where, fmt.Sprintf("plan_type = $%d", len(args)))
	}
	if f.GroupName != "" {
		args = append(args, f.GroupName)
		where = append(where, fmt.Sprintf("group_name = $%d", len(args)))
	}
	if f.MostPopular != nil {
		args = append(args, *f.MostPopular)
		where = append(where, fmt.Sprintf("most_popular = $%d", len(args)))
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

	query := fmt.Sprintf(`SELECT `+planColumns+` FROM plans WHERE %s ORDER BY most_popular DESC, price_paise ASC LIMIT $%d OFFSET $%d`,
		strings.Join(where, " AND "), len(args)-1, len(args))

	plans := []Plan{}
	if err := r.db.SelectContext(ctx, &plans, query, args...); err != nil {
		return nil, err
	}

	return plans, nil
}

const offerColumns = `id, name, status, description, criteria, created_at`

func (r *repository) GetOfferByID(ctx context.Context, id int) (*Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`

	var o Offer
	err := r.db.GetContext(ctx, &o, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}

	return &o, nil
}

func (r *repository) GetActiveOfferByID(ctx context.Context, id int) (*Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1 AND status = 'active'`

	var o Offer
	err := r.db.GetContext(ctx, &o, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}

	return &o, nil
}

func (r *repository) ListActiveOffers(ctx context.Context) ([]Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE status = 'active' ORDER BY created_at DESC`

	offers := []Offer{}
	if err := r.db.SelectContext(ctx, &offers, query); err != nil {
		return nil, err
	}

	return offers, nil
}

package autopay

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

var ErrAutopayNotFound = errors.New("autopay not found")

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const autopayColumns = `id, user_id, plan_id, phone_number, tag, status, next_due_date, last_run_status, last_run_at, created_at, updated_at`

func (r *repository) Create(ctx context.Context, a *Autopay) (*Autopay, error) {
	query := `
		INSERT INTO autopays (user_id, plan_id, phone_number, tag, status, next_due_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + autopayColumns

	var created Autopay
	err := r.db.GetContext(ctx, &created, query,
		a.UserID, a.PlanID, a.PhoneNumber, a.Tag, a.Status, a.NextDueDate)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*Autopay, error) {
	var a Autopay
	err := r.db.GetContext(ctx, &a,
		`SELECT `+autopayColumns+` FROM autopays WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAutopayNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *repository) Update(ctx context.Context, a *Autopay) (*Autopay, error) {
	query := `
		UPDATE autopays
		SET plan_id = $1, phone_number = $2, tag = $3, status = $4, next_due_date = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING ` + autopayColumns

	var updated Autopay
	err := r.db.GetContext(ctx, &updated, query,
		a.PlanID, a.PhoneNumber, a.Tag, a.Status, a.NextDueDate, a.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAutopayNotFound
		}
		return nil, err
	}
	return &updated, nil
}

func (r *repository) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM autopays WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAutopayNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, f Filter) ([]Autopay, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.UserID != nil {
		add("user_id = $%d", *f.UserID)
	}
	if f.PhoneNumber != "" {
		add("phone_number = $%d", f.PhoneNumber)
	}
	if f.Tag != "" {
		add("tag = $%d", f.Tag)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM autopays WHERE "+whereClause, args...); err != nil {
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

	query := fmt.Sprintf("SELECT "+autopayColumns+" FROM autopays WHERE %s ORDER BY next_due_date ASC LIMIT $%d OFFSET $%d",
		whereClause, len(args)-1, len(args))

	entries := []Autopay{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *repository) FindDue(ctx context.Context, now time.Time) ([]Autopay, error) {
	query := `
		SELECT ` + autopayColumns + `
		FROM autopays
		WHERE status = 'enabled' AND next_due_date <= $1
		ORDER BY next_due_date ASC`

	entries := []Autopay{}
	if err := r.db.SelectContext(ctx, &entries, query, now); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) RecordRun(ctx context.Context, id int, run RunUpdate) error {
	set := []string{}
	args := []interface{}{}

	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		set = append(set, fmt.Sprintf(clause, len(args)))
	}

	add("last_run_status = $%d", run.Status)
	add("last_run_at = $%d", run.At)
	if run.NextDue != nil {
		add("next_due_date = $%d", *run.NextDue)
	}
	if run.Disable {
		set = append(set, "status = 'disabled'")
	}
	set = append(set, "updated_at = NOW()")

	args = append(args, id)
	query := fmt.Sprintf("UPDATE autopays SET %s WHERE id = $%d",
		strings.Join(set, ", "), len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAutopayNotFound
	}
	return nil
}

package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/saravananbs/genchargephase2/internal/db"
)

var ErrUserNotFound = errors.New("user not found")

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const userColumns = `id, name, email, password_hash, role, phone_number, user_type, status, referral_code, referee_code, created_at`

func (r *repository) Create(ctx context.Context, u *User) (*User, error) {
	query := `
		INSERT INTO users (name, email, password_hash, role, phone_number, user_type, status, referral_code, referee_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + userColumns

	var created User
	err := r.db.GetContext(ctx, &created, query,
		u.Name, u.Email, u.PasswordHash, u.Role, u.PhoneNumber, u.UserType, u.Status, u.ReferralCode, u.RefereeCode)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *repository) FindByID(ctx context.Context, id int) (*User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *repository) FindByPhone(ctx context.Context, phone string) (*User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE phone_number = $1`, phone)
}

func (r *repository) FindByReferralCode(ctx context.Context, code string) (*User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE referral_code = $1`, code)
}

func (r *repository) findOne(ctx context.Context, query string, arg interface{}) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *repository) EmailExists(ctx context.Context, email string) (bool, error) {
	return db.Exists(ctx, r.db, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email)
}

func (r *repository) PhoneExists(ctx context.Context, phone string) (bool, error) {
	return db.Exists(ctx, r.db, `SELECT EXISTS(SELECT 1 FROM users WHERE phone_number = $1)`, phone)
}

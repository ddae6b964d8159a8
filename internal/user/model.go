package user

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	TypePrepaid  = "prepaid"
	TypePostpaid = "postpaid"

	StatusActive   = "active"
	StatusBlocked  = "blocked"
	StatusDeactive = "deactive"
)

type User struct {
	ID           int       `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	PhoneNumber  string    `db:"phone_number" json:"phone_number"`
	UserType     string    `db:"user_type" json:"user_type"`
	Status       string    `db:"status" json:"status"`
	ReferralCode string    `db:"referral_code" json:"referral_code"`
	RefereeCode  *string   `db:"referee_code" json:"referee_code,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// IsNew reports whether the account is younger than 30 days. Used by
// catalog criteria aimed at new customers.
func (u *User) IsNew(now time.Time) bool {
	return now.Sub(u.CreatedAt) < 30*24*time.Hour
}

type RegisterRequest struct {
	Name        string  `json:"name" binding:"required"`
	Email       string  `json:"email" binding:"required,email"`
	Password    string  `json:"password" binding:"required,min=8"`
	PhoneNumber string  `json:"phone_number" binding:"required,len=10"`
	UserType    string  `json:"user_type" binding:"omitempty,oneof=prepaid postpaid"`
	RefereeCode *string `json:"referee_code,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

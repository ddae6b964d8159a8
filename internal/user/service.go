package user

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/saravananbs/genchargephase2/internal/auth"
	"github.com/saravananbs/genchargephase2/internal/logger"
	"github.com/saravananbs/genchargephase2/internal/wallet"
)

var (
	ErrEmailExists        = errors.New("email already exists")
	ErrPhoneExists        = errors.New("phone number already exists")
	ErrInvalidRefereeCode = errors.New("referee code does not match any user")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, string, string, error)
	Login(ctx context.Context, req LoginRequest) (*User, string, string, error)
	GetByID(ctx context.Context, userID int) (*User, error)
	RefreshToken(ctx context.Context, refreshToken string) (string, *User, error)
}

type service struct {
	repo    Repository
	wallets wallet.Repository
	issuer  *auth.TokenIssuer
}

func NewService(repo Repository, wallets wallet.Repository, issuer *auth.TokenIssuer) Service {
	return &service{
		repo:    repo,
		wallets: wallets,
		issuer:  issuer,
	}
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*User, string, string, error) {
	exists, err := s.repo.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, "", "", err
	}
	if exists {
		return nil, "", "", ErrEmailExists
	}

	exists, err = s.repo.PhoneExists(ctx, req.PhoneNumber)
	if err != nil {
		return nil, "", "", err
	}
	if exists {
		return nil, "", "", ErrPhoneExists
	}

	if req.RefereeCode != nil && *req.RefereeCode != "" {
		if _, err := s.repo.FindByReferralCode(ctx, *req.RefereeCode); err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return nil, "", "", ErrInvalidRefereeCode
			}
			return nil, "", "", err
		}
	} else {
		req.RefereeCode = nil
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, "", "", err
	}

	userType := req.UserType
	if userType == "" {
		userType = TypePrepaid
	}

	created, err := s.repo.Create(ctx, &User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         RoleUser,
		PhoneNumber:  req.PhoneNumber,
		UserType:     userType,
		Status:       StatusActive,
		ReferralCode: NewReferralCode(),
		RefereeCode:  req.RefereeCode,
	})
	if err != nil {
		return nil, "", "", err
	}

	// Provision the wallet row up front. Every balance read goes through
	// GetOrCreateWallet anyway, so a failure here only delays creation.
	if s.wallets != nil {
		if _, err := s.wallets.GetOrCreateWallet(ctx, created.ID); err != nil {
			logger.Error("wallet provisioning at registration failed", "user_id", created.ID, "error", err)
		}
	}

	accessToken, refreshToken, err := s.issuer.IssuePair(created.ID, created.Email, created.Role)
	if err != nil {
		return nil, "", "", err
	}

	return created, accessToken, refreshToken, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*User, string, string, error) {
	u, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, "", "", ErrInvalidCredentials
	}

	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		return nil, "", "", ErrInvalidCredentials
	}

	accessToken, refreshToken, err := s.issuer.IssuePair(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, "", "", err
	}

	return u, accessToken, refreshToken, nil
}

func (s *service) GetByID(ctx context.Context, userID int) (*User, error) {
	return s.repo.FindByID(ctx, userID)
}

func (s *service) RefreshToken(ctx context.Context, refreshToken string) (string, *User, error) {
	claims, err := s.issuer.ValidateRefresh(refreshToken)
	if err != nil {
		return "", nil, err
	}

	// Re-read the account: a token minted before a role change or a
	// block must not refresh into stale or revoked access.
	u, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		return "", nil, ErrUserNotFound
	}
	if u.Status != StatusActive {
		return "", nil, ErrInvalidCredentials
	}

	newAccessToken, err := s.issuer.IssueAccess(u.ID, u.Email, u.Role)
	if err != nil {
		return "", nil, err
	}

	return newAccessToken, u, nil
}

// NewReferralCode returns a short shareable code, e.g. "GC7F3A21BC".
func NewReferralCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "GC" + strings.ToUpper(raw[:8])
}

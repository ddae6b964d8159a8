package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	jwtIssuer   = "gencharge-api"
	jwtAudience = "gencharge-users"

	useAccess  = "access"
	useRefresh = "refresh"
)

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrInvalidToken   = errors.New("invalid token")
	ErrWrongTokenUse  = errors.New("token not valid for this use")
	ErrEmptyJWTSecret = errors.New("jwt secret cannot be empty")
)

// Claims is the payload carried by both access and refresh tokens.
// TokenUse distinguishes them so a long-lived refresh token can never
// authenticate an API call.
type Claims struct {
	UserID   int    `json:"user_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	TokenUse string `json:"token_use"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates the HS256 access/refresh pair. One
// instance is built from config at boot and shared by the login flow
// and the request middleware.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, ErrEmptyJWTSecret
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// IssuePair returns a fresh access/refresh token pair for the user.
func (ti *TokenIssuer) IssuePair(userID int, email, role string) (access, refresh string, err error) {
	access, err = ti.sign(userID, email, role, useAccess, ti.accessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err = ti.sign(userID, email, role, useRefresh, ti.refreshTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (ti *TokenIssuer) IssueAccess(userID int, email, role string) (string, error) {
	return ti.sign(userID, email, role, useAccess, ti.accessTTL)
}

func (ti *TokenIssuer) sign(userID int, email, role, use string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID:   userID,
		Email:    email,
		Role:     role,
		TokenUse: use,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    jwtIssuer,
			Audience:  []string{jwtAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	return token.SignedString(ti.secret)
}

// ValidateAccess parses and verifies a bearer token presented on an API
// request. Refresh tokens are rejected with ErrWrongTokenUse.
func (ti *TokenIssuer) ValidateAccess(tokenString string) (*Claims, error) {
	return ti.validate(tokenString, useAccess)
}

// ValidateRefresh verifies a token presented to the refresh endpoint.
func (ti *TokenIssuer) ValidateRefresh(tokenString string) (*Claims, error) {
	return ti.validate(tokenString, useRefresh)
}

func (ti *TokenIssuer) validate(tokenString, use string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return ti.secret, nil
		},
		jwt.WithIssuer(jwtIssuer),
		jwt.WithAudience(jwtAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenUse != use {
		return nil, ErrWrongTokenUse
	}
	return claims, nil
}

func HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func CheckPassword(hashedPassword, plainPassword string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword)) == nil
}

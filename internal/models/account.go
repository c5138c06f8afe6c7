package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccountKind distinguishes teacher and student logins.
type AccountKind string

const (
	AccountTeacher AccountKind = "teacher"
	AccountStudent AccountKind = "student"
)

// Account is the login identity. Profiles are re-resolved per semester by email.
type Account struct {
	ID           string      `db:"id" json:"id"`
	Email        string      `db:"email" json:"email"`
	PasswordHash string      `db:"password_hash" json:"-"`
	Kind         AccountKind `db:"kind" json:"kind"`
	Active       bool        `db:"active" json:"active"`
	LastLogin    *time.Time  `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// LoginRequest holds credentials for authenticating an account.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and account info.
type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   int64       `json:"expires_in"`
	AccountID   string      `json:"account_id"`
	Email       string      `json:"email"`
	Kind        AccountKind `json:"kind"`
	IssuedAt    time.Time   `json:"issued_at"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	AccountID string      `json:"account_id"`
	Email     string      `json:"email"`
	Kind      AccountKind `json:"kind"`
	jwt.RegisteredClaims
}

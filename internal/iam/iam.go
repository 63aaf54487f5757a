// Package iam is the identity collaborator: it owns credentials, access and
// refresh tokens, and email verification codes. The rest of the application
// consumes only its method results and the closed error set below; provider
// errors never cross the session boundary untranslated.
package iam

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// AuthType identifies how an identity authenticates.
type AuthType string

const (
	AuthTypeEmail  AuthType = "email"
	AuthTypeGoogle AuthType = "google"
)

// The provider error taxonomy. Every method of AuthService fails with one of
// these (or an unclassified error for infrastructure failures, which callers
// must treat as internal).
var (
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrEmailNotVerified        = errors.New("email not verified")
	ErrEmailConflict           = errors.New("email already registered")
	ErrWeakPassword            = errors.New("weak password")
	ErrInvalidOAuthToken       = errors.New("invalid oauth token")
	ErrOAuthEmailNotVerified   = errors.New("oauth email not verified")
	ErrAuthTypeMismatch        = errors.New("auth type mismatch")
	ErrTokenExpired            = errors.New("token expired")
	ErrTokenNotFound           = errors.New("token not found")
	ErrTokenRevoked            = errors.New("token revoked")
	ErrTokenReuseDetected      = errors.New("refresh token reuse detected")
	ErrInvalidVerificationCode = errors.New("invalid verification code")
	ErrVerificationCodeExpired = errors.New("verification code expired")
	ErrAccountNotFound         = errors.New("account not found")
	ErrEmailAlreadyVerified    = errors.New("email already verified")
)

// Identity is an identity record as exposed to consumers. PasswordHash never
// leaves this package in API responses.
type Identity struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	AuthType      AuthType  `json:"auth_type"`
	EmailVerified bool      `json:"email_verified"`
	PasswordHash  string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TokenPair is an access/refresh token pair with expiries.
type TokenPair struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
}

// LoginResult bundles the authenticated identity with its issued tokens.
type LoginResult struct {
	Identity *Identity
	Tokens   TokenPair
}

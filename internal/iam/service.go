package iam

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/auroralabs/aurora-backend/internal/email"
)

// Config carries the identity-service knobs: token lifetimes, verification
// code shape, and the service name stamped into tokens and emails. Built once
// at process start from the loaded configuration.
type Config struct {
	ServiceName    string
	TokenSecret    string
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	CodeTTL        time.Duration
	CodeLength     int
	MinPasswordLen int
}

// identityRepo is the storage interface consumed by AuthService.
type identityRepo interface {
	CreateIdentity(ctx context.Context, ident *Identity) error
	GetIdentityByEmail(ctx context.Context, email string) (*Identity, error)
	GetIdentityByID(ctx context.Context, id uuid.UUID) (*Identity, error)
	SetEmailVerified(ctx context.Context, id uuid.UUID) error
	SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	SoftDeleteIdentity(ctx context.Context, id uuid.UUID) error
	CreateRefreshToken(ctx context.Context, rt *RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, hash string) (*RefreshToken, error)
	MarkRefreshTokenRotated(ctx context.Context, id, replacedBy uuid.UUID) error
	RevokeRefreshTokensForIdentity(ctx context.Context, identityID uuid.UUID) error
	CreateVerificationCode(ctx context.Context, vc *VerificationCode) error
	GetActiveVerificationCode(ctx context.Context, identityID uuid.UUID) (*VerificationCode, error)
	MarkVerificationCodeUsed(ctx context.Context, id uuid.UUID) error
	RevokeAccessToken(ctx context.Context, jti uuid.UUID, expiresAt time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti uuid.UUID) (bool, error)
}

// googleTokenVerifier validates a Google ID token.
type googleTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*GoogleClaims, error)
}

// AuthService implements the identity capability surface: registration,
// login, token lifecycle, email verification, and account deletion.
type AuthService struct {
	repo   identityRepo
	mailer email.Sender
	google googleTokenVerifier
	tokens *tokenIssuer
	cfg    Config
	logger *zap.Logger
}

// NewAuthService creates an AuthService. When cfg.TokenSecret is empty a
// random per-process secret is generated; tokens then do not survive a
// restart, which is acceptable only in development.
func NewAuthService(repo identityRepo, mailer email.Sender, google googleTokenVerifier, cfg Config, logger *zap.Logger) *AuthService {
	secret := []byte(cfg.TokenSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			panic(fmt.Sprintf("iam: generate token secret: %v", err))
		}
		logger.Warn("iam.token_secret not set, using a random per-process secret; issued tokens will not survive a restart")
	}
	if cfg.MinPasswordLen <= 0 {
		cfg.MinPasswordLen = 8
	}
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = 6
	}
	return &AuthService{
		repo:   repo,
		mailer: mailer,
		google: google,
		tokens: newTokenIssuer(secret, cfg.ServiceName, cfg.AccessTTL),
		cfg:    cfg,
		logger: logger,
	}
}

// Register creates a new email/password identity and sends a verification
// code. The identity cannot log in until the email is verified.
func (s *AuthService) Register(ctx context.Context, emailAddr, password string) (*Identity, error) {
	if err := s.checkPasswordPolicy(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	ident := &Identity{
		Email:        emailAddr,
		PasswordHash: string(hash),
		AuthType:     AuthTypeEmail,
	}
	if err := s.repo.CreateIdentity(ctx, ident); err != nil {
		return nil, err
	}

	if err := s.sendVerificationCode(ctx, ident); err != nil {
		// Non-fatal: the caller can request a resend.
		s.logger.Warn("send verification code after register",
			zap.String("identity_id", ident.ID.String()),
			zap.Error(err),
		)
	}
	return ident, nil
}

// Login authenticates a credential according to authType and issues a token
// pair. For AuthTypeEmail the credential is the password; for AuthTypeGoogle
// it is a Google ID token and the email argument is ignored.
func (s *AuthService) Login(ctx context.Context, emailAddr, credential string, authType AuthType) (*LoginResult, error) {
	switch authType {
	case AuthTypeEmail:
		return s.loginPassword(ctx, emailAddr, credential)
	case AuthTypeGoogle:
		return s.loginGoogle(ctx, credential)
	default:
		return nil, fmt.Errorf("unsupported auth type %q", authType)
	}
}

func (s *AuthService) loginPassword(ctx context.Context, emailAddr, password string) (*LoginResult, error) {
	ident, err := s.repo.GetIdentityByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if ident.AuthType != AuthTypeEmail {
		return nil, ErrAuthTypeMismatch
	}
	if bcrypt.CompareHashAndPassword([]byte(ident.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !ident.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	return s.issuePair(ctx, ident)
}

func (s *AuthService) loginGoogle(ctx context.Context, idToken string) (*LoginResult, error) {
	claims, err := s.google.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}

	ident, err := s.repo.GetIdentityByEmail(ctx, claims.Email)
	switch {
	case err == nil:
		if ident.AuthType != AuthTypeGoogle {
			return nil, ErrAuthTypeMismatch
		}
	case errors.Is(err, ErrAccountNotFound):
		// First Google sign-in for this email: provision the identity.
		// Google already verified the address.
		ident = &Identity{
			Email:         claims.Email,
			AuthType:      AuthTypeGoogle,
			EmailVerified: true,
		}
		if createErr := s.repo.CreateIdentity(ctx, ident); createErr != nil {
			if errors.Is(createErr, ErrEmailConflict) {
				// Lost a race with a concurrent first sign-in; use the winner's row.
				ident, err = s.repo.GetIdentityByEmail(ctx, claims.Email)
				if err != nil {
					return nil, err
				}
				if ident.AuthType != AuthTypeGoogle {
					return nil, ErrAuthTypeMismatch
				}
			} else {
				return nil, createErr
			}
		}
	default:
		return nil, err
	}

	return s.issuePair(ctx, ident)
}

// Refresh rotates a refresh token: the presented token is retired and a new
// pair is issued. Presenting an already-rotated token is treated as theft and
// revokes every session of the identity.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	rt, err := s.repo.GetRefreshTokenByHash(ctx, hashToken(refreshToken))
	if err != nil {
		return nil, err
	}
	if rt.RevokedAt != nil {
		return nil, ErrTokenRevoked
	}
	if rt.ReplacedBy != nil {
		s.logger.Warn("refresh token reuse detected, revoking all sessions",
			zap.String("identity_id", rt.IdentityID.String()),
		)
		if revokeErr := s.repo.RevokeRefreshTokensForIdentity(ctx, rt.IdentityID); revokeErr != nil {
			s.logger.Error("revoke sessions after reuse detection",
				zap.String("identity_id", rt.IdentityID.String()),
				zap.Error(revokeErr),
			)
		}
		return nil, ErrTokenReuseDetected
	}
	if time.Now().After(rt.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	ident, err := s.repo.GetIdentityByID(ctx, rt.IdentityID)
	if err != nil {
		return nil, err
	}

	result, err := s.issuePair(ctx, ident)
	if err != nil {
		return nil, err
	}
	newID, err := s.lookupTokenID(ctx, result.Tokens.RefreshToken)
	if err != nil {
		return nil, err
	}
	if err := s.repo.MarkRefreshTokenRotated(ctx, rt.ID, newID); err != nil {
		return nil, fmt.Errorf("mark refresh token rotated: %w", err)
	}
	return result, nil
}

// Logout revokes the access token and every refresh token of its identity.
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.tokens.verify(accessToken)
	if err != nil {
		return err
	}
	identityID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ErrTokenNotFound
	}
	jti, err := uuid.Parse(claims.ID)
	if err != nil {
		return ErrTokenNotFound
	}
	if err := s.repo.RevokeAccessToken(ctx, jti, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	if err := s.repo.RevokeRefreshTokensForIdentity(ctx, identityID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}

// Authenticate validates an access token and returns its live identity.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*Identity, error) {
	claims, err := s.tokens.verify(accessToken)
	if err != nil {
		return nil, err
	}
	jti, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, ErrTokenNotFound
	}
	revoked, err := s.repo.IsAccessTokenRevoked(ctx, jti)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	identityID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrTokenNotFound
	}
	return s.repo.GetIdentityByID(ctx, identityID)
}

// VerifyEmail consumes a verification code and marks the email verified.
func (s *AuthService) VerifyEmail(ctx context.Context, identityID uuid.UUID, code string) error {
	vc, err := s.repo.GetActiveVerificationCode(ctx, identityID)
	if err != nil {
		return err
	}
	if time.Now().After(vc.ExpiresAt) {
		return ErrVerificationCodeExpired
	}
	if vc.Code != code {
		return ErrInvalidVerificationCode
	}
	if err := s.repo.MarkVerificationCodeUsed(ctx, vc.ID); err != nil {
		return fmt.Errorf("mark code used: %w", err)
	}
	if err := s.repo.SetEmailVerified(ctx, identityID); err != nil {
		return fmt.Errorf("set email verified: %w", err)
	}
	return nil
}

// ResendVerification issues a fresh code for an unverified identity.
func (s *AuthService) ResendVerification(ctx context.Context, emailAddr string) error {
	ident, err := s.repo.GetIdentityByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}
	if ident.EmailVerified {
		return ErrEmailAlreadyVerified
	}
	return s.sendVerificationCode(ctx, ident)
}

// ChangePassword verifies the current password, applies the new one, and
// revokes existing refresh tokens so stolen sessions die with the old
// password.
func (s *AuthService) ChangePassword(ctx context.Context, identityID uuid.UUID, oldPassword, newPassword string) error {
	ident, err := s.repo.GetIdentityByID(ctx, identityID)
	if err != nil {
		return err
	}
	if ident.AuthType != AuthTypeEmail {
		return ErrAuthTypeMismatch
	}
	if bcrypt.CompareHashAndPassword([]byte(ident.PasswordHash), []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}
	if err := s.checkPasswordPolicy(newPassword); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.SetPasswordHash(ctx, identityID, string(hash)); err != nil {
		return err
	}
	if err := s.repo.RevokeRefreshTokensForIdentity(ctx, identityID); err != nil {
		s.logger.Warn("revoke refresh tokens after password change",
			zap.String("identity_id", identityID.String()),
			zap.Error(err),
		)
	}
	return nil
}

// DeleteIdentity soft-deletes an identity after re-verifying the password.
// Google identities have no password; for them the confirmation is skipped.
func (s *AuthService) DeleteIdentity(ctx context.Context, identityID uuid.UUID, password string) error {
	ident, err := s.repo.GetIdentityByID(ctx, identityID)
	if err != nil {
		return err
	}
	if ident.PasswordHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(ident.PasswordHash), []byte(password)) != nil {
			return ErrInvalidCredentials
		}
	}
	if err := s.repo.SoftDeleteIdentity(ctx, identityID); err != nil {
		return err
	}
	if err := s.repo.RevokeRefreshTokensForIdentity(ctx, identityID); err != nil {
		s.logger.Warn("revoke refresh tokens after deletion",
			zap.String("identity_id", identityID.String()),
			zap.Error(err),
		)
	}
	return nil
}

// GetIdentity returns the live identity with the given id.
func (s *AuthService) GetIdentity(ctx context.Context, identityID uuid.UUID) (*Identity, error) {
	return s.repo.GetIdentityByID(ctx, identityID)
}

// issuePair issues an access token and a fresh refresh token for ident.
func (s *AuthService) issuePair(ctx context.Context, ident *Identity) (*LoginResult, error) {
	access, _, accessExpiry, err := s.tokens.issue(ident)
	if err != nil {
		return nil, err
	}

	raw, err := randomToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	refreshExpiry := time.Now().UTC().Add(s.cfg.RefreshTTL)
	rt := &RefreshToken{
		IdentityID: ident.ID,
		TokenHash:  hashToken(raw),
		ExpiresAt:  refreshExpiry,
	}
	if err := s.repo.CreateRefreshToken(ctx, rt); err != nil {
		return nil, err
	}

	return &LoginResult{
		Identity: ident,
		Tokens: TokenPair{
			AccessToken:           access,
			RefreshToken:          raw,
			AccessTokenExpiresAt:  accessExpiry,
			RefreshTokenExpiresAt: refreshExpiry,
		},
	}, nil
}

// lookupTokenID re-reads the stored record of a freshly issued refresh token
// so rotation can link the old record to its replacement.
func (s *AuthService) lookupTokenID(ctx context.Context, raw string) (uuid.UUID, error) {
	rt, err := s.repo.GetRefreshTokenByHash(ctx, hashToken(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("look up issued refresh token: %w", err)
	}
	return rt.ID, nil
}

func (s *AuthService) sendVerificationCode(ctx context.Context, ident *Identity) error {
	code, err := randomDigits(s.cfg.CodeLength)
	if err != nil {
		return fmt.Errorf("generate verification code: %w", err)
	}
	vc := &VerificationCode{
		IdentityID: ident.ID,
		Code:       code,
		ExpiresAt:  time.Now().UTC().Add(s.cfg.CodeTTL),
	}
	if err := s.repo.CreateVerificationCode(ctx, vc); err != nil {
		return err
	}
	ttlHours := int(s.cfg.CodeTTL.Hours())
	if ttlHours < 1 {
		ttlHours = 1
	}
	return email.SendVerificationCode(ctx, s.mailer, ident.Email, code, s.cfg.ServiceName, ttlHours)
}

// checkPasswordPolicy enforces the minimum length and a letter+digit mix.
func (s *AuthService) checkPasswordPolicy(password string) error {
	if len(password) < s.cfg.MinPasswordLen {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, s.cfg.MinPasswordLen)
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return fmt.Errorf("%w: must contain both letters and digits", ErrWeakPassword)
	}
	return nil
}

// randomToken returns a hex-encoded random token of n bytes.
func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// randomDigits returns a string of n uniformly random decimal digits.
func randomDigits(n int) (string, error) {
	digits := make([]byte, n)
	for i := range digits {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + v.Int64())
	}
	return string(digits), nil
}

// hashToken returns the hex SHA-256 of a raw token.
func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/auroralabs/aurora-backend/internal/accounts"
	"github.com/auroralabs/aurora-backend/internal/apperror"
	"github.com/auroralabs/aurora-backend/internal/iam"
	"github.com/auroralabs/aurora-backend/internal/notifications"
)

// identitySvc is the identity-service surface consumed by the orchestrator.
type identitySvc interface {
	Register(ctx context.Context, email, password string) (*iam.Identity, error)
	Login(ctx context.Context, email, credential string, authType iam.AuthType) (*iam.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*iam.LoginResult, error)
	Logout(ctx context.Context, accessToken string) error
	Authenticate(ctx context.Context, accessToken string) (*iam.Identity, error)
	VerifyEmail(ctx context.Context, identityID uuid.UUID, code string) error
	ResendVerification(ctx context.Context, email string) error
	ChangePassword(ctx context.Context, identityID uuid.UUID, oldPassword, newPassword string) error
	DeleteIdentity(ctx context.Context, identityID uuid.UUID, password string) error
}

// accountBridge is the account surface consumed by the orchestrator.
type accountBridge interface {
	Create(ctx context.Context, externalID uuid.UUID, displayName string) (*accounts.Account, error)
	GetByExternalID(ctx context.Context, externalID uuid.UUID) (*accounts.Account, error)
	GetOrCreate(ctx context.Context, externalID uuid.UUID, displayName string) (*accounts.Account, error)
	UpdateSettings(ctx context.Context, id uuid.UUID, upd accounts.SettingsUpdate) (*accounts.Account, error)
	Delete(ctx context.Context, externalID uuid.UUID) error
}

// notificationStore is the notification surface consumed by the orchestrator.
type notificationStore interface {
	Create(ctx context.Context, accountID uuid.UUID, level notifications.Level, message string) (*notifications.Notification, error)
	PurgeAccount(ctx context.Context, accountID uuid.UUID) error
}

// AccountInfo is the account projection returned to clients.
type AccountInfo struct {
	ID                 uuid.UUID `json:"id"`
	ExternalIdentityID uuid.UUID `json:"external_identity_id"`
	Email              string    `json:"email"`
	DisplayName        string    `json:"display_name"`
	AvatarURL          *string   `json:"avatar_url,omitempty"`
	Username           *string   `json:"username,omitempty"`
	AuthType           string    `json:"auth_type"`
}

// AuthResponse is the successful login/refresh payload.
type AuthResponse struct {
	Account               AccountInfo `json:"account"`
	AccessToken           string      `json:"access_token"`
	RefreshToken          string      `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time   `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time   `json:"refresh_token_expires_at"`
}

// SignupResponse acknowledges a registration. No tokens are issued until the
// email is verified.
type SignupResponse struct {
	AccountID uuid.UUID `json:"account_id"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
}

// Session identifies the authenticated caller of a protected operation.
type Session struct {
	Identity *iam.Identity
	Account  *accounts.Account
}

// Orchestrator drives each authentication-adjacent operation: identity
// service first, then the local account bridge, then best-effort
// notifications. It never touches local state before the identity call
// succeeds.
type Orchestrator struct {
	identity   identitySvc
	bridge     accountBridge
	store      notificationStore
	translator *Translator
	logger     *zap.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(identity identitySvc, bridge accountBridge, store notificationStore, translator *Translator, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		identity:   identity,
		bridge:     bridge,
		store:      store,
		translator: translator,
		logger:     logger,
	}
}

// Signup registers a new identity and creates its local account. Tokens are
// not issued; the email must be verified first.
func (o *Orchestrator) Signup(ctx context.Context, email, password string) (*SignupResponse, error) {
	ident, err := o.identity.Register(ctx, email, password)
	if err != nil {
		return nil, o.translator.Translate("signup", err)
	}

	if _, err := o.bridge.Create(ctx, ident.ID, ident.Email); err != nil {
		// The identity exists upstream but has no local account. There is no
		// compensating rollback; log for manual reconciliation.
		o.logger.Error("orphaned identity: account create failed after registration",
			zap.String("external_identity_id", ident.ID.String()),
			zap.String("email", ident.Email),
			zap.Error(err),
		)
		return nil, apperror.Internal("account creation failed", err)
	}

	return &SignupResponse{
		AccountID: ident.ID,
		Email:     ident.Email,
		Message:   "registration successful, check your email for a verification code",
	}, nil
}

// Login authenticates an email/password pair and completes the session.
func (o *Orchestrator) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	result, err := o.identity.Login(ctx, email, password, iam.AuthTypeEmail)
	if err != nil {
		return nil, o.translator.Translate("login", err)
	}
	return o.completeSignIn(ctx, result)
}

// GoogleLogin authenticates a Google ID token and completes the session,
// materializing the local account on first sign-in.
func (o *Orchestrator) GoogleLogin(ctx context.Context, idToken string) (*AuthResponse, error) {
	result, err := o.identity.Login(ctx, "", idToken, iam.AuthTypeGoogle)
	if err != nil {
		return nil, o.translator.Translate("google_login", err)
	}
	return o.completeSignIn(ctx, result)
}

// Refresh exchanges a refresh token for a new token pair. Unlike login it
// never creates the local account; a valid provider token without a local
// row is a data-inconsistency signal and maps to NotFound.
func (o *Orchestrator) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	result, err := o.identity.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, o.translator.Translate("refresh", err)
	}

	acct, err := o.bridge.GetByExternalID(ctx, result.Identity.ID)
	if err != nil {
		o.logger.Warn("refresh for identity without local account",
			zap.String("external_identity_id", result.Identity.ID.String()),
			zap.Error(err),
		)
		return nil, o.translator.Translate("refresh", err)
	}
	return assembleAuthResponse(result, acct), nil
}

// Logout revokes the caller's tokens.
func (o *Orchestrator) Logout(ctx context.Context, accessToken string) error {
	if err := o.identity.Logout(ctx, accessToken); err != nil {
		return o.translator.Translate("logout", err)
	}
	return nil
}

// Authenticate resolves an access token to the caller's session. Used by the
// HTTP middleware for protected routes.
func (o *Orchestrator) Authenticate(ctx context.Context, accessToken string) (*Session, error) {
	ident, err := o.identity.Authenticate(ctx, accessToken)
	if err != nil {
		return nil, o.translator.Translate("authenticate", err)
	}
	acct, err := o.bridge.GetOrCreate(ctx, ident.ID, ident.Email)
	if err != nil {
		return nil, o.translator.Translate("authenticate", err)
	}
	return &Session{Identity: ident, Account: acct}, nil
}

// VerifyEmail consumes a verification code for the given identity.
func (o *Orchestrator) VerifyEmail(ctx context.Context, identityID uuid.UUID, code string) error {
	if err := o.identity.VerifyEmail(ctx, identityID, code); err != nil {
		return o.translator.Translate("verify_email", err)
	}
	return nil
}

// ResendVerification sends a fresh verification code.
func (o *Orchestrator) ResendVerification(ctx context.Context, email string) error {
	if err := o.identity.ResendVerification(ctx, email); err != nil {
		return o.translator.Translate("resend_verification", err)
	}
	return nil
}

// ChangePassword rotates the caller's password.
func (o *Orchestrator) ChangePassword(ctx context.Context, sess *Session, oldPassword, newPassword string) error {
	if err := o.identity.ChangePassword(ctx, sess.Identity.ID, oldPassword, newPassword); err != nil {
		return o.translator.Translate("change_password", err)
	}
	return nil
}

// DeleteAccount removes the identity upstream and the local account with its
// notifications. The identity call goes first; if the local cleanup fails
// the orphaned rows are logged for reconciliation.
func (o *Orchestrator) DeleteAccount(ctx context.Context, sess *Session, password string) error {
	if err := o.identity.DeleteIdentity(ctx, sess.Identity.ID, password); err != nil {
		return o.translator.Translate("delete_account", err)
	}

	if err := o.store.PurgeAccount(ctx, sess.Account.ID); err != nil {
		o.logger.Error("orphaned notifications: purge failed after identity deletion",
			zap.String("account_id", sess.Account.ID.String()),
			zap.Error(err),
		)
	}
	if err := o.bridge.Delete(ctx, sess.Identity.ID); err != nil {
		o.logger.Error("orphaned account: delete failed after identity deletion",
			zap.String("external_identity_id", sess.Identity.ID.String()),
			zap.Error(err),
		)
		return apperror.Internal("account cleanup failed", err)
	}
	return nil
}

// UpdateSettings applies a partial settings update to the caller's account.
func (o *Orchestrator) UpdateSettings(ctx context.Context, sess *Session, upd accounts.SettingsUpdate) (*AccountInfo, error) {
	acct, err := o.bridge.UpdateSettings(ctx, sess.Account.ID, upd)
	if err != nil {
		return nil, o.translator.Translate("update_settings", err)
	}
	info := newAccountInfo(acct, sess.Identity)
	return &info, nil
}

// CurrentAccount assembles the caller's AccountInfo.
func (o *Orchestrator) CurrentAccount(sess *Session) AccountInfo {
	return newAccountInfo(sess.Account, sess.Identity)
}

// completeSignIn materializes the local account for a successful identity
// login and files a best-effort sign-in notification.
func (o *Orchestrator) completeSignIn(ctx context.Context, result *iam.LoginResult) (*AuthResponse, error) {
	acct, err := o.bridge.GetOrCreate(ctx, result.Identity.ID, result.Identity.Email)
	if err != nil {
		o.logger.Error("orphaned identity: account materialization failed after login",
			zap.String("external_identity_id", result.Identity.ID.String()),
			zap.Error(err),
		)
		return nil, apperror.Internal("account lookup failed", err)
	}

	// Best effort: a failed notification must not fail the sign-in.
	msg := fmt.Sprintf("New sign-in to your account at %s", time.Now().UTC().Format(time.RFC1123))
	if _, err := o.store.Create(ctx, acct.ID, notifications.LevelInfo, msg); err != nil {
		o.logger.Warn("sign-in notification failed",
			zap.String("account_id", acct.ID.String()),
			zap.Error(err),
		)
	}

	return assembleAuthResponse(result, acct), nil
}

func assembleAuthResponse(result *iam.LoginResult, acct *accounts.Account) *AuthResponse {
	return &AuthResponse{
		Account:               newAccountInfo(acct, result.Identity),
		AccessToken:           result.Tokens.AccessToken,
		RefreshToken:          result.Tokens.RefreshToken,
		AccessTokenExpiresAt:  result.Tokens.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: result.Tokens.RefreshTokenExpiresAt,
	}
}

func newAccountInfo(acct *accounts.Account, ident *iam.Identity) AccountInfo {
	return AccountInfo{
		ID:                 acct.ID,
		ExternalIdentityID: acct.ExternalIdentityID,
		Email:              ident.Email,
		DisplayName:        acct.DisplayName,
		AvatarURL:          acct.AvatarURL,
		Username:           acct.Username,
		AuthType:           string(ident.AuthType),
	}
}

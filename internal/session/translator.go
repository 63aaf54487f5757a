// Package session orchestrates authentication-adjacent operations: it drives
// the identity service, materializes local accounts, files sign-in
// notifications, and translates identity errors into the domain taxonomy.
package session

import (
	"errors"

	"go.uber.org/zap"

	"github.com/auroralabs/aurora-backend/internal/accounts"
	"github.com/auroralabs/aurora-backend/internal/apperror"
	"github.com/auroralabs/aurora-backend/internal/iam"
	"github.com/auroralabs/aurora-backend/internal/notifications"
)

// Translator maps identity-service and store errors onto the domain error
// taxonomy. The mapping is total: anything unrecognized becomes Internal and
// is logged rather than leaked.
type Translator struct {
	logger *zap.Logger
}

// NewTranslator creates a Translator.
func NewTranslator(logger *zap.Logger) *Translator {
	return &Translator{logger: logger}
}

// Translate converts err into an *apperror.Error. op names the operation for
// the internal-error log line. A nil err returns nil.
func (t *Translator) Translate(op string, err error) *apperror.Error {
	if err == nil {
		return nil
	}

	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, iam.ErrInvalidCredentials):
		return apperror.Unauthorized("invalid credentials")
	case errors.Is(err, iam.ErrEmailNotVerified):
		return apperror.Unauthorized("email not verified")
	case errors.Is(err, iam.ErrTokenExpired):
		return apperror.Unauthorized("token expired")
	case errors.Is(err, iam.ErrTokenNotFound):
		return apperror.Unauthorized("invalid token")
	case errors.Is(err, iam.ErrTokenRevoked):
		return apperror.Unauthorized("token revoked")
	case errors.Is(err, iam.ErrTokenReuseDetected):
		return apperror.Unauthorized("token reuse detected, all sessions revoked")
	case errors.Is(err, iam.ErrInvalidOAuthToken):
		return apperror.Unauthorized("invalid oauth token")
	case errors.Is(err, iam.ErrOAuthEmailNotVerified):
		return apperror.Unauthorized("oauth account email not verified")

	case errors.Is(err, iam.ErrWeakPassword):
		return apperror.BadRequest(err.Error())
	case errors.Is(err, iam.ErrInvalidVerificationCode):
		return apperror.BadRequest("invalid verification code")
	case errors.Is(err, iam.ErrVerificationCodeExpired):
		return apperror.BadRequest("verification code expired")
	case errors.Is(err, iam.ErrEmailAlreadyVerified):
		return apperror.BadRequest("email already verified")
	case errors.Is(err, accounts.ErrInvalidUsername):
		return apperror.BadRequest(err.Error())
	case errors.Is(err, notifications.ErrInvalidLevel):
		return apperror.BadRequest("level must be one of info, warning, error")
	case errors.Is(err, notifications.ErrEmptyMessage):
		return apperror.BadRequest(err.Error())

	case errors.Is(err, iam.ErrEmailConflict):
		return apperror.Conflict("email already registered")
	case errors.Is(err, iam.ErrAuthTypeMismatch):
		return apperror.Conflict("account uses a different sign-in method")
	case errors.Is(err, accounts.ErrConflict):
		return apperror.Conflict("account already exists")

	case errors.Is(err, iam.ErrAccountNotFound):
		return apperror.NotFound("account not found")
	case errors.Is(err, accounts.ErrNotFound):
		return apperror.NotFound("account not found")
	case errors.Is(err, notifications.ErrNotFound):
		return apperror.NotFound("notification not found")
	}

	t.logger.Error("unmapped error", zap.String("operation", op), zap.Error(err))
	return apperror.Internal("internal error", err)
}

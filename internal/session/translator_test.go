package session

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/auroralabs/aurora-backend/internal/accounts"
	"github.com/auroralabs/aurora-backend/internal/apperror"
	"github.com/auroralabs/aurora-backend/internal/iam"
	"github.com/auroralabs/aurora-backend/internal/notifications"
)

func TestTranslateTaxonomy(t *testing.T) {
	tr := NewTranslator(zap.NewNop())

	tests := []struct {
		name string
		err  error
		want apperror.Kind
	}{
		{"invalid credentials", iam.ErrInvalidCredentials, apperror.KindUnauthorized},
		{"email not verified", iam.ErrEmailNotVerified, apperror.KindUnauthorized},
		{"token expired", iam.ErrTokenExpired, apperror.KindUnauthorized},
		{"token not found", iam.ErrTokenNotFound, apperror.KindUnauthorized},
		{"token revoked", iam.ErrTokenRevoked, apperror.KindUnauthorized},
		{"token reuse", iam.ErrTokenReuseDetected, apperror.KindUnauthorized},
		{"invalid oauth token", iam.ErrInvalidOAuthToken, apperror.KindUnauthorized},
		{"oauth email unverified", iam.ErrOAuthEmailNotVerified, apperror.KindUnauthorized},
		{"weak password", iam.ErrWeakPassword, apperror.KindBadRequest},
		{"invalid code", iam.ErrInvalidVerificationCode, apperror.KindBadRequest},
		{"expired code", iam.ErrVerificationCodeExpired, apperror.KindBadRequest},
		{"already verified", iam.ErrEmailAlreadyVerified, apperror.KindBadRequest},
		{"invalid username", accounts.ErrInvalidUsername, apperror.KindBadRequest},
		{"invalid level", notifications.ErrInvalidLevel, apperror.KindBadRequest},
		{"empty message", notifications.ErrEmptyMessage, apperror.KindBadRequest},
		{"email conflict", iam.ErrEmailConflict, apperror.KindConflict},
		{"auth type mismatch", iam.ErrAuthTypeMismatch, apperror.KindConflict},
		{"account conflict", accounts.ErrConflict, apperror.KindConflict},
		{"identity not found", iam.ErrAccountNotFound, apperror.KindNotFound},
		{"account not found", accounts.ErrNotFound, apperror.KindNotFound},
		{"notification not found", notifications.ErrNotFound, apperror.KindNotFound},
		{"unknown", errors.New("connection reset"), apperror.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tr.Translate("test", tt.err)
			if got == nil {
				t.Fatal("Translate returned nil")
			}
			if got.Kind != tt.want {
				t.Errorf("kind = %q, want %q", got.Kind, tt.want)
			}
		})
	}
}

func TestTranslateWrappedErrors(t *testing.T) {
	tr := NewTranslator(zap.NewNop())

	wrapped := errors.Join(errors.New("context"), iam.ErrInvalidCredentials)
	if got := tr.Translate("test", wrapped); got.Kind != apperror.KindUnauthorized {
		t.Errorf("wrapped sentinel: kind = %q, want %q", got.Kind, apperror.KindUnauthorized)
	}
}

func TestTranslateNil(t *testing.T) {
	tr := NewTranslator(zap.NewNop())
	if got := tr.Translate("test", nil); got != nil {
		t.Errorf("Translate(nil) = %v, want nil", got)
	}
}

func TestTranslatePassesThroughAppErrors(t *testing.T) {
	tr := NewTranslator(zap.NewNop())
	in := apperror.BadRequest("already translated")
	if got := tr.Translate("test", in); got != in {
		t.Errorf("got %v, want identical pass-through", got)
	}
}

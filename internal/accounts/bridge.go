package accounts

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidUsername is returned for a username that is empty after trimming
// or longer than 255 characters.
var ErrInvalidUsername = errors.New("username must be non-empty and at most 255 characters")

// accountRepo is the storage interface consumed by Bridge.
type accountRepo interface {
	Create(ctx context.Context, externalID uuid.UUID, displayName string) (*Account, error)
	GetByExternalID(ctx context.Context, externalID uuid.UUID) (*Account, error)
	GetOrCreate(ctx context.Context, externalID uuid.UUID, displayName string) (*Account, error)
	UpdateSettings(ctx context.Context, id uuid.UUID, upd SettingsUpdate) (*Account, error)
	DeleteByExternalID(ctx context.Context, externalID uuid.UUID) error
}

// Bridge binds external identities to local accounts: one account per
// identity, created lazily on first use.
type Bridge struct {
	repo   accountRepo
	logger *zap.Logger
}

// NewBridge creates a Bridge on top of repo.
func NewBridge(repo accountRepo, logger *zap.Logger) *Bridge {
	return &Bridge{repo: repo, logger: logger}
}

// Create inserts the account for a newly registered identity. Returns
// ErrConflict if one already exists; callers resolving sign-ins should use
// GetOrCreate instead.
func (b *Bridge) Create(ctx context.Context, externalID uuid.UUID, displayName string) (*Account, error) {
	return b.repo.Create(ctx, externalID, displayName)
}

// GetByExternalID returns the account for externalID, or ErrNotFound.
func (b *Bridge) GetByExternalID(ctx context.Context, externalID uuid.UUID) (*Account, error) {
	return b.repo.GetByExternalID(ctx, externalID)
}

// GetOrCreate resolves externalID to its account, creating one with
// displayName if none exists yet.
func (b *Bridge) GetOrCreate(ctx context.Context, externalID uuid.UUID, displayName string) (*Account, error) {
	return b.repo.GetOrCreate(ctx, externalID, displayName)
}

// UpdateSettings validates and applies a partial settings update.
func (b *Bridge) UpdateSettings(ctx context.Context, id uuid.UUID, upd SettingsUpdate) (*Account, error) {
	if upd.Username != nil {
		trimmed := strings.TrimSpace(*upd.Username)
		if trimmed == "" || len(trimmed) > 255 {
			return nil, ErrInvalidUsername
		}
		upd.Username = &trimmed
	}
	if upd.DisplayName != nil {
		trimmed := strings.TrimSpace(*upd.DisplayName)
		if trimmed == "" {
			return nil, ErrInvalidUsername
		}
		upd.DisplayName = &trimmed
	}
	return b.repo.UpdateSettings(ctx, id, upd)
}

// Delete removes the account bound to externalID. Missing rows are ignored
// so deletion stays idempotent.
func (b *Bridge) Delete(ctx context.Context, externalID uuid.UUID) error {
	if err := b.repo.DeleteByExternalID(ctx, externalID); err != nil {
		b.logger.Error("delete account",
			zap.String("external_identity_id", externalID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

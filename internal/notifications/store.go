package notifications

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrInvalidLevel is returned for a level outside info, warning, error.
	ErrInvalidLevel = errors.New("invalid notification level")
	// ErrEmptyMessage is returned when the notification message is blank.
	ErrEmptyMessage = errors.New("notification message must be non-empty")
)

// notificationRepo is the storage interface consumed by Store.
type notificationRepo interface {
	Create(ctx context.Context, accountID uuid.UUID, level Level, message string) (*Notification, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*Notification, error)
	UnreadCount(ctx context.Context, accountID uuid.UUID) (int, error)
	UpdateRead(ctx context.Context, id, accountID uuid.UUID, read bool) (*Notification, error)
	UpdateReadBatch(ctx context.Context, ids []uuid.UUID, accountID uuid.UUID, read bool) ([]*Notification, error)
	Delete(ctx context.Context, id, accountID uuid.UUID) error
	DeleteBatch(ctx context.Context, ids []uuid.UUID, accountID uuid.UUID) (int, error)
	DeleteByAccount(ctx context.Context, accountID uuid.UUID) error
}

// Store is the account-scoped notification service. Every operation takes
// the caller's account id and never exposes rows of other accounts.
type Store struct {
	repo   notificationRepo
	logger *zap.Logger
}

// NewStore creates a Store on top of repo.
func NewStore(repo notificationRepo, logger *zap.Logger) *Store {
	return &Store{repo: repo, logger: logger}
}

// Create validates and inserts a notification for accountID.
func (s *Store) Create(ctx context.Context, accountID uuid.UUID, level Level, message string) (*Notification, error) {
	if !level.Valid() {
		return nil, ErrInvalidLevel
	}
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	return s.repo.Create(ctx, accountID, level, message)
}

// List returns the notifications of accountID, newest first.
func (s *Store) List(ctx context.Context, accountID uuid.UUID) ([]*Notification, error) {
	return s.repo.ListByAccount(ctx, accountID)
}

// UnreadCount returns how many notifications of accountID are unread.
func (s *Store) UnreadCount(ctx context.Context, accountID uuid.UUID) (int, error) {
	return s.repo.UnreadCount(ctx, accountID)
}

// UpdateRead toggles the read flag of one notification owned by accountID.
func (s *Store) UpdateRead(ctx context.Context, id, accountID uuid.UUID, read bool) (*Notification, error) {
	return s.repo.UpdateRead(ctx, id, accountID, read)
}

// UpdateReadBatch toggles the read flag on the listed ids owned by
// accountID; unmatched ids are skipped, never an error.
func (s *Store) UpdateReadBatch(ctx context.Context, ids []uuid.UUID, accountID uuid.UUID, read bool) ([]*Notification, error) {
	return s.repo.UpdateReadBatch(ctx, ids, accountID, read)
}

// Delete removes one notification owned by accountID; unknown ids are a
// no-op.
func (s *Store) Delete(ctx context.Context, id, accountID uuid.UUID) error {
	return s.repo.Delete(ctx, id, accountID)
}

// DeleteBatch removes the listed notifications owned by accountID and
// returns the number actually deleted.
func (s *Store) DeleteBatch(ctx context.Context, ids []uuid.UUID, accountID uuid.UUID) (int, error) {
	return s.repo.DeleteBatch(ctx, ids, accountID)
}

// PurgeAccount removes every notification of accountID.
func (s *Store) PurgeAccount(ctx context.Context, accountID uuid.UUID) error {
	return s.repo.DeleteByAccount(ctx, accountID)
}

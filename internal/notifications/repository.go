package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/auroralabs/aurora-backend/internal/postgres"
)

// ErrNotFound is returned when a notification does not exist for the given
// account. Rows owned by other accounts are reported the same way.
var ErrNotFound = errors.New("notification not found")

const notificationColumns = `id, account_id, level, message, read, created_at, updated_at`

// Repository persists notifications against PostgreSQL.
type Repository struct {
	db postgres.DB
}

// NewRepository creates a notification repository on top of db.
func NewRepository(db postgres.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a notification for accountID.
func (r *Repository) Create(ctx context.Context, accountID uuid.UUID, level Level, message string) (*Notification, error) {
	n := &Notification{
		ID:        uuid.New(),
		AccountID: accountID,
		Level:     level,
		Message:   message,
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now

	q := `
		INSERT INTO notifications (id, account_id, level, message, read, created_at, updated_at)
		VALUES ($1, $2, $3, $4, false, $5, $6)`
	_, err := r.db.Exec(ctx, q, n.ID, n.AccountID, n.Level, n.Message, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

// ListByAccount returns all notifications of accountID, newest first.
func (r *Repository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*Notification, error) {
	q := `SELECT ` + notificationColumns + ` FROM notifications WHERE account_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, q, accountID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// UnreadCount returns the number of unread notifications of accountID.
func (r *Repository) UnreadCount(ctx context.Context, accountID uuid.UUID) (int, error) {
	var count int
	q := `SELECT COUNT(*) FROM notifications WHERE account_id = $1 AND read = false`
	if err := r.db.QueryRow(ctx, q, accountID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// UpdateRead sets the read flag of one notification. Returns ErrNotFound if
// the id does not exist for accountID.
func (r *Repository) UpdateRead(ctx context.Context, id, accountID uuid.UUID, read bool) (*Notification, error) {
	q := `
		UPDATE notifications
		SET read = $3, updated_at = $4
		WHERE id = $1 AND account_id = $2
		RETURNING ` + notificationColumns
	n, err := scanOne(r.db.QueryRow(ctx, q, id, accountID, read, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return n, nil
}

// UpdateReadBatch sets the read flag on every listed notification owned by
// accountID. Ids that do not exist or belong to another account are skipped;
// the rows actually updated are returned.
func (r *Repository) UpdateReadBatch(ctx context.Context, ids []uuid.UUID, accountID uuid.UUID, read bool) ([]*Notification, error) {
	if len(ids) == 0 {
		return []*Notification{}, nil
	}
	q := `
		UPDATE notifications
		SET read = $3, updated_at = $4
		WHERE id = ANY($1) AND account_id = $2
		RETURNING ` + notificationColumns
	rows, err := r.db.Query(ctx, q, ids, accountID, read, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("batch update read: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// Delete removes one notification of accountID. Unknown ids are a no-op.
func (r *Repository) Delete(ctx context.Context, id, accountID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE id = $1 AND account_id = $2`, id, accountID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return nil
}

// DeleteBatch removes every listed notification owned by accountID and
// returns how many rows were deleted.
func (r *Repository) DeleteBatch(ctx context.Context, ids []uuid.UUID, accountID uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE id = ANY($1) AND account_id = $2`, ids, accountID)
	if err != nil {
		return 0, fmt.Errorf("batch delete notifications: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteByAccount removes every notification of accountID. Used when the
// owning account is destroyed.
func (r *Repository) DeleteByAccount(ctx context.Context, accountID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("delete account notifications: %w", err)
	}
	return nil
}

func scanOne(row pgx.Row) (*Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.AccountID, &n.Level, &n.Message, &n.Read, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func scanAll(rows pgx.Rows) ([]*Notification, error) {
	out := []*Notification{}
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.AccountID, &n.Level, &n.Message, &n.Read, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

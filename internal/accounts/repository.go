package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/auroralabs/aurora-backend/internal/postgres"
)

var (
	// ErrNotFound is returned when no account matches the lookup.
	ErrNotFound = errors.New("account not found")
	// ErrConflict is returned when an external identity already has an account.
	ErrConflict = errors.New("account already exists for identity")
)

const accountColumns = `id, external_identity_id, display_name, avatar_url, username, created_at, updated_at`

// Repository persists accounts against PostgreSQL.
type Repository struct {
	db postgres.DB
}

// NewRepository creates an account repository on top of db.
func NewRepository(db postgres.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new account for externalID. Returns ErrConflict if the
// identity already has one.
func (r *Repository) Create(ctx context.Context, externalID uuid.UUID, displayName string) (*Account, error) {
	acct := &Account{
		ID:                 uuid.New(),
		ExternalIdentityID: externalID,
		DisplayName:        displayName,
	}
	now := time.Now().UTC()
	acct.CreatedAt = now
	acct.UpdatedAt = now

	q := `
		INSERT INTO app_accounts (id, external_identity_id, display_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Exec(ctx, q, acct.ID, acct.ExternalIdentityID, acct.DisplayName, acct.CreatedAt, acct.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err, "app_accounts_external_identity_id_key") {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return acct, nil
}

// GetByExternalID returns the account bound to externalID, or ErrNotFound.
func (r *Repository) GetByExternalID(ctx context.Context, externalID uuid.UUID) (*Account, error) {
	q := `SELECT ` + accountColumns + ` FROM app_accounts WHERE external_identity_id = $1`
	return r.scanOne(r.db.QueryRow(ctx, q, externalID))
}

// GetByID returns the account with the given local id, or ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	q := `SELECT ` + accountColumns + ` FROM app_accounts WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, q, id))
}

// GetOrCreate returns the account for externalID, creating it if absent.
// Safe under concurrent calls for the same identity: the insert carries
// ON CONFLICT DO NOTHING and the loser re-reads the winner's row.
func (r *Repository) GetOrCreate(ctx context.Context, externalID uuid.UUID, displayName string) (*Account, error) {
	if acct, err := r.GetByExternalID(ctx, externalID); err == nil {
		return acct, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	q := `
		INSERT INTO app_accounts (id, external_identity_id, display_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (external_identity_id) DO NOTHING`
	_, err := r.db.Exec(ctx, q, uuid.New(), externalID, displayName, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}

	// Either our row or the concurrent winner's.
	acct, err := r.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("read back account: %w", err)
	}
	return acct, nil
}

// UpdateSettings applies a partial settings update and returns the updated
// account. Returns ErrNotFound if the account does not exist.
func (r *Repository) UpdateSettings(ctx context.Context, id uuid.UUID, upd SettingsUpdate) (*Account, error) {
	q := `
		UPDATE app_accounts
		SET username     = COALESCE($2, username),
		    display_name = COALESCE($3, display_name),
		    avatar_url   = COALESCE($4, avatar_url),
		    updated_at   = $5
		WHERE id = $1
		RETURNING ` + accountColumns
	return r.scanOne(r.db.QueryRow(ctx, q, id, upd.Username, upd.DisplayName, upd.AvatarURL, time.Now().UTC()))
}

// List returns every account, newest first. Used by operational tooling.
func (r *Repository) List(ctx context.Context) ([]*Account, error) {
	q := `SELECT ` + accountColumns + ` FROM app_accounts ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	out := []*Account{}
	for rows.Next() {
		var acct Account
		if err := rows.Scan(
			&acct.ID, &acct.ExternalIdentityID, &acct.DisplayName,
			&acct.AvatarURL, &acct.Username, &acct.CreatedAt, &acct.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, &acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}

// DeleteByExternalID removes the account bound to externalID. Deleting an
// absent account is a no-op.
func (r *Repository) DeleteByExternalID(ctx context.Context, externalID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM app_accounts WHERE external_identity_id = $1`, externalID)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

func (r *Repository) scanOne(row pgx.Row) (*Account, error) {
	var acct Account
	err := row.Scan(
		&acct.ID, &acct.ExternalIdentityID, &acct.DisplayName,
		&acct.AvatarURL, &acct.Username, &acct.CreatedAt, &acct.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &acct, nil
}

package iam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/auroralabs/aurora-backend/internal/postgres"
)

// RefreshToken is a stored refresh-token record. Only the SHA-256 hash of the
// token is persisted; RevokedAt marks explicit logout, ReplacedBy marks
// rotation (a replaced token presented again is a reuse signal).
type RefreshToken struct {
	ID         uuid.UUID
	IdentityID uuid.UUID
	TokenHash  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *uuid.UUID
}

// VerificationCode is a stored email-verification code.
type VerificationCode struct {
	ID         uuid.UUID
	IdentityID uuid.UUID
	Code       string
	ExpiresAt  time.Time
	UsedAt     *time.Time
	CreatedAt  time.Time
}

// Repository persists identities, refresh tokens, verification codes, and the
// access-token revocation list against PostgreSQL.
type Repository struct {
	db postgres.DB
}

// NewRepository creates an iam Repository.
func NewRepository(db postgres.DB) *Repository {
	return &Repository{db: db}
}

const identityColumns = `id, email, password_hash, auth_type, email_verified, created_at, updated_at`

// CreateIdentity inserts a new identity. Sets ID, CreatedAt, UpdatedAt.
// Returns ErrEmailConflict when the email is already registered.
func (r *Repository) CreateIdentity(ctx context.Context, ident *Identity) error {
	ident.ID = uuid.New()
	now := time.Now().UTC()
	ident.CreatedAt = now
	ident.UpdatedAt = now

	q := `
		INSERT INTO iam_identities (id, email, password_hash, auth_type, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Exec(ctx, q,
		ident.ID, ident.Email, ident.PasswordHash, ident.AuthType,
		ident.EmailVerified, ident.CreatedAt, ident.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, "iam_identities_email_key") {
			return ErrEmailConflict
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

// GetIdentityByEmail returns the live identity for an email address.
// Returns ErrAccountNotFound when no live row matches.
func (r *Repository) GetIdentityByEmail(ctx context.Context, email string) (*Identity, error) {
	q := `SELECT ` + identityColumns + ` FROM iam_identities WHERE email = $1 AND deleted_at IS NULL`
	return r.scanIdentity(r.db.QueryRow(ctx, q, email))
}

// GetIdentityByID returns the live identity with the given id.
func (r *Repository) GetIdentityByID(ctx context.Context, id uuid.UUID) (*Identity, error) {
	q := `SELECT ` + identityColumns + ` FROM iam_identities WHERE id = $1 AND deleted_at IS NULL`
	return r.scanIdentity(r.db.QueryRow(ctx, q, id))
}

func (r *Repository) scanIdentity(row pgx.Row) (*Identity, error) {
	var ident Identity
	err := row.Scan(
		&ident.ID, &ident.Email, &ident.PasswordHash, &ident.AuthType,
		&ident.EmailVerified, &ident.CreatedAt, &ident.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("scan identity: %w", err)
	}
	return &ident, nil
}

// SetEmailVerified marks an identity's email as verified.
func (r *Repository) SetEmailVerified(ctx context.Context, id uuid.UUID) error {
	q := `UPDATE iam_identities SET email_verified = true, updated_at = $2 WHERE id = $1`
	_, err := r.db.Exec(ctx, q, id, time.Now().UTC())
	return err
}

// SetPasswordHash replaces an identity's password hash.
func (r *Repository) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	q := `UPDATE iam_identities SET password_hash = $2, updated_at = $3 WHERE id = $1`
	_, err := r.db.Exec(ctx, q, id, hash, time.Now().UTC())
	return err
}

// SoftDeleteIdentity marks an identity as deleted. Live-row queries stop
// returning it; the email becomes reusable only after manual cleanup.
func (r *Repository) SoftDeleteIdentity(ctx context.Context, id uuid.UUID) error {
	q := `UPDATE iam_identities SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	_, err := r.db.Exec(ctx, q, id, time.Now().UTC())
	return err
}

// CreateRefreshToken stores a refresh-token record. Sets ID and CreatedAt.
func (r *Repository) CreateRefreshToken(ctx context.Context, rt *RefreshToken) error {
	rt.ID = uuid.New()
	rt.CreatedAt = time.Now().UTC()

	q := `
		INSERT INTO iam_refresh_tokens (id, identity_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Exec(ctx, q, rt.ID, rt.IdentityID, rt.TokenHash, rt.ExpiresAt, rt.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// GetRefreshTokenByHash looks up a refresh token by its hash.
// Returns ErrTokenNotFound when no row matches.
func (r *Repository) GetRefreshTokenByHash(ctx context.Context, hash string) (*RefreshToken, error) {
	q := `
		SELECT id, identity_id, token_hash, expires_at, created_at, revoked_at, replaced_by
		FROM iam_refresh_tokens WHERE token_hash = $1`
	var rt RefreshToken
	err := r.db.QueryRow(ctx, q, hash).Scan(
		&rt.ID, &rt.IdentityID, &rt.TokenHash, &rt.ExpiresAt, &rt.CreatedAt,
		&rt.RevokedAt, &rt.ReplacedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}
	return &rt, nil
}

// MarkRefreshTokenRotated records that token id was replaced by replacedBy.
func (r *Repository) MarkRefreshTokenRotated(ctx context.Context, id, replacedBy uuid.UUID) error {
	q := `UPDATE iam_refresh_tokens SET replaced_by = $2 WHERE id = $1`
	_, err := r.db.Exec(ctx, q, id, replacedBy)
	return err
}

// RevokeRefreshTokensForIdentity revokes every live refresh token of an
// identity. Used on logout, password change, reuse detection, and deletion.
func (r *Repository) RevokeRefreshTokensForIdentity(ctx context.Context, identityID uuid.UUID) error {
	q := `UPDATE iam_refresh_tokens SET revoked_at = $2 WHERE identity_id = $1 AND revoked_at IS NULL`
	_, err := r.db.Exec(ctx, q, identityID, time.Now().UTC())
	return err
}

// CreateVerificationCode stores a new email-verification code. Sets ID and
// CreatedAt, and invalidates any earlier unused codes for the identity.
func (r *Repository) CreateVerificationCode(ctx context.Context, vc *VerificationCode) error {
	vc.ID = uuid.New()
	vc.CreatedAt = time.Now().UTC()

	if _, err := r.db.Exec(ctx,
		`UPDATE iam_verification_codes SET used_at = $2 WHERE identity_id = $1 AND used_at IS NULL`,
		vc.IdentityID, vc.CreatedAt,
	); err != nil {
		return fmt.Errorf("invalidate old codes: %w", err)
	}

	q := `
		INSERT INTO iam_verification_codes (id, identity_id, code, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Exec(ctx, q, vc.ID, vc.IdentityID, vc.Code, vc.ExpiresAt, vc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert verification code: %w", err)
	}
	return nil
}

// GetActiveVerificationCode returns the newest unused code for an identity.
// Returns ErrInvalidVerificationCode when none exists.
func (r *Repository) GetActiveVerificationCode(ctx context.Context, identityID uuid.UUID) (*VerificationCode, error) {
	q := `
		SELECT id, identity_id, code, expires_at, used_at, created_at
		FROM iam_verification_codes
		WHERE identity_id = $1 AND used_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1`
	var vc VerificationCode
	err := r.db.QueryRow(ctx, q, identityID).Scan(
		&vc.ID, &vc.IdentityID, &vc.Code, &vc.ExpiresAt, &vc.UsedAt, &vc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidVerificationCode
		}
		return nil, fmt.Errorf("scan verification code: %w", err)
	}
	return &vc, nil
}

// MarkVerificationCodeUsed consumes a verification code.
func (r *Repository) MarkVerificationCodeUsed(ctx context.Context, id uuid.UUID) error {
	q := `UPDATE iam_verification_codes SET used_at = $2 WHERE id = $1`
	_, err := r.db.Exec(ctx, q, id, time.Now().UTC())
	return err
}

// RevokeAccessToken denylists an access token's jti until its natural expiry.
func (r *Repository) RevokeAccessToken(ctx context.Context, jti uuid.UUID, expiresAt time.Time) error {
	q := `
		INSERT INTO iam_revoked_access (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING`
	_, err := r.db.Exec(ctx, q, jti, expiresAt)
	return err
}

// IsAccessTokenRevoked reports whether an access token's jti is denylisted.
func (r *Repository) IsAccessTokenRevoked(ctx context.Context, jti uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM iam_revoked_access WHERE jti = $1)`, jti,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check revoked access token: %w", err)
	}
	return exists, nil
}

// DeleteExpiredRevocations trims denylist rows whose tokens have expired
// anyway. Called from the background sweeper; returns the rows removed.
func (r *Repository) DeleteExpiredRevocations(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM iam_revoked_access WHERE expires_at < $1`, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired revocations: %w", err)
	}
	return tag.RowsAffected(), nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/yearzendwise/Authentik-sub002/internal/user/domain"
)

const userCols = `id, tenant_id, email, password_hash, first_name, last_name, role,
	is_active, email_verified, verify_token_hash, verify_token_expires_at,
	totp_secret, totp_enabled, menu_expanded, created_at, updated_at`

// PostgresRepository persists users with hand-written SQL over database/sql.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.get(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id)
}

// GetByTenantAndEmail returns the tenant's user with the given email, or nil if not found.
// The lookup is case-insensitive on email.
func (r *PostgresRepository) GetByTenantAndEmail(ctx context.Context, tenantID, email string) (*domain.User, error) {
	return r.get(ctx, `SELECT `+userCols+` FROM users WHERE tenant_id = $1 AND lower(email) = lower($2)`,
		tenantID, email)
}

// GetByVerifyTokenHash returns the user holding the given verification token hash, or nil if none does.
func (r *PostgresRepository) GetByVerifyTokenHash(ctx context.Context, tokenHash string) (*domain.User, error) {
	return r.get(ctx, `SELECT `+userCols+` FROM users WHERE verify_token_hash = $1`, tokenHash)
}

// Create persists the user to the database. The user must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users
		(id, tenant_id, email, password_hash, first_name, last_name, role,
		 is_active, email_verified, verify_token_hash, verify_token_expires_at,
		 totp_secret, totp_enabled, menu_expanded, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		u.ID, u.TenantID, u.Email, u.PasswordHash, u.FirstName, u.LastName, string(u.Role),
		u.IsActive, u.EmailVerified,
		nullString(u.VerifyTokenHash), nullTime(u.VerifyTokenExpiresAt),
		nullString(u.TOTPSecret), u.TOTPEnabled, u.MenuExpanded, u.CreatedAt, u.UpdatedAt)
	return err
}

// UpdatePasswordHash replaces the stored password hash.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, passwordHash)
	return err
}

// SetEmailVerified marks the user verified and clears any pending verification token.
func (r *PostgresRepository) SetEmailVerified(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users
		SET email_verified = TRUE, verify_token_hash = NULL, verify_token_expires_at = NULL,
		    updated_at = now()
		WHERE id = $1`, id)
	return err
}

// SetVerifyToken stores a fresh verification token hash and its expiry.
func (r *PostgresRepository) SetVerifyToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users
		SET verify_token_hash = $2, verify_token_expires_at = $3, updated_at = now()
		WHERE id = $1`, id, tokenHash, expiresAt)
	return err
}

// SetTOTP stores the TOTP secret and enabled flag together. An empty secret clears both.
func (r *PostgresRepository) SetTOTP(ctx context.Context, id, secret string, enabled bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users
		SET totp_secret = $2, totp_enabled = $3, updated_at = now()
		WHERE id = $1`, id, nullString(secret), enabled)
	return err
}

// SetMenuExpanded stores the sidebar preference.
func (r *PostgresRepository) SetMenuExpanded(ctx context.Context, id string, expanded bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET menu_expanded = $2, updated_at = now() WHERE id = $1`, id, expanded)
	return err
}

func (r *PostgresRepository) get(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var u domain.User
	var role string
	var verifyHash, totpSecret sql.NullString
	var verifyExpires sql.NullTime
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &role,
		&u.IsActive, &u.EmailVerified, &verifyHash, &verifyExpires,
		&totpSecret, &u.TOTPEnabled, &u.MenuExpanded, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Role = domain.Role(role)
	u.VerifyTokenHash = verifyHash.String
	u.TOTPSecret = totpSecret.String
	if verifyExpires.Valid {
		u.VerifyTokenExpiresAt = &verifyExpires.Time
	}
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

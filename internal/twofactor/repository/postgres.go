package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/yearzendwise/Authentik-sub002/internal/twofactor/domain"
)

// PostgresRepository persists two-factor intents with hand-written SQL over database/sql.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an intent repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the intent. The intent must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, i *domain.Intent) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO twofa_intents
		(id, user_id, remember_me, device_id, device_name, user_agent, ip_address, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		i.ID, i.UserID, i.RememberMe, i.DeviceID, i.DeviceName, i.UserAgent, i.IPAddress,
		i.ExpiresAt, i.CreatedAt)
	return err
}

// GetByID returns the intent for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Intent, error) {
	var i domain.Intent
	err := r.db.QueryRowContext(ctx, `SELECT
		id, user_id, remember_me, device_id, device_name, user_agent, ip_address, expires_at, created_at
		FROM twofa_intents WHERE id = $1`, id).
		Scan(&i.ID, &i.UserID, &i.RememberMe, &i.DeviceID, &i.DeviceName, &i.UserAgent,
			&i.IPAddress, &i.ExpiresAt, &i.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &i, nil
}

// Delete removes the intent by id. Deleting a missing intent is a no-op.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM twofa_intents WHERE id = $1`, id)
	return err
}

// DeleteExpiredBefore removes stale intents; returns the deleted count.
func (r *PostgresRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM twofa_intents WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/yearzendwise/Authentik-sub002/internal/session/domain"
)

const sessionCols = `id, user_id, refresh_token_hash, device_id, device_name, user_agent,
	ip_address, location, remembered, expires_at, last_used_at, revoked_at, created_at`

// PostgresRepository persists sessions with hand-written SQL over database/sql.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// GetByTokenHash returns the session holding the given refresh token hash, or nil if none does.
func (r *PostgresRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM sessions WHERE refresh_token_hash = $1`, tokenHash)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// ListActiveByUser returns the user's non-revoked, non-expired sessions, newest first.
func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sessionCols+` FROM sessions
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > now()
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create persists the session to the database. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO sessions
		(id, user_id, refresh_token_hash, device_id, device_name, user_agent,
		 ip_address, location, remembered, expires_at, last_used_at, revoked_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.ID, s.UserID, s.RefreshTokenHash, s.DeviceID, s.DeviceName, s.UserAgent,
		s.IPAddress, s.Location, s.Remembered, s.ExpiresAt,
		timeToNullTime(s.LastUsedAt), timeToNullTime(s.RevokedAt), s.CreatedAt)
	return err
}

// Rotate swaps the refresh token hash in one conditional update. The WHERE clause pins the
// previous hash and requires the session to be unrevoked, so of N concurrent rotations
// exactly one sees an affected row; the rest return false.
func (r *PostgresRepository) Rotate(ctx context.Context, id, oldHash, newHash string, expiresAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE sessions
		SET refresh_token_hash = $3, expires_at = $4, last_used_at = now()
		WHERE id = $1 AND refresh_token_hash = $2 AND revoked_at IS NULL`,
		id, oldHash, newHash, expiresAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Revoke marks the session with the given id as revoked. Revoking twice is a no-op.
func (r *PostgresRepository) Revoke(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`, id)
	return err
}

// RevokeAllByUser revokes the user's active sessions, skipping exceptID when non-empty and
// sparing remembered sessions when keepRemembered is true. Returns the revoked count.
func (r *PostgresRepository) RevokeAllByUser(ctx context.Context, userID, exceptID string, keepRemembered bool) (int64, error) {
	q := `UPDATE sessions SET revoked_at = now() WHERE user_id = $1 AND revoked_at IS NULL`
	args := []any{userID}
	if exceptID != "" {
		args = append(args, exceptID)
		q += ` AND id <> $2`
	}
	if keepRemembered {
		q += ` AND remembered = FALSE`
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpiredBefore removes rows whose lifetime ended before cutoff.
func (r *PostgresRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var s domain.Session
	var lastUsed, revoked sql.NullTime
	err := row.Scan(&s.ID, &s.UserID, &s.RefreshTokenHash, &s.DeviceID, &s.DeviceName,
		&s.UserAgent, &s.IPAddress, &s.Location, &s.Remembered, &s.ExpiresAt,
		&lastUsed, &revoked, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	if lastUsed.Valid {
		s.LastUsedAt = &lastUsed.Time
	}
	if revoked.Valid {
		s.RevokedAt = &revoked.Time
	}
	return &s, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

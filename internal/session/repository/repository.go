package repository

import (
	"context"
	"time"

	"github.com/yearzendwise/Authentik-sub002/internal/session/domain"
)

// Repository defines persistence for sessions.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	// Rotate atomically swaps the refresh token hash if and only if the stored hash still
	// equals oldHash and the session is not revoked. Returns false when the row did not
	// match, meaning a concurrent rotation or revocation won.
	Rotate(ctx context.Context, id, oldHash, newHash string, expiresAt time.Time) (bool, error)
	Revoke(ctx context.Context, id string) error
	// RevokeAllByUser revokes the user's sessions, skipping exceptID when non-empty and
	// sparing remembered sessions when keepRemembered is true. Returns the revoked count.
	RevokeAllByUser(ctx context.Context, userID, exceptID string, keepRemembered bool) (int64, error)
	// DeleteExpiredBefore removes rows whose lifetime ended before cutoff. Revoked rows
	// are kept until they expire so the sessions page can show them.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

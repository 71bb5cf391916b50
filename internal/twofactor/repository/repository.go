package repository

import (
	"context"
	"time"

	"github.com/yearzendwise/Authentik-sub002/internal/twofactor/domain"
)

// Repository defines persistence for two-factor login intents.
type Repository interface {
	Create(ctx context.Context, i *domain.Intent) error
	GetByID(ctx context.Context, id string) (*domain.Intent, error)
	Delete(ctx context.Context, id string) error
	// DeleteExpiredBefore removes stale intents; returns the deleted count.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

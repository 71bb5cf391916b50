package repository

import (
	"context"
	"time"

	"github.com/yearzendwise/Authentik-sub002/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByTenantAndEmail looks up by normalized email within one tenant.
	GetByTenantAndEmail(ctx context.Context, tenantID, email string) (*domain.User, error)
	GetByVerifyTokenHash(ctx context.Context, tokenHash string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	// SetEmailVerified marks the user verified and clears any pending verification token.
	SetEmailVerified(ctx context.Context, id string) error
	SetVerifyToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	// SetTOTP stores the TOTP secret and enabled flag together. An empty secret clears both.
	SetTOTP(ctx context.Context, id, secret string, enabled bool) error
	SetMenuExpanded(ctx context.Context, id string, expanded bool) error
}

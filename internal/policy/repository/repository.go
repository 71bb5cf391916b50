package repository

import (
	"context"

	"github.com/yearzendwise/Authentik-sub002/internal/policy/domain"
)

// Repository defines persistence for tenant session policies.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Policy, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*domain.Policy, error)
	// GetEnabledByTenant returns only enabled policies, the set the evaluator compiles.
	GetEnabledByTenant(ctx context.Context, tenantID string) ([]*domain.Policy, error)
	Create(ctx context.Context, p *domain.Policy) error
	Update(ctx context.Context, p *domain.Policy) error
}

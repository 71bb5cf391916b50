package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/yearzendwise/Authentik-sub002/internal/tenant/domain"
)

const tenantCols = `id, slug, name, created_at, updated_at`

// PostgresRepository persists tenants with hand-written SQL over database/sql.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a tenant repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the tenant for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	return r.get(ctx, `SELECT `+tenantCols+` FROM tenants WHERE id = $1`, id)
}

// GetBySlug returns the tenant for slug, or nil if not found.
func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	return r.get(ctx, `SELECT `+tenantCols+` FROM tenants WHERE slug = $1`, slug)
}

// Create persists the tenant to the database. The tenant must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.Tenant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenants (id, slug, name, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.Slug, t.Name, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r *PostgresRepository) get(ctx context.Context, query string, arg any) (*domain.Tenant, error) {
	var t domain.Tenant
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&t.ID, &t.Slug, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

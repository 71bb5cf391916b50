package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/yearzendwise/Authentik-sub002/internal/policy/domain"
)

const policyCols = `id, tenant_id, name, rules, enabled, created_at, updated_at`

// PostgresRepository persists tenant policies with hand-written SQL over database/sql.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a policy repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the policy for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Policy, error) {
	var p domain.Policy
	err := r.db.QueryRowContext(ctx, `SELECT `+policyCols+` FROM tenant_policies WHERE id = $1`, id).
		Scan(&p.ID, &p.TenantID, &p.Name, &p.Rules, &p.Enabled, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ListByTenant returns all policies for the tenant, enabled or not.
func (r *PostgresRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Policy, error) {
	return r.list(ctx, `SELECT `+policyCols+` FROM tenant_policies WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
}

// GetEnabledByTenant returns the enabled policies for the tenant, the set the evaluator compiles.
func (r *PostgresRepository) GetEnabledByTenant(ctx context.Context, tenantID string) ([]*domain.Policy, error) {
	return r.list(ctx, `SELECT `+policyCols+` FROM tenant_policies WHERE tenant_id = $1 AND enabled ORDER BY created_at`, tenantID)
}

// Create persists the policy to the database. The policy must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Policy) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO tenant_policies
		(id, tenant_id, name, rules, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.TenantID, p.Name, p.Rules, p.Enabled, p.CreatedAt, p.UpdatedAt)
	return err
}

// Update rewrites the policy's name, rules, and enabled flag.
func (r *PostgresRepository) Update(ctx context.Context, p *domain.Policy) error {
	_, err := r.db.ExecContext(ctx, `UPDATE tenant_policies
		SET name = $2, rules = $3, enabled = $4, updated_at = now()
		WHERE id = $1`,
		p.ID, p.Name, p.Rules, p.Enabled)
	return err
}

func (r *PostgresRepository) list(ctx context.Context, query, tenantID string) ([]*domain.Policy, error) {
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Policy
	for rows.Next() {
		var p domain.Policy
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.Rules, &p.Enabled, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

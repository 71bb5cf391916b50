// seed inserts development sample data for local testing. Run via ./scripts/seed.sh.
// Idempotent: skips inserts if the dev user (dev@example.com) already exists.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/yearzendwise/Authentik-sub002/internal/config"
	"github.com/yearzendwise/Authentik-sub002/internal/db"
	policyengine "github.com/yearzendwise/Authentik-sub002/internal/policy/engine"
	"github.com/yearzendwise/Authentik-sub002/internal/security"
	userdomain "github.com/yearzendwise/Authentik-sub002/internal/user/domain"
)

const (
	devUserEmail  = "dev@example.com"
	memberEmail   = "member@example.com"
	devPassword   = "Dev-password-123!"
	devTenantName = "Development"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()

	var existing string
	err = conn.QueryRowContext(ctx,
		`SELECT id FROM users WHERE lower(email) = lower($1)`, devUserEmail).Scan(&existing)
	if err == nil {
		log.Println("Seed already applied (dev@example.com exists). Skipping.")
		os.Exit(0)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Fatalf("seed check: %v", err)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		log.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()

	// Reuse the tenant if a prior run created it without the dev user.
	tenantID := uuid.NewString()
	err = tx.QueryRowContext(ctx,
		`INSERT INTO tenants (id, slug, name) VALUES ($1, $2, $3)
		 ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		tenantID, cfg.DefaultTenant, devTenantName).Scan(&tenantID)
	if err != nil {
		log.Fatalf("create tenant: %v", err)
	}

	users := []struct {
		email string
		first string
		last  string
		role  userdomain.Role
	}{
		{devUserEmail, "Dev", "Owner", userdomain.RoleOwner},
		{memberEmail, "Dev", "Member", userdomain.RoleMember},
	}
	for _, u := range users {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, tenant_id, email, password_hash, first_name, last_name, role, is_active, email_verified)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, TRUE)`,
			uuid.NewString(), tenantID, u.email, passwordHash, u.first, u.last, string(u.role)); err != nil {
			log.Fatalf("create user %s: %v", u.email, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tenant_policies (id, tenant_id, name, rules, enabled)
		 VALUES ($1, $2, $3, $4, TRUE)`,
		uuid.NewString(), tenantID, "default-session-policy", policyengine.DefaultRegoPolicy); err != nil {
		log.Fatalf("create policy: %v", err)
	}

	if err := tx.Commit(); err != nil {
		log.Fatalf("commit: %v", err)
	}

	log.Printf("Seed complete: tenant %q with users %s and %s (password %q)", cfg.DefaultTenant, devUserEmail, memberEmail, devPassword)
}

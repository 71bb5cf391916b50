package domain

import "time"

// Policy represents a tenant-level session policy: a Rego module overriding the
// service defaults (second-factor enforcement, refresh TTLs, revocation scope).
type Policy struct {
	ID        string
	TenantID  string
	Name      string
	Rules     string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

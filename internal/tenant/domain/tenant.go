package domain

import (
	"errors"
	"regexp"
	"time"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?$`)

// Tenant is the isolation boundary every user and policy belongs to.
type Tenant struct {
	ID        string
	Slug      string // URL-safe identifier, e.g. "acme"
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate validates the tenant for persistence. Returns an error describing the first validation failure.
func (t *Tenant) Validate() error {
	if t.Slug == "" {
		return errors.New("slug is required")
	}
	if !slugPattern.MatchString(t.Slug) {
		return errors.New("slug must be lowercase alphanumeric with inner hyphens")
	}
	if t.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

package domain

import (
	"errors"
	"strings"
	"time"
)

// User is a tenant-scoped identity. Email is unique within a tenant, not globally.
type User struct {
	ID            string
	TenantID      string
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	Role          Role
	IsActive      bool // soft-disable; inactive users cannot log in
	EmailVerified bool
	// VerifyTokenHash is the SHA-256 hex digest of the outstanding email verification
	// token; empty once verified or when none is pending.
	VerifyTokenHash       string
	VerifyTokenExpiresAt  *time.Time
	TOTPSecret            string // base32 secret; set at 2FA setup, kept after enable
	TOTPEnabled           bool
	MenuExpanded          bool // UI preference: sidebar expanded or collapsed
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// NormalizeEmail lowercases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.TenantID == "" {
		return errors.New("tenant id is required")
	}
	if u.Email == "" {
		return errors.New("email is required")
	}
	if !strings.Contains(u.Email, "@") {
		return errors.New("email is malformed")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.Role == "" {
		u.Role = RoleMember
	}
	switch u.Role {
	case RoleOwner, RoleAdmin, RoleMember:
	default:
		return errors.New("unknown role")
	}
	return nil
}

// FullName joins first and last name, tolerating either being empty.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

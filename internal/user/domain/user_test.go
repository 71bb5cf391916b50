package domain

import (
	"testing"
)

func TestUserValidate(t *testing.T) {
	valid := func() User {
		return User{
			TenantID:     "t1",
			Email:        "a@example.com",
			PasswordHash: "$2a$12$hash",
		}
	}

	t.Run("valid with defaults", func(t *testing.T) {
		u := valid()
		if err := u.Validate(); err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if u.Role != RoleMember {
			t.Errorf("Role = %q, want default %q", u.Role, RoleMember)
		}
	})

	t.Run("missing tenant", func(t *testing.T) {
		u := valid()
		u.TenantID = ""
		if err := u.Validate(); err == nil {
			t.Error("Validate should fail without tenant id")
		}
	})

	t.Run("missing email", func(t *testing.T) {
		u := valid()
		u.Email = ""
		if err := u.Validate(); err == nil {
			t.Error("Validate should fail without email")
		}
	})

	t.Run("malformed email", func(t *testing.T) {
		u := valid()
		u.Email = "not-an-email"
		if err := u.Validate(); err == nil {
			t.Error("Validate should fail for email without @")
		}
	})

	t.Run("missing password hash", func(t *testing.T) {
		u := valid()
		u.PasswordHash = ""
		if err := u.Validate(); err == nil {
			t.Error("Validate should fail without password hash")
		}
	})

	t.Run("unknown role", func(t *testing.T) {
		u := valid()
		u.Role = "superuser"
		if err := u.Validate(); err == nil {
			t.Error("Validate should reject unknown roles")
		}
	})
}

func TestNormalizeEmail(t *testing.T) {
	testCases := []struct{ in, want string }{
		{"User@Example.COM", "user@example.com"},
		{"  padded@example.com  ", "padded@example.com"},
		{"already@lower.io", "already@lower.io"},
	}
	for _, tc := range testCases {
		if got := NormalizeEmail(tc.in); got != tc.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFullName(t *testing.T) {
	u := User{FirstName: "Ada", LastName: "Lovelace"}
	if got := u.FullName(); got != "Ada Lovelace" {
		t.Errorf("FullName = %q", got)
	}
	u = User{FirstName: "Ada"}
	if got := u.FullName(); got != "Ada" {
		t.Errorf("FullName = %q, want no trailing space", got)
	}
}

package domain

import "time"

// Intent is the server-side half of a two-factor login challenge. It pins the
// password-verified login attempt (and its device metadata) that a signed pre-auth
// marker refers to. Consumed (deleted) when the second factor is verified.
type Intent struct {
	ID         string
	UserID     string
	RememberMe bool
	DeviceID   string
	DeviceName string
	UserAgent  string
	IPAddress  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// Expired reports whether the intent can no longer be redeemed.
func (i *Intent) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

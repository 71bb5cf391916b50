package domain

import "time"

// Session is a device-scoped refresh session. The raw refresh token is never stored;
// RefreshTokenHash holds its SHA-256 hex digest.
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	DeviceID         string
	DeviceName       string
	UserAgent        string
	IPAddress        string
	Location         string
	Remembered       bool
	ExpiresAt        time.Time
	LastUsedAt       *time.Time // nil until first rotation
	RevokedAt        *time.Time // nil when not revoked
	CreatedAt        time.Time
}

// Active reports whether the session can still be refreshed at the given instant.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// Expired reports whether the session lifetime has passed, regardless of revocation.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

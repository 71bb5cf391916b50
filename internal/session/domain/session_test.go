package domain

import (
	"testing"
	"time"
)

func TestSessionActive(t *testing.T) {
	now := time.Now()
	revoked := now.Add(-time.Minute)

	testCases := []struct {
		name string
		sess Session
		want bool
	}{
		{"live", Session{ExpiresAt: now.Add(time.Hour)}, true},
		{"expired", Session{ExpiresAt: now.Add(-time.Second)}, false},
		{"expires exactly now", Session{ExpiresAt: now}, false},
		{"revoked", Session{ExpiresAt: now.Add(time.Hour), RevokedAt: &revoked}, false},
		{"revoked and expired", Session{ExpiresAt: now.Add(-time.Hour), RevokedAt: &revoked}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.sess.Active(now); got != tc.want {
				t.Errorf("Active = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	revoked := now.Add(-time.Minute)

	s := Session{ExpiresAt: now.Add(-time.Second), RevokedAt: &revoked}
	if !s.Expired(now) {
		t.Error("past ExpiresAt should report expired even when revoked")
	}

	s = Session{ExpiresAt: now.Add(time.Hour)}
	if s.Expired(now) {
		t.Error("future ExpiresAt should not report expired")
	}
}

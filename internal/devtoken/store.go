// Package devtoken provides an in-memory store for email verification tokens by
// tenant and email, used only when dev verify-token mode is enabled
// (GET /api/dev/verify-token). Never enabled in production.
package devtoken

import (
	"context"
	"sync"
	"time"
)

// Store holds plain verification tokens for dev-only retrieval. Not used in production.
type Store interface {
	// Put stores token for the tenant/email pair until expiresAt. Used when issuing a
	// verification token in dev mode.
	Put(ctx context.Context, tenantID, email, token string, expiresAt time.Time)
	// Get returns the token for the tenant/email pair if present and not expired.
	// Returns ok false if missing or expired.
	Get(ctx context.Context, tenantID, email string) (token string, ok bool)
}

type entry struct {
	token     string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory dev token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]entry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

func key(tenantID, email string) string {
	return tenantID + "/" + email
}

// Put stores token for the tenant/email pair until expiresAt.
func (s *MemoryStore) Put(ctx context.Context, tenantID, email, token string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key(tenantID, email)] = entry{token: token, expiresAt: expiresAt}
}

// Get returns the token for the tenant/email pair if present and not expired.
func (s *MemoryStore) Get(ctx context.Context, tenantID, email string) (string, bool) {
	k := key(tenantID, email)
	s.mu.RLock()
	e, ok := s.m[k]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, k)
		s.mu.Unlock()
		return "", false
	}
	return e.token, true
}

package devtoken

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_PutGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Put(ctx, "t-1", "a@b.test", "tok-1", time.Now().Add(time.Minute))

	got, ok := s.Get(ctx, "t-1", "a@b.test")
	if !ok {
		t.Fatal("expected token to be present")
	}
	if got != "tok-1" {
		t.Errorf("token = %q, want %q", got, "tok-1")
	}

	if _, ok := s.Get(ctx, "t-2", "a@b.test"); ok {
		t.Error("token must be scoped to the tenant")
	}
	if _, ok := s.Get(ctx, "t-1", "other@b.test"); ok {
		t.Error("unknown email should miss")
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()
	s.nowF = func() time.Time { return now }

	s.Put(ctx, "t-1", "a@b.test", "tok-1", now.Add(time.Minute))
	if _, ok := s.Get(ctx, "t-1", "a@b.test"); !ok {
		t.Fatal("token should be live before expiry")
	}

	s.nowF = func() time.Time { return now.Add(2 * time.Minute) }
	if _, ok := s.Get(ctx, "t-1", "a@b.test"); ok {
		t.Error("expired token should not be returned")
	}
	// Expired entry is dropped; still a miss with the old clock back.
	s.nowF = func() time.Time { return now }
	if _, ok := s.Get(ctx, "t-1", "a@b.test"); ok {
		t.Error("expired token should have been deleted")
	}
}

func TestMemoryStore_Overwrite(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Put(ctx, "t-1", "a@b.test", "tok-1", time.Now().Add(time.Minute))
	s.Put(ctx, "t-1", "a@b.test", "tok-2", time.Now().Add(time.Minute))

	got, ok := s.Get(ctx, "t-1", "a@b.test")
	if !ok || got != "tok-2" {
		t.Errorf("token = %q, %v; want tok-2 after resend overwrite", got, ok)
	}
}

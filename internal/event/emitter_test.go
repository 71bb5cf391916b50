package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/yearzendwise/Authentik-sub002/internal/event/domain"
)

// mockEmitter implements Emitter for tests.
type mockEmitter struct {
	mu      sync.Mutex
	events  []*domain.Event
	emitErr error
}

func (m *mockEmitter) Emit(ctx context.Context, e *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return m.emitErr
}

func (m *mockEmitter) getEvents() []*domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events
}

func TestEmitAsync_NilEmitter(t *testing.T) {
	// Should not panic
	EmitAsync(nil, &domain.Event{TenantID: "t-1", Type: "test"})
}

func TestEmitAsync_NilEvent(t *testing.T) {
	emitter := &mockEmitter{}

	// Should not panic
	EmitAsync(emitter, nil)

	time.Sleep(10 * time.Millisecond)
	if n := len(emitter.getEvents()); n != 0 {
		t.Errorf("expected 0 events, got %d", n)
	}
}

func TestEmitAsync_SuccessfulEmit(t *testing.T) {
	emitter := &mockEmitter{}
	e := &domain.Event{
		TenantID: "t-1",
		UserID:   "u-1",
		Type:     "auth.login",
		Source:   "test",
	}

	EmitAsync(emitter, e)

	time.Sleep(100 * time.Millisecond)
	events := emitter.getEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].TenantID != "t-1" {
		t.Errorf("event tenant_id = %q, want %q", events[0].TenantID, "t-1")
	}
	if events[0].Type != "auth.login" {
		t.Errorf("event type = %q, want %q", events[0].Type, "auth.login")
	}
}

func TestNoopEmitter(t *testing.T) {
	if err := (Noop{}).Emit(context.Background(), &domain.Event{Type: "x"}); err != nil {
		t.Fatalf("noop emit: %v", err)
	}
}

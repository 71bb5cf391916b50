package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/yearzendwise/Authentik-sub002/internal/event/domain"
)

// captureProcessor records the last log record it sees.
type captureProcessor struct {
	rec sdklog.Record
}

func (c *captureProcessor) OnEmit(ctx context.Context, rec *sdklog.Record) error {
	c.rec = *rec
	return nil
}
func (c *captureProcessor) Enabled(context.Context, sdklog.EnabledParameters) bool {
	return true
}
func (c *captureProcessor) Shutdown(context.Context) error   { return nil }
func (c *captureProcessor) ForceFlush(context.Context) error { return nil }

func TestNewEventEmitter_NilProvider(t *testing.T) {
	em := NewEventEmitter(nil)
	if err := em.Emit(context.Background(), &domain.Event{Type: "x"}); err != nil {
		t.Fatalf("no-op emitter returned error: %v", err)
	}
}

func TestOtelEmitter_RecordShape(t *testing.T) {
	cap := &captureProcessor{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(cap))
	em := NewEventEmitter(provider)

	now := time.Now().UTC().Truncate(time.Second)
	e := &domain.Event{
		ID:        "e-1",
		TenantID:  "t-1",
		UserID:    "u-1",
		SessionID: "s-1",
		Type:      "auth.refresh_reuse",
		Source:    "authd",
		IP:        "203.0.113.7",
		Metadata:  []byte(`{"custom":"data"}`),
		CreatedAt: now,
	}
	if err := em.Emit(context.Background(), e); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := cap.rec

	if rec.Timestamp().Unix() != now.Unix() {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), now)
	}
	if string(rec.Body().AsBytes()) != `{"custom":"data"}` {
		t.Errorf("body = %q, want %q", string(rec.Body().AsBytes()), `{"custom":"data"}`)
	}

	attrs := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	wantAttrs := map[string]string{
		"tenant_id":  "t-1",
		"user_id":    "u-1",
		"session_id": "s-1",
		"event_type": "auth.refresh_reuse",
		"source":     "authd",
		"ip":         "203.0.113.7",
	}
	for k, v := range wantAttrs {
		if attrs[k] != v {
			t.Errorf("attr %q = %q, want %q", k, attrs[k], v)
		}
	}
}

func TestOtelEmitter_DefaultsTimestamp(t *testing.T) {
	cap := &captureProcessor{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(cap))
	em := NewEventEmitter(provider)

	if err := em.Emit(context.Background(), &domain.Event{Type: "auth.login"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if cap.rec.Timestamp().IsZero() {
		t.Error("zero CreatedAt should be replaced with current time")
	}
}

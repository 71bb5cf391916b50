package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/yearzendwise/Authentik-sub002/internal/event"
	"github.com/yearzendwise/Authentik-sub002/internal/event/domain"
)

// NewEventEmitter returns an Emitter that sends security events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) event.Emitter {
	if provider == nil {
		return event.Noop{}
	}
	return &otelEmitter{logger: provider.Logger("authentik.event")}
}

type otelEmitter struct {
	logger otellog.Logger
}

// Emit converts the security event to an OTel log record and emits it. Best-effort.
func (e *otelEmitter) Emit(ctx context.Context, ev *domain.Event) error {
	if ev == nil {
		return nil
	}
	rec := otellog.Record{}
	if !ev.CreatedAt.IsZero() {
		rec.SetTimestamp(ev.CreatedAt)
	}
	if len(ev.Metadata) > 0 {
		rec.SetBody(otellog.BytesValue(ev.Metadata))
	}
	if ev.TenantID != "" {
		rec.AddAttributes(otellog.String("tenant_id", ev.TenantID))
	}
	if ev.UserID != "" {
		rec.AddAttributes(otellog.String("user_id", ev.UserID))
	}
	if ev.SessionID != "" {
		rec.AddAttributes(otellog.String("session_id", ev.SessionID))
	}
	if ev.Type != "" {
		rec.AddAttributes(otellog.String("event_type", ev.Type))
	}
	if ev.Source != "" {
		rec.AddAttributes(otellog.String("source", ev.Source))
	}
	if ev.IP != "" {
		rec.AddAttributes(otellog.String("ip", ev.IP))
	}
	if rec.Timestamp().IsZero() {
		rec.SetTimestamp(time.Now().UTC())
	}
	e.logger.Emit(ctx, rec)
	return nil
}

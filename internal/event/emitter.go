// Package event emits security events (logins, refresh reuse, revocations) to
// Kafka or OTel logs. Best-effort in all paths; auth flows never fail on emit errors.
package event

import (
	"context"
	"log"
	"time"

	"github.com/yearzendwise/Authentik-sub002/internal/event/domain"
)

// emitTimeout is the max time allowed for a single async emit. Used by EmitAsync and by ShutdownDrainDuration.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after HTTP Shutdown before shutting down OTel providers,
// so in-flight async emits have time to complete. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// Emitter emits security events. Callers use it best-effort: log and ignore errors.
type Emitter interface {
	// Emit sends a single event. Implementations may block briefly; call from a goroutine if needed.
	Emit(ctx context.Context, e *domain.Event) error
}

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is not blocked.
// Use from request handlers for fire-and-forget, best-effort events; errors are logged.
//
// emitter and e may be nil; EmitAsync returns immediately without starting a goroutine.
// The goroutine uses context.Background() with emitTimeout so request cancellation does not abort in-flight emit.
func EmitAsync(emitter Emitter, e *domain.Event) {
	if emitter == nil || e == nil {
		return
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, e); err != nil {
			log.Printf("event: async emit failed: %v", err)
		}
	}()
}

// Noop is an Emitter that discards every event.
type Noop struct{}

// Emit discards the event.
func (Noop) Emit(context.Context, *domain.Event) error { return nil }

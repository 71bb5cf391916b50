// Package handler exposes the readiness endpoint.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/yearzendwise/Authentik-sub002/internal/server/respond"
)

// Pinger reports storage reachability (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker reports policy-engine readiness (e.g. the OPA evaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler serves GET /healthz. Either dependency may be nil; its check is skipped.
type Handler struct {
	db     Pinger
	policy PolicyChecker
}

func New(db Pinger, policy PolicyChecker) *Handler {
	return &Handler{db: db, policy: policy}
}

// Healthz reports overall readiness: 200 when every wired dependency answers,
// 503 with per-component detail otherwise.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := map[string]string{}
	healthy := true

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			components["database"] = err.Error()
			healthy = false
		} else {
			components["database"] = "ok"
		}
	}
	if h.policy != nil {
		if err := h.policy.HealthCheck(ctx); err != nil {
			components["policy"] = err.Error()
			healthy = false
		} else {
			components["policy"] = "ok"
		}
	}

	status := http.StatusOK
	state := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	respond.JSON(w, status, map[string]any{"status": state, "components": components})
}

// Package handler exposes GET /api/dev/verify-token. Registered only when dev
// verify-token mode is on; never in production.
package handler

import (
	"context"
	"net/http"

	"github.com/yearzendwise/Authentik-sub002/internal/devtoken"
	"github.com/yearzendwise/Authentik-sub002/internal/server/respond"
	tenantdomain "github.com/yearzendwise/Authentik-sub002/internal/tenant/domain"
	userdomain "github.com/yearzendwise/Authentik-sub002/internal/user/domain"
)

// TenantResolver resolves a tenant slug to its row.
type TenantResolver interface {
	GetBySlug(ctx context.Context, slug string) (*tenantdomain.Tenant, error)
}

// Handler serves verification tokens back to dev tooling instead of email.
type Handler struct {
	store         devtoken.Store
	tenants       TenantResolver
	defaultTenant string
}

func New(store devtoken.Store, tenants TenantResolver, defaultTenant string) *Handler {
	return &Handler{store: store, tenants: tenants, defaultTenant: defaultTenant}
}

// VerifyToken handles GET /api/dev/verify-token?email=...&tenant=...
func (h *Handler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	email := userdomain.NormalizeEmail(r.URL.Query().Get("email"))
	if email == "" {
		respond.Error(w, http.StatusBadRequest, respond.CodeValidationFailed, "email query parameter is required")
		return
	}
	slug := r.URL.Query().Get("tenant")
	if slug == "" {
		slug = h.defaultTenant
	}
	tenant, err := h.tenants.GetBySlug(r.Context(), slug)
	if err != nil {
		respond.Internal(w)
		return
	}
	if tenant == nil {
		respond.Error(w, http.StatusNotFound, respond.CodeNotFound, "no token for that address")
		return
	}
	token, ok := h.store.Get(r.Context(), tenant.ID, email)
	if !ok {
		respond.Error(w, http.StatusNotFound, respond.CodeNotFound, "no token for that address")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"token": token})
}

// Package middleware provides the HTTP middleware chain: client IP resolution,
// request logging, rate limiting, and bearer-token authentication.
package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/yearzendwise/Authentik-sub002/internal/security"
	"github.com/yearzendwise/Authentik-sub002/internal/server/respond"
)

const bearerPrefix = "bearer "

// RequireAuth validates the Bearer access token and sets the caller's identity in
// context. Requests without a valid token get 401 with code Unauthorized.
func RequireAuth(tokens *security.TokenProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				respond.Error(w, http.StatusUnauthorized, respond.CodeUnauthorized, "missing or invalid authorization")
				return
			}
			claims, err := tokens.ValidateAccess(token)
			if err != nil {
				respond.Error(w, http.StatusUnauthorized, respond.CodeUnauthorized, "missing or invalid authorization")
				return
			}
			ctx := WithIdentity(r.Context(), claims.Subject, claims.TenantID, claims.Role, claims.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth sets identity in context when a valid token is present and passes
// anonymous requests through untouched. Used on endpoints like logout that work
// for both states.
func OptionalAuth(tokens *security.TokenProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := extractBearer(r); token != "" {
				if claims, err := tokens.ValidateAccess(token); err == nil {
					r = r.WithContext(WithIdentity(r.Context(), claims.Subject, claims.TenantID, claims.Role, claims.SessionID))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractBearer returns the Bearer token from the Authorization header, or "" if
// missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

// RealIP extracts the client's real IP, preferring X-Forwarded-For (first hop),
// then X-Real-IP, falling back to RemoteAddr.
func RealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ClientIP stores the resolved client IP in the request context so lower layers
// (audit, events) can read it without touching the request.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), RealIP(r))))
	})
}

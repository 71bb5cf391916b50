// Package server assembles the HTTP API: routes, middleware chain, and the
// per-context handlers.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	authhandler "github.com/yearzendwise/Authentik-sub002/internal/auth/handler"
	authservice "github.com/yearzendwise/Authentik-sub002/internal/auth/service"
	devtokenhandler "github.com/yearzendwise/Authentik-sub002/internal/devtoken/handler"
	healthhandler "github.com/yearzendwise/Authentik-sub002/internal/health/handler"
	"github.com/yearzendwise/Authentik-sub002/internal/security"
	"github.com/yearzendwise/Authentik-sub002/internal/server/middleware"
	sessionhandler "github.com/yearzendwise/Authentik-sub002/internal/session/handler"
)

// Deps holds everything the HTTP surface needs. DevTokenHandler is nil outside
// dev verify-token mode; its route is then not registered.
type Deps struct {
	Auth            *authservice.AuthService
	Tokens          *security.TokenProvider
	HealthPinger    healthhandler.Pinger
	HealthPolicy    healthhandler.PolicyChecker
	DevTokenHandler *devtokenhandler.Handler
	Logger          *slog.Logger

	// FrontendURL is the browser origin allowed by CORS.
	FrontendURL string
	// RateLimitPerMinute caps credential-endpoint requests per client IP.
	RateLimitPerMinute int
	// SecureCookies controls the Secure flag on the refresh cookie.
	SecureCookies bool
}

// Handler builds the complete HTTP handler: otelhttp → request logger → CORS →
// per-route rate limiting and bearer auth → handlers.
func Handler(deps Deps) http.Handler {
	authH := authhandler.New(deps.Auth, deps.Logger, deps.SecureCookies)
	sessionH := sessionhandler.New(deps.Auth, deps.Logger)
	healthH := healthhandler.New(deps.HealthPinger, deps.HealthPolicy)

	limiter := middleware.NewRateLimiter()
	limit := deps.RateLimitPerMinute
	if limit <= 0 {
		limit = 20
	}
	throttled := middleware.RateLimit(limiter, limit, time.Minute)
	authed := middleware.RequireAuth(deps.Tokens)
	optional := middleware.OptionalAuth(deps.Tokens)

	mux := http.NewServeMux()

	// Public, credential-bearing: throttled per client IP.
	mux.Handle("POST /api/auth/login", throttled(http.HandlerFunc(authH.Login)))
	mux.Handle("POST /api/auth/register", throttled(http.HandlerFunc(authH.Register)))
	mux.Handle("POST /api/auth/verify-email", throttled(http.HandlerFunc(authH.VerifyEmail)))
	mux.Handle("POST /api/auth/resend-verification", throttled(http.HandlerFunc(authH.ResendVerification)))

	// Public: token rides the cookie or body.
	mux.Handle("POST /api/auth/refresh", http.HandlerFunc(authH.Refresh))
	mux.Handle("POST /api/auth/logout", optional(http.HandlerFunc(authH.Logout)))

	// Bearer-protected.
	mux.Handle("POST /api/auth/change-password", authed(http.HandlerFunc(authH.ChangePassword)))
	mux.Handle("GET /api/auth/me", authed(http.HandlerFunc(authH.Me)))
	mux.Handle("PATCH /api/auth/menu-preference", authed(http.HandlerFunc(authH.MenuPreference)))
	mux.Handle("POST /api/auth/2fa/setup", authed(http.HandlerFunc(authH.SetupTwoFactor)))
	mux.Handle("POST /api/auth/2fa/enable", authed(http.HandlerFunc(authH.EnableTwoFactor)))
	mux.Handle("POST /api/auth/2fa/disable", authed(http.HandlerFunc(authH.DisableTwoFactor)))
	mux.Handle("GET /api/auth/sessions", authed(http.HandlerFunc(sessionH.List)))
	mux.Handle("DELETE /api/auth/sessions/{id}", authed(http.HandlerFunc(sessionH.Revoke)))

	mux.Handle("GET /healthz", http.HandlerFunc(healthH.Healthz))

	if deps.DevTokenHandler != nil {
		mux.Handle("GET /api/dev/verify-token", http.HandlerFunc(deps.DevTokenHandler.VerifyToken))
	}

	corsMW := cors.New(cors.Options{
		AllowedOrigins:   []string{deps.FrontendURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	var h http.Handler = mux
	h = middleware.ClientIP(h)
	h = corsMW.Handler(h)
	h = middleware.RequestLogger(deps.Logger)(h)
	h = otelhttp.NewHandler(h, "authd")

	return h
}

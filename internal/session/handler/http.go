// Package handler exposes device-session management over REST JSON.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yearzendwise/Authentik-sub002/internal/auth/service"
	"github.com/yearzendwise/Authentik-sub002/internal/server/middleware"
	"github.com/yearzendwise/Authentik-sub002/internal/server/respond"
	sessiondomain "github.com/yearzendwise/Authentik-sub002/internal/session/domain"
)

// Handler serves GET /api/auth/sessions and DELETE /api/auth/sessions/{id}.
type Handler struct {
	svc    *service.AuthService
	logger *slog.Logger
}

func New(svc *service.AuthService, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type sessionDTO struct {
	ID         string     `json:"id"`
	DeviceID   string     `json:"deviceId"`
	DeviceName string     `json:"deviceName"`
	UserAgent  string     `json:"userAgent"`
	IPAddress  string     `json:"ipAddress"`
	Location   string     `json:"location,omitempty"`
	Remembered bool       `json:"remembered"`
	Current    bool       `json:"current"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	ExpiresAt  time.Time  `json:"expiresAt"`
}

func toSessionDTO(s *sessiondomain.Session, currentID string) sessionDTO {
	return sessionDTO{
		ID:         s.ID,
		DeviceID:   s.DeviceID,
		DeviceName: s.DeviceName,
		UserAgent:  s.UserAgent,
		IPAddress:  s.IPAddress,
		Location:   s.Location,
		Remembered: s.Remembered,
		Current:    s.ID == currentID,
		CreatedAt:  s.CreatedAt,
		LastUsedAt: s.LastUsedAt,
		ExpiresAt:  s.ExpiresAt,
	}
}

// List handles GET /api/auth/sessions. The caller's own session is flagged so the
// UI can pin it first and suppress its revoke button.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, respond.CodeUnauthorized, "missing or invalid authorization")
		return
	}
	currentID, _ := middleware.GetSessionID(r.Context())

	sessions, err := h.svc.Sessions(r.Context(), userID)
	if err != nil {
		h.logger.Error("list sessions", "error", err)
		respond.Internal(w)
		return
	}
	out := make([]sessionDTO, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionDTO(s, currentID))
	}
	respond.JSON(w, http.StatusOK, map[string][]sessionDTO{"sessions": out})
}

// Revoke handles DELETE /api/auth/sessions/{id}. Only the caller's own sessions
// are reachable; foreign ids 404.
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, respond.CodeUnauthorized, "missing or invalid authorization")
		return
	}
	sessionID := r.PathValue("id")
	if sessionID == "" {
		respond.Error(w, http.StatusBadRequest, respond.CodeValidationFailed, "session id is required")
		return
	}
	if err := h.svc.RevokeSession(r.Context(), userID, sessionID); err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			respond.Error(w, http.StatusNotFound, respond.CodeNotFound, "session not found")
			return
		}
		h.logger.Error("revoke session", "error", err)
		respond.Internal(w)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

// Package handler exposes the auth service over REST JSON.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yearzendwise/Authentik-sub002/internal/auth/service"
	"github.com/yearzendwise/Authentik-sub002/internal/server/middleware"
	"github.com/yearzendwise/Authentik-sub002/internal/server/respond"
	userdomain "github.com/yearzendwise/Authentik-sub002/internal/user/domain"
)

// RefreshCookieName is the httpOnly cookie carrying the refresh token for browsers.
// Path-scoped to /api/auth so it never rides ordinary API calls.
const RefreshCookieName = "authentik_refresh"

const refreshCookiePath = "/api/auth"

// Handler serves the /api/auth/* routes.
type Handler struct {
	svc           *service.AuthService
	logger        *slog.Logger
	secureCookies bool
}

// New returns an auth Handler. secureCookies should be true everywhere except
// local plain-HTTP development.
func New(svc *service.AuthService, logger *slog.Logger, secureCookies bool) *Handler {
	return &Handler{svc: svc, logger: logger, secureCookies: secureCookies}
}

type userDTO struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	Role             string    `json:"role"`
	EmailVerified    bool      `json:"emailVerified"`
	TwoFactorEnabled bool      `json:"twoFactorEnabled"`
	MenuExpanded     bool      `json:"menuExpanded"`
	CreatedAt        time.Time `json:"createdAt"`
}

func toUserDTO(u *userdomain.User) userDTO {
	return userDTO{
		ID:               u.ID,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Role:             string(u.Role),
		EmailVerified:    u.EmailVerified,
		TwoFactorEnabled: u.TOTPEnabled,
		MenuExpanded:     u.MenuExpanded,
		CreatedAt:        u.CreatedAt,
	}
}

type loginRequest struct {
	Tenant         string `json:"tenant"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	TwoFactorToken string `json:"twoFactorToken"`
	PreAuthToken   string `json:"preAuthToken"`
	RememberMe     bool   `json:"rememberMe"`
	DeviceID       string `json:"deviceId"`
	DeviceName     string `json:"deviceName"`
}

type tokenResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	User         *userDTO  `json:"user,omitempty"`
}

type requires2FAResponse struct {
	Requires2FA  bool      `json:"requires2FA"`
	PreAuthToken string    `json:"preAuthToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Login(r.Context(), service.LoginInput{
		Tenant:        req.Tenant,
		Email:         req.Email,
		Password:      req.Password,
		TwoFactorCode: req.TwoFactorToken,
		PreAuthMarker: req.PreAuthToken,
		RememberMe:    req.RememberMe,
		Device:        h.deviceMeta(r, req.DeviceID, req.DeviceName),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	if res.SecondFactor != nil {
		respond.JSON(w, http.StatusOK, requires2FAResponse{
			Requires2FA:  true,
			PreAuthToken: res.SecondFactor.PreAuthMarker,
			ExpiresAt:    res.SecondFactor.ExpiresAt,
		})
		return
	}
	h.setRefreshCookie(w, res.Tokens.RefreshToken, res.Tokens.RefreshExpiresAt)
	user := toUserDTO(res.User)
	respond.JSON(w, http.StatusOK, tokenResponse{
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		ExpiresAt:    res.Tokens.AccessExpiresAt,
		User:         &user,
	})
}

type registerRequest struct {
	Tenant    string `json:"tenant"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Register handles POST /api/auth/register. Success is 201 and does not log in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.svc.Register(r.Context(), service.RegisterInput{
		Tenant:    req.Tenant,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, map[string]userDTO{"user": toUserDTO(user)})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh handles POST /api/auth/refresh. The token arrives via the httpOnly
// cookie (browsers) or the JSON body (everything else); the cookie wins.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := h.refreshTokenFrom(r)
	if token == "" {
		respond.Error(w, http.StatusUnauthorized, respond.CodeSessionInvalid, "no refresh token")
		return
	}
	res, err := h.svc.Refresh(r.Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrSessionInvalid) || errors.Is(err, service.ErrSessionExpired) || errors.Is(err, service.ErrMalformedToken) {
			h.clearRefreshCookie(w)
		}
		h.writeError(w, err)
		return
	}
	h.setRefreshCookie(w, res.Tokens.RefreshToken, res.Tokens.RefreshExpiresAt)
	user := toUserDTO(res.User)
	respond.JSON(w, http.StatusOK, tokenResponse{
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		ExpiresAt:    res.Tokens.AccessExpiresAt,
		User:         &user,
	})
}

// Logout handles POST /api/auth/logout. Best-effort and idempotent: always 200,
// always clears the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := h.refreshTokenFrom(r)
	sessionID, _ := middleware.GetSessionID(r.Context())
	if err := h.svc.Logout(r.Context(), token, sessionID); err != nil {
		h.logger.Warn("logout", "error", err)
	}
	h.clearRefreshCookie(w)
	respond.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

// VerifyEmail handles POST /api/auth/verify-email.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.VerifyEmail(r.Context(), req.Token); err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"verified": true})
}

type resendRequest struct {
	Tenant string `json:"tenant"`
	Email  string `json:"email"`
}

// ResendVerification handles POST /api/auth/resend-verification. Always 200 so the
// endpoint cannot be used to probe for addresses.
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.ResendVerification(r.Context(), req.Tenant, req.Email); err != nil {
		h.logger.Error("resend verification", "error", err)
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword handles POST /api/auth/change-password (bearer).
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, respond.CodeUnauthorized, "missing or invalid authorization")
		return
	}
	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sessionID, _ := middleware.GetSessionID(r.Context())
	if err := h.svc.ChangePassword(r.Context(), userID, sessionID, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Me handles GET /api/auth/me (bearer).
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, respond.CodeUnauthorized, "missing or invalid authorization")
		return
	}
	user, err := h.svc.Me(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]userDTO{"user": toUserDTO(user)})
}

type menuPreferenceRequest struct {
	MenuExpanded bool `json:"menuExpanded"`
}

// MenuPreference handles PATCH /api/auth/menu-preference (bearer).
func (h *Handler) MenuPreference(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, respond.CodeUnauthorized, "missing or invalid authorization")
		return
	}
	var req menuPreferenceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.SetMenuPreference(r.Context(), userID, req.MenuExpanded); err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"menuExpanded": req.MenuExpanded})
}

// SetupTwoFactor handles POST /api/auth/2fa/setup (bearer).
func (h *Handler) SetupTwoFactor(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, respond.CodeUnauthorized, "missing or invalid authorization")
		return
	}
	setup, err := h.svc.SetupTwoFactor(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{
		"secret":     setup.Secret,
		"otpauthUrl": setup.OtpauthURL,
	})
}

type twoFactorCodeRequest struct {
	Code string `json:"code"`
}

// EnableTwoFactor handles POST /api/auth/2fa/enable (bearer).
func (h *Handler) EnableTwoFactor(w http.ResponseWriter, r *http.Request) {
	h.twoFactorToggle(w, r, h.svc.EnableTwoFactor)
}

// DisableTwoFactor handles POST /api/auth/2fa/disable (bearer).
func (h *Handler) DisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	h.twoFactorToggle(w, r, h.svc.DisableTwoFactor)
}

func (h *Handler) twoFactorToggle(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID, code string) error) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, respond.CodeUnauthorized, "missing or invalid authorization")
		return
	}
	var req twoFactorCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := op(r.Context(), userID, req.Code); err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// deviceMeta assembles device info from the request: explicit body fields plus
// User-Agent and the resolved client IP.
func (h *Handler) deviceMeta(r *http.Request, deviceID, deviceName string) service.DeviceMeta {
	return service.DeviceMeta{
		DeviceID:   deviceID,
		DeviceName: deviceName,
		UserAgent:  r.UserAgent(),
		IP:         middleware.GetClientIP(r.Context()),
	}
}

func (h *Handler) refreshTokenFrom(r *http.Request) string {
	if c, err := r.Cookie(RefreshCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	var req refreshRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	return req.RefreshToken
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     refreshCookiePath,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

// writeError maps service errors to the wire taxonomy.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		respond.Error(w, http.StatusUnauthorized, respond.CodeInvalidCredentials, "invalid email or password")
	case errors.Is(err, service.ErrEmailNotVerified):
		respond.Error(w, http.StatusForbidden, respond.CodeEmailNotVerified, "email address not verified")
	case errors.Is(err, service.ErrEmailTaken):
		respond.Error(w, http.StatusConflict, respond.CodeEmailAlreadyExists, "email already registered")
	case errors.Is(err, service.ErrIncorrectPassword):
		respond.Error(w, http.StatusUnauthorized, respond.CodeIncorrectCurrentPassword, "current password is incorrect")
	case errors.Is(err, service.ErrMalformedToken):
		respond.Error(w, http.StatusUnauthorized, respond.CodeMalformedToken, "malformed refresh token")
	case errors.Is(err, service.ErrSessionInvalid):
		respond.Error(w, http.StatusUnauthorized, respond.CodeSessionInvalid, "session invalid or revoked")
	case errors.Is(err, service.ErrSessionExpired):
		respond.Error(w, http.StatusUnauthorized, respond.CodeSessionExpired, "session expired")
	case errors.Is(err, service.ErrInvalidSecondFactor):
		respond.Error(w, http.StatusUnauthorized, respond.CodeInvalidTwoFactorCode, "invalid two-factor code")
	case errors.Is(err, service.ErrSecondFactorRequired):
		respond.Error(w, http.StatusForbidden, respond.CodeTwoFactorRequired, "a second factor is required by policy")
	case errors.Is(err, service.ErrPreAuthInvalid):
		respond.Error(w, http.StatusUnauthorized, respond.CodePreAuthInvalid, "pre-auth token invalid or expired")
	case errors.Is(err, service.ErrTwoFactorNotSetup), errors.Is(err, service.ErrTwoFactorNotEnabled):
		respond.Error(w, http.StatusBadRequest, respond.CodeValidationFailed, err.Error())
	case errors.Is(err, service.ErrInvalidVerifyToken):
		respond.Error(w, http.StatusBadRequest, respond.CodeValidationFailed, "invalid or expired verification token")
	case errors.Is(err, service.ErrUnknownTenant):
		respond.Error(w, http.StatusBadRequest, respond.CodeValidationFailed, "unknown tenant")
	case errors.Is(err, service.ErrSessionNotFound):
		respond.Error(w, http.StatusNotFound, respond.CodeNotFound, "session not found")
	default:
		if isValidationMessage(err.Error()) {
			respond.Error(w, http.StatusUnprocessableEntity, respond.CodeValidationFailed, err.Error())
			return
		}
		h.logger.Error("auth handler", "error", err)
		respond.Internal(w)
	}
}

// isValidationMessage distinguishes input-validation errors (password rules, email
// format) from true internal failures so the former get a 422, not a 500.
func isValidationMessage(msg string) bool {
	for _, prefix := range []string{"password ", "email ", "invalid email"} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

// decodeJSON decodes the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeValidationFailed, "invalid JSON body")
		return false
	}
	return true
}

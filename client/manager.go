// Package authclient is the Go client for the auth API: it owns the access token
// in memory, refreshes it pre-emptively, serializes 401-triggered refreshes, and
// exposes the auth state machine to callers.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Errors surfaced to callers. ErrSessionInvalid means the session is definitively
// gone and the caller must route to login.
var (
	ErrInvalidCredentials = errors.New("authclient: invalid credentials")
	ErrEmailNotVerified   = errors.New("authclient: email not verified")
	ErrSessionInvalid     = errors.New("authclient: session invalid")
	ErrNotInitialized     = errors.New("authclient: manager not initialized")
	ErrClosed             = errors.New("authclient: manager closed")
)

// User is the public user record the API returns.
type User struct {
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

// Session is a device session as listed by the API.
type Session struct {
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

// LoginResult is the outcome of Login: either a completed sign-in (User set) or a
// pending second factor (Requires2FA with the pre-auth token to hand back).
type LoginResult struct {
	Requires2FA  bool
	PreAuthToken string
	User         *User
}

// Config configures a Manager.
type Config struct {
	// BaseURL is the API origin, e.g. "https://auth.example.com".
	BaseURL string
	// Tenant is the tenant slug sent with credential calls; empty uses the
	// server default.
	Tenant string
	// Store persists the refresh token. Defaults to an in-memory store.
	Store CredentialStore
	// HTTPClient defaults to a 15s-timeout client.
	HTTPClient *http.Client
	// RefreshSkew is how long before access expiry the pre-emptive refresh fires.
	// Defaults to 30s.
	RefreshSkew time.Duration
	Logger      *slog.Logger
}

// Manager owns client-side auth: one per process. Construct with New, call
// Initialize once, Close on shutdown.
type Manager struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger

	mu           sync.RWMutex
	state        State
	accessToken  string
	accessExpiry time.Time
	user         *User
	subs         map[chan Event]struct{}
	refreshTimer *time.Timer
	initialized  bool
	closed       bool

	refreshGroup singleflight.Group
}

// New returns an uninitialized Manager.
func New(cfg Config) *Manager {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.RefreshSkew <= 0 {
		cfg.RefreshSkew = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		cfg:    cfg,
		client: cfg.HTTPClient,
		logger: cfg.Logger,
		state:  StateUninitialized,
		subs:   make(map[chan Event]struct{}),
	}
}

// State returns the current auth state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// CurrentUser returns the last user record the server confirmed, or nil.
func (m *Manager) CurrentUser() *User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	c := *m.user
	return &c
}

// Initialize resolves the state machine: if the store holds a refresh token, one
// silent refresh decides between authenticated and unauthenticated; otherwise the
// state goes straight to unauthenticated. Calling it twice is an error.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.initialized {
		m.mu.Unlock()
		return errors.New("authclient: already initialized")
	}
	m.initialized = true
	m.mu.Unlock()
	m.setState(StateInitializing)

	stored, err := m.cfg.Store.Load()
	if err != nil {
		m.logger.Warn("load stored credential", "error", err)
	}
	if stored == "" {
		m.setState(StateUnauthenticated)
		return nil
	}

	if err := m.refresh(ctx); err != nil {
		if errors.Is(err, ErrSessionInvalid) {
			// Definitive: the stored credential is dead.
			m.setState(StateUnauthenticated)
			return nil
		}
		// Network trouble: keep the stored credential, report unauthenticated for
		// now; the next request can retry.
		m.logger.Warn("silent refresh", "error", err)
		m.setState(StateUnauthenticated)
		return err
	}
	return nil
}

// Close stops the refresh timer and closes all subscriber channels.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
	}
	for sub := range m.subs {
		close(sub)
		delete(m.subs, sub)
	}
}

type loginRequest struct {
	Tenant         string `json:"tenant,omitempty"`
	Email          string `json:"email,omitempty"`
	Password       string `json:"password,omitempty"`
	TwoFactorToken string `json:"twoFactorToken,omitempty"`
	PreAuthToken   string `json:"preAuthToken,omitempty"`
	RememberMe     bool   `json:"rememberMe,omitempty"`
}

type tokenResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	User         *User     `json:"user"`
	Requires2FA  bool      `json:"requires2FA"`
	PreAuthToken string    `json:"preAuthToken"`
}

// Login authenticates with email and password. Three outcomes: a completed
// sign-in, a second-factor challenge (Requires2FA), or an error. EmailNotVerified
// transitions the state machine to authenticated-unverified, since identity was
// proven even though no tokens were issued.
func (m *Manager) Login(ctx context.Context, email, password string, rememberMe bool) (*LoginResult, error) {
	return m.doLogin(ctx, loginRequest{
		Tenant:     m.cfg.Tenant,
		Email:      email,
		Password:   password,
		RememberMe: rememberMe,
	})
}

// CompleteSecondFactor finishes a two-factor login using the pre-auth token from
// the Requires2FA result and the user's current TOTP code.
func (m *Manager) CompleteSecondFactor(ctx context.Context, preAuthToken, code string) (*LoginResult, error) {
	return m.doLogin(ctx, loginRequest{
		PreAuthToken:   preAuthToken,
		TwoFactorToken: code,
	})
}

func (m *Manager) doLogin(ctx context.Context, req loginRequest) (*LoginResult, error) {
	resp, err := m.postJSON(ctx, "/api/auth/login", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body tokenResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("authclient: decode login response: %w", err)
		}
		if body.Requires2FA {
			return &LoginResult{Requires2FA: true, PreAuthToken: body.PreAuthToken}, nil
		}
		m.adoptTokens(body)
		m.publish(Event{Type: EventSignedIn, State: m.State(), User: body.User})
		return &LoginResult{User: body.User}, nil
	case http.StatusForbidden:
		if apiCode(resp) == "EmailNotVerified" {
			m.setState(StateAuthenticatedUnverified)
			return nil, ErrEmailNotVerified
		}
		return nil, ErrInvalidCredentials
	case http.StatusUnauthorized:
		return nil, ErrInvalidCredentials
	default:
		return nil, fmt.Errorf("authclient: login failed with status %d", resp.StatusCode)
	}
}

// Logout revokes the session server-side and clears local state. Best-effort:
// local state clears even when the network call fails.
func (m *Manager) Logout(ctx context.Context) error {
	token, _ := m.cfg.Store.Load()
	var netErr error
	if token != "" {
		resp, err := m.postJSON(ctx, "/api/auth/logout", map[string]string{"refreshToken": token})
		if err != nil {
			netErr = err
			m.logger.Warn("logout request", "error", err)
		} else {
			resp.Body.Close()
		}
	}
	m.clearAuth()
	m.publish(Event{Type: EventSignedOut, State: StateUnauthenticated})
	return netErr
}

// Do performs an authenticated request. On a 401 it refreshes (single-flight
// across concurrent callers) and retries exactly once with the new token. If the
// refresh itself is definitively rejected, local state clears and the caller gets
// ErrSessionInvalid. Transient refresh failures surface as errors without
// touching stored credentials.
func (m *Manager) Do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	m.mu.RLock()
	if !m.initialized {
		m.mu.RUnlock()
		return nil, ErrNotInitialized
	}
	token := m.accessToken
	m.mu.RUnlock()

	resp, err := m.send(ctx, method, path, body, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	if err := m.refreshIfStale(ctx, token); err != nil {
		return nil, err
	}
	m.mu.RLock()
	token = m.accessToken
	m.mu.RUnlock()
	return m.send(ctx, method, path, body, token)
}

// Me fetches the current user and updates the cached record.
func (m *Manager) Me(ctx context.Context) (*User, error) {
	resp, err := m.Do(ctx, http.MethodGet, "/api/auth/me", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("authclient: me failed with status %d", resp.StatusCode)
	}
	var body struct {
		User *User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.user = body.User
	m.mu.Unlock()
	return body.User, nil
}

// Sessions lists the user's active device sessions.
func (m *Manager) Sessions(ctx context.Context) ([]Session, error) {
	resp, err := m.Do(ctx, http.MethodGet, "/api/auth/sessions", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("authclient: sessions failed with status %d", resp.StatusCode)
	}
	var body struct {
		Sessions []Session `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Sessions, nil
}

// RevokeSession revokes one of the user's sessions by id.
func (m *Manager) RevokeSession(ctx context.Context, sessionID string) error {
	resp, err := m.Do(ctx, http.MethodDelete, "/api/auth/sessions/"+sessionID, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("authclient: revoke session failed with status %d", resp.StatusCode)
	}
	return nil
}

// SetMenuPreference persists the sidebar preference.
func (m *Manager) SetMenuPreference(ctx context.Context, expanded bool) error {
	b, _ := json.Marshal(map[string]bool{"menuExpanded": expanded})
	resp, err := m.Do(ctx, http.MethodPatch, "/api/auth/menu-preference", b)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("authclient: menu preference failed with status %d", resp.StatusCode)
	}
	return nil
}

// refresh rotates the refresh token unconditionally relative to the current
// access token. Used by Initialize and the pre-emptive timer.
func (m *Manager) refresh(ctx context.Context) error {
	m.mu.RLock()
	used := m.accessToken
	m.mu.RUnlock()
	return m.refreshIfStale(ctx, used)
}

// refreshIfStale rotates the refresh token unless another caller already did.
// Concurrent callers share one network call via singleflight, and the staleness
// check runs inside the critical section: a caller whose 401 was observed with an
// access token that has since been replaced skips the network entirely. Two tabs
// hitting 401 together therefore produce exactly one rotation.
func (m *Manager) refreshIfStale(ctx context.Context, used string) error {
	_, err, _ := m.refreshGroup.Do("refresh", func() (interface{}, error) {
		m.mu.RLock()
		current := m.accessToken
		m.mu.RUnlock()
		if current != used && current != "" {
			return nil, nil
		}
		return nil, m.doRefresh(ctx)
	})
	return err
}

func (m *Manager) doRefresh(ctx context.Context) error {
	token, err := m.cfg.Store.Load()
	if err != nil {
		return err
	}
	if token == "" {
		m.clearAuth()
		return ErrSessionInvalid
	}

	resp, err := m.postJSON(ctx, "/api/auth/refresh", map[string]string{"refreshToken": token})
	if err != nil {
		// Network failure: never clear tokens on a transient error.
		return fmt.Errorf("authclient: refresh request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var body tokenResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("authclient: decode refresh response: %w", err)
		}
		m.adoptTokens(body)
		m.publish(Event{Type: EventTokenRefreshed, State: m.State(), User: body.User})
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		// Definitive rejection: the session is gone.
		m.clearAuth()
		m.publish(Event{Type: EventSessionRevoked, State: StateUnauthenticated})
		return ErrSessionInvalid
	default:
		// 5xx and friends are transient; keep credentials.
		return fmt.Errorf("authclient: refresh failed with status %d", resp.StatusCode)
	}
}

// adoptTokens installs a fresh token pair, persists the refresh token, updates
// the state machine, and arms the pre-emptive refresh timer.
func (m *Manager) adoptTokens(body tokenResponse) {
	if err := m.cfg.Store.Store(body.RefreshToken); err != nil {
		m.logger.Warn("persist refresh token", "error", err)
	}

	m.mu.Lock()
	m.accessToken = body.AccessToken
	m.accessExpiry = body.ExpiresAt
	if body.User != nil {
		m.user = body.User
	}
	m.armRefreshTimerLocked()
	verified := m.user == nil || m.user.EmailVerified
	m.mu.Unlock()

	if verified {
		m.setState(StateAuthenticatedVerified)
	} else {
		m.setState(StateAuthenticatedUnverified)
	}
}

// armRefreshTimerLocked schedules the next pre-emptive refresh RefreshSkew before
// the known expiry. Reset per rotation, never a fixed interval. Caller holds m.mu.
func (m *Manager) armRefreshTimerLocked() {
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
	}
	if m.closed || m.accessExpiry.IsZero() {
		return
	}
	d := time.Until(m.accessExpiry) - m.cfg.RefreshSkew
	if d < time.Second {
		d = time.Second
	}
	m.refreshTimer = time.AfterFunc(d, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := m.refresh(ctx); err != nil && !errors.Is(err, ErrSessionInvalid) {
			m.logger.Warn("pre-emptive refresh", "error", err)
		}
	})
}

// clearAuth wipes access token, user, stored credential, and timer, and moves the
// state machine to unauthenticated.
func (m *Manager) clearAuth() {
	if err := m.cfg.Store.Clear(); err != nil {
		m.logger.Warn("clear stored credential", "error", err)
	}
	m.mu.Lock()
	m.accessToken = ""
	m.accessExpiry = time.Time{}
	m.user = nil
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
	}
	m.mu.Unlock()
	m.setState(StateUnauthenticated)
}

// setState transitions the state machine and broadcasts the change.
func (m *Manager) setState(s State) {
	m.mu.Lock()
	if m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	user := m.user
	m.mu.Unlock()
	m.publish(Event{Type: EventStateChanged, State: s, User: user})
}

func (m *Manager) send(ctx context.Context, method, path string, body []byte, token string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, m.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return m.client.Do(req)
}

func (m *Manager) postJSON(ctx context.Context, path string, v any) (*http.Response, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return m.send(ctx, http.MethodPost, path, b, "")
}

// apiCode extracts the error code from the API's error envelope. Consumes the body.
func apiCode(resp *http.Response) string {
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return body.Error.Code
}

// Package service implements credential validation, token issuance, refresh
// rotation, and account security operations for the auth API.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yearzendwise/Authentik-sub002/internal/audit"
	"github.com/yearzendwise/Authentik-sub002/internal/devtoken"
	"github.com/yearzendwise/Authentik-sub002/internal/event"
	eventdomain "github.com/yearzendwise/Authentik-sub002/internal/event/domain"
	"github.com/yearzendwise/Authentik-sub002/internal/mailer"
	policyengine "github.com/yearzendwise/Authentik-sub002/internal/policy/engine"
	"github.com/yearzendwise/Authentik-sub002/internal/security"
	sessiondomain "github.com/yearzendwise/Authentik-sub002/internal/session/domain"
	tenantdomain "github.com/yearzendwise/Authentik-sub002/internal/tenant/domain"
	twofadomain "github.com/yearzendwise/Authentik-sub002/internal/twofactor/domain"
	userdomain "github.com/yearzendwise/Authentik-sub002/internal/user/domain"
)

// Sentinel errors for the auth service; the HTTP handler maps them to status codes.
var (
	// ErrInvalidCredentials covers unknown email, wrong password, and disabled
	// accounts alike so responses carry no enumeration oracle.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailNotVerified means the credentials were correct but the address is
	// unconfirmed. Recoverable; the client routes to the pending-verification flow.
	ErrEmailNotVerified      = errors.New("email not verified")
	ErrEmailTaken            = errors.New("email already registered")
	ErrIncorrectPassword     = errors.New("current password is incorrect")
	ErrMalformedToken        = errors.New("malformed refresh token")
	ErrSessionInvalid        = errors.New("session invalid or revoked")
	ErrSessionExpired        = errors.New("session expired")
	ErrSessionNotFound       = errors.New("session not found")
	ErrInvalidSecondFactor   = errors.New("invalid two-factor code")
	ErrSecondFactorRequired  = errors.New("tenant policy requires a second factor; none enrolled")
	ErrPreAuthInvalid        = errors.New("pre-auth marker invalid or expired")
	ErrTwoFactorNotSetup     = errors.New("two-factor setup has not been started")
	ErrTwoFactorNotEnabled   = errors.New("two-factor is not enabled")
	ErrUnknownTenant         = errors.New("unknown tenant")
	ErrInvalidVerifyToken    = errors.New("invalid or expired verification token")
)

// DeviceMeta describes the device/browser a session is anchored to.
type DeviceMeta struct {
	DeviceID   string
	DeviceName string
	UserAgent  string
	IP         string
	Location   string
}

// LoginInput carries one login attempt: either email+password (first leg) or a
// pre-auth marker + TOTP code (second leg of a two-factor login).
type LoginInput struct {
	Tenant        string // tenant slug; empty falls back to the service default
	Email         string
	Password      string
	TwoFactorCode string
	PreAuthMarker string
	RememberMe    bool
	Device        DeviceMeta
}

// TokenPair is a freshly issued access/refresh token pair.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// SecondFactorChallenge is the REQUIRES_2FA outcome: not an error, an intermediate
// protocol state. The marker lets the client retry without re-sending the password.
type SecondFactorChallenge struct {
	PreAuthMarker string
	ExpiresAt     time.Time
}

// LoginResult is the outcome of a successful or two-factor-pending login.
// Exactly one of SecondFactor and Tokens is set.
type LoginResult struct {
	SecondFactor *SecondFactorChallenge
	Tokens       *TokenPair
	SessionID    string
	User         *userdomain.User
}

// RefreshResult is the outcome of a successful refresh rotation.
type RefreshResult struct {
	Tokens    *TokenPair
	SessionID string
	User      *userdomain.User
}

// RegisterInput carries a registration request.
type RegisterInput struct {
	Tenant    string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// TwoFactorSetup is the result of starting TOTP enrollment.
type TwoFactorSetup struct {
	Secret     string
	OtpauthURL string
}

// TenantRepo is the minimal tenant repository needed by the auth service.
type TenantRepo interface {
	GetBySlug(ctx context.Context, slug string) (*tenantdomain.Tenant, error)
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByTenantAndEmail(ctx context.Context, tenantID, email string) (*userdomain.User, error)
	GetByVerifyTokenHash(ctx context.Context, tokenHash string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	SetEmailVerified(ctx context.Context, id string) error
	SetVerifyToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	SetTOTP(ctx context.Context, id, secret string, enabled bool) error
	SetMenuExpanded(ctx context.Context, id string, expanded bool) error
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*sessiondomain.Session, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*sessiondomain.Session, error)
	Create(ctx context.Context, s *sessiondomain.Session) error
	Rotate(ctx context.Context, id, oldHash, newHash string, expiresAt time.Time) (bool, error)
	Revoke(ctx context.Context, id string) error
	RevokeAllByUser(ctx context.Context, userID, exceptID string, keepRemembered bool) (int64, error)
}

// IntentRepo is the minimal two-factor intent repository needed by the auth service.
type IntentRepo interface {
	Create(ctx context.Context, i *twofadomain.Intent) error
	GetByID(ctx context.Context, id string) (*twofadomain.Intent, error)
	Delete(ctx context.Context, id string) error
}

// AuthService implements login (with optional second factor), registration, email
// verification, refresh rotation, session management, and 2FA lifecycle.
type AuthService struct {
	tenantRepo  TenantRepo
	userRepo    UserRepo
	sessionRepo SessionRepo
	intentRepo  IntentRepo
	hasher      *security.Hasher
	tokens      *security.TokenProvider
	preauth     *security.PreAuthSigner
	policy      policyengine.Evaluator
	mail        mailer.Sender
	auditor     audit.AuditLogger
	events      event.Emitter
	devTokens   devtoken.Store // nil outside dev verify-token mode
	logger      *slog.Logger

	totpIssuer    string
	defaultTenant string
	verifyTTL     time.Duration
}

// Options carries the non-repository knobs for NewAuthService.
type Options struct {
	// TOTPIssuer is the issuer shown in authenticator apps (e.g. "authentik").
	TOTPIssuer string
	// DefaultTenant is the slug assumed when requests name no tenant.
	DefaultTenant string
	// VerifyTTL is the email verification token lifetime.
	VerifyTTL time.Duration
	// DevTokens, when non-nil, keeps raw verification tokens for dev retrieval.
	DevTokens devtoken.Store
}

// NewAuthService returns an AuthService with the given dependencies.
// auditor and events may be nil (no auditing/events); mail may be nil (no outbound mail).
func NewAuthService(
	tenantRepo TenantRepo,
	userRepo UserRepo,
	sessionRepo SessionRepo,
	intentRepo IntentRepo,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	preauth *security.PreAuthSigner,
	policy policyengine.Evaluator,
	mail mailer.Sender,
	auditor audit.AuditLogger,
	events event.Emitter,
	logger *slog.Logger,
	opts Options,
) *AuthService {
	if opts.VerifyTTL <= 0 {
		opts.VerifyTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		tenantRepo:    tenantRepo,
		userRepo:      userRepo,
		sessionRepo:   sessionRepo,
		intentRepo:    intentRepo,
		hasher:        hasher,
		tokens:        tokens,
		preauth:       preauth,
		policy:        policy,
		mail:          mail,
		auditor:       auditor,
		events:        events,
		devTokens:     opts.DevTokens,
		logger:        logger,
		totpIssuer:    opts.TOTPIssuer,
		defaultTenant: opts.DefaultTenant,
		verifyTTL:     opts.VerifyTTL,
	}
}

// Login authenticates one attempt. Outcomes:
//   - wrong email/password/disabled account: ErrInvalidCredentials (uniform timing);
//   - correct credentials, unverified email: ErrEmailNotVerified, no tokens;
//   - second factor owed: LoginResult.SecondFactor set, no tokens (retry with the
//     marker and a TOTP code; the password is not re-validated on that leg);
//   - success: new session row plus access/refresh pair and the sanitized user.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if in.PreAuthMarker != "" {
		return s.loginWithMarker(ctx, in)
	}

	tenant, user, err := s.lookupForLogin(ctx, in.Tenant, in.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		// Burn a bcrypt compare so a lookup miss costs the same as a mismatch.
		s.hasher.CompareDummy([]byte(in.Password))
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(in.Password)); err != nil {
		s.audit(ctx, tenant.ID, user.ID, audit.ActionLoginFailed, audit.ResourceAuth, `{"reason":"bad_password"}`)
		return nil, ErrInvalidCredentials
	}
	if !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	decision := s.evaluatePolicy(ctx, tenant.ID, user, in)

	if user.TOTPEnabled {
		if in.TwoFactorCode == "" {
			return s.issueSecondFactorChallenge(ctx, tenant.ID, user, in)
		}
		if !security.ValidateTOTP(in.TwoFactorCode, user.TOTPSecret) {
			s.audit(ctx, tenant.ID, user.ID, audit.ActionLoginFailed, audit.ResourceAuth, `{"reason":"bad_totp"}`)
			return nil, ErrInvalidSecondFactor
		}
	} else if decision.RequireSecondFactor {
		// Policy demands a factor the user has not enrolled. Distinct, actionable.
		return nil, ErrSecondFactorRequired
	}

	return s.establishSession(ctx, tenant.ID, user, in.RememberMe, in.Device, decision)
}

// loginWithMarker is the second leg of a two-factor login: marker + code, no password.
// The code itself is always verified here, even when the marker is still fresh.
func (s *AuthService) loginWithMarker(ctx context.Context, in LoginInput) (*LoginResult, error) {
	intentID, userID, err := s.preauth.Validate(in.PreAuthMarker)
	if err != nil {
		return nil, ErrPreAuthInvalid
	}
	intent, err := s.intentRepo.GetByID(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent == nil || intent.UserID != userID || intent.Expired(time.Now().UTC()) {
		return nil, ErrPreAuthInvalid
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive || !user.TOTPEnabled {
		return nil, ErrPreAuthInvalid
	}
	if in.TwoFactorCode == "" || !security.ValidateTOTP(in.TwoFactorCode, user.TOTPSecret) {
		s.audit(ctx, user.TenantID, user.ID, audit.ActionLoginFailed, audit.ResourceAuth, `{"reason":"bad_totp"}`)
		return nil, ErrInvalidSecondFactor
	}
	// Consume the intent before minting tokens; a second retry with the same marker fails.
	if err := s.intentRepo.Delete(ctx, intentID); err != nil {
		return nil, err
	}

	device := DeviceMeta{
		DeviceID:   intent.DeviceID,
		DeviceName: intent.DeviceName,
		UserAgent:  intent.UserAgent,
		IP:         intent.IPAddress,
	}
	decision := s.evaluatePolicy(ctx, user.TenantID, user, in)
	return s.establishSession(ctx, user.TenantID, user, intent.RememberMe, device, decision)
}

func (s *AuthService) issueSecondFactorChallenge(ctx context.Context, tenantID string, user *userdomain.User, in LoginInput) (*LoginResult, error) {
	now := time.Now().UTC()
	intent := &twofadomain.Intent{
		ID:         uuid.New().String(),
		UserID:     user.ID,
		RememberMe: in.RememberMe,
		DeviceID:   in.Device.DeviceID,
		DeviceName: in.Device.DeviceName,
		UserAgent:  in.Device.UserAgent,
		IPAddress:  in.Device.IP,
		ExpiresAt:  now.Add(s.preauth.TTL()),
		CreatedAt:  now,
	}
	if err := s.intentRepo.Create(ctx, intent); err != nil {
		return nil, err
	}
	marker, expiresAt, err := s.preauth.Issue(intent.ID, user.ID)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, tenantID, user.ID, audit.ActionSecondFactorChallenge, audit.ResourceAuth, "")
	return &LoginResult{
		SecondFactor: &SecondFactorChallenge{PreAuthMarker: marker, ExpiresAt: expiresAt},
	}, nil
}

// establishSession creates the session row and mints the token pair.
func (s *AuthService) establishSession(ctx context.Context, tenantID string, user *userdomain.User, remembered bool, device DeviceMeta, decision policyengine.Decision) (*LoginResult, error) {
	if decision.MaxActiveSessions > 0 {
		if err := s.enforceSessionCap(ctx, user.ID, decision.MaxActiveSessions); err != nil {
			return nil, err
		}
	}

	ttl := time.Duration(decision.RefreshTTLHours) * time.Hour
	if remembered {
		ttl = time.Duration(decision.RememberedTTLHours) * time.Hour
	}

	rawRefresh, refreshHash, err := security.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	if device.DeviceID == "" {
		device.DeviceID = uuid.New().String()
	}

	now := time.Now().UTC()
	sess := &sessiondomain.Session{
		ID:               uuid.New().String(),
		UserID:           user.ID,
		RefreshTokenHash: refreshHash,
		DeviceID:         device.DeviceID,
		DeviceName:       device.DeviceName,
		UserAgent:        device.UserAgent,
		IPAddress:        device.IP,
		Location:         device.Location,
		Remembered:       remembered,
		ExpiresAt:        now.Add(ttl),
		CreatedAt:        now,
	}
	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		return nil, err
	}

	accessToken, accessExp, err := s.tokens.IssueAccess(sess.ID, user.ID, tenantID, string(user.Role))
	if err != nil {
		return nil, err
	}

	s.audit(ctx, tenantID, user.ID, audit.ActionLogin, audit.ResourceAuth, deviceJSON(device))
	s.emit(tenantID, user.ID, sess.ID, audit.ActionLogin, device.IP, nil)

	return &LoginResult{
		Tokens: &TokenPair{
			AccessToken:      accessToken,
			AccessExpiresAt:  accessExp,
			RefreshToken:     rawRefresh,
			RefreshExpiresAt: sess.ExpiresAt,
		},
		SessionID: sess.ID,
		User:      sanitizeUser(user),
	}, nil
}

// enforceSessionCap revokes the oldest active sessions so a new login fits under max.
func (s *AuthService) enforceSessionCap(ctx context.Context, userID string, max int) error {
	active, err := s.sessionRepo.ListActiveByUser(ctx, userID)
	if err != nil {
		return err
	}
	// ListActiveByUser returns newest first; everything at index max-1 and beyond
	// must go to make room for the incoming session.
	for i := max - 1; i < len(active); i++ {
		if err := s.sessionRepo.Revoke(ctx, active[i].ID); err != nil {
			return err
		}
	}
	return nil
}

// Refresh exchanges a valid refresh token for a new access/refresh pair, rotating
// the session row with a compare-and-swap. Exactly one of two concurrent calls with
// the same token wins; the loser observes the rotated row and gets ErrSessionInvalid
// without revoking the winner's session.
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (*RefreshResult, error) {
	if !security.ValidRefreshTokenFormat(rawToken) {
		return nil, ErrMalformedToken
	}
	oldHash := security.HashRefreshToken(rawToken)
	sess, err := s.sessionRepo.GetByTokenHash(ctx, oldHash)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		// Well-formed but unknown: either garbage or a token superseded by rotation.
		// The latter is the replay/race case, so record it.
		s.audit(ctx, "", "", audit.ActionRefreshReuse, audit.ResourceSession, `{"reason":"token_not_found_or_superseded"}`)
		s.emit("", "", "", audit.ActionRefreshReuse, "", nil)
		return nil, ErrSessionInvalid
	}
	now := time.Now().UTC()
	if sess.RevokedAt != nil {
		return nil, ErrSessionInvalid
	}
	if sess.Expired(now) {
		// Row is kept for audit history; only the refresh is refused.
		return nil, ErrSessionExpired
	}

	user, err := s.userRepo.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, ErrSessionInvalid
	}

	decision := s.evaluatePolicy(ctx, user.TenantID, user, LoginInput{})
	ttl := time.Duration(decision.RefreshTTLHours) * time.Hour
	if sess.Remembered {
		ttl = time.Duration(decision.RememberedTTLHours) * time.Hour
	}

	newRaw, newHash, err := security.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	newExpiry := now.Add(ttl)
	rotated, err := s.sessionRepo.Rotate(ctx, sess.ID, oldHash, newHash, newExpiry)
	if err != nil {
		return nil, err
	}
	if !rotated {
		// Lost the CAS: a concurrent refresh won, or a revocation landed first.
		// Per protocol the loser fails without revoking the winner's session.
		s.audit(ctx, user.TenantID, user.ID, audit.ActionRefreshReuse, audit.ResourceSession, `{"session_id":"`+sess.ID+`"}`)
		s.emit(user.TenantID, user.ID, sess.ID, audit.ActionRefreshReuse, sess.IPAddress, nil)
		return nil, ErrSessionInvalid
	}

	accessToken, accessExp, err := s.tokens.IssueAccess(sess.ID, user.ID, user.TenantID, string(user.Role))
	if err != nil {
		return nil, err
	}

	s.audit(ctx, user.TenantID, user.ID, audit.ActionRefresh, audit.ResourceSession, "")
	s.emit(user.TenantID, user.ID, sess.ID, audit.ActionRefresh, sess.IPAddress, nil)

	return &RefreshResult{
		Tokens: &TokenPair{
			AccessToken:      accessToken,
			AccessExpiresAt:  accessExp,
			RefreshToken:     newRaw,
			RefreshExpiresAt: newExpiry,
		},
		SessionID: sess.ID,
		User:      sanitizeUser(user),
	}, nil
}

// Logout revokes the session identified by the refresh token, falling back to
// sessionID (from the access token) when no usable refresh token is supplied.
// Idempotent: unknown or already-revoked sessions return nil.
func (s *AuthService) Logout(ctx context.Context, rawToken, sessionID string) error {
	var sess *sessiondomain.Session
	var err error
	if security.ValidRefreshTokenFormat(rawToken) {
		sess, err = s.sessionRepo.GetByTokenHash(ctx, security.HashRefreshToken(rawToken))
		if err != nil {
			return err
		}
	}
	if sess == nil && sessionID != "" {
		sess, err = s.sessionRepo.GetByID(ctx, sessionID)
		if err != nil {
			return err
		}
	}
	if sess == nil {
		return nil
	}
	if err := s.sessionRepo.Revoke(ctx, sess.ID); err != nil {
		return err
	}
	user, _ := s.userRepo.GetByID(ctx, sess.UserID)
	tenantID := ""
	if user != nil {
		tenantID = user.TenantID
	}
	s.audit(ctx, tenantID, sess.UserID, audit.ActionLogout, audit.ResourceAuth, "")
	s.emit(tenantID, sess.UserID, sess.ID, audit.ActionLogout, sess.IPAddress, nil)
	return nil
}

// Register creates an unverified user and sends a verification mail. It does not
// log the user in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*userdomain.User, error) {
	email := userdomain.NormalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	tenant, err := s.resolveTenant(ctx, in.Tenant)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrUnknownTenant
	}
	existing, err := s.userRepo.GetByTenantAndEmail(ctx, tenant.ID, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hashed, err := s.hasher.Hash([]byte(in.Password))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user := &userdomain.User{
		ID:           uuid.New().String(),
		TenantID:     tenant.ID,
		Email:        email,
		PasswordHash: hashed,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         userdomain.RoleMember,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	if err := s.issueVerification(ctx, tenant.ID, user); err != nil {
		// The account exists; a resend can recover. Do not fail registration.
		s.logger.Warn("issue verification token", "user_id", user.ID, "error", err)
	}

	s.audit(ctx, tenant.ID, user.ID, audit.ActionRegister, audit.ResourceUser, "")
	s.emit(tenant.ID, user.ID, "", audit.ActionRegister, "", nil)
	return sanitizeUser(user), nil
}

// issueVerification mints a fresh verification token, persists its hash, and sends mail.
func (s *AuthService) issueVerification(ctx context.Context, tenantID string, user *userdomain.User) error {
	raw, hash, err := security.GenerateVerificationToken()
	if err != nil {
		return err
	}
	expiresAt := time.Now().UTC().Add(s.verifyTTL)
	if err := s.userRepo.SetVerifyToken(ctx, user.ID, hash, expiresAt); err != nil {
		return err
	}
	if s.devTokens != nil {
		s.devTokens.Put(ctx, tenantID, user.Email, raw, expiresAt)
	}
	if s.mail != nil {
		if err := s.mail.SendVerification(ctx, user.Email, raw); err != nil {
			s.logger.Warn("send verification mail", "user_id", user.ID, "error", err)
		}
	}
	return nil
}

// VerifyEmail marks the owning user verified if token is valid and unexpired.
func (s *AuthService) VerifyEmail(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return ErrInvalidVerifyToken
	}
	user, err := s.userRepo.GetByVerifyTokenHash(ctx, security.HashVerificationToken(rawToken))
	if err != nil {
		return err
	}
	if user == nil || user.VerifyTokenExpiresAt == nil || time.Now().UTC().After(*user.VerifyTokenExpiresAt) {
		return ErrInvalidVerifyToken
	}
	if err := s.userRepo.SetEmailVerified(ctx, user.ID); err != nil {
		return err
	}
	s.audit(ctx, user.TenantID, user.ID, audit.ActionEmailVerified, audit.ResourceUser, "")
	s.emit(user.TenantID, user.ID, "", audit.ActionEmailVerified, "", nil)
	return nil
}

// ResendVerification issues a new token for an unverified account. Returns nil for
// unknown or already-verified addresses so the endpoint leaks nothing.
func (s *AuthService) ResendVerification(ctx context.Context, tenantSlug, email string) error {
	tenant, err := s.resolveTenant(ctx, tenantSlug)
	if err != nil {
		return err
	}
	if tenant == nil {
		return nil
	}
	user, err := s.userRepo.GetByTenantAndEmail(ctx, tenant.ID, userdomain.NormalizeEmail(email))
	if err != nil {
		return err
	}
	if user == nil || user.EmailVerified || !user.IsActive {
		return nil
	}
	return s.issueVerification(ctx, tenant.ID, user)
}

// ChangePassword verifies the current password, stores the new hash, and revokes
// every other session for the user. Whether remembered sessions are spared is a
// tenant policy decision; the default revokes them too.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentSessionID, current, newPassword string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil || !user.IsActive {
		return ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(current)); err != nil {
		return ErrIncorrectPassword
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	hashed, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePasswordHash(ctx, userID, hashed); err != nil {
		return err
	}

	decision := s.evaluatePolicy(ctx, user.TenantID, user, LoginInput{})
	keepRemembered := !decision.RevokeRememberedOnPasswordChange
	revoked, err := s.sessionRepo.RevokeAllByUser(ctx, userID, currentSessionID, keepRemembered)
	if err != nil {
		return err
	}

	s.audit(ctx, user.TenantID, userID, audit.ActionPasswordChanged, audit.ResourceUser, "")
	s.audit(ctx, user.TenantID, userID, audit.ActionSessionRevokeAll, audit.ResourceSession, "")
	s.emit(user.TenantID, userID, currentSessionID, audit.ActionPasswordChanged, "", map[string]any{"revoked_sessions": revoked})
	return nil
}

// SetupTwoFactor generates a fresh TOTP secret for enrollment. The enabled flag
// stays false until EnableTwoFactor verifies a code against this secret.
func (s *AuthService) SetupTwoFactor(ctx context.Context, userID string) (*TwoFactorSetup, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	secret, otpauthURL, err := security.GenerateTOTPSecret(s.totpIssuer, user.Email)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.SetTOTP(ctx, userID, secret, false); err != nil {
		return nil, err
	}
	return &TwoFactorSetup{Secret: secret, OtpauthURL: otpauthURL}, nil
}

// EnableTwoFactor turns 2FA on after verifying a code against the pending secret.
func (s *AuthService) EnableTwoFactor(ctx context.Context, userID, code string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil || !user.IsActive {
		return ErrInvalidCredentials
	}
	if user.TOTPSecret == "" {
		return ErrTwoFactorNotSetup
	}
	if !security.ValidateTOTP(code, user.TOTPSecret) {
		return ErrInvalidSecondFactor
	}
	if err := s.userRepo.SetTOTP(ctx, userID, user.TOTPSecret, true); err != nil {
		return err
	}
	s.audit(ctx, user.TenantID, userID, audit.ActionTwoFactorEnabled, audit.ResourceUser, "")
	s.emit(user.TenantID, userID, "", audit.ActionTwoFactorEnabled, "", nil)
	return nil
}

// DisableTwoFactor turns 2FA off. A valid current code is required; a hijacked
// session cannot silently flip the flag.
func (s *AuthService) DisableTwoFactor(ctx context.Context, userID, code string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil || !user.IsActive {
		return ErrInvalidCredentials
	}
	if !user.TOTPEnabled {
		return ErrTwoFactorNotEnabled
	}
	if !security.ValidateTOTP(code, user.TOTPSecret) {
		return ErrInvalidSecondFactor
	}
	if err := s.userRepo.SetTOTP(ctx, userID, "", false); err != nil {
		return err
	}
	s.audit(ctx, user.TenantID, userID, audit.ActionTwoFactorDisabled, audit.ResourceUser, "")
	s.emit(user.TenantID, userID, "", audit.ActionTwoFactorDisabled, "", nil)
	return nil
}

// Me returns the sanitized current user.
func (s *AuthService) Me(ctx context.Context, userID string) (*userdomain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	return sanitizeUser(user), nil
}

// SetMenuPreference persists the sidebar preference. UI-only; rides the same
// authenticated pipeline as everything else.
func (s *AuthService) SetMenuPreference(ctx context.Context, userID string, expanded bool) error {
	return s.userRepo.SetMenuExpanded(ctx, userID, expanded)
}

// Sessions lists the user's active device sessions for the sessions page.
func (s *AuthService) Sessions(ctx context.Context, userID string) ([]*sessiondomain.Session, error) {
	return s.sessionRepo.ListActiveByUser(ctx, userID)
}

// RevokeSession revokes one of the user's own sessions. Revoking another user's
// session id returns ErrSessionNotFound, the same as a missing id.
func (s *AuthService) RevokeSession(ctx context.Context, userID, sessionID string) error {
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil || sess.UserID != userID {
		return ErrSessionNotFound
	}
	if err := s.sessionRepo.Revoke(ctx, sessionID); err != nil {
		return err
	}
	user, _ := s.userRepo.GetByID(ctx, userID)
	tenantID := ""
	if user != nil {
		tenantID = user.TenantID
	}
	s.audit(ctx, tenantID, userID, audit.ActionSessionRevoke, audit.ResourceSession, `{"session_id":"`+sessionID+`"}`)
	s.emit(tenantID, userID, sessionID, audit.ActionSessionRevoke, "", nil)
	return nil
}

// lookupForLogin resolves the tenant and user for a password login. A missing
// tenant behaves exactly like a missing user so the error shape stays uniform.
func (s *AuthService) lookupForLogin(ctx context.Context, tenantSlug, email string) (*tenantdomain.Tenant, *userdomain.User, error) {
	tenant, err := s.resolveTenant(ctx, tenantSlug)
	if err != nil {
		return nil, nil, err
	}
	if tenant == nil {
		return &tenantdomain.Tenant{}, nil, nil
	}
	user, err := s.userRepo.GetByTenantAndEmail(ctx, tenant.ID, userdomain.NormalizeEmail(email))
	if err != nil {
		return nil, nil, err
	}
	return tenant, user, nil
}

func (s *AuthService) resolveTenant(ctx context.Context, slug string) (*tenantdomain.Tenant, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		slug = s.defaultTenant
	}
	return s.tenantRepo.GetBySlug(ctx, slug)
}

// evaluatePolicy never fails the caller; OPA errors fall back to defaults inside the engine.
func (s *AuthService) evaluatePolicy(ctx context.Context, tenantID string, user *userdomain.User, in LoginInput) policyengine.Decision {
	decision, err := s.policy.EvaluateSession(ctx, tenantID, policyengine.Input{
		User: policyengine.UserInput{
			ID:            user.ID,
			Role:          string(user.Role),
			EmailVerified: user.EmailVerified,
			TOTPEnabled:   user.TOTPEnabled,
		},
		Request: policyengine.RequestInput{
			RememberMe: in.RememberMe,
			IP:         in.Device.IP,
			UserAgent:  in.Device.UserAgent,
		},
	})
	if err != nil {
		s.logger.Warn("session policy evaluation", "tenant_id", tenantID, "error", err)
	}
	return decision
}

func (s *AuthService) audit(ctx context.Context, tenantID, userID, action, resource, metadata string) {
	if s.auditor == nil {
		return
	}
	s.auditor.LogEvent(ctx, tenantID, userID, action, resource, metadata)
}

func (s *AuthService) emit(tenantID, userID, sessionID, eventType, ip string, meta map[string]any) {
	if s.events == nil {
		return
	}
	var metaJSON []byte
	if len(meta) > 0 {
		metaJSON, _ = json.Marshal(meta)
	}
	event.EmitAsync(s.events, &eventdomain.Event{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		UserID:    userID,
		SessionID: sessionID,
		Type:      eventType,
		Source:    "authd",
		IP:        ip,
		Metadata:  metaJSON,
		CreatedAt: time.Now().UTC(),
	})
}

// sanitizeUser returns a copy safe to hand to clients: no password hash, no TOTP
// secret, no verification token hash.
func sanitizeUser(u *userdomain.User) *userdomain.User {
	c := *u
	c.PasswordHash = ""
	c.TOTPSecret = ""
	c.VerifyTokenHash = ""
	c.VerifyTokenExpiresAt = nil
	return &c
}

func deviceJSON(d DeviceMeta) string {
	b, _ := json.Marshal(map[string]string{
		"device_id":   d.DeviceID,
		"device_name": d.DeviceName,
	})
	return string(b)
}

func validateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return errors.New("invalid email format")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 12 {
		return errors.New("password must be at least 12 characters")
	}
	var hasUpper, hasLower, hasNumber, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasNumber = true
		case r < '0' || (r > '9' && r < 'A') || (r > 'Z' && r < 'a') || r > 'z':
			hasSymbol = true
		}
	}
	if !hasUpper {
		return errors.New("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return errors.New("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return errors.New("password must contain at least one number")
	}
	if !hasSymbol {
		return errors.New("password must contain at least one symbol")
	}
	return nil
}

package audit

// Audit actions recorded by the auth service. One constant per user-visible
// security decision; free-form actions are not written.
const (
	ActionLogin                 = "auth.login"
	ActionLoginFailed           = "auth.login_failed"
	ActionSecondFactorChallenge = "auth.second_factor_challenge"
	ActionRefresh               = "auth.refresh"
	ActionRefreshReuse          = "auth.refresh_reuse"
	ActionLogout                = "auth.logout"
	ActionSessionRevoke         = "session.revoke"
	ActionSessionRevokeAll      = "session.revoke_all"
	ActionRegister              = "user.register"
	ActionEmailVerified         = "user.email_verified"
	ActionPasswordChanged       = "user.password_changed"
	ActionTwoFactorEnabled      = "user.twofa_enabled"
	ActionTwoFactorDisabled     = "user.twofa_disabled"
)

// Resources audited actions apply to.
const (
	ResourceAuth    = "auth"
	ResourceSession = "session"
	ResourceUser    = "user"
)

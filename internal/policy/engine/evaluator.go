package engine

import (
	"context"
)

// Decision holds the result of session-policy evaluation for one login or
// password-change request.
type Decision struct {
	// RequireSecondFactor forces a second factor even when the user has none enrolled.
	RequireSecondFactor bool
	// RefreshTTLHours is the ordinary refresh session lifetime.
	RefreshTTLHours int
	// RememberedTTLHours is the refresh session lifetime for remember-me logins.
	RememberedTTLHours int
	// RevokeRememberedOnPasswordChange controls whether remembered sessions are revoked
	// alongside ordinary ones when the user changes their password.
	RevokeRememberedOnPasswordChange bool
	// MaxActiveSessions caps concurrent sessions per user; 0 means unlimited.
	// At overflow the oldest session is revoked.
	MaxActiveSessions int
}

// Input is the evaluation context handed to the Rego policies.
type Input struct {
	User    UserInput
	Request RequestInput
}

// UserInput describes the authenticating user.
type UserInput struct {
	ID            string
	Role          string
	EmailVerified bool
	TOTPEnabled   bool
}

// RequestInput describes the login request being decided.
type RequestInput struct {
	RememberMe bool
	IP         string
	UserAgent  string
}

// Evaluator evaluates tenant session policies using OPA or other engines.
type Evaluator interface {
	// EvaluateSession evaluates the tenant's session policy for the given input.
	// Returns the decision; implementations fall back to defaults on evaluation failure.
	EvaluateSession(ctx context.Context, tenantID string, input Input) (Decision, error)
}

package authclient

import "strings"

// State is the client auth state machine. Transitions are driven solely by
// Manager outcomes, never inferred from navigation or token presence.
type State string

const (
	// StateUninitialized is the zero state before Initialize is called.
	StateUninitialized State = "uninitialized"
	// StateInitializing is entered exactly once per process, while the silent
	// refresh resolves. Route decisions must not be trusted in this state.
	StateInitializing State = "initializing"
	// StateUnauthenticated means no session exists.
	StateUnauthenticated State = "unauthenticated"
	// StateAuthenticatedUnverified means identity is proven but the email is not
	// verified: no tokens are held and navigation is restricted.
	StateAuthenticatedUnverified State = "authenticated_unverified"
	// StateAuthenticatedVerified is the fully signed-in state.
	StateAuthenticatedVerified State = "authenticated_verified"
)

// RouteDecision is the outcome of a route-protection check.
type RouteDecision int

const (
	// Allow lets the navigation through.
	Allow RouteDecision = iota
	// Hold means the state machine has not resolved yet; the caller should wait,
	// not redirect. Prevents flash-redirects to login during startup.
	Hold
	// RedirectToLogin sends the user to the login route.
	RedirectToLogin
	// RedirectToVerification sends the user to the pending-verification route.
	RedirectToVerification
)

func (d RouteDecision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Hold:
		return "hold"
	case RedirectToLogin:
		return "redirect_to_login"
	case RedirectToVerification:
		return "redirect_to_verification"
	}
	return "unknown"
}

// RouteGate decides whether a navigation is allowed for a given auth state.
// Public routes are reachable without a session; the unverified allow-list is the
// small set of pages an email-unverified user may see.
type RouteGate struct {
	// PublicPrefixes are path prefixes open to unauthenticated users.
	PublicPrefixes []string
	// UnverifiedPrefixes are path prefixes open to authenticated-but-unverified users,
	// in addition to the public set.
	UnverifiedPrefixes []string
}

// NewRouteGate returns a gate with the default route sets.
func NewRouteGate() *RouteGate {
	return &RouteGate{
		PublicPrefixes:     []string{"/auth/login", "/auth/register", "/auth/verify-email", "/auth/forgot"},
		UnverifiedPrefixes: []string{"/auth/pending-verification", "/auth/resend-verification", "/auth/logout"},
	}
}

// Decide returns the routing decision for path under state.
func (g *RouteGate) Decide(state State, path string) RouteDecision {
	switch state {
	case StateUninitialized, StateInitializing:
		return Hold
	case StateUnauthenticated:
		if hasAnyPrefix(path, g.PublicPrefixes) {
			return Allow
		}
		return RedirectToLogin
	case StateAuthenticatedUnverified:
		if hasAnyPrefix(path, g.PublicPrefixes) || hasAnyPrefix(path, g.UnverifiedPrefixes) {
			return Allow
		}
		return RedirectToVerification
	case StateAuthenticatedVerified:
		return Allow
	}
	return RedirectToLogin
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

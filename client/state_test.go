package authclient

import "testing"

func TestRouteGateHoldsWhileUnresolved(t *testing.T) {
	g := NewRouteGate()
	for _, s := range []State{StateUninitialized, StateInitializing} {
		if d := g.Decide(s, "/dashboard"); d != Hold {
			t.Fatalf("state %s: got %s, want hold", s, d)
		}
		// Even public routes hold: routing must not act before resolution.
		if d := g.Decide(s, "/auth/login"); d != Hold {
			t.Fatalf("state %s login page: got %s, want hold", s, d)
		}
	}
}

func TestRouteGateUnauthenticated(t *testing.T) {
	g := NewRouteGate()
	if d := g.Decide(StateUnauthenticated, "/auth/login"); d != Allow {
		t.Fatalf("login page: got %s, want allow", d)
	}
	if d := g.Decide(StateUnauthenticated, "/auth/register"); d != Allow {
		t.Fatalf("register page: got %s, want allow", d)
	}
	if d := g.Decide(StateUnauthenticated, "/dashboard"); d != RedirectToLogin {
		t.Fatalf("protected page: got %s, want redirect_to_login", d)
	}
}

func TestRouteGateUnverifiedAllowList(t *testing.T) {
	g := NewRouteGate()
	allowed := []string{"/auth/pending-verification", "/auth/resend-verification", "/auth/verify-email?token=x", "/auth/logout"}
	for _, p := range allowed {
		if d := g.Decide(StateAuthenticatedUnverified, p); d != Allow {
			t.Fatalf("path %s: got %s, want allow", p, d)
		}
	}
	if d := g.Decide(StateAuthenticatedUnverified, "/dashboard"); d != RedirectToVerification {
		t.Fatalf("protected page: got %s, want redirect_to_verification", d)
	}
}

func TestRouteGateVerifiedAllowsEverything(t *testing.T) {
	g := NewRouteGate()
	for _, p := range []string{"/dashboard", "/auth/login", "/settings/security"} {
		if d := g.Decide(StateAuthenticatedVerified, p); d != Allow {
			t.Fatalf("path %s: got %s, want allow", p, d)
		}
	}
}

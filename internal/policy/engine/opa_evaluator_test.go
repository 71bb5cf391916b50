package engine

import (
	"context"
	"testing"
	"time"

	"github.com/yearzendwise/Authentik-sub002/internal/policy/domain"
)

// memPolicyRepo implements repository.Repository for tests.
type memPolicyRepo struct {
	policies []*domain.Policy
	err      error
}

func (m *memPolicyRepo) GetByID(ctx context.Context, id string) (*domain.Policy, error) {
	return nil, nil
}
func (m *memPolicyRepo) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Policy, error) {
	return m.policies, m.err
}
func (m *memPolicyRepo) GetEnabledByTenant(ctx context.Context, tenantID string) ([]*domain.Policy, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.Policy
	for _, p := range m.policies {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out, nil
}
func (m *memPolicyRepo) Create(ctx context.Context, p *domain.Policy) error { return nil }
func (m *memPolicyRepo) Update(ctx context.Context, p *domain.Policy) error { return nil }

func tenantPolicy(rules string, enabled bool) *domain.Policy {
	now := time.Now().UTC()
	return &domain.Policy{
		ID: "p-1", TenantID: "t-1", Name: "test", Rules: rules,
		Enabled: enabled, CreatedAt: now, UpdatedAt: now,
	}
}

func TestHealthCheck(t *testing.T) {
	e := NewOPAEvaluator(&memPolicyRepo{}, DefaultDecision())
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestEvaluateSession_Defaults(t *testing.T) {
	e := NewOPAEvaluator(&memPolicyRepo{}, DefaultDecision())

	d, err := e.EvaluateSession(context.Background(), "t-1", Input{})
	if err != nil {
		t.Fatalf("EvaluateSession: %v", err)
	}
	if d.RequireSecondFactor {
		t.Error("default policy should not force a second factor for users without TOTP")
	}
	if d.RefreshTTLHours != 168 {
		t.Errorf("refresh_ttl_hours = %d, want 168", d.RefreshTTLHours)
	}
	if d.RememberedTTLHours != 720 {
		t.Errorf("remembered_ttl_hours = %d, want 720", d.RememberedTTLHours)
	}
	if !d.RevokeRememberedOnPasswordChange {
		t.Error("default policy should revoke remembered sessions on password change")
	}
	if d.MaxActiveSessions != 0 {
		t.Errorf("max_active_sessions = %d, want 0 (unlimited)", d.MaxActiveSessions)
	}
}

func TestEvaluateSession_TOTPEnabledRequiresSecondFactor(t *testing.T) {
	e := NewOPAEvaluator(&memPolicyRepo{}, DefaultDecision())

	d, err := e.EvaluateSession(context.Background(), "t-1",
		Input{User: UserInput{ID: "u-1", TOTPEnabled: true}})
	if err != nil {
		t.Fatalf("EvaluateSession: %v", err)
	}
	if !d.RequireSecondFactor {
		t.Error("default policy should require a second factor when the user has TOTP enabled")
	}
}

func TestEvaluateSession_TenantOverride(t *testing.T) {
	rules := `package authentik.session

default require_second_factor = true
default refresh_ttl_hours = 24
default remembered_ttl_hours = 48
default revoke_remembered_on_password_change = false
default max_active_sessions = 3
`
	e := NewOPAEvaluator(&memPolicyRepo{policies: []*domain.Policy{tenantPolicy(rules, true)}}, DefaultDecision())

	d, err := e.EvaluateSession(context.Background(), "t-1", Input{})
	if err != nil {
		t.Fatalf("EvaluateSession: %v", err)
	}
	if !d.RequireSecondFactor {
		t.Error("tenant policy should force a second factor")
	}
	if d.RefreshTTLHours != 24 {
		t.Errorf("refresh_ttl_hours = %d, want 24", d.RefreshTTLHours)
	}
	if d.RememberedTTLHours != 48 {
		t.Errorf("remembered_ttl_hours = %d, want 48", d.RememberedTTLHours)
	}
	if d.RevokeRememberedOnPasswordChange {
		t.Error("tenant policy should spare remembered sessions on password change")
	}
	if d.MaxActiveSessions != 3 {
		t.Errorf("max_active_sessions = %d, want 3", d.MaxActiveSessions)
	}
}

func TestEvaluateSession_DisabledPolicyIgnored(t *testing.T) {
	rules := `package authentik.session

default require_second_factor = true
`
	e := NewOPAEvaluator(&memPolicyRepo{policies: []*domain.Policy{tenantPolicy(rules, false)}}, DefaultDecision())

	d, err := e.EvaluateSession(context.Background(), "t-1", Input{})
	if err != nil {
		t.Fatalf("EvaluateSession: %v", err)
	}
	if d.RequireSecondFactor {
		t.Error("disabled policy must not apply; defaults should win")
	}
}

func TestEvaluateSession_BadRegoFallsBack(t *testing.T) {
	e := NewOPAEvaluator(&memPolicyRepo{policies: []*domain.Policy{tenantPolicy("this is not rego", true)}}, DefaultDecision())

	d, err := e.EvaluateSession(context.Background(), "t-1", Input{})
	if err != nil {
		t.Fatalf("EvaluateSession should swallow compile errors, got: %v", err)
	}
	if d != DefaultDecision() {
		t.Errorf("decision = %+v, want defaults on compile failure", d)
	}
}

func TestEvaluateSession_ConfiguredTTLDefaults(t *testing.T) {
	defaults := DefaultDecision()
	defaults.RefreshTTLHours = 24
	defaults.RememberedTTLHours = 96

	t.Run("no tenant policies", func(t *testing.T) {
		e := NewOPAEvaluator(&memPolicyRepo{}, defaults)
		d, err := e.EvaluateSession(context.Background(), "t-1", Input{})
		if err != nil {
			t.Fatalf("EvaluateSession: %v", err)
		}
		if d.RefreshTTLHours != 24 || d.RememberedTTLHours != 96 {
			t.Errorf("ttls = %d/%d, want 24/96", d.RefreshTTLHours, d.RememberedTTLHours)
		}
	})

	t.Run("tenant policy silent on ttls", func(t *testing.T) {
		rules := "package authentik.session\n\ndefault require_second_factor = true\n"
		e := NewOPAEvaluator(&memPolicyRepo{policies: []*domain.Policy{tenantPolicy(rules, true)}}, defaults)
		d, err := e.EvaluateSession(context.Background(), "t-1", Input{})
		if err != nil {
			t.Fatalf("EvaluateSession: %v", err)
		}
		if !d.RequireSecondFactor {
			t.Error("tenant policy should force a second factor")
		}
		if d.RefreshTTLHours != 24 || d.RememberedTTLHours != 96 {
			t.Errorf("ttls = %d/%d, want configured defaults 24/96", d.RefreshTTLHours, d.RememberedTTLHours)
		}
	})

	t.Run("bad rego keeps configured ttls", func(t *testing.T) {
		e := NewOPAEvaluator(&memPolicyRepo{policies: []*domain.Policy{tenantPolicy("this is not rego", true)}}, defaults)
		d, err := e.EvaluateSession(context.Background(), "t-1", Input{})
		if err != nil {
			t.Fatalf("EvaluateSession: %v", err)
		}
		if d.RefreshTTLHours != 24 || d.RememberedTTLHours != 96 {
			t.Errorf("ttls = %d/%d, want 24/96 on compile failure", d.RefreshTTLHours, d.RememberedTTLHours)
		}
	})
}

func TestNewOPAEvaluatorClampsNonPositiveTTLs(t *testing.T) {
	e := NewOPAEvaluator(&memPolicyRepo{}, Decision{RevokeRememberedOnPasswordChange: true})
	d, err := e.EvaluateSession(context.Background(), "t-1", Input{})
	if err != nil {
		t.Fatalf("EvaluateSession: %v", err)
	}
	if d.RefreshTTLHours != 168 || d.RememberedTTLHours != 720 {
		t.Errorf("ttls = %d/%d, want built-in 168/720", d.RefreshTTLHours, d.RememberedTTLHours)
	}
}

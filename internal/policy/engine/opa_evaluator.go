package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/yearzendwise/Authentik-sub002/internal/policy/repository"
)

const policyQueryPrefix = "data.authentik.session."

// DefaultRegoPolicy is the canonical session policy: no forced second factor, 7-day
// refresh sessions, 30-day remembered sessions, password change revokes everything,
// unlimited concurrent sessions. Seeded into tenant_policies by cmd/seed and used as
// the health-check module; live evaluation renders its module from the evaluator's
// defaults so configured TTLs apply.
const DefaultRegoPolicy = `package authentik.session

default require_second_factor = false
default refresh_ttl_hours = 168
default remembered_ttl_hours = 720
default revoke_remembered_on_password_change = true
default max_active_sessions = 0

require_second_factor if {
	input.user.totp_enabled
}
`

// DefaultDecision returns the built-in session-policy defaults, mirroring
// DefaultRegoPolicy. Callers overlay configured TTLs before handing it to
// NewOPAEvaluator.
func DefaultDecision() Decision {
	return Decision{
		RequireSecondFactor:              false,
		RefreshTTLHours:                  168,
		RememberedTTLHours:               720,
		RevokeRememberedOnPasswordChange: true,
		MaxActiveSessions:                0,
	}
}

// defaultModule renders the fallback Rego module for the given defaults so tenants
// without policy rows get the configured TTLs.
func defaultModule(d Decision) string {
	return fmt.Sprintf(`package authentik.session

default require_second_factor = false
default refresh_ttl_hours = %d
default remembered_ttl_hours = %d
default revoke_remembered_on_password_change = %t
default max_active_sessions = %d

require_second_factor if {
	input.user.totp_enabled
}
`, d.RefreshTTLHours, d.RememberedTTLHours, d.RevokeRememberedOnPasswordChange, d.MaxActiveSessions)
}

// OPAEvaluator evaluates tenant session policies using OPA Rego.
type OPAEvaluator struct {
	policyRepo repository.Repository
	defaults   Decision
	fallback   string
}

// NewOPAEvaluator returns an OPA-based session policy evaluator. defaults is the
// decision baseline; tenant policy rows override it rule by rule. Non-positive TTLs
// are replaced with the built-in values.
func NewOPAEvaluator(policyRepo repository.Repository, defaults Decision) *OPAEvaluator {
	if defaults.RefreshTTLHours <= 0 {
		defaults.RefreshTTLHours = 168
	}
	if defaults.RememberedTTLHours <= 0 {
		defaults.RememberedTTLHours = 720
	}
	return &OPAEvaluator{
		policyRepo: policyRepo,
		defaults:   defaults,
		fallback:   defaultModule(defaults),
	}
}

// HealthCheck verifies that the in-process OPA Rego engine can compile and evaluate the default policy.
// Does not call the policy repo or database. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	modules := map[string]string{"policy_0.rego": DefaultRegoPolicy}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return fmt.Errorf("compile default policy: %w", err)
	}
	q := rego.New(
		rego.Query(policyQueryPrefix+"require_second_factor"),
		rego.Compiler(compiler),
		rego.Input(buildInput(Input{})),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return fmt.Errorf("eval default policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

// EvaluateSession evaluates the tenant's session policy. Tenant rows override the
// default module; evaluation failure falls back to defaults and logs.
func (e *OPAEvaluator) EvaluateSession(ctx context.Context, tenantID string, input Input) (Decision, error) {
	var policies []string
	if e.policyRepo != nil && tenantID != "" {
		enabled, err := e.policyRepo.GetEnabledByTenant(ctx, tenantID)
		if err != nil {
			log.Printf("policy: failed to load policies for tenant %s: %v", tenantID, err)
		} else {
			for _, p := range enabled {
				if p.Enabled && p.Rules != "" {
					policies = append(policies, p.Rules)
				}
			}
		}
	}

	if len(policies) == 0 {
		policies = []string{e.fallback}
	}

	decision, err := e.evaluatePolicies(ctx, policies, buildInput(input))
	if err != nil {
		log.Printf("policy: evaluation failed: %v, using defaults", err)
		return e.defaults, nil
	}
	return decision, nil
}

func buildInput(in Input) map[string]interface{} {
	return map[string]interface{}{
		"user": map[string]interface{}{
			"id":             in.User.ID,
			"role":           in.User.Role,
			"email_verified": in.User.EmailVerified,
			"totp_enabled":   in.User.TOTPEnabled,
		},
		"request": map[string]interface{}{
			"remember_me": in.Request.RememberMe,
			"ip":          in.Request.IP,
			"user_agent":  in.Request.UserAgent,
		},
	}
}

func (e *OPAEvaluator) evaluatePolicies(ctx context.Context, policies []string, input map[string]interface{}) (Decision, error) {
	modules := make(map[string]string)
	for i, policy := range policies {
		modules[fmt.Sprintf("policy_%d.rego", i)] = policy
	}

	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return Decision{}, fmt.Errorf("compile policies: %w", err)
	}

	out := e.defaults
	out.RequireSecondFactor = queryBool(ctx, compiler, input, "require_second_factor", out.RequireSecondFactor)
	out.RefreshTTLHours = queryInt(ctx, compiler, input, "refresh_ttl_hours", out.RefreshTTLHours)
	out.RememberedTTLHours = queryInt(ctx, compiler, input, "remembered_ttl_hours", out.RememberedTTLHours)
	out.RevokeRememberedOnPasswordChange = queryBool(ctx, compiler, input, "revoke_remembered_on_password_change", out.RevokeRememberedOnPasswordChange)
	if n := queryInt(ctx, compiler, input, "max_active_sessions", out.MaxActiveSessions); n >= 0 {
		out.MaxActiveSessions = n
	}
	return out, nil
}

func queryBool(ctx context.Context, compiler *ast.Compiler, input map[string]interface{}, name string, def bool) bool {
	q := rego.New(
		rego.Query(policyQueryPrefix+name),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil || len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return def
	}
	if v, ok := rs[0].Expressions[0].Value.(bool); ok {
		return v
	}
	return def
}

func queryInt(ctx context.Context, compiler *ast.Compiler, input map[string]interface{}, name string, def int) int {
	q := rego.New(
		rego.Query(policyQueryPrefix+name),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil || len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return def
	}
	switch v := rs[0].Expressions[0].Value.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil && n >= 0 {
			return int(n)
		}
	case float64:
		if v >= 0 {
			return int(v)
		}
	case int64:
		if v >= 0 {
			return int(v)
		}
	}
	return def
}

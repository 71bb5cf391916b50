package config

import (
	"os"
	"testing"
	"time"
)

// setBaseEnv clears the environment and sets the fields Load refuses to run without.
func setBaseEnv(t *testing.T) {
	t.Helper()
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")
	os.Setenv("JWT_SECRET", "test-jwt-secret")
	os.Setenv("SESSION_SECRET", "test-session-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.JWTIssuer != "authentik" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "authentik")
	}
	if cfg.JWTAudience != "authentik-clients" {
		t.Errorf("JWTAudience = %q, want %q", cfg.JWTAudience, "authentik-clients")
	}
	if cfg.AccessTokenTTL != "15m" {
		t.Errorf("AccessTokenTTL = %q, want %q", cfg.AccessTokenTTL, "15m")
	}
	if cfg.RefreshTokenTTL != "168h" {
		t.Errorf("RefreshTokenTTL = %q, want %q", cfg.RefreshTokenTTL, "168h")
	}
	if cfg.RememberMeTTL != "720h" {
		t.Errorf("RememberMeTTL = %q, want %q", cfg.RememberMeTTL, "720h")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.DefaultTenant != "default" {
		t.Errorf("DefaultTenant = %q, want %q", cfg.DefaultTenant, "default")
	}
	if cfg.FrontendURL != "http://localhost:3000" {
		t.Errorf("FrontendURL = %q, want dev default", cfg.FrontendURL)
	}
	if cfg.RateLimitPerMinute != 20 {
		t.Errorf("RateLimitPerMinute = %d, want 20", cfg.RateLimitPerMinute)
	}
	if cfg.VerifyTokenReturnToClient {
		t.Error("VerifyTokenReturnToClient should default to false")
	}
	if cfg.KafkaTopic != "authentik-security" {
		t.Errorf("KafkaTopic = %q, want default", cfg.KafkaTopic)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	setBaseEnv(t)
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("JWT_ISSUER", "custom-issuer")
	os.Setenv("BCRYPT_COST", "14")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "custom-issuer")
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
}

func TestLoad_SecretsRequired(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")

	if _, err := Load(); err == nil {
		t.Fatal("Load should fail without JWT_SECRET")
	}

	os.Setenv("JWT_SECRET", "only-jwt")
	if _, err := Load(); err == nil {
		t.Fatal("Load should fail without SESSION_SECRET")
	}

	os.Setenv("SESSION_SECRET", "only-jwt")
	if _, err := Load(); err == nil {
		t.Fatal("Load should fail when SESSION_SECRET equals JWT_SECRET")
	}

	os.Setenv("SESSION_SECRET", "distinct-session")
	if _, err := Load(); err != nil {
		t.Fatalf("Load with both secrets: %v", err)
	}
}

func TestLoad_BcryptCostRange(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  int
		err   bool
	}{
		{"valid min", "4", 4, false},
		{"valid max", "31", 31, false},
		{"valid middle", "12", 12, false},
		{"too low", "3", 0, true},
		{"too high", "32", 0, true},
		{"zero", "0", 12, false}, // falls back to 12
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setBaseEnv(t)
			os.Setenv("BCRYPT_COST", tc.value)

			cfg, err := Load()
			if tc.err {
				if err == nil {
					t.Fatal("Load should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.BcryptCost != tc.want {
				t.Errorf("BcryptCost = %d, want %d", cfg.BcryptCost, tc.want)
			}
		})
	}
}

func TestLoad_DevVerifyTokenProductionRefused(t *testing.T) {
	setBaseEnv(t)
	os.Setenv("VERIFY_TOKEN_RETURN_TO_CLIENT", "true")
	os.Setenv("APP_ENV", "production")

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load should return error when VERIFY_TOKEN_RETURN_TO_CLIENT=true and APP_ENV=production")
	}
	if cfg != nil {
		t.Error("Load should return nil config on error")
	}
}

func TestLoad_DevVerifyTokenDevelopment(t *testing.T) {
	setBaseEnv(t)
	os.Setenv("VERIFY_TOKEN_RETURN_TO_CLIENT", "true")
	os.Setenv("APP_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.VerifyTokenReturnToClient {
		t.Error("VerifyTokenReturnToClient should be true")
	}
}

func TestTTLHelpers_ValidDurations(t *testing.T) {
	setBaseEnv(t)
	os.Setenv("ACCESS_TOKEN_TTL", "30m")
	os.Setenv("REFRESH_TOKEN_TTL", "336h")
	os.Setenv("REMEMBER_ME_TTL", "1440h")
	os.Setenv("TWOFA_INTENT_TTL", "10m")
	os.Setenv("VERIFY_TOKEN_TTL", "48h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.AccessTTL(); got != 30*time.Minute {
		t.Errorf("AccessTTL = %v, want 30m", got)
	}
	if got := cfg.RefreshTTL(); got != 336*time.Hour {
		t.Errorf("RefreshTTL = %v, want 336h", got)
	}
	if got := cfg.RememberTTL(); got != 1440*time.Hour {
		t.Errorf("RememberTTL = %v, want 1440h", got)
	}
	if got := cfg.IntentTTL(); got != 10*time.Minute {
		t.Errorf("IntentTTL = %v, want 10m", got)
	}
	if got := cfg.VerificationTTL(); got != 48*time.Hour {
		t.Errorf("VerificationTTL = %v, want 48h", got)
	}
}

func TestTTLHelpers_InvalidFallsBack(t *testing.T) {
	testCases := []struct{ name, value string }{
		{"garbage", "invalid"},
		{"zero", "0"},
		{"negative", "-5m"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setBaseEnv(t)
			os.Setenv("ACCESS_TOKEN_TTL", tc.value)
			os.Setenv("REFRESH_TOKEN_TTL", tc.value)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got := cfg.AccessTTL(); got != 15*time.Minute {
				t.Errorf("AccessTTL = %v, want 15m default", got)
			}
			if got := cfg.RefreshTTL(); got != 168*time.Hour {
				t.Errorf("RefreshTTL = %v, want 168h default", got)
			}
		})
	}
}

func TestKafkaBrokersList(t *testing.T) {
	setBaseEnv(t)
	os.Setenv("KAFKA_BROKERS", "localhost:9092, broker2:9092 ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := cfg.KafkaBrokersList()
	want := []string{"localhost:9092", "broker2:9092"}
	if len(got) != len(want) {
		t.Fatalf("brokers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("brokers[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	cfg.KafkaBrokers = ""
	if list := cfg.KafkaBrokersList(); list != nil {
		t.Errorf("empty brokers should return nil, got %v", list)
	}
}

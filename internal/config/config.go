// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; empty until DB is wired.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTSecret signs access tokens (HS256). Required.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// SessionSecret signs short-lived two-factor pre-auth markers (HS256). Required; must differ from JWT_SECRET.
	SessionSecret string `mapstructure:"SESSION_SECRET"`
	// JWTIssuer is the iss claim (e.g. "authentik").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "authentik-clients").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// AccessTokenTTL is the access token lifetime (e.g. "15m").
	AccessTokenTTL string `mapstructure:"ACCESS_TOKEN_TTL"`
	// RefreshTokenTTL is the refresh session lifetime for ordinary logins (e.g. "168h").
	RefreshTokenTTL string `mapstructure:"REFRESH_TOKEN_TTL"`
	// RememberMeTTL is the refresh session lifetime for remember-me logins (e.g. "720h").
	RememberMeTTL string `mapstructure:"REMEMBER_ME_TTL"`
	// TwoFactorIntentTTL is how long a pre-auth marker stays redeemable (e.g. "5m").
	TwoFactorIntentTTL string `mapstructure:"TWOFA_INTENT_TTL"`
	// VerifyTokenTTL is the email verification token lifetime (e.g. "24h").
	VerifyTokenTTL string `mapstructure:"VERIFY_TOKEN_TTL"`
	// BcryptCost is the bcrypt cost factor (4-31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// FrontendURL is the browser origin allowed by CORS and used in verification links.
	FrontendURL string `mapstructure:"FRONTEND_URL"`
	// DefaultTenant is the tenant slug assumed when a request names none.
	DefaultTenant string `mapstructure:"DEFAULT_TENANT"`
	// RateLimitPerMinute caps requests per client IP on credential endpoints.
	RateLimitPerMinute int `mapstructure:"RATE_LIMIT_PER_MINUTE"`
	// VerifyTokenReturnToClient when true enables dev mode: verification tokens are kept for
	// GET /api/dev/verify-token instead of relying on mail delivery. Must not be true when
	// Env is production (startup error).
	VerifyTokenReturnToClient bool `mapstructure:"VERIFY_TOKEN_RETURN_TO_CLIENT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel sets slog verbosity: debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Mailer (optional). Empty MailerURL disables outbound mail; verification links are logged.
	// MailerURL is the transactional mail HTTP endpoint.
	MailerURL string `mapstructure:"MAILER_URL"`
	// MailerToken authenticates against the mail endpoint.
	MailerToken string `mapstructure:"MAILER_TOKEN"`
	// MailFrom is the From address on outbound mail.
	MailFrom string `mapstructure:"MAIL_FROM"`

	// Telemetry (optional). When Kafka brokers are set, the server emits security events to Kafka.
	// KafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// KafkaTopic is the Kafka topic for security events (default authentik-security).
	KafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`
	// OTLPEndpoint enables OpenTelemetry export when set (e.g. http://localhost:4317).
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`

	// Worker-only: Loki URL for the security-event worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the security-event worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_ISSUER", "authentik")
	v.SetDefault("JWT_AUDIENCE", "authentik-clients")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h") // 7d
	v.SetDefault("REMEMBER_ME_TTL", "720h")   // 30d
	v.SetDefault("TWOFA_INTENT_TTL", "5m")
	v.SetDefault("VERIFY_TOKEN_TTL", "24h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 20)
	v.SetDefault("VERIFY_TOKEN_RETURN_TO_CLIENT", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MAILER_URL", "")
	v.SetDefault("MAILER_TOKEN", "")
	v.SetDefault("MAIL_FROM", "no-reply@authentik.local")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "authentik-security")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "authentik-security-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("config: JWT_SECRET must be set")
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("config: SESSION_SECRET must be set")
	}
	if cfg.SessionSecret == cfg.JWTSecret {
		return nil, errors.New("config: SESSION_SECRET must differ from JWT_SECRET")
	}

	if cfg.VerifyTokenReturnToClient && cfg.Env == "production" {
		return nil, errors.New("config: VERIFY_TOKEN_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// AccessTTL parses AccessTokenTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return durationOr(c.AccessTokenTTL, 15*time.Minute)
}

// RefreshTTL parses RefreshTokenTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return durationOr(c.RefreshTokenTTL, 168*time.Hour)
}

// RememberTTL parses RememberMeTTL as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) RememberTTL() time.Duration {
	return durationOr(c.RememberMeTTL, 720*time.Hour)
}

// IntentTTL parses TwoFactorIntentTTL as a time.Duration. Returns 5m if unset or invalid.
func (c *Config) IntentTTL() time.Duration {
	return durationOr(c.TwoFactorIntentTTL, 5*time.Minute)
}

// VerificationTTL parses VerifyTokenTTL as a time.Duration. Returns 24h if unset or invalid.
func (c *Config) VerificationTTL() time.Duration {
	return durationOr(c.VerifyTokenTTL, 24*time.Hour)
}

func durationOr(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if event publishing is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	auditpkg "github.com/yearzendwise/Authentik-sub002/internal/audit"
	auditrepo "github.com/yearzendwise/Authentik-sub002/internal/audit/repository"
	authservice "github.com/yearzendwise/Authentik-sub002/internal/auth/service"
	"github.com/yearzendwise/Authentik-sub002/internal/config"
	"github.com/yearzendwise/Authentik-sub002/internal/db"
	"github.com/yearzendwise/Authentik-sub002/internal/devtoken"
	devtokenhandler "github.com/yearzendwise/Authentik-sub002/internal/devtoken/handler"
	"github.com/yearzendwise/Authentik-sub002/internal/event"
	eventotel "github.com/yearzendwise/Authentik-sub002/internal/event/otel"
	"github.com/yearzendwise/Authentik-sub002/internal/event/producer"
	"github.com/yearzendwise/Authentik-sub002/internal/mailer"
	policyengine "github.com/yearzendwise/Authentik-sub002/internal/policy/engine"
	policyrepo "github.com/yearzendwise/Authentik-sub002/internal/policy/repository"
	"github.com/yearzendwise/Authentik-sub002/internal/security"
	"github.com/yearzendwise/Authentik-sub002/internal/server"
	"github.com/yearzendwise/Authentik-sub002/internal/server/middleware"
	sessionrepo "github.com/yearzendwise/Authentik-sub002/internal/session/repository"
	tenantrepo "github.com/yearzendwise/Authentik-sub002/internal/tenant/repository"
	twofactorrepo "github.com/yearzendwise/Authentik-sub002/internal/twofactor/repository"
	userrepo "github.com/yearzendwise/Authentik-sub002/internal/user/repository"
)

const janitorInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		log.Fatal("config: DATABASE_URL must be set")
	}
	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	providers, err := eventotel.NewProviders(ctx, cfg.OTLPEndpoint, "authd", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("otel shutdown", "error", err)
		}
	}()

	tenants := tenantrepo.NewPostgresRepository(database)
	users := userrepo.NewPostgresRepository(database)
	sessions := sessionrepo.NewPostgresRepository(database)
	intents := twofactorrepo.NewPostgresRepository(database)
	audits := auditrepo.NewPostgresRepository(database)
	policies := policyrepo.NewPostgresRepository(database)

	hasher := security.NewHasher(cfg.BcryptCost)
	tokens := security.NewTokenProvider([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	preauth := security.NewPreAuthSigner([]byte(cfg.SessionSecret), cfg.JWTIssuer, cfg.IntentTTL())
	policyDefaults := policyengine.DefaultDecision()
	policyDefaults.RefreshTTLHours = int(cfg.RefreshTTL().Hours())
	policyDefaults.RememberedTTLHours = int(cfg.RememberTTL().Hours())
	evaluator := policyengine.NewOPAEvaluator(policies, policyDefaults)
	auditor := auditpkg.NewLogger(audits, middleware.GetClientIP)
	mail := mailer.NewClient(cfg.MailerURL, cfg.MailerToken, cfg.MailFrom, cfg.FrontendURL, logger)

	emitter, closeEmitter, err := newEmitter(cfg, providers, logger)
	if err != nil {
		log.Fatalf("events: %v", err)
	}
	defer closeEmitter()

	var devTokens devtoken.Store
	var devHandler *devtokenhandler.Handler
	if cfg.VerifyTokenReturnToClient {
		devTokens = devtoken.NewMemoryStore()
		devHandler = devtokenhandler.New(devTokens, tenants, cfg.DefaultTenant)
		logger.Warn("dev verify-token mode enabled; tokens are retrievable over HTTP")
	}

	svc := authservice.NewAuthService(
		tenants, users, sessions, intents,
		hasher, tokens, preauth, evaluator,
		mail, auditor, emitter, logger,
		authservice.Options{
			TOTPIssuer:    cfg.JWTIssuer,
			DefaultTenant: cfg.DefaultTenant,
			VerifyTTL:     cfg.VerificationTTL(),
			DevTokens:     devTokens,
		},
	)

	handler := server.Handler(server.Deps{
		Auth:               svc,
		Tokens:             tokens,
		HealthPinger:       database,
		HealthPolicy:       evaluator,
		DevTokenHandler:    devHandler,
		Logger:             logger,
		FrontendURL:        cfg.FrontendURL,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		SecureCookies:      cfg.Env == "production",
	})

	go janitor(ctx, logger, sessions, intents)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Fatalf("serve: %v", err)
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	// Let async event emits finish before the producer closes.
	time.Sleep(event.ShutdownDrainDuration)
	logger.Info("stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// newEmitter picks the security-event sink: Kafka when brokers are configured,
// the OTLP log pipeline when only an OTLP endpoint is, otherwise a no-op.
func newEmitter(cfg *config.Config, providers *eventotel.Providers, logger *slog.Logger) (event.Emitter, func(), error) {
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		p, err := producer.NewKafkaProducer(brokers, cfg.KafkaTopic)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("security events to kafka", "topic", cfg.KafkaTopic)
		return p, func() {
			if err := p.Close(); err != nil {
				logger.Warn("kafka producer close", "error", err)
			}
		}, nil
	}
	if cfg.OTLPEndpoint != "" {
		logger.Info("security events to otlp", "endpoint", cfg.OTLPEndpoint)
		return eventotel.NewEventEmitter(providers.LoggerProvider), func() {}, nil
	}
	logger.Info("security events disabled")
	return event.Noop{}, func() {}, nil
}

// janitor deletes expired sessions and stale two-factor intents on a fixed cadence.
func janitor(ctx context.Context, logger *slog.Logger, sessions *sessionrepo.PostgresRepository, intents *twofactorrepo.PostgresRepository) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		now := time.Now().UTC()
		if n, err := sessions.DeleteExpiredBefore(runCtx, now); err != nil {
			logger.Warn("janitor: expired sessions", "error", err)
		} else if n > 0 {
			logger.Info("janitor: expired sessions removed", "count", n)
		}
		if n, err := intents.DeleteExpiredBefore(runCtx, now); err != nil {
			logger.Warn("janitor: stale intents", "error", err)
		} else if n > 0 {
			logger.Info("janitor: stale intents removed", "count", n)
		}
		cancel()
	}
}

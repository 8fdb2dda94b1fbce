package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/voxhealth/ivr-platform/cmd/mainconfig"
	"github.com/voxhealth/ivr-platform/internal/api/router"
	"github.com/voxhealth/ivr-platform/internal/bookings"
	"github.com/voxhealth/ivr-platform/internal/callflow"
	appconfig "github.com/voxhealth/ivr-platform/internal/config"
	"github.com/voxhealth/ivr-platform/internal/http/handlers"
	"github.com/voxhealth/ivr-platform/internal/identity"
	"github.com/voxhealth/ivr-platform/internal/notify"
	"github.com/voxhealth/ivr-platform/internal/oauth"
	"github.com/voxhealth/ivr-platform/internal/observability/metrics"
	"github.com/voxhealth/ivr-platform/internal/scheduling"
	"github.com/voxhealth/ivr-platform/internal/session"
	"github.com/voxhealth/ivr-platform/internal/summary"
	"github.com/voxhealth/ivr-platform/internal/transcript"
	"github.com/voxhealth/ivr-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting ivr-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()
	callMetrics := metrics.NewCallMetrics(nil)

	// Session store and transcript recorder share the Redis connection when
	// one is configured; otherwise both fall back to in-memory.
	var (
		sessions session.Store
		recorder transcript.Recorder
	)
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("redis ping failed", "error", err, "addr", cfg.RedisAddr)
			os.Exit(1)
		}
		sessions = session.NewRedisStore(rdb, cfg.SessionTTL, logger)
		recorder = transcript.NewRedisRecorder(rdb)
		logger.Info("using redis session store", "addr", cfg.RedisAddr)
	} else {
		memStore := session.NewMemoryStore(cfg.SessionTTL, logger)
		defer memStore.Close()
		sessions = memStore
		recorder = transcript.NewMemoryRecorder()
		logger.Info("using in-memory session store")
	}

	// Identity repository and booking ledger come from Postgres when a
	// DATABASE_URL is set; demo records otherwise.
	var (
		identityRepo identity.Repository
		ledger       callflow.BookingLedger
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		identityRepo = identity.NewPostgresRepository(pool)

		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open bookings db", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		ledger = bookings.NewRepository(db)
	} else {
		identityRepo = identity.NewMemoryRepository(demoCustomers()...)
		logger.Warn("no DATABASE_URL set, using demo customer records")
	}

	// OAuth client; absent Epic credentials the flow degrades to manual mode.
	var authorizer callflow.Authorizer
	if cfg.EpicClientID != "" {
		redirectURI := cfg.EpicRedirectURI
		if redirectURI == "" {
			redirectURI = cfg.PublicBaseURL + "/oauth/callback"
		}
		client, err := oauth.New(oauth.Config{
			ClientID:     cfg.EpicClientID,
			ClientSecret: cfg.EpicClientSecret,
			AuthBaseURL:  cfg.EpicAuthBaseURL,
			FHIRBaseURL:  cfg.EpicFHIRBaseURL,
			RedirectURI:  redirectURI,
			Scopes:       cfg.EpicScopes,
		}, sessions, logger)
		if err != nil {
			logger.Error("failed to build oauth client", "error", err)
			os.Exit(1)
		}
		client.SetMetrics(callMetrics)
		authorizer = client
	} else {
		logger.Warn("no EPIC_CLIENT_ID set, record-linked mode disabled")
	}

	scheduler, err := buildScheduler(cfg, logger)
	if err != nil {
		logger.Error("failed to build scheduling client", "error", err)
		os.Exit(1)
	}

	summarizer, err := buildSummarizer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build summarizer", "error", err)
		os.Exit(1)
	}

	sender, err := buildEmailSender(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build email sender", "error", err)
		os.Exit(1)
	}
	confirmations := notify.NewConfirmationService(sender, logger)

	var console *handlers.ConsoleHandler
	var consoleSink func(callflow.ConsoleEvent)
	if cfg.ConsoleEnabled {
		console = handlers.NewConsoleHandler(logger)
		consoleSink = console.Publish
	}

	factory := func(speech callflow.SpeechClient) (*callflow.Orchestrator, error) {
		return callflow.NewOrchestrator(callflow.OrchestratorDeps{
			Speech:        speech,
			Validator:     identity.NewValidator(identityRepo),
			Authorizer:    authorizer,
			Sessions:      sessions,
			Scheduler:     scheduler,
			Recorder:      recorder,
			Summarizer:    summarizer,
			Confirmations: confirmations,
			Ledger:        ledger,
			Metrics:       callMetrics,
			Logger:        logger,
			Poll:          callflow.PollPolicy{Interval: cfg.AuthPollInterval, Attempts: cfg.AuthPollAttempts},
			SearchWindow:  cfg.SlotSearchWindow,
			ListenTimeout: cfg.ListenTimeout,
			Console:       consoleSink,
		})
	}

	var oauthHandler *handlers.OAuthHandler
	if client, ok := authorizer.(*oauth.Client); ok {
		oauthHandler = handlers.NewOAuthHandler(client, sessions, logger)
	}

	r := router.New(&router.Config{
		Logger:             logger,
		CallsHandler:       handlers.NewCallsHandler(factory, logger),
		OAuthHandler:       oauthHandler,
		ConsoleHandler:     console,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// buildScheduler picks the scheduling protocol. No FHIR base means no
// scheduling: calls still run, booking degrades to the manual script.
func buildScheduler(cfg *appconfig.Config, logger *logging.Logger) (scheduling.Client, error) {
	if cfg.EpicFHIRBaseURL == "" {
		logger.Warn("no EPIC_FHIR_BASE set, live scheduling disabled")
		return nil, nil
	}
	switch cfg.SchedulingProtocol {
	case "resource":
		return scheduling.NewResourceClient(scheduling.ResourceConfig{
			BaseURL:    cfg.EpicFHIRBaseURL,
			ProviderID: cfg.SchedulingProviderID,
			Timeout:    cfg.SchedulingTimeout,
		}, logger)
	default:
		return scheduling.NewParametersClient(scheduling.ParametersConfig{
			BaseURL: cfg.EpicFHIRBaseURL,
			Timeout: cfg.SchedulingTimeout,
		}, logger)
	}
}

func buildSummarizer(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (summary.Summarizer, error) {
	switch cfg.SummaryProvider {
	case "bedrock":
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return summary.NewBedrockSummarizer(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
	case "gemini":
		return summary.NewGeminiSummarizer(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
	default:
		logger.Info("using static call summaries")
		return summary.StaticSummarizer{}, nil
	}
}

func buildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (notify.EmailSender, error) {
	switch cfg.EmailProvider {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender == nil {
			return nil, fmt.Errorf("sendgrid sender requires SENDGRID_API_KEY and SENDGRID_FROM_EMAIL")
		}
		return sender, nil
	case "ses":
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger)
		if sender == nil {
			return nil, fmt.Errorf("ses sender requires SES_FROM_EMAIL")
		}
		return sender, nil
	default:
		logger.Info("using stub email sender")
		return notify.NewStubEmailSender(logger), nil
	}
}

// demoCustomers seeds the in-memory identity repository for local runs.
func demoCustomers() []identity.CustomerRecord {
	return []identity.CustomerRecord{
		{
			ID: 1, FirstName: "Maria", LastName: "Santos",
			Phone: "555-123-4567", Last4SSN: "9876", DOB: "11/10/1986",
			ZipCode: "73301", Plan: "Gold", Status: "active",
			Email: "maria.santos@example.com",
		},
		{
			ID: 2, FirstName: "James", LastName: "Okafor",
			Phone: "555-987-6543", Last4SSN: "1234", DOB: "03/22/1979",
			ZipCode: "94107", Plan: "Premium", Status: "active",
			Email: "james.okafor@example.com",
		},
		{
			ID: 3, FirstName: "Lena", LastName: "Voss",
			Phone: "555-456-7890", Last4SSN: "5555", DOB: "07/04/1992",
			ZipCode: "60614", Plan: "Basic", Status: "inactive",
			Email: "lena.voss@example.com",
		},
	}
}

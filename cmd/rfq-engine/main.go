package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/alcast-trading/rfq-engine/internal/api"
	"github.com/alcast-trading/rfq-engine/internal/audit"
	"github.com/alcast-trading/rfq-engine/internal/config"
	"github.com/alcast-trading/rfq-engine/internal/jobs"
	"github.com/alcast-trading/rfq-engine/internal/publisher"
	"github.com/alcast-trading/rfq-engine/internal/rate"
	"github.com/alcast-trading/rfq-engine/internal/rfq"
	internalsecrets "github.com/alcast-trading/rfq-engine/internal/secrets"
	"github.com/alcast-trading/rfq-engine/internal/store"
	"github.com/alcast-trading/rfq-engine/internal/transport"
	"github.com/alcast-trading/rfq-engine/internal/webhook"
	"github.com/alcast-trading/rfq-engine/pkg/logger"
	"github.com/alcast-trading/rfq-engine/pkg/secrets"
	"github.com/alcast-trading/rfq-engine/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	logg := logger.S()
	logg.Info("starting [rfq-engine]...")
	logg.Info("connection to DSN: ", utils.MaskDSN(cfg.DatabaseURL))

	// --- Store (Redis + Postgres hybrid) ---
	st, err := store.NewHybrid(cfg.RedisAddr, cfg.RedisDB, cfg.DatabaseURL, store.PGPoolConfig{
		MaxConns:          int32(cfg.PGMaxConns),
		MinConns:          int32(cfg.PGMinConns),
		MaxConnLifetime:   cfg.PGMaxConnLifetime,
		MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
		HealthCheckPeriod: cfg.PGHealthCheckPeriod,
	}, logger.L())
	if err != nil {
		logg.Fatalw("failed to init store", "error", err)
	}
	if err := st.EnsureSchema(ctx); err != nil {
		logg.Fatalw("failed to ensure schema", "error", err)
	}

	// --- Connect to NATS ---
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		logg.Fatalw("failed to connect to NATS", "error", err)
	}

	// --- Publisher ---
	pub, err := publisher.New(nc, cfg.ServiceName, logger.L())
	if err != nil {
		logg.Fatalw("failed to init publisher", "error", err)
	}

	// --- Rate limiter for the outbound gateway ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.GatewayRatePerSecond,
		Burst:             cfg.GatewayRateBurst,
	})

	// --- Outbound gateway sender ---
	sender := transport.NewGatewaySender(logger.L(), rateMgr, cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.GatewayRetryMax)

	// --- Audit trail ---
	auditRecorder := audit.NewRecorder(st, logger.L())

	// --- Webhook secret (env override, or AWS Secrets Manager) ---
	webhookSecret := cfg.WebhookSecret
	stopCleaner := make(chan struct{})
	if cfg.WebhookSecretFromAWS && webhookSecret == "" {
		awsProvider, err := secrets.NewAWSProvider(cfg.AWSRegion)
		if err != nil {
			logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
		}
		secretCache := secrets.NewCache[string](cfg.SecretCacheTTL)
		go secretCache.StartCleaner(cfg.CacheCleanupFreq, stopCleaner)

		resolver := internalsecrets.NewWebhookResolver(logger.L(), cfg.Env, cfg.WebhookSecret, awsProvider, secretCache)
		webhookSecret, err = resolver.Resolve(ctx)
		if err != nil {
			logg.Fatalw("failed to resolve webhook secret", "error", err)
		}
	}
	if webhookSecret == "" {
		logg.Warn("webhook secret not configured; delivery callbacks are unauthenticated")
	}
	authenticator := webhook.NewAuthenticator(webhookSecret)

	// --- Lifecycle service ---
	svc := rfq.NewService(st, sender, pub, auditRecorder, logger.L())

	// --- Background status gauge ---
	var refresher *jobs.StatusRefresher
	if cfg.SummaryRefreshInterval > 0 {
		refresher = jobs.NewStatusRefresher(logger.L(), st, pub, cfg.SummaryRefreshInterval)
		go refresher.Start(ctx)
	}

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})

	handler := api.NewHandler(logger.L(), svc)
	webhookHandler := api.NewWebhookHandler(logger.L(), svc, authenticator,
		cfg.WebhookSignatureHeader, cfg.WebhookAPIKeyHeader, cfg.WebhookTimestampHeader)

	api.RegisterRoutes(app, handler, webhookHandler, pub, st)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[rfq-engine] running",
		"nats", cfg.NATSURL,
		"env", cfg.Env,
		"gateway", cfg.GatewayBaseURL)

	<-ctx.Done()
	logg.Info("shutting down [rfq-engine]...")

	close(stopCleaner)
	if refresher != nil {
		refresher.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if err := nc.Drain(); err != nil {
		logg.Warnw("nats.drain_failed", "error", err)
	}
	if err := st.Close(); err != nil {
		logg.Warnw("store.close_failed", "error", err)
	}
}

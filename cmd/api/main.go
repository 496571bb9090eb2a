package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clearlane/tradein-platform/internal/api/router"
	"github.com/clearlane/tradein-platform/internal/backend"
	"github.com/clearlane/tradein-platform/internal/booking"
	"github.com/clearlane/tradein-platform/internal/bookings"
	"github.com/clearlane/tradein-platform/internal/branches"
	appconfig "github.com/clearlane/tradein-platform/internal/config"
	"github.com/clearlane/tradein-platform/internal/flowstate"
	"github.com/clearlane/tradein-platform/internal/http/handlers"
	"github.com/clearlane/tradein-platform/internal/observability/metrics"
	"github.com/clearlane/tradein-platform/internal/sms"
	"github.com/clearlane/tradein-platform/pkg/logging"
)

func main() {
	// Local development convenience; in deployment the environment is real.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting tradein-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	// Appraisal backend client
	backendTokens := backend.NewTokenSource()
	if cfg.BackendAPIKey != "" {
		backendTokens.Set(cfg.BackendAPIKey)
	}
	backendClient, err := backend.New(backend.Config{
		BaseURL: cfg.BackendBaseURL,
		Timeout: cfg.BackendTimeout,
		Backoff: cfg.BackendBackoff,
		Tokens:  backendTokens,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to build backend client", "error", err)
		os.Exit(1)
	}

	// SMS provider client, same invocation discipline as the backend
	smsTokens := backend.NewTokenSource()
	smsTokens.Set(cfg.SMSAPIKey)
	smsClient, err := backend.New(backend.Config{
		BaseURL: cfg.SMSBaseURL,
		Timeout: cfg.BackendTimeout,
		Tokens:  smsTokens,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to build sms client", "error", err)
		os.Exit(1)
	}
	sender := sms.NewService(smsClient, cfg.SMSFromNumber, cfg.SMSMessagingProfileID, logger)

	// Redis session snapshots
	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable at startup, sessions will not survive restarts", "error", err)
	}
	cancelPing()
	snapshots := flowstate.NewSessionStore(redisClient, cfg.SessionTTL)

	// Optional Postgres audit store for confirmed bookings
	var records booking.RecordStore
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		records = bookings.NewStore(pool)
	}

	wizardMetrics := metrics.NewWizardMetrics(nil)

	registry := handlers.NewRegistry(handlers.RegistryConfig{
		Backend:            backendClient,
		Sender:             sender,
		Records:            records,
		Snapshot:           snapshots,
		Logger:             logger,
		Metrics:            wizardMetrics,
		BackendMaxAttempts: cfg.BackendMaxAttempts,
		OTPMaxAttempts:     cfg.OTPMaxAttempts,
		OTPCodeTTL:         cfg.OTPCodeTTL,
		SlotWindowDays:     cfg.SlotWindowDays,
	})
	locator := branches.NewLocator(backendClient, cfg.BackendMaxAttempts, logger)
	wizard := handlers.NewWizardHandler(registry, locator, logger)

	r := router.New(&router.Config{
		Logger:               logger,
		Wizard:               wizard,
		MetricsHandler:       promhttp.Handler(),
		CORSAllowedOrigins:   cfg.CORSAllowedOrigins,
		OTPRequestsPerSecond: cfg.OTPRequestsPerSecond,
		OTPBurst:             cfg.OTPBurst,
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := redisClient.Close(); err != nil {
		logger.Warn("redis close failed", "error", err)
	}
	logger.Info("server stopped")
}

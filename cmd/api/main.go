package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"wallet-ledger/config"
	httpHandler "wallet-ledger/internal/adapter/http/handler"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/adapter/messaging/kafka"
	"wallet-ledger/internal/adapter/metrics"
	"wallet-ledger/internal/adapter/storage"
	redisStorage "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/service"
	"wallet-ledger/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("driver", cfg.Database.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting Wallet Ledger")

	ctx := context.Background()

	// Storage backend (postgres or memory)
	store, err := storage.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer store.Close()
	log.Info().Str("backend", store.Name()).Msg("Store ready")

	healthCheckers := []ports.HealthChecker{store}

	// Redis: idempotency fast path and rate limiting
	var (
		idempotencyCache ports.IdempotencyCache
		rateLimitStore   *redisStorage.RateLimitStore
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info().Msg("Redis connected")

		idempotencyCache = redisStorage.NewIdempotencyCache(rdb)
		if cfg.RateLimit.Enabled {
			rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		}
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	} else if cfg.RateLimit.Enabled {
		log.Warn().Msg("Rate limiting requires Redis, running without it")
	}

	var opts []service.Option

	// Ledger events
	if cfg.Kafka.Enabled {
		publisher := kafka.NewPublisher(kafka.NewWriter(cfg.Kafka), log)
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close event publisher")
			}
		}()
		opts = append(opts, service.WithEventPublisher(publisher))
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Publishing ledger events")
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		opts = append(opts, service.WithMetrics(m))
	}

	// Business services
	guard := service.NewIdempotencyGuard(store.Idempotency(), idempotencyCache, service.IdempotencyConfig{
		TTL:             cfg.Idempotency.TTL,
		CleanupGrace:    cfg.Idempotency.CleanupGrace,
		CleanupInterval: cfg.Idempotency.CleanupInterval,
	}, log)
	walletSvc := service.NewWalletService(
		store.Wallets(),
		store.Transactions(),
		store.Transactor(),
		guard,
		log,
		opts...,
	)
	reportingSvc := service.NewReportingService(store.Wallets(), store.Transactions())
	auditSvc := service.NewAuditService(store.Audit(), log)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:      walletSvc,
		ReportingSvc:   reportingSvc,
		AuditSvc:       auditSvc,
		RateLimitStore: rateLimitStore,
		RateLimits:     middleware.RateLimitRules(cfg.RateLimit.ReadLimit, cfg.RateLimit.WriteLimit, cfg.RateLimit.Window),
		HealthCheckers: healthCheckers,
		Metrics:        m,
		MetricsPath:    cfg.Metrics.Path,
		Mode:           cfg.Server.Mode,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Drain background writers before the store closes.
	auditSvc.Wait()
	guard.Wait()

	log.Info().Msg("Server exited")
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webhook-engine/config"
	httpHandler "webhook-engine/internal/adapter/http/handler"
	pgStorage "webhook-engine/internal/adapter/storage/postgres"
	redisStorage "webhook-engine/internal/adapter/storage/redis"
	"webhook-engine/internal/core/ports"
	"webhook-engine/internal/service"
	"webhook-engine/pkg/logger"
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
		Int("port", cfg.Server.Port).
		Msg("Starting Webhook Delivery Engine")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	endpointRepo := pgStorage.NewEndpointRepo(pool)
	deliveryRepo := pgStorage.NewDeliveryRepo(pool)

	// Initialize Redis stores
	claimStore := redisStorage.NewClaimStore(rdb)

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	keySvc := service.NewKeyManager(encSvc)
	sigSvc := service.NewHMACSignatureService()
	authSvc := service.NewAuthHeaderBuilder(keySvc)
	tokenSvc := service.NewJWTTokenService(cfg.Token.Secret, cfg.Token.Expiry, cfg.Token.Issuer)

	// Initialize business services
	endpointSvc := service.NewEndpointService(endpointRepo, deliveryRepo, keySvc, service.PolicyDefaults{
		MaxRetries:        cfg.Engine.DefaultMaxRetries,
		RetryDelaySeconds: cfg.Engine.DefaultRetryDelaySeconds,
		TimeoutSeconds:    cfg.Engine.DefaultTimeoutSeconds,
	}, log)

	dispatcher := service.NewDispatcher(
		endpointRepo,
		deliveryRepo,
		sigSvc,
		authSvc,
		service.NewRetryScheduler(),
		&http.Client{},
		service.DispatcherOptions{
			PoolSize:         cfg.Engine.PoolSize,
			QueueSize:        cfg.Engine.QueueSize,
			MaxResponseBytes: cfg.Engine.MaxResponseBytes,
		},
		log,
	)

	sweeper := service.NewRetrySweeper(
		deliveryRepo,
		claimStore,
		dispatcher,
		cfg.Engine.SweepInterval,
		cfg.Engine.SweepBatchSize,
		cfg.Engine.ClaimTTL,
		log,
	)
	sweeper.Start(ctx)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		EndpointSvc:    endpointSvc,
		DispatchSvc:    dispatcher,
		DeliveryRepo:   deliveryRepo,
		TokenSvc:       tokenSvc,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop the retry sweeper, then drain in-flight deliveries.
	sweeper.Stop()
	dispatcher.Shutdown()

	log.Info().Msg("Server exited")
}

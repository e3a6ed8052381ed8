package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/api"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/api/middleware"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/config"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/db"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/domain"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/gateway"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/idempotency"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/observability"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/repository"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/service"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/worker"
)

// Run bootstraps the HTTP server and review sweeper, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := repository.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	repo := repository.NewRepository(pool)
	idemStore := idempotency.NewStore(redisClient, pool, cfg.IdempotencyTTL)

	for _, adminID := range cfg.AdminUserIDs {
		if err := repo.GrantRole(ctx, adminID, domain.RoleAdmin); err != nil {
			return fmt.Errorf("seed admin role: %w", err)
		}
	}

	bankGateway := gateway.NewBankTransferGateway(cfg.BankGatewayBaseURL, cfg.BankGatewaySecret, cfg.BankWebhookSecret, cfg.Currency, cfg.GatewayTimeout)
	cardGateway := gateway.NewCardGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.Currency)
	gateways := gateway.NewSelector(bankGateway, cardGateway)

	reviewSvc := service.NewReviewService(repo, cfg.StaleAge)
	sweeper := worker.NewReviewSweeper(reviewSvc).WithInterval(cfg.SweepInterval)
	stopSweeper := sweeper.Run(ctx)
	logger.Info("review sweeper started", zap.Duration("interval", cfg.SweepInterval), zap.Duration("stale_age", cfg.StaleAge))

	router := api.NewRouter(cfg, logger, pool, redisClient, repo, idemStore, gateways)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping review sweeper")
	stopSweeper()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

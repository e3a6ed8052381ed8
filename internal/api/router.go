package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/api/handler"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/api/middleware"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/config"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/gateway"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/idempotency"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/service"
)

type Router struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *pgxpool.Pool
	redis    redis.Cmdable
	store    service.Store
	idem     *idempotency.Store
	gateways *gateway.Selector
}

func NewRouter(cfg *config.Config, logger *zap.Logger, db *pgxpool.Pool, redisClient redis.Cmdable, store service.Store, idem *idempotency.Store, gateways *gateway.Selector) *Router {
	return &Router{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		redis:    redisClient,
		store:    store,
		idem:     idem,
		gateways: gateways,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	// Services
	walletSvc := service.NewWalletService(api.store)
	intakeSvc := service.NewIntakeService(api.store, walletSvc)
	payoutSvc := service.NewPayoutService(api.store, walletSvc, api.gateways, api.cfg.Currency).
		WithGatewayTimeout(api.cfg.GatewayTimeout)
	webhookSvc := service.NewWebhookService(api.gateways, intakeSvc, payoutSvc)

	// Handlers
	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	webhookHandler := handler.NewWebhookHandler(webhookSvc)
	saleHandler := handler.NewSaleHandler(intakeSvc, api.cfg.Currency)
	payoutHandler := handler.NewPayoutHandler(payoutSvc)
	walletHandler := handler.NewWalletHandler(walletSvc, api.store, api.cfg.Currency)

	idem := middleware.IdempotencyMiddleware(api.idem, api.logger)

	// Public routes
	r.Get("/healthz/live", healthHandler.Live)
	r.Get("/healthz/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	// Webhooks authenticate with signatures, not JWTs.
	r.With(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS)).
		Post("/v1/webhooks/{gateway}", webhookHandler.Handle)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		r.With(idem).Post("/v1/sales", saleHandler.CreateSale)
		r.With(idem).Post("/v1/payouts", payoutHandler.CreatePayout)
		r.Get("/v1/payouts/{id}", payoutHandler.GetPayout)

		r.Get("/v1/wallets/{userId}", walletHandler.GetWallet)
		r.Get("/v1/wallets/{userId}/transactions", walletHandler.ListTransactions)
		r.Get("/v1/wallets/{userId}/entries", walletHandler.ListEntries)

		// Admin workflow
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(api.store))

			r.With(idem).Post("/v1/sales/{reference}/settle", saleHandler.SettleSale)
			r.Get("/v1/payouts/manual-review", payoutHandler.ListManualReview)
			r.With(idem).Post("/v1/payouts/{id}/approve", payoutHandler.ApprovePayout)
			r.With(idem).Post("/v1/payouts/{id}/reject", payoutHandler.RejectPayout)
			r.With(idem).Post("/v1/payouts/{id}/finalize", payoutHandler.FinalizePayout)
			r.With(idem).Post("/v1/payouts/{id}/resolve", payoutHandler.ResolveManualReview)
		})
	})

	return r
}

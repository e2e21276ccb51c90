package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/solutions224/payments-core/internal/api/handler"
	"github.com/solutions224/payments-core/internal/api/middleware"
	"github.com/solutions224/payments-core/internal/api/spec"
	"github.com/solutions224/payments-core/internal/config"
	"github.com/solutions224/payments-core/internal/idempotency"
	"github.com/solutions224/payments-core/internal/ledger"
	"github.com/solutions224/payments-core/internal/service"
)

// Router assembles the HTTP surface.
type Router struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *pgxpool.Pool
	redis     redis.Cmdable
	idemStore *idempotency.Store
	gateway   ledger.Gateway
	transfers *service.TransferService
	escrow    *service.EscrowService
	queue     *service.QueueService
	webhooks  *service.WebhookService
}

func NewRouter(cfg *config.Config, logger *zap.Logger, db *pgxpool.Pool, redisClient redis.Cmdable, idemStore *idempotency.Store, gateway ledger.Gateway, transfers *service.TransferService, escrow *service.EscrowService, queue *service.QueueService, webhooks *service.WebhookService) *Router {
	return &Router{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		redis:     redisClient,
		idemStore: idemStore,
		gateway:   gateway,
		transfers: transfers,
		escrow:    escrow,
		queue:     queue,
		webhooks:  webhooks,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	transferHandler := handler.NewTransferHandler(api.transfers)
	escrowHandler := handler.NewEscrowHandler(api.escrow)
	intentHandler := handler.NewIntentHandler(api.queue)
	walletHandler := handler.NewWalletHandler(api.gateway)
	webhookHandler := handler.NewWebhookHandler(api.webhooks)

	r.Get("/healthz/live", healthHandler.Live)
	r.Get("/healthz/ready", healthHandler.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))

		r.Get("/v1/wallets/{id}", walletHandler.GetWallet)
		r.Get("/v1/intents/{id}", intentHandler.GetIntent)
		r.Get("/v1/escrow/{id}", escrowHandler.GetEscrow)

		r.Post("/v1/webhooks/mobile-money", webhookHandler.HandleMobileMoneyCallback)
	})

	// Money movement: tighter rate limit plus the Idempotency-Key contract.
	r.Group(func(r chi.Router) {
		r.Use(middleware.MoneyRateLimiter(api.cfg.MoneyRateLimitRPS))
		r.Use(middleware.IdempotencyMiddleware(api.idemStore, api.logger))

		r.Post("/v1/transfers", transferHandler.MakeTransfer)
		r.Post("/v1/intents", intentHandler.CreateIntent)
		r.Post("/v1/intents/{id}/cancel", intentHandler.CancelIntent)
		r.Post("/v1/escrow", escrowHandler.CreateEscrow)
		r.Post("/v1/escrow/{id}/release", escrowHandler.ReleaseEscrow)
		r.Post("/v1/escrow/{id}/refund", escrowHandler.RefundEscrow)
	})

	return r
}

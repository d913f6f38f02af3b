package controller

import (
	"time"

	"github.com/cassiomorais/switchboard/internal/config"
	"github.com/cassiomorais/switchboard/internal/connector"
	customMW "github.com/cassiomorais/switchboard/internal/middleware"
	"github.com/cassiomorais/switchboard/internal/observability"
	"github.com/cassiomorais/switchboard/internal/operations"
	"github.com/cassiomorais/switchboard/internal/repository/postgres"
	"github.com/cassiomorais/switchboard/internal/webhooks"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type RouterDeps struct {
	Pool            *pgxpool.Pool
	RedisClient     *redis.Client
	Registry        *connector.Registry
	Operations      *operations.Service
	Webhooks        *webhooks.Service
	IdempotencyRepo *postgres.IdempotencyRepository
	Metrics         *observability.Metrics
	ServerConfig    config.ServerConfig
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.ServerConfig.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link", "X-Idempotency-Replayed"},
		AllowCredentials: deps.ServerConfig.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.SecurityHeaders())
	r.Use(customMW.Metrics(deps.Metrics))
	if deps.ServerConfig.RateLimitPerMin > 0 {
		r.Use(customMW.RateLimit(deps.ServerConfig.RateLimitPerMin))
	}

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	paymentH := NewPaymentController(deps.Operations)
	refundH := NewRefundController(deps.Operations)
	webhookH := NewWebhookController(deps.Webhooks)
	connectorH := NewConnectorController(deps.Registry)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	// Connector deliveries carry their own signatures; no bearer auth here.
	r.Post("/webhooks/{merchant_id}/{connector}", webhookH.Receive)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(customMW.RequireAuth(deps.ServerConfig.JWTSecret))

		idempotencyMW := customMW.Idempotency(deps.IdempotencyRepo)

		// Payments
		r.With(idempotencyMW).Post("/payments", paymentH.CreatePayment)
		r.Get("/payments/{id}", paymentH.GetPayment)
		r.With(idempotencyMW).Post("/payments/{id}/confirm", paymentH.ConfirmPayment)
		r.With(idempotencyMW).Post("/payments/{id}/capture", paymentH.CapturePayment)
		r.With(idempotencyMW).Post("/payments/{id}/cancel", paymentH.CancelPayment)

		// Refunds
		r.With(idempotencyMW).Post("/refunds", refundH.CreateRefund)
		r.Get("/refunds/{id}", refundH.GetRefund)

		// Mandates
		r.With(idempotencyMW).Post("/mandates", paymentH.SetupMandate)
		r.Get("/mandates/{id}", paymentH.GetMandate)
		r.With(idempotencyMW).Post("/mandates/{id}/revoke", paymentH.RevokeMandate)

		// Connectors
		r.Get("/connectors", connectorH.ListConnectors)
	})

	return r
}

package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/cassiomorais/switchboard/internal/config"
	"github.com/cassiomorais/switchboard/internal/connector"
	"github.com/cassiomorais/switchboard/internal/connector/connhttp"
	"github.com/cassiomorais/switchboard/internal/connectors/paypal"
	"github.com/cassiomorais/switchboard/internal/connectors/stripe"
	"github.com/cassiomorais/switchboard/internal/connectors/wirepay"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
	"github.com/cassiomorais/switchboard/internal/engine"
	"github.com/cassiomorais/switchboard/internal/observability"
	"github.com/cassiomorais/switchboard/internal/operations"
	infraRedis "github.com/cassiomorais/switchboard/internal/redis"
	"github.com/cassiomorais/switchboard/internal/repository/postgres"
	"github.com/cassiomorais/switchboard/internal/routing"
	"github.com/cassiomorais/switchboard/internal/storage"
	"github.com/cassiomorais/switchboard/internal/tokens"
	"github.com/cassiomorais/switchboard/internal/webhooks"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics
}

func New(ctx context.Context, serviceName string, metricsNamespace string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info().Str("service", serviceName).Msg("Starting")

	if cfg.Observability.EnableTracing {
		tp, err := observability.InitTracer(serviceName, cfg.Observability.JaegerEndpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		} else {
			go func() {
				<-ctx.Done()
				observability.Shutdown(context.Background(), tp)
			}()
			logger.Info().Msg("Tracing enabled")
		}
	}

	metrics := observability.NewMetrics(metricsNamespace, nil)
	logger.Info().Msg("Metrics initialized")

	pool, err := postgres.NewPool(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info().Msg("Connected to PostgreSQL")

	redisClient, err := infraRedis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info().Msg("Connected to Redis")

	return &App{
		Config:  cfg,
		Logger:  logger,
		Pool:    pool,
		Redis:   redisClient,
		Metrics: metrics,
	}, nil
}

func (a *App) Close() {
	a.Redis.Close()
	a.Pool.Close()
}

// Core wires the connector registry, dispatch stack and operation service
// shared by the API server and the sync worker.
type Core struct {
	Registry        *connector.Registry
	Operations      *operations.Service
	Webhooks        *webhooks.Service
	TxManager       *postgres.TxManager
	OutboxRepo      *postgres.OutboxRepository
	IdempotencyRepo *postgres.IdempotencyRepository
}

// NewCore builds the shared wiring on top of a bootstrapped App. Registered
// connector adapters are capability-validated before anything is served.
func NewCore(app *App) (*Core, error) {
	cfg := app.Config

	registry := connector.NewRegistry(
		stripe.New(cfg.Connectors.Accounts["stripe"].BaseURL),
		paypal.New(cfg.Connectors.Accounts["paypal"].BaseURL),
		wirepay.New(cfg.Connectors.Accounts["wirepay"].BaseURL),
	)
	if err := registry.ValidateCapabilities(); err != nil {
		return nil, fmt.Errorf("validate connector capabilities: %w", err)
	}

	transport := connhttp.NewClient(cfg.Connectors.CallTimeout)
	exec := engine.New(transport, app.Logger, app.Metrics)
	dispatcher := routing.NewDispatcher(registry, exec, app.Logger, app.Metrics)

	intentRepo := postgres.NewIntentRepository(app.Pool)
	attemptRepo := postgres.NewAttemptRepository(app.Pool)
	refundRepo := postgres.NewRefundRepository(app.Pool)
	mandateRepo := postgres.NewMandateRepository(app.Pool)
	outboxRepo := postgres.NewOutboxRepository(app.Pool)
	idempotencyRepo := postgres.NewIdempotencyRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	store := storage.New(intentRepo, attemptRepo, refundRepo, app.Redis, app.Logger)

	accountIDs := make(map[string]string, len(cfg.Connectors.Accounts))
	for name, acct := range cfg.Connectors.Accounts {
		accountIDs[name] = acct.AccountID
	}

	ops := &operations.Service{
		Intents:    store.Intents(),
		Attempts:   store.Attempts(),
		Refunds:    store.Refunds(),
		Mandates:   mandateRepo,
		Outbox:     outboxRepo,
		Tx:         txManager,
		Dispatcher: dispatcher,
		Registry:   registry,
		Tokens:     tokens.NewCache(app.Redis),
		Accounts:   cfg.Connectors.Accounts,
		Routing: routing.MerchantRouting{
			DefaultConnector: cfg.Routing.DefaultConnector,
			Fallbacks:        cfg.Routing.Fallbacks,
			AccountIDs:       accountIDs,
		},
		Scheme:    payments.StorageScheme(cfg.Storage.Scheme),
		SecretTTL: cfg.Storage.ClientSecretTTL,
		Logger:    app.Logger,
		Metrics:   app.Metrics,
	}
	// The token pre-step runs per routing candidate, inside the dispatcher.
	dispatcher.Prepare = ops.PrepareConnectorCall

	return &Core{
		Registry:        registry,
		Operations:      ops,
		Webhooks:        webhooks.NewService(registry, ops, app.Logger, app.Metrics),
		TxManager:       txManager,
		OutboxRepo:      outboxRepo,
		IdempotencyRepo: idempotencyRepo,
	}, nil
}

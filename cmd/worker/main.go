package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cassiomorais/switchboard/internal/bootstrap"
	"github.com/cassiomorais/switchboard/internal/config"
	"github.com/cassiomorais/switchboard/internal/operations"
	infraRedis "github.com/cassiomorais/switchboard/internal/redis"
	"github.com/cassiomorais/switchboard/internal/repository/postgres"
	"github.com/cassiomorais/switchboard/pkg/retry"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "switchboard-worker", "switch_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	core, err := bootstrap.NewCore(app)
	if err != nil {
		app.Logger.Fatal().Err(err).Msg("Failed to wire services")
	}

	streamProducer := infraRedis.NewStreamProducer(app.Redis)
	workerCfg := app.Config.Worker

	app.Logger.Info().
		Dur("sync_poll_interval", workerCfg.SyncPollInterval).
		Dur("outbox_poll_interval", workerCfg.OutboxPollInterval).
		Msg("Worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Payment sync poller (settles non-terminal attempts).
	g.Go(func() error {
		return runAttemptSyncer(gCtx, app, core.Operations, workerCfg)
	})

	// 2. Refund sync poller (settles pending refunds).
	g.Go(func() error {
		return runRefundSyncer(gCtx, app, core.Operations, workerCfg)
	})

	// 3. Outbox publisher (polls outbox table and publishes to Redis Streams).
	g.Go(func() error {
		return runOutboxPublisher(gCtx, app.Logger, core.TxManager, core.OutboxRepo, streamProducer, workerCfg)
	})

	// 4. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}

func syncRetryConfig(cfg config.WorkerConfig) retry.Config {
	rc := retry.DefaultConfig()
	if cfg.SyncMaxAttempts > 0 {
		rc.MaxAttempts = cfg.SyncMaxAttempts
	}
	return rc
}

// runAttemptSyncer polls non-terminal payment attempts and drives each one
// through a connector status probe. The per-intent lock keeps concurrent
// worker replicas off the same payment.
func runAttemptSyncer(ctx context.Context, app *bootstrap.App, ops *operations.Service, cfg config.WorkerConfig) error {
	ticker := time.NewTicker(cfg.SyncPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		attempts, err := ops.Attempts.ListNonTerminal(ctx, cfg.BatchSize)
		if err != nil {
			app.Logger.Error().Err(err).Msg("Failed to list non-terminal attempts")
			continue
		}

		for _, attempt := range attempts {
			lock := infraRedis.NewDistributedLock(app.Redis, "sync:payment:"+attempt.PaymentID.String(), cfg.LockTTL)
			acquired, err := lock.Acquire(ctx)
			if err != nil || !acquired {
				continue
			}

			start := time.Now()
			err = retry.Do(ctx, syncRetryConfig(cfg), func() error {
				_, runErr := operations.Run(ctx, ops, operations.PaymentSync{}, &operations.PaymentRequest{
					MerchantID: attempt.MerchantID,
					PaymentID:  attempt.PaymentID,
				})
				return runErr
			})
			app.Metrics.WorkerProcessingDuration.WithLabelValues("payment_sync").Observe(time.Since(start).Seconds())

			if err != nil {
				app.Logger.Error().Err(err).Str("payment_id", attempt.PaymentID.String()).Msg("Payment sync failed")
				app.Metrics.WorkerSyncsTotal.WithLabelValues("payment_sync", "error").Inc()
			} else {
				app.Metrics.WorkerSyncsTotal.WithLabelValues("payment_sync", "success").Inc()
			}

			lock.Release(ctx)
		}
	}
}

// runRefundSyncer polls refunds still pending at the connector. Transport
// faults during ExecuteRefund leave refunds pending; this loop settles them.
func runRefundSyncer(ctx context.Context, app *bootstrap.App, ops *operations.Service, cfg config.WorkerConfig) error {
	ticker := time.NewTicker(cfg.SyncPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		refunds, err := ops.Refunds.ListNonTerminal(ctx, cfg.BatchSize)
		if err != nil {
			app.Logger.Error().Err(err).Msg("Failed to list non-terminal refunds")
			continue
		}

		for _, refund := range refunds {
			lock := infraRedis.NewDistributedLock(app.Redis, "sync:refund:"+refund.ID.String(), cfg.LockTTL)
			acquired, err := lock.Acquire(ctx)
			if err != nil || !acquired {
				continue
			}

			start := time.Now()
			err = retry.Do(ctx, syncRetryConfig(cfg), func() error {
				_, runErr := operations.RunRefund(ctx, ops, operations.RefundSync{}, &operations.RefundRequest{
					MerchantID: refund.MerchantID,
					RefundID:   refund.ID,
				})
				return runErr
			})
			app.Metrics.WorkerProcessingDuration.WithLabelValues("refund_sync").Observe(time.Since(start).Seconds())

			if err != nil {
				app.Logger.Error().Err(err).Str("refund_id", refund.ID.String()).Msg("Refund sync failed")
				app.Metrics.WorkerSyncsTotal.WithLabelValues("refund_sync", "error").Inc()
			} else {
				app.Metrics.WorkerSyncsTotal.WithLabelValues("refund_sync", "success").Inc()
			}

			lock.Release(ctx)
		}
	}
}

func runOutboxPublisher(
	ctx context.Context,
	logger zerolog.Logger,
	txManager *postgres.TxManager,
	outboxRepo *postgres.OutboxRepository,
	streamProducer *infraRedis.StreamProducer,
	cfg config.WorkerConfig,
) error {
	ticker := time.NewTicker(cfg.OutboxPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		err := txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			entries, err := outboxRepo.GetPending(txCtx, cfg.BatchSize)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				if err := streamProducer.PublishEvent(
					ctx, entry.MerchantID, entry.AggregateID.String(), entry.EventType, entry.Payload,
				); err != nil {
					logger.Error().Err(err).Str("outbox_id", entry.ID.String()).Msg("Failed to publish outbox event")
					outboxRepo.MarkFailed(txCtx, entry.ID)
					continue
				}
				outboxRepo.MarkPublished(txCtx, entry.ID)
			}
			return nil
		})
		if err != nil {
			logger.Error().Err(err).Msg("Outbox publisher error")
		}
	}
}

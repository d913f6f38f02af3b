package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cassiomorais/switchboard/internal/domain/payments"
	"github.com/cassiomorais/switchboard/internal/repository/postgres"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// mirrorTTL bounds how long a KV mirror entry outlives its last write.
const mirrorTTL = 14 * 24 * time.Hour

// Store implements the tracker repositories over Postgres with an optional
// Redis KV mirror. Postgres is the source of truth; under SchemeRedisKV every
// write is mirrored so hot-path reads can come from the KV copy. A failed
// mirror write is logged, never fatal — the mirror is a cache, not a ledger.
type Store struct {
	intents  *postgres.IntentRepository
	attempts *postgres.AttemptRepository
	refunds  *postgres.RefundRepository
	kv       *goredis.Client
	logger   zerolog.Logger
}

// New creates a Store over the given repositories and KV client.
func New(
	intents *postgres.IntentRepository,
	attempts *postgres.AttemptRepository,
	refunds *postgres.RefundRepository,
	kv *goredis.Client,
	logger zerolog.Logger,
) *Store {
	return &Store{intents: intents, attempts: attempts, refunds: refunds, kv: kv, logger: logger}
}

func intentKey(merchantID string, id uuid.UUID) string {
	return fmt.Sprintf("intent:%s:%s", merchantID, id)
}

func attemptKey(id uuid.UUID) string {
	return fmt.Sprintf("attempt:%s", id)
}

func refundKey(merchantID string, id uuid.UUID) string {
	return fmt.Sprintf("refund:%s:%s", merchantID, id)
}

func (s *Store) mirror(ctx context.Context, scheme payments.StorageScheme, key string, v any) {
	if scheme != payments.SchemeRedisKV || s.kv == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("kv mirror marshal failed")
		return
	}
	if err := s.kv.Set(ctx, key, payload, mirrorTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("kv mirror write failed")
	}
}

// IntentStore exposes the intent repository under a storage scheme.
type IntentStore struct{ *Store }

// AttemptStore exposes the attempt repository under a storage scheme.
type AttemptStore struct{ *Store }

// RefundStore exposes the refund repository under a storage scheme.
type RefundStore struct{ *Store }

// Intents returns the IntentRepository view of the store.
func (s *Store) Intents() *IntentStore { return &IntentStore{s} }

// Attempts returns the AttemptRepository view of the store.
func (s *Store) Attempts() *AttemptStore { return &AttemptStore{s} }

// Refunds returns the RefundRepository view of the store.
func (s *Store) Refunds() *RefundStore { return &RefundStore{s} }

func (s *IntentStore) Insert(ctx context.Context, intent *payments.PaymentIntent, scheme payments.StorageScheme) error {
	if err := s.intents.Insert(ctx, intent); err != nil {
		return err
	}
	s.mirror(ctx, scheme, intentKey(intent.MerchantID, intent.ID), intent)
	return nil
}

func (s *IntentStore) Update(ctx context.Context, intent *payments.PaymentIntent, update payments.IntentUpdate, scheme payments.StorageScheme) (*payments.PaymentIntent, error) {
	updated, err := s.intents.Update(ctx, intent, update)
	if err != nil {
		return nil, err
	}
	s.mirror(ctx, scheme, intentKey(updated.MerchantID, updated.ID), updated)
	return updated, nil
}

func (s *IntentStore) FindByID(ctx context.Context, merchantID string, id uuid.UUID, scheme payments.StorageScheme) (*payments.PaymentIntent, error) {
	if scheme == payments.SchemeRedisKV && s.kv != nil {
		raw, err := s.kv.Get(ctx, intentKey(merchantID, id)).Bytes()
		if err == nil {
			var intent payments.PaymentIntent
			if err := json.Unmarshal(raw, &intent); err == nil {
				return &intent, nil
			}
		}
		// Mirror miss or corrupt entry falls back to Postgres.
	}
	return s.intents.FindByID(ctx, merchantID, id)
}

func (s *AttemptStore) Insert(ctx context.Context, attempt *payments.PaymentAttempt, scheme payments.StorageScheme) error {
	if err := s.attempts.Insert(ctx, attempt); err != nil {
		return err
	}
	s.mirror(ctx, scheme, attemptKey(attempt.ID), attempt)
	return nil
}

func (s *AttemptStore) Update(ctx context.Context, attempt *payments.PaymentAttempt, update payments.AttemptUpdate, scheme payments.StorageScheme) (*payments.PaymentAttempt, error) {
	updated, err := s.attempts.Update(ctx, attempt, update)
	if err != nil {
		return nil, err
	}
	s.mirror(ctx, scheme, attemptKey(updated.ID), updated)
	return updated, nil
}

func (s *AttemptStore) FindByID(ctx context.Context, id uuid.UUID, scheme payments.StorageScheme) (*payments.PaymentAttempt, error) {
	if scheme == payments.SchemeRedisKV && s.kv != nil {
		raw, err := s.kv.Get(ctx, attemptKey(id)).Bytes()
		if err == nil {
			var attempt payments.PaymentAttempt
			if err := json.Unmarshal(raw, &attempt); err == nil {
				return &attempt, nil
			}
		}
	}
	return s.attempts.FindByID(ctx, id)
}

func (s *AttemptStore) FindByConnectorTransactionID(ctx context.Context, merchantID, connectorTxnID string, scheme payments.StorageScheme) (*payments.PaymentAttempt, error) {
	// Lookups by connector id always hit Postgres; the mirror is keyed by
	// attempt id only.
	return s.attempts.FindByConnectorTransactionID(ctx, merchantID, connectorTxnID)
}

func (s *AttemptStore) ListNonTerminal(ctx context.Context, limit int) ([]*payments.PaymentAttempt, error) {
	return s.attempts.ListNonTerminal(ctx, limit)
}

func (s *RefundStore) Insert(ctx context.Context, refund *payments.Refund, scheme payments.StorageScheme) error {
	if err := s.refunds.Insert(ctx, refund); err != nil {
		return err
	}
	s.mirror(ctx, scheme, refundKey(refund.MerchantID, refund.ID), refund)
	return nil
}

func (s *RefundStore) Update(ctx context.Context, refund *payments.Refund, update payments.RefundUpdate, scheme payments.StorageScheme) (*payments.Refund, error) {
	updated, err := s.refunds.Update(ctx, refund, update)
	if err != nil {
		return nil, err
	}
	s.mirror(ctx, scheme, refundKey(updated.MerchantID, updated.ID), updated)
	return updated, nil
}

func (s *RefundStore) FindByID(ctx context.Context, merchantID string, id uuid.UUID, scheme payments.StorageScheme) (*payments.Refund, error) {
	if scheme == payments.SchemeRedisKV && s.kv != nil {
		raw, err := s.kv.Get(ctx, refundKey(merchantID, id)).Bytes()
		if err == nil {
			var refund payments.Refund
			if err := json.Unmarshal(raw, &refund); err == nil {
				return &refund, nil
			}
		}
	}
	return s.refunds.FindByID(ctx, merchantID, id)
}

func (s *RefundStore) AmountRefunded(ctx context.Context, paymentID uuid.UUID) (int64, error) {
	return s.refunds.AmountRefunded(ctx, paymentID)
}

func (s *RefundStore) ListNonTerminal(ctx context.Context, limit int) ([]*payments.Refund, error) {
	return s.refunds.ListNonTerminal(ctx, limit)
}

package payments

import (
	"context"

	"github.com/google/uuid"
)

// StorageScheme selects the consistency scheme for tracker writes.
type StorageScheme string

const (
	// SchemePostgresOnly writes trackers to Postgres only.
	SchemePostgresOnly StorageScheme = "postgres_only"
	// SchemeRedisKV dual-writes trackers to Postgres and the Redis KV mirror.
	SchemeRedisKV StorageScheme = "redis_kv"
)

// IntentRepository is the storage collaborator for PaymentIntents.
// Implementations must be atomic per call and surface the typed errors in
// internal/domain/errors (ErrPaymentNotFound, ErrUniqueViolation).
type IntentRepository interface {
	Insert(ctx context.Context, intent *PaymentIntent, scheme StorageScheme) error
	Update(ctx context.Context, intent *PaymentIntent, update IntentUpdate, scheme StorageScheme) (*PaymentIntent, error)
	FindByID(ctx context.Context, merchantID string, id uuid.UUID, scheme StorageScheme) (*PaymentIntent, error)
}

// AttemptRepository is the storage collaborator for PaymentAttempts.
type AttemptRepository interface {
	Insert(ctx context.Context, attempt *PaymentAttempt, scheme StorageScheme) error
	Update(ctx context.Context, attempt *PaymentAttempt, update AttemptUpdate, scheme StorageScheme) (*PaymentAttempt, error)
	FindByID(ctx context.Context, id uuid.UUID, scheme StorageScheme) (*PaymentAttempt, error)
	FindByConnectorTransactionID(ctx context.Context, merchantID, connectorTxnID string, scheme StorageScheme) (*PaymentAttempt, error)
	ListNonTerminal(ctx context.Context, limit int) ([]*PaymentAttempt, error)
}

// RefundRepository is the storage collaborator for Refunds.
type RefundRepository interface {
	Insert(ctx context.Context, refund *Refund, scheme StorageScheme) error
	Update(ctx context.Context, refund *Refund, update RefundUpdate, scheme StorageScheme) (*Refund, error)
	FindByID(ctx context.Context, merchantID string, id uuid.UUID, scheme StorageScheme) (*Refund, error)
	AmountRefunded(ctx context.Context, paymentID uuid.UUID) (int64, error)
	ListNonTerminal(ctx context.Context, limit int) ([]*Refund, error)
}

// MandateRepository is the storage collaborator for Mandates.
type MandateRepository interface {
	Insert(ctx context.Context, mandate *Mandate) error
	FindByID(ctx context.Context, merchantID string, id uuid.UUID) (*Mandate, error)
	FindActive(ctx context.Context, merchantID, customerID, merchantConnectorID string) (*Mandate, error)
	FindByConnectorMandateID(ctx context.Context, merchantID, connectorMandateID string) (*Mandate, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status MandateStatus) error
}

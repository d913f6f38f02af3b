package payments

import (
	"time"

	"github.com/cassiomorais/switchboard/internal/domain/errors"
	"github.com/google/uuid"
)

// Amount represents a monetary amount in the smallest currency unit (e.g. cents).
type Amount struct {
	ValueMinor int64
	Currency   string
}

// Validate checks that the amount is valid.
func (a Amount) Validate() error {
	if a.ValueMinor <= 0 {
		return errors.NewValidationError("amount", "must be greater than 0")
	}
	if a.Currency == "" {
		return errors.NewValidationError("currency", "cannot be empty")
	}
	if len(a.Currency) != 3 {
		return errors.NewValidationError("currency", "must be a 3-letter ISO code")
	}
	return nil
}

// PaymentIntent is the durable aggregate for one checkout. It references its
// active attempt by id only; attempts are owned by the attempt store.
type PaymentIntent struct {
	ID              uuid.UUID
	MerchantID      string
	Amount          Amount
	AmountCaptured  int64
	Status          IntentStatus
	CaptureMethod   CaptureMethod
	ClientSecret    string
	ClientSecretExpiresAt time.Time
	ActiveAttemptID *uuid.UUID
	AttemptCount    int
	Description     *string
	ReturnURL       *string
	CustomerID      *string
	SetupFutureUsage bool
	Metadata        map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewPaymentIntent creates an intent in its initial status. Intents that carry
// payment-method data at creation start at requires_confirmation.
func NewPaymentIntent(merchantID string, amount Amount, capture CaptureMethod, hasPaymentMethod bool, secretTTL time.Duration) (*PaymentIntent, error) {
	if err := amount.Validate(); err != nil {
		return nil, err
	}
	if merchantID == "" {
		return nil, errors.NewValidationError("merchant_id", "cannot be empty")
	}
	if capture == "" {
		capture = CaptureAutomatic
	}

	status := IntentRequiresPaymentMethod
	if hasPaymentMethod {
		status = IntentRequiresConfirmation
	}

	now := time.Now()
	return &PaymentIntent{
		ID:            uuid.New(),
		MerchantID:    merchantID,
		Amount:        amount,
		Status:        status,
		CaptureMethod: capture,
		ClientSecret:  "pi_secret_" + uuid.NewString(),
		ClientSecretExpiresAt: now.Add(secretTTL),
		Metadata:      make(map[string]any),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// VerifyClientSecret enforces the ownership check performed by GetTracker.
func (p *PaymentIntent) VerifyClientSecret(secret string, now time.Time) error {
	if secret == "" || secret != p.ClientSecret {
		return errors.ErrClientSecretInvalid
	}
	if now.After(p.ClientSecretExpiresAt) {
		return errors.ErrClientSecretExpired
	}
	return nil
}

// IsTerminal reports whether the intent will accept no further operations.
func (p *PaymentIntent) IsTerminal() bool {
	return p.Status.IsTerminal()
}

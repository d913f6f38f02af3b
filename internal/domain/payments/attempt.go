package payments

import (
	"time"

	"github.com/google/uuid"
)

// PaymentAttempt is one connector call attempt against an intent. The intent
// holds this row's id as active_attempt; the attempt never points back.
type PaymentAttempt struct {
	ID                     uuid.UUID
	PaymentID              uuid.UUID
	MerchantID             string
	Status                 AttemptStatus
	Amount                 Amount
	Connector              *string
	MerchantConnectorID    *string
	ConnectorTransactionID *string
	ConnectorReferenceID   *string
	PaymentMethod          *string
	ErrorCode              *string
	ErrorMessage           *string
	ErrorReason            *string
	MandateID              *uuid.UUID
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// NewPaymentAttempt creates a fresh attempt row for an intent.
func NewPaymentAttempt(intent *PaymentIntent) *PaymentAttempt {
	now := time.Now()
	return &PaymentAttempt{
		ID:         uuid.New(),
		PaymentID:  intent.ID,
		MerchantID: intent.MerchantID,
		Status:     AttemptStarted,
		Amount:     intent.Amount,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Refund is one refund against a charged attempt.
type Refund struct {
	ID                uuid.UUID
	PaymentID         uuid.UUID
	AttemptID         uuid.UUID
	MerchantID        string
	Connector         string
	ConnectorRefundID *string
	Amount            Amount
	Status            RefundStatus
	Reason            *string
	ErrorCode         *string
	ErrorMessage      *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewRefund creates a pending refund row for a charged attempt.
func NewRefund(intent *PaymentIntent, attempt *PaymentAttempt, amount Amount, reason *string) *Refund {
	now := time.Now()
	var connector string
	if attempt.Connector != nil {
		connector = *attempt.Connector
	}
	return &Refund{
		ID:         uuid.New(),
		PaymentID:  intent.ID,
		AttemptID:  attempt.ID,
		MerchantID: intent.MerchantID,
		Connector:  connector,
		Amount:     amount,
		Status:     RefundPending,
		Reason:     reason,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Mandate records a connector-side token allowing future off-session charges.
// Written only by the attempt that created it; read by later confirms.
type Mandate struct {
	ID                  uuid.UUID
	MerchantID          string
	CustomerID          string
	Connector           string
	MerchantConnectorID string
	ConnectorMandateID  string
	Status              MandateStatus
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// MandateStatus is the lifecycle status of a stored mandate.
type MandateStatus string

const (
	MandateActive   MandateStatus = "active"
	MandateInactive MandateStatus = "inactive"
	MandateRevoked  MandateStatus = "revoked"
	MandatePending  MandateStatus = "pending"
)

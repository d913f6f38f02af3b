package payments

import (
	"time"

	"github.com/google/uuid"
)

// IntentUpdate is a typed update against a PaymentIntent. Each variant
// enumerates exactly the fields it may touch; repositories apply the derived
// changeset, never a free-form patch.
type IntentUpdate interface {
	IntentChangeset() IntentChangeset
}

// IntentChangeset is the internal representation applied by the stores.
// Nil fields are left untouched.
type IntentChangeset struct {
	Status          *IntentStatus
	ActiveAttemptID *uuid.UUID
	AttemptCountIncr bool
	AmountCaptured  *int64
	UpdatedAt       time.Time
}

// IntentStatusUpdate moves only the intent status (webhook/sync corrections).
type IntentStatusUpdate struct {
	Status IntentStatus
}

func (u IntentStatusUpdate) IntentChangeset() IntentChangeset {
	s := u.Status
	return IntentChangeset{Status: &s, UpdatedAt: time.Now()}
}

// IntentConfirmUpdate records a new active attempt and the status that starts
// a connector call. Written by GetTracker before dispatch.
type IntentConfirmUpdate struct {
	Status          IntentStatus
	ActiveAttemptID uuid.UUID
}

func (u IntentConfirmUpdate) IntentChangeset() IntentChangeset {
	s := u.Status
	id := u.ActiveAttemptID
	return IntentChangeset{Status: &s, ActiveAttemptID: &id, AttemptCountIncr: true, UpdatedAt: time.Now()}
}

// IntentResponseUpdate persists the outcome of a connector call.
type IntentResponseUpdate struct {
	Status IntentStatus
}

func (u IntentResponseUpdate) IntentChangeset() IntentChangeset {
	s := u.Status
	return IntentChangeset{Status: &s, UpdatedAt: time.Now()}
}

// IntentCaptureUpdate records a capture outcome including the captured amount.
type IntentCaptureUpdate struct {
	Status         IntentStatus
	AmountCaptured int64
}

func (u IntentCaptureUpdate) IntentChangeset() IntentChangeset {
	s := u.Status
	a := u.AmountCaptured
	return IntentChangeset{Status: &s, AmountCaptured: &a, UpdatedAt: time.Now()}
}

// AttemptUpdate is a typed update against a PaymentAttempt.
type AttemptUpdate interface {
	AttemptChangeset() AttemptChangeset
}

// AttemptChangeset is the internal representation applied by the stores.
type AttemptChangeset struct {
	Status                 *AttemptStatus
	Connector              *string
	MerchantConnectorID    *string
	ConnectorTransactionID *string
	ConnectorReferenceID   *string
	PaymentMethod          *string
	ErrorCode              *string
	ErrorMessage           *string
	ErrorReason            *string
	MandateID              *uuid.UUID
	UpdatedAt              time.Time
}

// AttemptConnectorUpdate records the routing decision before dispatch.
type AttemptConnectorUpdate struct {
	Status              AttemptStatus
	Connector           string
	MerchantConnectorID string
	PaymentMethod       string
}

func (u AttemptConnectorUpdate) AttemptChangeset() AttemptChangeset {
	s := u.Status
	c := u.Connector
	m := u.MerchantConnectorID
	pm := u.PaymentMethod
	return AttemptChangeset{Status: &s, Connector: &c, MerchantConnectorID: &m, PaymentMethod: &pm, UpdatedAt: time.Now()}
}

// AttemptResponseUpdate persists connector-returned fields after a call.
// Connector and MerchantConnectorID are set when a fallback candidate
// resolved the attempt, so the row records the connector that actually ran.
type AttemptResponseUpdate struct {
	Status                 AttemptStatus
	Connector              *string
	MerchantConnectorID    *string
	ConnectorTransactionID *string
	ConnectorReferenceID   *string
	MandateID              *uuid.UUID
}

func (u AttemptResponseUpdate) AttemptChangeset() AttemptChangeset {
	s := u.Status
	return AttemptChangeset{
		Status:                 &s,
		Connector:              u.Connector,
		MerchantConnectorID:    u.MerchantConnectorID,
		ConnectorTransactionID: u.ConnectorTransactionID,
		ConnectorReferenceID:   u.ConnectorReferenceID,
		MandateID:              u.MandateID,
		UpdatedAt:              time.Now(),
	}
}

// AttemptErrorUpdate persists a normalized connector failure.
type AttemptErrorUpdate struct {
	Status              AttemptStatus
	Connector           *string
	MerchantConnectorID *string
	ErrorCode           string
	ErrorMessage        string
	ErrorReason         *string
}

func (u AttemptErrorUpdate) AttemptChangeset() AttemptChangeset {
	s := u.Status
	c := u.ErrorCode
	m := u.ErrorMessage
	return AttemptChangeset{
		Status:              &s,
		Connector:           u.Connector,
		MerchantConnectorID: u.MerchantConnectorID,
		ErrorCode:           &c,
		ErrorMessage:        &m,
		ErrorReason:         u.ErrorReason,
		UpdatedAt:           time.Now(),
	}
}

// AttemptStatusUpdate moves only the attempt status (sync corrections).
type AttemptStatusUpdate struct {
	Status AttemptStatus
}

func (u AttemptStatusUpdate) AttemptChangeset() AttemptChangeset {
	s := u.Status
	return AttemptChangeset{Status: &s, UpdatedAt: time.Now()}
}

// RefundUpdate is a typed update against a Refund.
type RefundUpdate interface {
	RefundChangeset() RefundChangeset
}

// RefundChangeset is the internal representation applied by the stores.
type RefundChangeset struct {
	Status            *RefundStatus
	ConnectorRefundID *string
	ErrorCode         *string
	ErrorMessage      *string
	UpdatedAt         time.Time
}

// RefundResponseUpdate persists a connector refund outcome.
type RefundResponseUpdate struct {
	Status            RefundStatus
	ConnectorRefundID *string
}

func (u RefundResponseUpdate) RefundChangeset() RefundChangeset {
	s := u.Status
	return RefundChangeset{Status: &s, ConnectorRefundID: u.ConnectorRefundID, UpdatedAt: time.Now()}
}

// RefundErrorUpdate persists a normalized refund failure.
type RefundErrorUpdate struct {
	Status       RefundStatus
	ErrorCode    string
	ErrorMessage string
}

func (u RefundErrorUpdate) RefundChangeset() RefundChangeset {
	s := u.Status
	c := u.ErrorCode
	m := u.ErrorMessage
	return RefundChangeset{Status: &s, ErrorCode: &c, ErrorMessage: &m, UpdatedAt: time.Now()}
}

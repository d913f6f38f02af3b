package testutil

import (
	"context"
	"sync"

	"github.com/cassiomorais/switchboard/internal/connector"
	domainErrors "github.com/cassiomorais/switchboard/internal/domain/errors"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
	"github.com/cassiomorais/switchboard/internal/repository/postgres"
	"github.com/cassiomorais/switchboard/internal/routing"
	"github.com/google/uuid"
)

// MockIntentRepository is an in-memory payments.IntentRepository.
type MockIntentRepository struct {
	mu      sync.Mutex
	intents map[uuid.UUID]*payments.PaymentIntent
}

func NewMockIntentRepository() *MockIntentRepository {
	return &MockIntentRepository{intents: make(map[uuid.UUID]*payments.PaymentIntent)}
}

func (m *MockIntentRepository) Insert(_ context.Context, intent *payments.PaymentIntent, _ payments.StorageScheme) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.intents[intent.ID]; ok {
		return domainErrors.ErrUniqueViolation
	}
	cp := *intent
	m.intents[intent.ID] = &cp
	return nil
}

func (m *MockIntentRepository) Update(_ context.Context, intent *payments.PaymentIntent, update payments.IntentUpdate, _ payments.StorageScheme) (*payments.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.intents[intent.ID]
	if !ok {
		return nil, domainErrors.ErrPaymentNotFound
	}
	cs := update.IntentChangeset()
	if cs.Status != nil {
		stored.Status = *cs.Status
	}
	if cs.ActiveAttemptID != nil {
		stored.ActiveAttemptID = cs.ActiveAttemptID
	}
	if cs.AttemptCountIncr {
		stored.AttemptCount++
	}
	if cs.AmountCaptured != nil {
		stored.AmountCaptured = *cs.AmountCaptured
	}
	stored.UpdatedAt = cs.UpdatedAt
	cp := *stored
	return &cp, nil
}

func (m *MockIntentRepository) FindByID(_ context.Context, merchantID string, id uuid.UUID, _ payments.StorageScheme) (*payments.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.intents[id]
	if !ok || stored.MerchantID != merchantID {
		return nil, domainErrors.ErrPaymentNotFound
	}
	cp := *stored
	return &cp, nil
}

// Get returns the stored intent directly for assertions.
func (m *MockIntentRepository) Get(id uuid.UUID) *payments.PaymentIntent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.intents[id]
}

// MockAttemptRepository is an in-memory payments.AttemptRepository.
type MockAttemptRepository struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]*payments.PaymentAttempt
}

func NewMockAttemptRepository() *MockAttemptRepository {
	return &MockAttemptRepository{attempts: make(map[uuid.UUID]*payments.PaymentAttempt)}
}

func (m *MockAttemptRepository) Insert(_ context.Context, attempt *payments.PaymentAttempt, _ payments.StorageScheme) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *attempt
	m.attempts[attempt.ID] = &cp
	return nil
}

func (m *MockAttemptRepository) Update(_ context.Context, attempt *payments.PaymentAttempt, update payments.AttemptUpdate, _ payments.StorageScheme) (*payments.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.attempts[attempt.ID]
	if !ok {
		return nil, domainErrors.ErrAttemptNotFound
	}
	cs := update.AttemptChangeset()
	if cs.Status != nil {
		stored.Status = *cs.Status
	}
	if cs.Connector != nil {
		stored.Connector = cs.Connector
	}
	if cs.MerchantConnectorID != nil {
		stored.MerchantConnectorID = cs.MerchantConnectorID
	}
	if cs.ConnectorTransactionID != nil {
		stored.ConnectorTransactionID = cs.ConnectorTransactionID
	}
	if cs.ConnectorReferenceID != nil {
		stored.ConnectorReferenceID = cs.ConnectorReferenceID
	}
	if cs.PaymentMethod != nil {
		stored.PaymentMethod = cs.PaymentMethod
	}
	if cs.ErrorCode != nil {
		stored.ErrorCode = cs.ErrorCode
	}
	if cs.ErrorMessage != nil {
		stored.ErrorMessage = cs.ErrorMessage
	}
	if cs.ErrorReason != nil {
		stored.ErrorReason = cs.ErrorReason
	}
	if cs.MandateID != nil {
		stored.MandateID = cs.MandateID
	}
	stored.UpdatedAt = cs.UpdatedAt
	cp := *stored
	return &cp, nil
}

func (m *MockAttemptRepository) FindByID(_ context.Context, id uuid.UUID, _ payments.StorageScheme) (*payments.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.attempts[id]
	if !ok {
		return nil, domainErrors.ErrAttemptNotFound
	}
	cp := *stored
	return &cp, nil
}

func (m *MockAttemptRepository) FindByConnectorTransactionID(_ context.Context, merchantID, connectorTxnID string, _ payments.StorageScheme) (*payments.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.MerchantID == merchantID && a.ConnectorTransactionID != nil && *a.ConnectorTransactionID == connectorTxnID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domainErrors.ErrAttemptNotFound
}

func (m *MockAttemptRepository) ListNonTerminal(_ context.Context, limit int) ([]*payments.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*payments.PaymentAttempt
	for _, a := range m.attempts {
		switch a.Status {
		case payments.AttemptPending, payments.AttemptAuthorizing, payments.AttemptAuthenticationPending:
			cp := *a
			out = append(out, &cp)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Get returns the stored attempt directly for assertions.
func (m *MockAttemptRepository) Get(id uuid.UUID) *payments.PaymentAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[id]
}

// MockRefundRepository is an in-memory payments.RefundRepository.
type MockRefundRepository struct {
	mu      sync.Mutex
	refunds map[uuid.UUID]*payments.Refund
}

func NewMockRefundRepository() *MockRefundRepository {
	return &MockRefundRepository{refunds: make(map[uuid.UUID]*payments.Refund)}
}

func (m *MockRefundRepository) Insert(_ context.Context, refund *payments.Refund, _ payments.StorageScheme) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *refund
	m.refunds[refund.ID] = &cp
	return nil
}

func (m *MockRefundRepository) Update(_ context.Context, refund *payments.Refund, update payments.RefundUpdate, _ payments.StorageScheme) (*payments.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.refunds[refund.ID]
	if !ok {
		return nil, domainErrors.ErrRefundNotFound
	}
	cs := update.RefundChangeset()
	if cs.Status != nil {
		stored.Status = *cs.Status
	}
	if cs.ConnectorRefundID != nil {
		stored.ConnectorRefundID = cs.ConnectorRefundID
	}
	if cs.ErrorCode != nil {
		stored.ErrorCode = cs.ErrorCode
	}
	if cs.ErrorMessage != nil {
		stored.ErrorMessage = cs.ErrorMessage
	}
	stored.UpdatedAt = cs.UpdatedAt
	cp := *stored
	return &cp, nil
}

func (m *MockRefundRepository) FindByID(_ context.Context, merchantID string, id uuid.UUID, _ payments.StorageScheme) (*payments.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.refunds[id]
	if !ok || stored.MerchantID != merchantID {
		return nil, domainErrors.ErrRefundNotFound
	}
	cp := *stored
	return &cp, nil
}

func (m *MockRefundRepository) AmountRefunded(_ context.Context, paymentID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, r := range m.refunds {
		if r.PaymentID != paymentID {
			continue
		}
		switch r.Status {
		case payments.RefundPending, payments.RefundSuccess, payments.RefundManualReview:
			sum += r.Amount.ValueMinor
		}
	}
	return sum, nil
}

func (m *MockRefundRepository) ListNonTerminal(_ context.Context, limit int) ([]*payments.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*payments.Refund
	for _, r := range m.refunds {
		if (r.Status == payments.RefundPending || r.Status == payments.RefundManualReview) && r.ConnectorRefundID != nil {
			cp := *r
			out = append(out, &cp)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Get returns the stored refund directly for assertions.
func (m *MockRefundRepository) Get(id uuid.UUID) *payments.Refund {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refunds[id]
}

// MockMandateRepository is an in-memory payments.MandateRepository.
type MockMandateRepository struct {
	mu       sync.Mutex
	mandates map[uuid.UUID]*payments.Mandate
}

func NewMockMandateRepository() *MockMandateRepository {
	return &MockMandateRepository{mandates: make(map[uuid.UUID]*payments.Mandate)}
}

func (m *MockMandateRepository) Insert(_ context.Context, mandate *payments.Mandate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *mandate
	m.mandates[mandate.ID] = &cp
	return nil
}

func (m *MockMandateRepository) FindByID(_ context.Context, merchantID string, id uuid.UUID) (*payments.Mandate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.mandates[id]
	if !ok || stored.MerchantID != merchantID {
		return nil, domainErrors.ErrMandateNotFound
	}
	cp := *stored
	return &cp, nil
}

func (m *MockMandateRepository) FindActive(_ context.Context, merchantID, customerID, merchantConnectorID string) (*payments.Mandate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, md := range m.mandates {
		if md.MerchantID == merchantID && md.CustomerID == customerID &&
			md.MerchantConnectorID == merchantConnectorID && md.Status == payments.MandateActive {
			cp := *md
			return &cp, nil
		}
	}
	return nil, domainErrors.ErrMandateNotFound
}

func (m *MockMandateRepository) FindByConnectorMandateID(_ context.Context, merchantID, connectorMandateID string) (*payments.Mandate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, md := range m.mandates {
		if md.MerchantID == merchantID && md.ConnectorMandateID == connectorMandateID {
			cp := *md
			return &cp, nil
		}
	}
	return nil, domainErrors.ErrMandateNotFound
}

func (m *MockMandateRepository) UpdateStatus(_ context.Context, id uuid.UUID, status payments.MandateStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.mandates[id]
	if !ok {
		return domainErrors.ErrMandateNotFound
	}
	stored.Status = status
	return nil
}

// MockTransactionManager runs the callback directly; mock repositories are
// already atomic per call.
type MockTransactionManager struct{}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// MockOutbox collects appended outbox entries.
type MockOutbox struct {
	mu      sync.Mutex
	Entries []*postgres.OutboxEntry
}

func (m *MockOutbox) Insert(_ context.Context, entry *postgres.OutboxEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, entry)
	return nil
}

// EventTypes returns the appended event types in insertion order.
func (m *MockOutbox) EventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		out = append(out, e.EventType)
	}
	return out
}

// StubDispatcher satisfies operations.Dispatcher without any network or
// registry wiring. Respond mutates the RouterData the way the engine would.
type StubDispatcher struct {
	mu        sync.Mutex
	CallTypes []routing.ConnectorCallType
	Respond   func(rd *connector.RouterData)
	Err       error
}

func (d *StubDispatcher) Call(_ context.Context, callType routing.ConnectorCallType, rd *connector.RouterData) (*connector.RouterData, error) {
	d.mu.Lock()
	d.CallTypes = append(d.CallTypes, callType)
	d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	if len(callType.Candidates) > 0 {
		rd.ConnectorName = callType.Candidates[0].ConnectorName
		rd.MerchantConnectorID = callType.Candidates[0].MerchantConnectorID
	}
	if d.Respond != nil {
		d.Respond(rd)
	}
	return rd, nil
}

// Calls returns how many dispatches were made.
func (d *StubDispatcher) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.CallTypes)
}

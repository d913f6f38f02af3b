package testutil

import (
	"io"
	"time"

	"github.com/cassiomorais/switchboard/internal/config"
	"github.com/cassiomorais/switchboard/internal/connector"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
	"github.com/cassiomorais/switchboard/internal/observability"
	"github.com/cassiomorais/switchboard/internal/operations"
	"github.com/cassiomorais/switchboard/internal/routing"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// TestMerchant is the merchant id used across fixtures.
const TestMerchant = "merchant_test"

// NewTestIntent builds an intent in the given status with a valid, unexpired
// client secret.
func NewTestIntent(status payments.IntentStatus, amountMinor int64) *payments.PaymentIntent {
	now := time.Now()
	return &payments.PaymentIntent{
		ID:            uuid.New(),
		MerchantID:    TestMerchant,
		Amount:        payments.Amount{ValueMinor: amountMinor, Currency: "USD"},
		Status:        status,
		CaptureMethod: payments.CaptureAutomatic,
		ClientSecret:  "pi_secret_" + uuid.NewString(),
		ClientSecretExpiresAt: now.Add(time.Hour),
		Metadata:      map[string]any{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewTestAttempt builds an attempt for the intent, optionally pinned to a
// connector with a transaction id.
func NewTestAttempt(intent *payments.PaymentIntent, status payments.AttemptStatus, connectorName, txnID string) *payments.PaymentAttempt {
	now := time.Now()
	a := &payments.PaymentAttempt{
		ID:         uuid.New(),
		PaymentID:  intent.ID,
		MerchantID: intent.MerchantID,
		Status:     status,
		Amount:     intent.Amount,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if connectorName != "" {
		a.Connector = &connectorName
		mcid := "mca_" + connectorName
		a.MerchantConnectorID = &mcid
	}
	if txnID != "" {
		a.ConnectorTransactionID = &txnID
	}
	return a
}

// TestEnv bundles the mock collaborators behind an operations.Service.
type TestEnv struct {
	Service    *operations.Service
	Intents    *MockIntentRepository
	Attempts   *MockAttemptRepository
	Refunds    *MockRefundRepository
	Mandates   *MockMandateRepository
	Outbox     *MockOutbox
	Dispatcher *StubDispatcher
}

// NewTestEnv builds an operations.Service over in-memory mocks with the
// given connectors registered. Metrics register against a private registry
// so parallel tests do not collide.
func NewTestEnv(connectors ...connector.Connector) *TestEnv {
	env := &TestEnv{
		Intents:    NewMockIntentRepository(),
		Attempts:   NewMockAttemptRepository(),
		Refunds:    NewMockRefundRepository(),
		Mandates:   NewMockMandateRepository(),
		Outbox:     &MockOutbox{},
		Dispatcher: &StubDispatcher{},
	}

	registry := connector.NewRegistry(connectors...)
	accounts := make(map[string]config.ConnectorAccount)
	accountIDs := make(map[string]string)
	for _, c := range connectors {
		accounts[c.Name()] = config.ConnectorAccount{
			AccountID:     "mca_" + c.Name(),
			AuthKind:      string(connector.AuthHeaderKey),
			APIKey:        "sk_test_" + c.Name(),
			WebhookSecret: "whsec_" + c.Name(),
		}
		accountIDs[c.Name()] = "mca_" + c.Name()
	}

	routingCfg := routing.MerchantRouting{AccountIDs: accountIDs}
	if len(connectors) > 0 {
		routingCfg.DefaultConnector = connectors[0].Name()
		for _, c := range connectors[1:] {
			routingCfg.Fallbacks = append(routingCfg.Fallbacks, c.Name())
		}
	}

	env.Service = &operations.Service{
		Intents:    env.Intents,
		Attempts:   env.Attempts,
		Refunds:    env.Refunds,
		Mandates:   env.Mandates,
		Outbox:     env.Outbox,
		Tx:         NewMockTransactionManager(),
		Dispatcher: env.Dispatcher,
		Registry:   registry,
		Accounts:   accounts,
		Routing:    routingCfg,
		Scheme:     payments.SchemePostgresOnly,
		SecretTTL:  time.Hour,
		Logger:     zerolog.New(io.Discard),
		Metrics:    NewTestMetrics(),
	}
	return env
}

// NewTestMetrics returns metrics bound to a throwaway registry.
func NewTestMetrics() *observability.Metrics {
	return observability.NewMetrics("test", prometheus.NewRegistry())
}

// StrPtr returns a pointer to s.
func StrPtr(s string) *string { return &s }

// UUIDPtr returns a pointer to id.
func UUIDPtr(id uuid.UUID) *uuid.UUID { return &id }

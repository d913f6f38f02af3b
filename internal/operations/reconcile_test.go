package operations_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cassiomorais/switchboard/internal/connector"
	domainErrors "github.com/cassiomorais/switchboard/internal/domain/errors"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
	"github.com/cassiomorais/switchboard/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcilePayment_AppliesSuccessEvent(t *testing.T) {
	env := newEnv()
	intent := seedIntent(t, env, payments.IntentProcessing, 1000)
	attempt := seedAttempt(t, env, intent, payments.AttemptPending, "txn_wh_1")

	err := env.Service.ReconcilePayment(context.Background(), testutil.TestMerchant, "txn_wh_1", connector.EventPaymentSuccess, nil)
	require.NoError(t, err)

	assert.Equal(t, payments.AttemptCharged, env.Attempts.Get(attempt.ID).Status)
	assert.Equal(t, payments.IntentSucceeded, env.Intents.Get(intent.ID).Status)

	require.Len(t, env.Outbox.Entries, 1)
	entry := env.Outbox.Entries[0]
	assert.Equal(t, "payment.succeeded", entry.EventType)
	assert.Equal(t, "webhook", entry.Payload["source"])
}

func TestReconcilePayment_PersistsResourceObject(t *testing.T) {
	env := newEnv()
	intent := seedIntent(t, env, payments.IntentProcessing, 1000)
	seedAttempt(t, env, intent, payments.AttemptPending, "txn_wh_6")

	resource := json.RawMessage(`{"id":"pi_wh_6","status":"succeeded"}`)
	err := env.Service.ReconcilePayment(context.Background(), testutil.TestMerchant, "txn_wh_6", connector.EventPaymentSuccess, resource)
	require.NoError(t, err)

	require.Len(t, env.Outbox.Entries, 1)
	assert.Equal(t, resource, env.Outbox.Entries[0].Payload["resource"])
}

func TestReconcileRefund_PersistsResourceObject(t *testing.T) {
	env := newEnv()
	intent := seedIntent(t, env, payments.IntentSucceeded, 1000)
	attempt := seedAttempt(t, env, intent, payments.AttemptCharged, "txn_wh_7")

	refund := payments.NewRefund(intent, attempt, payments.Amount{ValueMinor: 1000, Currency: "USD"}, nil)
	require.NoError(t, env.Refunds.Insert(context.Background(), refund, payments.SchemePostgresOnly))

	resource := json.RawMessage(`{"id":"re_wh_7","status":"succeeded"}`)
	err := env.Service.ReconcileRefund(context.Background(), testutil.TestMerchant, refund.ID.String(), connector.EventRefundSuccess, resource)
	require.NoError(t, err)

	require.Len(t, env.Outbox.Entries, 1)
	assert.Equal(t, resource, env.Outbox.Entries[0].Payload["resource"])
}

func TestReconcilePayment_ReplayIsIdempotent(t *testing.T) {
	env := newEnv()
	intent := seedIntent(t, env, payments.IntentProcessing, 1000)
	seedAttempt(t, env, intent, payments.AttemptPending, "txn_wh_2")

	require.NoError(t, env.Service.ReconcilePayment(context.Background(), testutil.TestMerchant, "txn_wh_2", connector.EventPaymentSuccess, nil))
	require.NoError(t, env.Service.ReconcilePayment(context.Background(), testutil.TestMerchant, "txn_wh_2", connector.EventPaymentSuccess, nil))

	assert.Len(t, env.Outbox.Entries, 1)
}

func TestReconcilePayment_TerminalAttemptNeverRegresses(t *testing.T) {
	env := newEnv()
	intent := seedIntent(t, env, payments.IntentSucceeded, 1000)
	attempt := seedAttempt(t, env, intent, payments.AttemptCharged, "txn_wh_3")

	// A late processing notification after success is dropped.
	err := env.Service.ReconcilePayment(context.Background(), testutil.TestMerchant, "txn_wh_3", connector.EventPaymentProcessing, nil)
	require.NoError(t, err)
	assert.Equal(t, payments.AttemptCharged, env.Attempts.Get(attempt.ID).Status)
	assert.Equal(t, payments.IntentSucceeded, env.Intents.Get(intent.ID).Status)
}

func TestReconcilePayment_UnsupportedEvent(t *testing.T) {
	env := newEnv()
	err := env.Service.ReconcilePayment(context.Background(), testutil.TestMerchant, "txn_wh_4", connector.EventNotSupported, nil)
	assert.ErrorIs(t, err, domainErrors.ErrWebhookEventNotSupported)
}

func TestReconcilePayment_UnknownTransaction(t *testing.T) {
	env := newEnv()
	err := env.Service.ReconcilePayment(context.Background(), testutil.TestMerchant, "txn_missing", connector.EventPaymentSuccess, nil)
	assert.ErrorIs(t, err, domainErrors.ErrAttemptNotFound)
}

func TestReconcileRefund_AppliesTerminalStatus(t *testing.T) {
	env := newEnv()
	intent := seedIntent(t, env, payments.IntentSucceeded, 1000)
	attempt := seedAttempt(t, env, intent, payments.AttemptCharged, "txn_wh_5")

	refund := payments.NewRefund(intent, attempt, payments.Amount{ValueMinor: 1000, Currency: "USD"}, nil)
	require.NoError(t, env.Refunds.Insert(context.Background(), refund, payments.SchemePostgresOnly))

	err := env.Service.ReconcileRefund(context.Background(), testutil.TestMerchant, refund.ID.String(), connector.EventRefundSuccess, nil)
	require.NoError(t, err)
	assert.Equal(t, payments.RefundSuccess, env.Refunds.Get(refund.ID).Status)
	assert.Equal(t, []string{"refund.succeeded"}, env.Outbox.EventTypes())

	// A conflicting late failure event does not overwrite the terminal status.
	require.NoError(t, env.Service.ReconcileRefund(context.Background(), testutil.TestMerchant, refund.ID.String(), connector.EventRefundFailure, nil))
	assert.Equal(t, payments.RefundSuccess, env.Refunds.Get(refund.ID).Status)
}

func TestReconcileRefund_MalformedID(t *testing.T) {
	env := newEnv()
	err := env.Service.ReconcileRefund(context.Background(), testutil.TestMerchant, "not-a-uuid", connector.EventRefundSuccess, nil)
	assert.ErrorIs(t, err, domainErrors.ErrRefundNotFound)
}

func TestReconcileMandate_StatusFlip(t *testing.T) {
	env := newEnv()
	mandate := &payments.Mandate{
		ID:                 uuid.New(),
		MerchantID:         testutil.TestMerchant,
		CustomerID:         "cus_1",
		Connector:          "alpha",
		ConnectorMandateID: "mandate_wh_1",
		Status:             payments.MandateActive,
	}
	require.NoError(t, env.Mandates.Insert(context.Background(), mandate))

	err := env.Service.ReconcileMandate(context.Background(), testutil.TestMerchant, "mandate_wh_1", connector.EventMandateRevoked)
	require.NoError(t, err)

	stored, err := env.Mandates.FindByID(context.Background(), testutil.TestMerchant, mandate.ID)
	require.NoError(t, err)
	assert.Equal(t, payments.MandateRevoked, stored.Status)
}

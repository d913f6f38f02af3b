package operations_test

import (
	"context"
	"testing"

	"github.com/cassiomorais/switchboard/internal/connector"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
	"github.com/cassiomorais/switchboard/internal/operations"
	"github.com/cassiomorais/switchboard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentSync_NoAttemptIsReadOnly(t *testing.T) {
	env := newEnv()
	intent := seedIntent(t, env, payments.IntentRequiresPaymentMethod, 1000)

	trk, err := operations.Run(context.Background(), env.Service, operations.PaymentSync{}, &operations.PaymentRequest{
		MerchantID: testutil.TestMerchant,
		PaymentID:  intent.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, payments.IntentRequiresPaymentMethod, trk.Intent.Status)
	assert.Zero(t, env.Dispatcher.Calls())
}

func TestPaymentSync_TerminalIntentSkipsConnector(t *testing.T) {
	env := newEnv()
	intent := seedIntent(t, env, payments.IntentSucceeded, 1000)
	seedAttempt(t, env, intent, payments.AttemptCharged, "txn_sync_1")

	trk, err := operations.Run(context.Background(), env.Service, operations.PaymentSync{}, &operations.PaymentRequest{
		MerchantID: testutil.TestMerchant,
		PaymentID:  intent.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, payments.IntentSucceeded, trk.Intent.Status)
	assert.Zero(t, env.Dispatcher.Calls())
}

func TestPaymentSync_ForceSyncProbesTerminalIntent(t *testing.T) {
	env := newEnv()
	intent := seedIntent(t, env, payments.IntentSucceeded, 1000)
	seedAttempt(t, env, intent, payments.AttemptCharged, "txn_sync_2")
	env.Dispatcher.Respond = func(rd *connector.RouterData) {
		rd.Status = payments.AttemptCharged
		rd.Resolve(connector.PaymentsResponse{ConnectorTransactionID: "txn_sync_2"})
	}

	_, err := operations.Run(context.Background(), env.Service, operations.PaymentSync{}, &operations.PaymentRequest{
		MerchantID: testutil.TestMerchant,
		PaymentID:  intent.ID,
		ForceSync:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, env.Dispatcher.Calls())
}

func TestPaymentSync_AdvancesPendingAttempt(t *testing.T) {
	env := newEnv()
	intent := seedIntent(t, env, payments.IntentProcessing, 1000)
	seedAttempt(t, env, intent, payments.AttemptPending, "txn_sync_3")
	env.Dispatcher.Respond = func(rd *connector.RouterData) {
		rd.Status = payments.AttemptCharged
		rd.Resolve(connector.PaymentsResponse{ConnectorTransactionID: "txn_sync_3"})
	}

	trk, err := operations.Run(context.Background(), env.Service, operations.PaymentSync{}, &operations.PaymentRequest{
		MerchantID: testutil.TestMerchant,
		PaymentID:  intent.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, payments.IntentSucceeded, trk.Intent.Status)
	assert.Equal(t, payments.AttemptCharged, trk.Attempt.Status)
}

func TestPaymentSync_ProbeFailureLeavesStateUntouched(t *testing.T) {
	env := newEnv()
	intent := seedIntent(t, env, payments.IntentProcessing, 1000)
	attempt := seedAttempt(t, env, intent, payments.AttemptPending, "txn_sync_4")
	env.Dispatcher.Respond = func(rd *connector.RouterData) {
		rd.Fail(connector.ErrorResponse{Kind: connector.KindTransport, Code: connector.CodeRequestTimeout})
	}

	trk, err := operations.Run(context.Background(), env.Service, operations.PaymentSync{}, &operations.PaymentRequest{
		MerchantID: testutil.TestMerchant,
		PaymentID:  intent.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, payments.IntentProcessing, trk.Intent.Status)
	assert.Equal(t, payments.AttemptPending, env.Attempts.Get(attempt.ID).Status)
}

func TestPaymentSync_UnchangedStatusWritesNothing(t *testing.T) {
	env := newEnv()
	intent := seedIntent(t, env, payments.IntentProcessing, 1000)
	attempt := seedAttempt(t, env, intent, payments.AttemptPending, "txn_sync_5")
	before := env.Attempts.Get(attempt.ID).UpdatedAt
	env.Dispatcher.Respond = func(rd *connector.RouterData) {
		rd.Status = payments.AttemptPending
		rd.Resolve(connector.PaymentsResponse{ConnectorTransactionID: "txn_sync_5"})
	}

	_, err := operations.Run(context.Background(), env.Service, operations.PaymentSync{}, &operations.PaymentRequest{
		MerchantID: testutil.TestMerchant,
		PaymentID:  intent.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, before, env.Attempts.Get(attempt.ID).UpdatedAt)
}

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

func TestPaymentCancel_BeforeAuthorizationIsLocal(t *testing.T) {
	env := newEnv()
	intent := seedIntent(t, env, payments.IntentRequiresPaymentMethod, 1000)

	trk, err := operations.Run(context.Background(), env.Service, operations.PaymentCancel{}, &operations.PaymentRequest{
		MerchantID: testutil.TestMerchant,
		PaymentID:  intent.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, payments.IntentCancelled, trk.Intent.Status)
	assert.Zero(t, env.Dispatcher.Calls())
	assert.Equal(t, []string{"payment.cancelled"}, env.Outbox.EventTypes())
}

func TestPaymentCancel_VoidsAuthorization(t *testing.T) {
	env := newEnv()
	intent := testutil.NewTestIntent(payments.IntentRequiresCapture, 1000)
	intent.CaptureMethod = payments.CaptureManual
	require.NoError(t, env.Intents.Insert(context.Background(), intent, payments.SchemePostgresOnly))
	seedAttempt(t, env, intent, payments.AttemptAuthorized, "txn_void_1")

	env.Dispatcher.Respond = func(rd *connector.RouterData) {
		rd.Status = payments.AttemptVoided
		rd.Resolve(connector.PaymentsResponse{ConnectorTransactionID: "txn_void_1"})
	}

	trk, err := operations.Run(context.Background(), env.Service, operations.PaymentCancel{}, &operations.PaymentRequest{
		MerchantID:         testutil.TestMerchant,
		PaymentID:          intent.ID,
		CancellationReason: testutil.StrPtr("requested_by_customer"),
	})
	require.NoError(t, err)

	assert.Equal(t, payments.IntentCancelled, trk.Intent.Status)
	assert.Equal(t, payments.AttemptVoided, trk.Attempt.Status)
	assert.Equal(t, 1, env.Dispatcher.Calls())
	assert.Equal(t, []string{"payment.cancelled"}, env.Outbox.EventTypes())
}

func TestPaymentCancel_VoidFailureKeepsAuthorizationStanding(t *testing.T) {
	env := newEnv()
	intent := testutil.NewTestIntent(payments.IntentRequiresCapture, 1000)
	intent.CaptureMethod = payments.CaptureManual
	require.NoError(t, env.Intents.Insert(context.Background(), intent, payments.SchemePostgresOnly))
	seedAttempt(t, env, intent, payments.AttemptAuthorized, "txn_void_2")

	env.Dispatcher.Respond = func(rd *connector.RouterData) {
		rd.Fail(connector.ErrorResponse{
			Kind:    connector.KindBusiness,
			Code:    "void_rejected",
			Message: "Void not permitted for this charge.",
		})
	}

	trk, err := operations.Run(context.Background(), env.Service, operations.PaymentCancel{}, &operations.PaymentRequest{
		MerchantID: testutil.TestMerchant,
		PaymentID:  intent.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, payments.AttemptVoidFailed, trk.Attempt.Status)
	assert.Equal(t, payments.IntentRequiresCapture, trk.Intent.Status)
	assert.Empty(t, env.Outbox.EventTypes())
}

package operations_test

import (
	"context"
	"testing"

	"github.com/cassiomorais/switchboard/internal/connector"
	domainErrors "github.com/cassiomorais/switchboard/internal/domain/errors"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
	"github.com/cassiomorais/switchboard/internal/operations"
	"github.com/cassiomorais/switchboard/internal/routing"
	"github.com/cassiomorais/switchboard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAuthorized(t *testing.T, env *testutil.TestEnv, amountMinor int64) *payments.PaymentIntent {
	t.Helper()
	intent := testutil.NewTestIntent(payments.IntentRequiresCapture, amountMinor)
	intent.CaptureMethod = payments.CaptureManual
	require.NoError(t, env.Intents.Insert(context.Background(), intent, payments.SchemePostgresOnly))
	seedAttempt(t, env, intent, payments.AttemptAuthorized, "txn_auth_1")
	return intent
}

func TestPaymentCapture_Full(t *testing.T) {
	env := newEnv()
	intent := seedAuthorized(t, env, 1000)
	env.Dispatcher.Respond = func(rd *connector.RouterData) {
		rd.Status = payments.AttemptCharged
		rd.Resolve(connector.PaymentsResponse{ConnectorTransactionID: "txn_auth_1"})
	}

	trk, err := operations.Run(context.Background(), env.Service, operations.PaymentCapture{}, &operations.PaymentRequest{
		MerchantID: testutil.TestMerchant,
		PaymentID:  intent.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, payments.IntentSucceeded, trk.Intent.Status)
	assert.Equal(t, payments.AttemptCharged, trk.Attempt.Status)
	assert.Equal(t, int64(1000), trk.Intent.AmountCaptured)
	assert.Equal(t, []string{"payment.succeeded"}, env.Outbox.EventTypes())

	// Capture is pinned to the connector holding the authorization.
	require.Len(t, env.Dispatcher.CallTypes, 1)
	assert.Equal(t, routing.KindPreDetermined, env.Dispatcher.CallTypes[0].Kind)
	assert.Equal(t, "alpha", env.Dispatcher.CallTypes[0].Candidates[0].ConnectorName)
}

func TestPaymentCapture_PartialLeavesRemainderCapturable(t *testing.T) {
	env := newEnv()
	intent := seedAuthorized(t, env, 1000)
	env.Dispatcher.Respond = func(rd *connector.RouterData) {
		rd.Status = payments.AttemptPartialCharged
		rd.Resolve(connector.PaymentsResponse{ConnectorTransactionID: "txn_auth_1"})
	}

	amount := int64(400)
	trk, err := operations.Run(context.Background(), env.Service, operations.PaymentCapture{}, &operations.PaymentRequest{
		MerchantID:      testutil.TestMerchant,
		PaymentID:       intent.ID,
		AmountToCapture: &amount,
	})
	require.NoError(t, err)

	assert.Equal(t, payments.IntentPartiallyCapturedAndCapturable, trk.Intent.Status)
	assert.Equal(t, int64(400), trk.Intent.AmountCaptured)
	assert.Empty(t, env.Outbox.EventTypes())
}

func TestPaymentCapture_OverCaptureRejected(t *testing.T) {
	env := newEnv()
	intent := seedAuthorized(t, env, 1000)

	amount := int64(1500)
	_, err := operations.Run(context.Background(), env.Service, operations.PaymentCapture{}, &operations.PaymentRequest{
		MerchantID:      testutil.TestMerchant,
		PaymentID:       intent.ID,
		AmountToCapture: &amount,
	})
	var verr *domainErrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "amount_to_capture", verr.Field)
	assert.Zero(t, env.Dispatcher.Calls())
}

func TestPaymentCapture_NonPositiveAmountRejected(t *testing.T) {
	env := newEnv()
	amount := int64(0)
	_, err := operations.Run(context.Background(), env.Service, operations.PaymentCapture{}, &operations.PaymentRequest{
		MerchantID:      testutil.TestMerchant,
		AmountToCapture: &amount,
	})
	var verr *domainErrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "amount_to_capture", verr.Field)
}

func TestPaymentCapture_GuardRejectsUncapturedStatuses(t *testing.T) {
	env := newEnv()
	intent := seedIntent(t, env, payments.IntentProcessing, 1000)
	seedAttempt(t, env, intent, payments.AttemptAuthorizing, "")

	_, err := operations.Run(context.Background(), env.Service, operations.PaymentCapture{}, &operations.PaymentRequest{
		MerchantID: testutil.TestMerchant,
		PaymentID:  intent.ID,
	})
	assert.ErrorIs(t, err, domainErrors.ErrInvalidStateTransition)
}

func TestPaymentCapture_FailurePersistsCaptureFailed(t *testing.T) {
	env := newEnv()
	intent := seedAuthorized(t, env, 1000)
	env.Dispatcher.Respond = func(rd *connector.RouterData) {
		rd.Fail(connector.ErrorResponse{
			Kind:    connector.KindBusiness,
			Code:    "charge_expired",
			Message: "The authorization has expired.",
		})
	}

	trk, err := operations.Run(context.Background(), env.Service, operations.PaymentCapture{}, &operations.PaymentRequest{
		MerchantID: testutil.TestMerchant,
		PaymentID:  intent.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, payments.AttemptCaptureFailed, trk.Attempt.Status)
	assert.Equal(t, payments.IntentFailed, trk.Intent.Status)
	assert.Equal(t, []string{"payment.failed"}, env.Outbox.EventTypes())
}

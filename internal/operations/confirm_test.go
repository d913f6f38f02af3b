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
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func confirmRequest(intent *payments.PaymentIntent) *operations.PaymentRequest {
	return &operations.PaymentRequest{
		MerchantID:    testutil.TestMerchant,
		PaymentID:     intent.ID,
		PaymentMethod: cardMethod(),
	}
}

func TestPaymentConfirm_Charged(t *testing.T) {
	env := newEnv()
	intent := seedIntent(t, env, payments.IntentRequiresConfirmation, 1000)
	env.Dispatcher.Respond = func(rd *connector.RouterData) {
		rd.Status = payments.AttemptCharged
		rd.Resolve(connector.PaymentsResponse{ResourceID: "txn_1", ConnectorTransactionID: "txn_1"})
	}

	trk, err := operations.Run(context.Background(), env.Service, operations.PaymentConfirm{}, confirmRequest(intent))
	require.NoError(t, err)

	assert.Equal(t, payments.IntentSucceeded, trk.Intent.Status)
	assert.Equal(t, payments.AttemptCharged, trk.Attempt.Status)
	require.NotNil(t, trk.Attempt.ConnectorTransactionID)
	assert.Equal(t, "txn_1", *trk.Attempt.ConnectorTransactionID)
	require.NotNil(t, trk.Attempt.Connector)
	assert.Equal(t, "alpha", *trk.Attempt.Connector)
	assert.Equal(t, 1, env.Dispatcher.Calls())
	assert.Equal(t, []string{"payment.succeeded"}, env.Outbox.EventTypes())

	stored := env.Intents.Get(intent.ID)
	require.NotNil(t, stored.ActiveAttemptID)
	assert.Equal(t, trk.Attempt.ID, *stored.ActiveAttemptID)
}

func TestPaymentConfirm_ManualCaptureAuthorized(t *testing.T) {
	env := newEnv()
	intent := testutil.NewTestIntent(payments.IntentRequiresConfirmation, 1000)
	intent.CaptureMethod = payments.CaptureManual
	require.NoError(t, env.Intents.Insert(context.Background(), intent, payments.SchemePostgresOnly))

	env.Dispatcher.Respond = func(rd *connector.RouterData) {
		rd.Status = payments.AttemptAuthorized
		rd.Resolve(connector.PaymentsResponse{ConnectorTransactionID: "txn_2"})
	}

	trk, err := operations.Run(context.Background(), env.Service, operations.PaymentConfirm{}, confirmRequest(intent))
	require.NoError(t, err)

	assert.Equal(t, payments.IntentRequiresCapture, trk.Intent.Status)
	assert.Equal(t, payments.AttemptAuthorized, trk.Attempt.Status)
	// Authorization alone is not terminal; no merchant event yet.
	assert.Empty(t, env.Outbox.EventTypes())
}

func TestPaymentConfirm_DeclinePersistsVerbatim(t *testing.T) {
	env := newEnv()
	intent := seedIntent(t, env, payments.IntentRequiresConfirmation, 1000)
	declined := payments.AttemptAuthorizationFailed
	env.Dispatcher.Respond = func(rd *connector.RouterData) {
		rd.Fail(connector.ErrorResponse{
			Kind:          connector.KindBusiness,
			Code:          "card_declined",
			Message:       "Your card was declined.",
			AttemptStatus: &declined,
		})
	}

	trk, err := operations.Run(context.Background(), env.Service, operations.PaymentConfirm{}, confirmRequest(intent))
	require.NoError(t, err)

	assert.Equal(t, payments.IntentFailed, trk.Intent.Status)
	assert.Equal(t, payments.AttemptAuthorizationFailed, trk.Attempt.Status)
	require.NotNil(t, trk.Attempt.ErrorCode)
	assert.Equal(t, "card_declined", *trk.Attempt.ErrorCode)
	require.NotNil(t, trk.Attempt.ErrorMessage)
	assert.Equal(t, "Your card was declined.", *trk.Attempt.ErrorMessage)
	assert.Equal(t, []string{"payment.failed"}, env.Outbox.EventTypes())
}

func TestPaymentConfirm_AuthenticationPending(t *testing.T) {
	env := newEnv()
	intent := seedIntent(t, env, payments.IntentRequiresConfirmation, 1000)
	env.Dispatcher.Respond = func(rd *connector.RouterData) {
		rd.Status = payments.AttemptAuthenticationPending
		redirect := "https://connector.test/3ds"
		rd.Resolve(connector.PaymentsResponse{ConnectorTransactionID: "txn_3", RedirectURL: &redirect})
	}

	trk, err := operations.Run(context.Background(), env.Service, operations.PaymentConfirm{}, confirmRequest(intent))
	require.NoError(t, err)
	assert.Equal(t, payments.IntentRequiresCustomerAction, trk.Intent.Status)
	assert.Equal(t, payments.AttemptAuthenticationPending, trk.Attempt.Status)
}

func TestPaymentConfirm_RequiresMethodOrMandate(t *testing.T) {
	env := newEnv()
	_, err := operations.Run(context.Background(), env.Service, operations.PaymentConfirm{}, &operations.PaymentRequest{
		MerchantID: testutil.TestMerchant,
		PaymentID:  uuid.New(),
	})
	var verr *domainErrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "payment_method", verr.Field)
}

func TestPaymentConfirm_MandateChargeGoesOffSession(t *testing.T) {
	env := newEnv()
	intent := testutil.NewTestIntent(payments.IntentRequiresConfirmation, 1000)
	customer := "cus_1"
	intent.CustomerID = &customer
	require.NoError(t, env.Intents.Insert(context.Background(), intent, payments.SchemePostgresOnly))

	mandate := &payments.Mandate{
		ID:                 uuid.New(),
		MerchantID:         testutil.TestMerchant,
		CustomerID:         customer,
		Connector:          "alpha",
		ConnectorMandateID: "mandate_alpha_1",
		Status:             payments.MandateActive,
	}
	require.NoError(t, env.Mandates.Insert(context.Background(), mandate))

	var seen connector.PaymentsRequest
	env.Dispatcher.Respond = func(rd *connector.RouterData) {
		seen = rd.Request.(connector.PaymentsRequest)
		rd.Status = payments.AttemptCharged
		rd.Resolve(connector.PaymentsResponse{ConnectorTransactionID: "txn_4"})
	}

	trk, err := operations.Run(context.Background(), env.Service, operations.PaymentConfirm{}, &operations.PaymentRequest{
		MerchantID: testutil.TestMerchant,
		PaymentID:  intent.ID,
		MandateID:  &mandate.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, payments.IntentSucceeded, trk.Intent.Status)
	require.NotNil(t, seen.MandateReference)
	assert.Equal(t, "mandate_alpha_1", *seen.MandateReference)
	assert.True(t, seen.OffSession)
}

func TestPaymentConfirm_InactiveMandateRejected(t *testing.T) {
	env := newEnv()
	intent := seedIntent(t, env, payments.IntentRequiresConfirmation, 1000)

	mandate := &payments.Mandate{
		ID:                 uuid.New(),
		MerchantID:         testutil.TestMerchant,
		CustomerID:         "cus_1",
		Connector:          "alpha",
		ConnectorMandateID: "mandate_alpha_2",
		Status:             payments.MandateRevoked,
	}
	require.NoError(t, env.Mandates.Insert(context.Background(), mandate))

	_, err := operations.Run(context.Background(), env.Service, operations.PaymentConfirm{}, &operations.PaymentRequest{
		MerchantID: testutil.TestMerchant,
		PaymentID:  intent.ID,
		MandateID:  &mandate.ID,
	})
	var verr *domainErrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "mandate_id", verr.Field)
	assert.Zero(t, env.Dispatcher.Calls())
}

func TestPaymentConfirm_SetupFutureUsageStoresMandate(t *testing.T) {
	env := newEnv()
	intent := testutil.NewTestIntent(payments.IntentRequiresConfirmation, 1000)
	customer := "cus_2"
	intent.CustomerID = &customer
	intent.SetupFutureUsage = true
	require.NoError(t, env.Intents.Insert(context.Background(), intent, payments.SchemePostgresOnly))

	env.Dispatcher.Respond = func(rd *connector.RouterData) {
		rd.Status = payments.AttemptCharged
		ref := "mandate_new_1"
		rd.Resolve(connector.PaymentsResponse{ConnectorTransactionID: "txn_5", MandateReference: &ref})
	}

	trk, err := operations.Run(context.Background(), env.Service, operations.PaymentConfirm{}, confirmRequest(intent))
	require.NoError(t, err)

	require.NotNil(t, trk.Attempt.MandateID)
	stored, err := env.Mandates.FindByConnectorMandateID(context.Background(), testutil.TestMerchant, "mandate_new_1")
	require.NoError(t, err)
	assert.Equal(t, payments.MandateActive, stored.Status)
	assert.Equal(t, customer, stored.CustomerID)
	assert.Equal(t, "alpha", stored.Connector)
}

func TestPaymentConfirm_RoutingFallbacksOffered(t *testing.T) {
	primary := testutil.NewStubConnector("alpha", map[connector.Flow]connector.Integration{
		connector.FlowAuthorize: &testutil.StubIntegration{},
	})
	fallback := testutil.NewStubConnector("beta", map[connector.Flow]connector.Integration{
		connector.FlowAuthorize: &testutil.StubIntegration{},
	})
	env := testutil.NewTestEnv(primary, fallback)
	intent := seedIntent(t, env, payments.IntentRequiresConfirmation, 1000)
	env.Dispatcher.Respond = func(rd *connector.RouterData) {
		rd.Status = payments.AttemptCharged
		rd.Resolve(connector.PaymentsResponse{ConnectorTransactionID: "txn_6"})
	}

	_, err := operations.Run(context.Background(), env.Service, operations.PaymentConfirm{}, confirmRequest(intent))
	require.NoError(t, err)

	require.Len(t, env.Dispatcher.CallTypes, 1)
	ct := env.Dispatcher.CallTypes[0]
	assert.Equal(t, routing.KindRetryable, ct.Kind)
	require.Len(t, ct.Candidates, 2)
	assert.Equal(t, "alpha", ct.Candidates[0].ConnectorName)
	assert.Equal(t, "beta", ct.Candidates[1].ConnectorName)
	// Each candidate carries its own account credentials.
	assert.Equal(t, "sk_test_alpha", ct.Candidates[0].Auth.APIKey)
	assert.Equal(t, "sk_test_beta", ct.Candidates[1].Auth.APIKey)
}

func TestPaymentConfirm_FallbackWinnerRecordedOnAttempt(t *testing.T) {
	primary := testutil.NewStubConnector("alpha", map[connector.Flow]connector.Integration{
		connector.FlowAuthorize: &testutil.StubIntegration{},
	})
	fallback := testutil.NewStubConnector("beta", map[connector.Flow]connector.Integration{
		connector.FlowAuthorize: &testutil.StubIntegration{},
	})
	env := testutil.NewTestEnv(primary, fallback)
	intent := seedIntent(t, env, payments.IntentRequiresConfirmation, 1000)

	// The primary is unreachable and the list advances to beta.
	env.Dispatcher.Respond = func(rd *connector.RouterData) {
		rd.ConnectorName = "beta"
		rd.MerchantConnectorID = "mca_beta"
		rd.Status = payments.AttemptCharged
		rd.Resolve(connector.PaymentsResponse{ConnectorTransactionID: "txn_beta_1"})
	}

	trk, err := operations.Run(context.Background(), env.Service, operations.PaymentConfirm{}, confirmRequest(intent))
	require.NoError(t, err)

	require.NotNil(t, trk.Attempt.Connector)
	assert.Equal(t, "beta", *trk.Attempt.Connector)
	require.NotNil(t, trk.Attempt.MerchantConnectorID)
	assert.Equal(t, "mca_beta", *trk.Attempt.MerchantConnectorID)

	// Follow-up flows pin to the connector that actually charged.
	stored := env.Attempts.Get(trk.Attempt.ID)
	assert.Equal(t, "beta", *stored.Connector)
	assert.Equal(t, "mca_beta", *stored.MerchantConnectorID)
}

func TestPaymentConfirm_FallbackFailureRecordsFailingConnector(t *testing.T) {
	primary := testutil.NewStubConnector("alpha", map[connector.Flow]connector.Integration{
		connector.FlowAuthorize: &testutil.StubIntegration{},
	})
	fallback := testutil.NewStubConnector("beta", map[connector.Flow]connector.Integration{
		connector.FlowAuthorize: &testutil.StubIntegration{},
	})
	env := testutil.NewTestEnv(primary, fallback)
	intent := seedIntent(t, env, payments.IntentRequiresConfirmation, 1000)

	declined := payments.AttemptAuthorizationFailed
	env.Dispatcher.Respond = func(rd *connector.RouterData) {
		rd.ConnectorName = "beta"
		rd.MerchantConnectorID = "mca_beta"
		rd.Fail(connector.ErrorResponse{Kind: connector.KindBusiness, Code: "card_declined", AttemptStatus: &declined})
	}

	trk, err := operations.Run(context.Background(), env.Service, operations.PaymentConfirm{}, confirmRequest(intent))
	require.NoError(t, err)

	require.NotNil(t, trk.Attempt.Connector)
	assert.Equal(t, "beta", *trk.Attempt.Connector)
	assert.Equal(t, payments.AttemptAuthorizationFailed, trk.Attempt.Status)
}

func TestPaymentConfirm_MethodFilterDropsIncapableCandidates(t *testing.T) {
	primary := testutil.NewStubConnector("alpha", map[connector.Flow]connector.Integration{
		connector.FlowAuthorize: &testutil.StubIntegration{},
	})
	primary.Caps.PaymentMethods = []connector.PaymentMethodType{connector.MethodBankTransfer}
	fallback := testutil.NewStubConnector("beta", map[connector.Flow]connector.Integration{
		connector.FlowAuthorize: &testutil.StubIntegration{},
	})
	env := testutil.NewTestEnv(primary, fallback)
	intent := seedIntent(t, env, payments.IntentRequiresConfirmation, 1000)
	env.Dispatcher.Respond = func(rd *connector.RouterData) {
		rd.Status = payments.AttemptCharged
		rd.Resolve(connector.PaymentsResponse{ConnectorTransactionID: "txn_7"})
	}

	_, err := operations.Run(context.Background(), env.Service, operations.PaymentConfirm{}, confirmRequest(intent))
	require.NoError(t, err)

	require.Len(t, env.Dispatcher.CallTypes, 1)
	ct := env.Dispatcher.CallTypes[0]
	require.Len(t, ct.Candidates, 1)
	assert.Equal(t, "beta", ct.Candidates[0].ConnectorName)
}

func TestPaymentConfirm_NoCandidateSupportsMethod(t *testing.T) {
	primary := testutil.NewStubConnector("alpha", map[connector.Flow]connector.Integration{
		connector.FlowAuthorize: &testutil.StubIntegration{},
	})
	primary.Caps.PaymentMethods = []connector.PaymentMethodType{connector.MethodBankTransfer}
	env := testutil.NewTestEnv(primary)
	intent := seedIntent(t, env, payments.IntentRequiresConfirmation, 1000)

	_, err := operations.Run(context.Background(), env.Service, operations.PaymentConfirm{}, confirmRequest(intent))
	require.Error(t, err)
	var cerr *connector.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, connector.CodeNotSupported, cerr.Code)
	assert.Zero(t, env.Dispatcher.Calls())
}

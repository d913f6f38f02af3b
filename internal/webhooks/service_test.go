package webhooks_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/cassiomorais/switchboard/internal/connector"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
	"github.com/cassiomorais/switchboard/internal/testutil"
	"github.com/cassiomorais/switchboard/internal/webhooks"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedHook drives every IncomingWebhook branch from test fields.
type scriptedHook struct {
	verified    bool
	verifyErr   error
	event       connector.WebhookEventType
	eventErr    error
	ref         connector.ObjectReference
	refErr      error
	resourceErr error
}

func (h *scriptedHook) VerifySource(_ context.Context, _ []byte, _ map[string][]string, _ []byte) (bool, error) {
	return h.verified, h.verifyErr
}

func (h *scriptedHook) ObjectReferenceID(_ []byte) (connector.ObjectReference, error) {
	return h.ref, h.refErr
}

func (h *scriptedHook) EventType(_ []byte) (connector.WebhookEventType, error) {
	return h.event, h.eventErr
}

func (h *scriptedHook) ResourceObject(body []byte) (json.RawMessage, error) {
	if h.resourceErr != nil {
		return nil, h.resourceErr
	}
	return json.RawMessage(body), nil
}

func (h *scriptedHook) Ack(accepted bool) connector.WebhookAck {
	status := http.StatusOK
	if !accepted {
		status = http.StatusBadRequest
	}
	return connector.WebhookAck{StatusCode: status, ContentType: "application/json", Body: []byte(`{"received":true}`)}
}

// webhookConnector is a StubConnector that also ingests webhooks.
type webhookConnector struct {
	*testutil.StubConnector
	hook *scriptedHook
}

func (c *webhookConnector) Webhook() connector.IncomingWebhook { return c.hook }

func newWebhookEnv(hook *scriptedHook) (*testutil.TestEnv, *webhooks.Service) {
	stub := testutil.NewStubConnector("alpha", map[connector.Flow]connector.Integration{
		connector.FlowAuthorize: &testutil.StubIntegration{},
	})
	stub.Caps.SupportsWebhooks = true
	conn := &webhookConnector{StubConnector: stub, hook: hook}

	env := testutil.NewTestEnv(conn)
	svc := webhooks.NewService(env.Service.Registry, env.Service, zerolog.New(io.Discard), testutil.NewTestMetrics())
	return env, svc
}

func delivery() webhooks.Delivery {
	return webhooks.Delivery{
		ConnectorName: "alpha",
		MerchantID:    testutil.TestMerchant,
		Headers:       map[string][]string{"Signature": {"sig"}},
		Body:          []byte(`{"id":"evt_1"}`),
	}
}

func TestIngest_UnknownConnector(t *testing.T) {
	_, svc := newWebhookEnv(&scriptedHook{})
	d := delivery()
	d.ConnectorName = "ghost"

	ack := svc.Ingest(context.Background(), d)
	assert.Equal(t, http.StatusNotFound, ack.StatusCode)
}

func TestIngest_VerificationFailureRejects(t *testing.T) {
	hook := &scriptedHook{verified: false}
	env, svc := newWebhookEnv(hook)
	intent := testutil.NewTestIntent(payments.IntentProcessing, 1000)
	require.NoError(t, env.Intents.Insert(context.Background(), intent, payments.SchemePostgresOnly))

	ack := svc.Ingest(context.Background(), delivery())
	assert.Equal(t, http.StatusBadRequest, ack.StatusCode)
	assert.Equal(t, payments.IntentProcessing, env.Intents.Get(intent.ID).Status)
}

func TestIngest_VerificationErrorRejects(t *testing.T) {
	hook := &scriptedHook{verified: true, verifyErr: errors.New("malformed signature header")}
	_, svc := newWebhookEnv(hook)

	ack := svc.Ingest(context.Background(), delivery())
	assert.Equal(t, http.StatusBadRequest, ack.StatusCode)
}

func TestIngest_UndecodableEventRejects(t *testing.T) {
	hook := &scriptedHook{verified: true, eventErr: errors.New("unexpected end of JSON input")}
	_, svc := newWebhookEnv(hook)

	ack := svc.Ingest(context.Background(), delivery())
	assert.Equal(t, http.StatusBadRequest, ack.StatusCode)
}

func TestIngest_UnsupportedEventAcknowledged(t *testing.T) {
	hook := &scriptedHook{verified: true, event: connector.EventNotSupported}
	_, svc := newWebhookEnv(hook)

	ack := svc.Ingest(context.Background(), delivery())
	assert.Equal(t, http.StatusOK, ack.StatusCode)
}

func TestIngest_UnknownObjectAcknowledged(t *testing.T) {
	hook := &scriptedHook{
		verified: true,
		event:    connector.EventPaymentSuccess,
		ref:      connector.ObjectReference{Kind: connector.RefPayment, ID: "txn_missing"},
	}
	_, svc := newWebhookEnv(hook)

	ack := svc.Ingest(context.Background(), delivery())
	assert.Equal(t, http.StatusOK, ack.StatusCode)
}

func TestIngest_ReconcilesPayment(t *testing.T) {
	hook := &scriptedHook{
		verified: true,
		event:    connector.EventPaymentSuccess,
		ref:      connector.ObjectReference{Kind: connector.RefPayment, ID: "txn_wh_1"},
	}
	env, svc := newWebhookEnv(hook)

	intent := testutil.NewTestIntent(payments.IntentProcessing, 1000)
	require.NoError(t, env.Intents.Insert(context.Background(), intent, payments.SchemePostgresOnly))
	attempt := testutil.NewTestAttempt(intent, payments.AttemptPending, "alpha", "txn_wh_1")
	require.NoError(t, env.Attempts.Insert(context.Background(), attempt, payments.SchemePostgresOnly))

	ack := svc.Ingest(context.Background(), delivery())
	assert.Equal(t, http.StatusOK, ack.StatusCode)
	assert.Equal(t, payments.AttemptCharged, env.Attempts.Get(attempt.ID).Status)
	assert.Equal(t, payments.IntentSucceeded, env.Intents.Get(intent.ID).Status)

	// The provider's resource object travels into the emitted event.
	require.Len(t, env.Outbox.Entries, 1)
	assert.Equal(t, json.RawMessage(delivery().Body), env.Outbox.Entries[0].Payload["resource"])
}

func TestIngest_ResourceExtractionFailureRejects(t *testing.T) {
	hook := &scriptedHook{
		verified:    true,
		event:       connector.EventPaymentSuccess,
		ref:         connector.ObjectReference{Kind: connector.RefPayment, ID: "txn_wh_1"},
		resourceErr: errors.New("missing data.object"),
	}
	_, svc := newWebhookEnv(hook)

	ack := svc.Ingest(context.Background(), delivery())
	assert.Equal(t, http.StatusBadRequest, ack.StatusCode)
}

func TestIngest_ReconcilesMandate(t *testing.T) {
	hook := &scriptedHook{
		verified: true,
		event:    connector.EventMandateRevoked,
		ref:      connector.ObjectReference{Kind: connector.RefMandate, ID: "mandate_wh_9"},
	}
	env, svc := newWebhookEnv(hook)

	mandate := &payments.Mandate{
		ID:                 uuid.New(),
		MerchantID:         testutil.TestMerchant,
		CustomerID:         "cus_1",
		Connector:          "alpha",
		ConnectorMandateID: "mandate_wh_9",
		Status:             payments.MandateActive,
	}
	require.NoError(t, env.Mandates.Insert(context.Background(), mandate))

	ack := svc.Ingest(context.Background(), delivery())
	assert.Equal(t, http.StatusOK, ack.StatusCode)
}

package stripe_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"testing"

	"github.com/cassiomorais/switchboard/internal/connector"
	"github.com/cassiomorais/switchboard/internal/connectors/stripe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedHeaders(secret, ts string, body []byte) map[string][]string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))
	return map[string][]string{
		"Stripe-Signature": {"t=" + ts + ",v1=" + sig},
	}
}

func hook(t *testing.T) connector.IncomingWebhook {
	t.Helper()
	return stripe.New(baseURL).Webhook()
}

func TestVerifySource(t *testing.T) {
	body := []byte(`{"type":"payment_intent.succeeded"}`)
	secret := "whsec_test"

	t.Run("valid signature", func(t *testing.T) {
		ok, err := hook(t).VerifySource(context.Background(), []byte(secret), signedHeaders(secret, "1700000000", body), body)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("wrong secret", func(t *testing.T) {
		ok, err := hook(t).VerifySource(context.Background(), []byte("whsec_other"), signedHeaders(secret, "1700000000", body), body)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("tampered body", func(t *testing.T) {
		headers := signedHeaders(secret, "1700000000", body)
		ok, err := hook(t).VerifySource(context.Background(), []byte(secret), headers, []byte(`{"type":"payment_intent.payment_failed"}`))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("missing header", func(t *testing.T) {
		ok, err := hook(t).VerifySource(context.Background(), []byte(secret), map[string][]string{}, body)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("malformed header", func(t *testing.T) {
		headers := map[string][]string{"Stripe-Signature": {"garbage"}}
		ok, err := hook(t).VerifySource(context.Background(), []byte(secret), headers, body)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestEventType(t *testing.T) {
	cases := []struct {
		stripeType string
		want       connector.WebhookEventType
	}{
		{"payment_intent.succeeded", connector.EventPaymentSuccess},
		{"payment_intent.payment_failed", connector.EventPaymentFailure},
		{"payment_intent.processing", connector.EventPaymentProcessing},
		{"payment_intent.requires_action", connector.EventActionRequired},
		{"refund.failed", connector.EventRefundFailure},
		{"mandate.updated", connector.EventMandateActive},
		{"customer.created", connector.EventNotSupported},
	}
	for _, tc := range cases {
		event, err := hook(t).EventType([]byte(`{"type":"` + tc.stripeType + `"}`))
		require.NoError(t, err)
		assert.Equal(t, tc.want, event, "stripe type %s", tc.stripeType)
	}
}

// refund.updated fires for every refund state change; the outcome lives in
// the refund object's status, not in the event name.
func TestEventType_RefundUpdatedFollowsObjectStatus(t *testing.T) {
	cases := []struct {
		status string
		want   connector.WebhookEventType
	}{
		{"succeeded", connector.EventRefundSuccess},
		{"failed", connector.EventRefundFailure},
		{"canceled", connector.EventRefundFailure},
		{"pending", connector.EventNotSupported},
	}
	for _, tc := range cases {
		body := []byte(`{"type":"refund.updated","data":{"object":{"id":"re_1","object":"refund","status":"` + tc.status + `"}}}`)
		event, err := hook(t).EventType(body)
		require.NoError(t, err)
		assert.Equal(t, tc.want, event, "refund status %s", tc.status)
	}

	event, err := hook(t).EventType([]byte(`{"type":"charge.refund.updated","data":{"object":{"id":"re_2","object":"refund","status":"succeeded"}}}`))
	require.NoError(t, err)
	assert.Equal(t, connector.EventRefundSuccess, event)
}

func TestObjectReferenceID(t *testing.T) {
	t.Run("payment intent", func(t *testing.T) {
		body := []byte(`{"type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","object":"payment_intent"}}}`)
		ref, err := hook(t).ObjectReferenceID(body)
		require.NoError(t, err)
		assert.Equal(t, connector.RefPayment, ref.Kind)
		assert.Equal(t, "pi_1", ref.ID)
	})

	t.Run("refund prefers metadata id", func(t *testing.T) {
		body := []byte(`{"type":"refund.updated","data":{"object":{"id":"re_1","object":"refund","metadata":{"refund_id":"internal-refund-id"}}}}`)
		ref, err := hook(t).ObjectReferenceID(body)
		require.NoError(t, err)
		assert.Equal(t, connector.RefRefund, ref.Kind)
		assert.Equal(t, "internal-refund-id", ref.ID)
	})

	t.Run("refund without metadata falls back", func(t *testing.T) {
		body := []byte(`{"type":"refund.updated","data":{"object":{"id":"re_2","object":"refund"}}}`)
		ref, err := hook(t).ObjectReferenceID(body)
		require.NoError(t, err)
		assert.Equal(t, "re_2", ref.ID)
	})

	t.Run("mandate", func(t *testing.T) {
		body := []byte(`{"type":"mandate.updated","data":{"object":{"id":"mandate_1","object":"mandate"}}}`)
		ref, err := hook(t).ObjectReferenceID(body)
		require.NoError(t, err)
		assert.Equal(t, connector.RefMandate, ref.Kind)
		assert.Equal(t, "mandate_1", ref.ID)
	})
}

func TestAck(t *testing.T) {
	accepted := hook(t).Ack(true)
	assert.Equal(t, http.StatusOK, accepted.StatusCode)
	assert.JSONEq(t, `{"received":true}`, string(accepted.Body))

	rejected := hook(t).Ack(false)
	assert.Equal(t, http.StatusBadRequest, rejected.StatusCode)
	assert.JSONEq(t, `{"error":"webhook rejected"}`, string(rejected.Body))
}

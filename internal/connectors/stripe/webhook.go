package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cassiomorais/switchboard/internal/connector"
)

// webhookEvent is the stripe webhook envelope.
type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type webhookObject struct {
	ID       string            `json:"id"`
	Object   string            `json:"object"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
	Mandate  *string           `json:"mandate,omitempty"`
}

type incomingWebhook struct{}

// VerifySource checks the Stripe-Signature header: "t=<ts>,v1=<hmac>" where
// the hmac is SHA-256 over "<ts>.<body>" keyed by the endpoint secret.
func (incomingWebhook) VerifySource(ctx context.Context, secret []byte, headers map[string][]string, body []byte) (bool, error) {
	sig := headerValue(headers, "Stripe-Signature")
	if sig == "" {
		return false, nil
	}
	var ts, v1 string
	for _, part := range strings.Split(sig, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			v1 = v
		}
	}
	if ts == "" || v1 == "" {
		return false, nil
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(v1)), nil
}

func (incomingWebhook) ObjectReferenceID(body []byte) (connector.ObjectReference, error) {
	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return connector.ObjectReference{}, err
	}
	var obj webhookObject
	if err := json.Unmarshal(event.Data.Object, &obj); err != nil {
		return connector.ObjectReference{}, err
	}
	switch obj.Object {
	case "refund":
		// The switch's refund id travels in metadata; fall back to the
		// connector-side id when absent.
		if id := obj.Metadata["refund_id"]; id != "" {
			return connector.ObjectReference{Kind: connector.RefRefund, ID: id}, nil
		}
		return connector.ObjectReference{Kind: connector.RefRefund, ID: obj.ID}, nil
	case "mandate":
		return connector.ObjectReference{Kind: connector.RefMandate, ID: obj.ID}, nil
	}
	return connector.ObjectReference{Kind: connector.RefPayment, ID: obj.ID}, nil
}

func (incomingWebhook) EventType(body []byte) (connector.WebhookEventType, error) {
	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return connector.EventNotSupported, err
	}
	switch event.Type {
	case "payment_intent.succeeded":
		return connector.EventPaymentSuccess, nil
	case "payment_intent.payment_failed":
		return connector.EventPaymentFailure, nil
	case "payment_intent.processing":
		return connector.EventPaymentProcessing, nil
	case "payment_intent.requires_action":
		return connector.EventActionRequired, nil
	case "refund.updated", "charge.refund.updated":
		// The event name alone does not carry the outcome; the refund
		// object's status does.
		return refundEventFromObject(event.Data.Object)
	case "refund.failed":
		return connector.EventRefundFailure, nil
	case "mandate.updated":
		return connector.EventMandateActive, nil
	}
	return connector.EventNotSupported, nil
}

func refundEventFromObject(raw json.RawMessage) (connector.WebhookEventType, error) {
	if len(raw) == 0 {
		return connector.EventNotSupported, nil
	}
	var obj webhookObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return connector.EventNotSupported, err
	}
	switch obj.Status {
	case "succeeded":
		return connector.EventRefundSuccess, nil
	case "failed", "canceled":
		return connector.EventRefundFailure, nil
	}
	return connector.EventNotSupported, nil
}

func (incomingWebhook) ResourceObject(body []byte) (json.RawMessage, error) {
	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, err
	}
	return event.Data.Object, nil
}

func (incomingWebhook) Ack(accepted bool) connector.WebhookAck {
	if !accepted {
		return connector.WebhookAck{
			StatusCode:  http.StatusBadRequest,
			ContentType: "application/json",
			Body:        []byte(`{"error":"webhook rejected"}`),
		}
	}
	return connector.WebhookAck{
		StatusCode:  http.StatusOK,
		ContentType: "application/json",
		Body:        []byte(`{"received":true}`),
	}
}

func headerValue(headers map[string][]string, key string) string {
	if vs, ok := headers[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	if vs, ok := headers[strings.ToLower(key)]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

package paypal

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/cassiomorais/switchboard/internal/connector"
)

// webhookEvent is the paypal webhook envelope.
type webhookEvent struct {
	EventType string          `json:"event_type"`
	Resource  json.RawMessage `json:"resource"`
}

type webhookResource struct {
	ID        string `json:"id"`
	InvoiceID string `json:"invoice_id"`
	// SupplementaryData carries the order id on capture events.
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

type incomingWebhook struct{}

// VerifySource checks the transmission signature header: HMAC-SHA256 of the
// raw body keyed with the merchant's webhook secret.
func (incomingWebhook) VerifySource(ctx context.Context, secret []byte, headers map[string][]string, body []byte) (bool, error) {
	sig := headerValue(headers, "Paypal-Transmission-Sig")
	if sig == "" {
		return false, nil
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sig)), nil
}

func (incomingWebhook) ObjectReferenceID(body []byte) (connector.ObjectReference, error) {
	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return connector.ObjectReference{}, err
	}
	var res webhookResource
	if err := json.Unmarshal(event.Resource, &res); err != nil {
		return connector.ObjectReference{}, err
	}

	switch event.EventType {
	case "PAYMENT.CAPTURE.REFUNDED", "PAYMENT.REFUND.FAILED":
		// InvoiceID carries the switch's refund id set at refund creation.
		id := res.InvoiceID
		if id == "" {
			id = res.ID
		}
		return connector.ObjectReference{Kind: connector.RefRefund, ID: id}, nil
	}
	id := res.SupplementaryData.RelatedIDs.OrderID
	if id == "" {
		id = res.ID
	}
	return connector.ObjectReference{Kind: connector.RefPayment, ID: id}, nil
}

func (incomingWebhook) EventType(body []byte) (connector.WebhookEventType, error) {
	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return connector.EventNotSupported, err
	}
	switch event.EventType {
	case "CHECKOUT.ORDER.COMPLETED", "PAYMENT.CAPTURE.COMPLETED":
		return connector.EventPaymentSuccess, nil
	case "PAYMENT.CAPTURE.DENIED", "CHECKOUT.ORDER.DECLINED":
		return connector.EventPaymentFailure, nil
	case "PAYMENT.CAPTURE.PENDING":
		return connector.EventPaymentProcessing, nil
	case "PAYMENT.CAPTURE.REFUNDED":
		return connector.EventRefundSuccess, nil
	case "PAYMENT.REFUND.FAILED":
		return connector.EventRefundFailure, nil
	}
	return connector.EventNotSupported, nil
}

func (incomingWebhook) ResourceObject(body []byte) (json.RawMessage, error) {
	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, err
	}
	return event.Resource, nil
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
		Body:        []byte(`{"status":"received"}`),
	}
}

func headerValue(headers map[string][]string, key string) string {
	if vs, ok := headers[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

package controller

import (
	"io"
	"net/http"

	"github.com/cassiomorais/switchboard/internal/webhooks"
	"github.com/go-chi/chi/v5"
)

// maxWebhookBody bounds inbound webhook payloads.
const maxWebhookBody = 1 << 20

// WebhookController receives connector event deliveries. The route is
// unauthenticated; deliveries are attributed by signature verification
// inside the webhook service.
type WebhookController struct {
	webhooks *webhooks.Service
}

// NewWebhookController creates a new WebhookController.
func NewWebhookController(svc *webhooks.Service) *WebhookController {
	return &WebhookController{webhooks: svc}
}

// Receive handles POST /webhooks/{merchant_id}/{connector}
func (h *WebhookController) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Error: "unreadable body", Code: "invalid_body"})
		return
	}

	ack := h.webhooks.Ingest(r.Context(), webhooks.Delivery{
		ConnectorName: chi.URLParam(r, "connector"),
		MerchantID:    chi.URLParam(r, "merchant_id"),
		Headers:       r.Header,
		Body:          body,
	})

	w.Header().Set("Content-Type", ack.ContentType)
	w.WriteHeader(ack.StatusCode)
	w.Write(ack.Body)
}

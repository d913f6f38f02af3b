// Package webhooks ingests connector event deliveries and reconciles tracker
// state from them. Verification fails closed: a delivery that cannot be
// attributed to the provider never reaches the state machine.
package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cassiomorais/switchboard/internal/connector"
	domainErrors "github.com/cassiomorais/switchboard/internal/domain/errors"
	"github.com/cassiomorais/switchboard/internal/observability"
	"github.com/cassiomorais/switchboard/internal/operations"
	"github.com/rs/zerolog"
)

// Service wires webhook ingestion to the reconciliation operations.
type Service struct {
	registry *connector.Registry
	ops      *operations.Service
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewService creates the webhook ingestion service.
func NewService(registry *connector.Registry, ops *operations.Service, logger zerolog.Logger, metrics *observability.Metrics) *Service {
	return &Service{registry: registry, ops: ops, logger: logger, metrics: metrics}
}

// Delivery is one raw inbound webhook request.
type Delivery struct {
	ConnectorName string
	MerchantID    string
	Headers       map[string][]string
	Body          []byte
}

// Ingest processes one delivery end to end and returns the synchronous reply
// the provider expects. Unsupported events are acknowledged without mutation
// so the provider stops redelivering them.
func (s *Service) Ingest(ctx context.Context, d Delivery) connector.WebhookAck {
	conn, err := s.registry.GetWebhook(d.ConnectorName)
	if err != nil {
		s.logger.Warn().Str("connector", d.ConnectorName).Msg("webhook for unknown or webhook-less connector")
		return connector.WebhookAck{StatusCode: http.StatusNotFound, ContentType: "application/json", Body: []byte(`{"error":"unknown connector"}`)}
	}
	hook := conn.Webhook()

	secret := s.ops.WebhookSecretFor(d.ConnectorName)
	verified, err := hook.VerifySource(ctx, secret, d.Headers, d.Body)
	if err != nil || !verified {
		s.metrics.WebhookVerifyFailures.WithLabelValues(d.ConnectorName).Inc()
		s.logger.Warn().Err(err).Str("connector", d.ConnectorName).Msg("webhook source verification failed")
		return hook.Ack(false)
	}

	eventType, err := hook.EventType(d.Body)
	if err != nil {
		s.metrics.WebhooksTotal.WithLabelValues(d.ConnectorName, "undecodable").Inc()
		return hook.Ack(false)
	}
	s.metrics.WebhooksTotal.WithLabelValues(d.ConnectorName, string(eventType)).Inc()

	if eventType == connector.EventNotSupported {
		s.logger.Debug().Str("connector", d.ConnectorName).Msg("webhook event not supported, acknowledged without mutation")
		return hook.Ack(true)
	}

	ref, err := hook.ObjectReferenceID(d.Body)
	if err != nil {
		s.logger.Warn().Err(err).Str("connector", d.ConnectorName).Msg("webhook object reference extraction failed")
		return hook.Ack(false)
	}

	resource, err := hook.ResourceObject(d.Body)
	if err != nil {
		s.logger.Warn().Err(err).Str("connector", d.ConnectorName).Msg("webhook resource object extraction failed")
		return hook.Ack(false)
	}

	if err := s.reconcile(ctx, d.MerchantID, ref, eventType, resource); err != nil {
		switch {
		case errors.Is(err, domainErrors.ErrWebhookEventNotSupported):
			return hook.Ack(true)
		case errors.Is(err, domainErrors.ErrPaymentNotFound),
			errors.Is(err, domainErrors.ErrAttemptNotFound),
			errors.Is(err, domainErrors.ErrRefundNotFound),
			errors.Is(err, domainErrors.ErrMandateNotFound):
			// The referenced object may belong to another deployment or
			// predate this one. Acknowledge so the provider stops retrying.
			s.logger.Warn().
				Str("connector", d.ConnectorName).
				Str("reference", ref.ID).
				Msg("webhook references an unknown object")
			return hook.Ack(true)
		default:
			s.logger.Error().Err(err).
				Str("connector", d.ConnectorName).
				Str("reference", ref.ID).
				Msg("webhook reconciliation failed")
			// Reject so the provider redelivers once the fault clears.
			return hook.Ack(false)
		}
	}

	s.logger.Info().
		Str("connector", d.ConnectorName).
		Str("event_type", string(eventType)).
		Str("reference", ref.ID).
		Msg("webhook reconciled")
	return hook.Ack(true)
}

func (s *Service) reconcile(ctx context.Context, merchantID string, ref connector.ObjectReference, event connector.WebhookEventType, resource json.RawMessage) error {
	switch ref.Kind {
	case connector.RefPayment:
		return s.ops.ReconcilePayment(ctx, merchantID, ref.ID, event, resource)
	case connector.RefRefund:
		return s.ops.ReconcileRefund(ctx, merchantID, ref.ID, event, resource)
	case connector.RefMandate:
		return s.ops.ReconcileMandate(ctx, merchantID, ref.ID, event)
	}
	return domainErrors.ErrWebhookEventNotSupported
}

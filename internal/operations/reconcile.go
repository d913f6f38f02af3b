package operations

import (
	"context"
	"encoding/json"

	"github.com/cassiomorais/switchboard/internal/connector"
	"github.com/cassiomorais/switchboard/internal/domain/errors"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
	"github.com/google/uuid"
)

// statusForWebhookEvent maps a normalized webhook event onto the attempt
// status it implies. Unknown events map to nothing and are acknowledged
// without mutation upstream.
func statusForWebhookEvent(event connector.WebhookEventType) (payments.AttemptStatus, bool) {
	switch event {
	case connector.EventPaymentSuccess:
		return payments.AttemptCharged, true
	case connector.EventPaymentFailure:
		return payments.AttemptFailure, true
	case connector.EventPaymentProcessing:
		return payments.AttemptPending, true
	case connector.EventActionRequired:
		return payments.AttemptAuthenticationPending, true
	}
	return "", false
}

// ReconcilePayment applies a verified webhook event to the attempt the
// connector transaction id resolves to. It is idempotent: replays of an
// already-applied event make no change. The provider's resource object is
// persisted alongside the emitted event so replays can be audited.
func (s *Service) ReconcilePayment(ctx context.Context, merchantID, connectorTxnID string, event connector.WebhookEventType, resource json.RawMessage) error {
	status, ok := statusForWebhookEvent(event)
	if !ok {
		return errors.ErrWebhookEventNotSupported
	}

	attempt, err := s.Attempts.FindByConnectorTransactionID(ctx, merchantID, connectorTxnID, s.Scheme)
	if err != nil {
		return err
	}
	if attempt.Status == status {
		return nil
	}
	// Terminal attempts never regress to in-flight statuses; a late
	// processing event after a success notification is dropped.
	if attempt.Status.IsTerminal() && !status.IsTerminal() {
		return nil
	}

	intent, err := s.Intents.FindByID(ctx, merchantID, attempt.PaymentID, s.Scheme)
	if err != nil {
		return err
	}
	intentStatus := payments.IntentStatusFor(status, intent.CaptureMethod)
	if err := payments.ValidateStatusPair(intentStatus, status); err != nil {
		return err
	}

	return s.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.Attempts.Update(txCtx, attempt, payments.AttemptStatusUpdate{Status: status}, s.Scheme); err != nil {
			return err
		}
		updated, err := s.Intents.Update(txCtx, intent, payments.IntentStatusUpdate{Status: intentStatus}, s.Scheme)
		if err != nil {
			return err
		}
		if intentStatus.IsTerminal() && intent.Status != intentStatus {
			eventType := "payment.failed"
			switch intentStatus {
			case payments.IntentSucceeded:
				eventType = "payment.succeeded"
			case payments.IntentCancelled:
				eventType = "payment.cancelled"
			}
			payload := map[string]any{
				"status": string(intentStatus),
				"source": "webhook",
			}
			if len(resource) > 0 {
				payload["resource"] = resource
			}
			s.appendEvent(txCtx, "payment_intent", updated.ID, updated.MerchantID, eventType, payload)
		}
		return nil
	})
}

// ReconcileRefund applies a verified refund webhook event to the refund the
// connector refund id resolves to.
func (s *Service) ReconcileRefund(ctx context.Context, merchantID, refundID string, event connector.WebhookEventType, resource json.RawMessage) error {
	var status payments.RefundStatus
	switch event {
	case connector.EventRefundSuccess:
		status = payments.RefundSuccess
	case connector.EventRefundFailure:
		status = payments.RefundFailure
	default:
		return errors.ErrWebhookEventNotSupported
	}

	id, err := uuid.Parse(refundID)
	if err != nil {
		return errors.ErrRefundNotFound
	}
	refund, err := s.Refunds.FindByID(ctx, merchantID, id, s.Scheme)
	if err != nil {
		return err
	}
	if refund.Status == status || refund.Status.IsTerminal() {
		return nil
	}

	return s.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		updated, err := s.Refunds.Update(txCtx, refund, payments.RefundResponseUpdate{Status: status}, s.Scheme)
		if err != nil {
			return err
		}
		eventType := "refund.failed"
		if status == payments.RefundSuccess {
			eventType = "refund.succeeded"
		}
		payload := map[string]any{
			"payment_id": updated.PaymentID.String(),
			"status":     string(status),
			"source":     "webhook",
		}
		if len(resource) > 0 {
			payload["resource"] = resource
		}
		s.appendEvent(txCtx, "refund", updated.ID, updated.MerchantID, eventType, payload)
		return nil
	})
}

// ReconcileMandate applies a verified mandate webhook event.
func (s *Service) ReconcileMandate(ctx context.Context, merchantID, connectorMandateID string, event connector.WebhookEventType) error {
	var status payments.MandateStatus
	switch event {
	case connector.EventMandateActive:
		status = payments.MandateActive
	case connector.EventMandateRevoked:
		status = payments.MandateRevoked
	default:
		return errors.ErrWebhookEventNotSupported
	}

	mandate, err := s.Mandates.FindByConnectorMandateID(ctx, merchantID, connectorMandateID)
	if err != nil {
		return err
	}
	if mandate.Status == status {
		return nil
	}
	return s.Mandates.UpdateStatus(ctx, mandate.ID, status)
}

package operations

import (
	"context"

	"github.com/cassiomorais/switchboard/internal/connector"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
)

// PaymentCancel voids an uncaptured authorization. Connectors without a Void
// flow reject this at the registry boundary with a capability error.
type PaymentCancel struct{}

func (PaymentCancel) Name() string         { return "payment_cancel" }
func (PaymentCancel) Flow() connector.Flow { return connector.FlowVoid }

func (PaymentCancel) AllowedStatuses() []payments.IntentStatus {
	return []payments.IntentStatus{
		payments.IntentRequiresPaymentMethod,
		payments.IntentRequiresConfirmation,
		payments.IntentRequiresCapture,
		payments.IntentRequiresCustomerAction,
	}
}

func (PaymentCancel) ValidateRequest(req *PaymentRequest) error { return nil }

func (PaymentCancel) GetTracker(ctx context.Context, svc *Service, req *PaymentRequest) (*Trackers, error) {
	intent, err := svc.loadIntent(ctx, req.MerchantID, req.PaymentID, req.ClientSecret)
	if err != nil {
		return nil, err
	}
	trk := &Trackers{Intent: intent}
	if intent.ActiveAttemptID != nil {
		attempt, err := svc.Attempts.FindByID(ctx, *intent.ActiveAttemptID, svc.Scheme)
		if err != nil {
			return nil, err
		}
		trk.Attempt = attempt
	}
	return trk, nil
}

func (PaymentCancel) Domain(ctx context.Context, svc *Service, req *PaymentRequest, trk *Trackers) (*DomainResult, error) {
	// Nothing reached a connector yet; cancel locally.
	if trk.Attempt == nil || trk.Attempt.ConnectorTransactionID == nil {
		return &DomainResult{SkipCall: true}, nil
	}

	rd, callType, err := attemptScopedCall(ctx, svc, trk, connector.FlowVoid)
	if err != nil {
		return nil, err
	}
	rd.Request = connector.PaymentsRequest{
		AmountMinor:            trk.Intent.Amount.ValueMinor,
		Currency:               trk.Intent.Amount.Currency,
		ConnectorTransactionID: trk.Attempt.ConnectorTransactionID,
		Description:            req.CancellationReason,
	}
	return &DomainResult{RouterData: rd, CallType: callType}, nil
}

func (PaymentCancel) UpdateTracker(ctx context.Context, svc *Service, trk *Trackers, rd *connector.RouterData) (*Trackers, error) {
	if rd == nil {
		// Local cancellation, no connector involved.
		var out Trackers
		err := svc.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
			intent, err := svc.Intents.Update(txCtx, trk.Intent, payments.IntentStatusUpdate{Status: payments.IntentCancelled}, svc.Scheme)
			if err != nil {
				return err
			}
			out = Trackers{Intent: intent, Attempt: trk.Attempt}
			if trk.Attempt != nil {
				attempt, err := svc.Attempts.Update(txCtx, trk.Attempt, payments.AttemptStatusUpdate{Status: payments.AttemptVoided}, svc.Scheme)
				if err != nil {
					return err
				}
				out.Attempt = attempt
			}
			svc.appendEvent(txCtx, "payment_intent", intent.ID, intent.MerchantID, "payment.cancelled", map[string]any{
				"reason": "cancelled_before_authorization",
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &out, nil
	}
	return persistOutcome(ctx, svc, trk, rd, payments.AttemptVoidFailed)
}

package operations

import (
	"context"

	"github.com/cassiomorais/switchboard/internal/connector"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
)

// PaymentSync refreshes an in-flight attempt from the connector. Terminal
// intents are returned from storage untouched unless the caller forces a
// connector round trip.
type PaymentSync struct{}

func (PaymentSync) Name() string         { return "payment_sync" }
func (PaymentSync) Flow() connector.Flow { return connector.FlowPSync }

func (PaymentSync) AllowedStatuses() []payments.IntentStatus {
	// Sync is read-mostly and may run from any status.
	return payments.AllIntentStatuses
}

func (PaymentSync) ValidateRequest(req *PaymentRequest) error { return nil }

func (PaymentSync) GetTracker(ctx context.Context, svc *Service, req *PaymentRequest) (*Trackers, error) {
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

func (PaymentSync) Domain(ctx context.Context, svc *Service, req *PaymentRequest, trk *Trackers) (*DomainResult, error) {
	if trk.Attempt == nil || trk.Attempt.ConnectorTransactionID == nil {
		return &DomainResult{SkipCall: true}, nil
	}
	if trk.Intent.Status.IsTerminal() && !req.ForceSync {
		return &DomainResult{SkipCall: true}, nil
	}

	rd, callType, err := attemptScopedCall(ctx, svc, trk, connector.FlowPSync)
	if err != nil {
		return nil, err
	}
	rd.Request = connector.PaymentsRequest{
		ConnectorTransactionID: trk.Attempt.ConnectorTransactionID,
	}
	return &DomainResult{RouterData: rd, CallType: callType}, nil
}

func (PaymentSync) UpdateTracker(ctx context.Context, svc *Service, trk *Trackers, rd *connector.RouterData) (*Trackers, error) {
	if rd == nil {
		return trk, nil
	}
	if rd.Error != nil {
		// A failed status probe does not change the payment; surface the
		// stored state and leave the error to the engine's logs.
		svc.Logger.Warn().
			Str("payment_id", trk.Intent.ID.String()).
			Str("error_code", rd.Error.Code).
			Msg("payment sync probe failed")
		return trk, nil
	}
	if rd.Status == trk.Attempt.Status {
		return trk, nil
	}

	intentStatus := payments.IntentStatusFor(rd.Status, trk.Intent.CaptureMethod)
	if err := payments.ValidateStatusPair(intentStatus, rd.Status); err != nil {
		return nil, err
	}

	var out Trackers
	err := svc.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		attempt, err := svc.Attempts.Update(txCtx, trk.Attempt, payments.AttemptStatusUpdate{Status: rd.Status}, svc.Scheme)
		if err != nil {
			return err
		}
		intent, err := svc.Intents.Update(txCtx, trk.Intent, payments.IntentStatusUpdate{Status: intentStatus}, svc.Scheme)
		if err != nil {
			return err
		}
		out = Trackers{Intent: intent, Attempt: attempt}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

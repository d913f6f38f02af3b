package operations

import (
	"context"

	"github.com/cassiomorais/switchboard/internal/connector"
	"github.com/cassiomorais/switchboard/internal/domain/errors"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
	"github.com/cassiomorais/switchboard/internal/routing"
)

// PaymentCapture settles a previously authorized amount. The call is always
// pinned to the connector that holds the authorization.
type PaymentCapture struct{}

func (PaymentCapture) Name() string         { return "payment_capture" }
func (PaymentCapture) Flow() connector.Flow { return connector.FlowCapture }

func (PaymentCapture) AllowedStatuses() []payments.IntentStatus {
	return []payments.IntentStatus{
		payments.IntentRequiresCapture,
		payments.IntentPartiallyCapturedAndCapturable,
	}
}

func (PaymentCapture) ValidateRequest(req *PaymentRequest) error {
	if req.AmountToCapture != nil && *req.AmountToCapture <= 0 {
		return errors.NewValidationError("amount_to_capture", "must be greater than 0")
	}
	return nil
}

func (PaymentCapture) GetTracker(ctx context.Context, svc *Service, req *PaymentRequest) (*Trackers, error) {
	return loadTrackers(ctx, svc, req)
}

func (PaymentCapture) Domain(ctx context.Context, svc *Service, req *PaymentRequest, trk *Trackers) (*DomainResult, error) {
	amount := trk.Intent.Amount.ValueMinor - trk.Intent.AmountCaptured
	if req.AmountToCapture != nil {
		amount = *req.AmountToCapture
	}
	if amount > trk.Intent.Amount.ValueMinor-trk.Intent.AmountCaptured {
		return nil, errors.NewValidationError("amount_to_capture", "exceeds the capturable amount")
	}

	rd, callType, err := attemptScopedCall(ctx, svc, trk, connector.FlowCapture)
	if err != nil {
		return nil, err
	}
	rd.Request = connector.PaymentsRequest{
		AmountMinor:            amount,
		Currency:               trk.Intent.Amount.Currency,
		CaptureMethod:          trk.Intent.CaptureMethod,
		ConnectorTransactionID: trk.Attempt.ConnectorTransactionID,
	}
	return &DomainResult{RouterData: rd, CallType: callType}, nil
}

func (PaymentCapture) UpdateTracker(ctx context.Context, svc *Service, trk *Trackers, rd *connector.RouterData) (*Trackers, error) {
	if rd.Error != nil {
		return persistOutcome(ctx, svc, trk, rd, payments.AttemptCaptureFailed)
	}

	captured := trk.Intent.Amount.ValueMinor
	req, _ := rd.Request.(connector.PaymentsRequest)
	if req.AmountMinor > 0 {
		captured = trk.Intent.AmountCaptured + req.AmountMinor
	}

	attemptStatus := rd.Status
	intentStatus := payments.IntentStatusFor(attemptStatus, trk.Intent.CaptureMethod)
	if attemptStatus == payments.AttemptPartialCharged && captured < trk.Intent.Amount.ValueMinor {
		intentStatus = payments.IntentPartiallyCapturedAndCapturable
	}
	if err := payments.ValidateStatusPair(intentStatus, attemptStatus); err != nil {
		return nil, err
	}

	var out Trackers
	err := svc.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		attempt, err := svc.Attempts.Update(txCtx, trk.Attempt, payments.AttemptStatusUpdate{Status: attemptStatus}, svc.Scheme)
		if err != nil {
			return err
		}
		intent, err := svc.Intents.Update(txCtx, trk.Intent, payments.IntentCaptureUpdate{
			Status:         intentStatus,
			AmountCaptured: captured,
		}, svc.Scheme)
		if err != nil {
			return err
		}
		out = Trackers{Intent: intent, Attempt: attempt}
		if intentStatus == payments.IntentSucceeded {
			svc.appendEvent(txCtx, "payment_intent", intent.ID, intent.MerchantID, "payment.succeeded", map[string]any{
				"amount_captured": captured,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// loadTrackers fetches the intent together with its active attempt. Shared by
// every operation that acts on an existing authorization.
func loadTrackers(ctx context.Context, svc *Service, req *PaymentRequest) (*Trackers, error) {
	intent, err := svc.loadIntent(ctx, req.MerchantID, req.PaymentID, req.ClientSecret)
	if err != nil {
		return nil, err
	}
	if intent.ActiveAttemptID == nil {
		return nil, errors.ErrAttemptNotFound
	}
	attempt, err := svc.Attempts.FindByID(ctx, *intent.ActiveAttemptID, svc.Scheme)
	if err != nil {
		return nil, err
	}
	return &Trackers{Intent: intent, Attempt: attempt}, nil
}

// attemptScopedCall builds the pre-determined routing decision and envelope
// for flows that must hit the connector holding the transaction.
func attemptScopedCall(_ context.Context, svc *Service, trk *Trackers, flow connector.Flow) (*connector.RouterData, routing.ConnectorCallType, error) {
	callType, err := routing.Decide(trk.Attempt, svc.Routing)
	if err != nil {
		return nil, routing.ConnectorCallType{}, err
	}
	if callType.Kind != routing.KindPreDetermined {
		return nil, routing.ConnectorCallType{}, errors.ErrConnectorNotFound
	}
	callType, err = svc.resolveCandidates(callType, nil)
	if err != nil {
		return nil, routing.ConnectorCallType{}, err
	}
	pinned := callType.Candidates[0]
	rd := &connector.RouterData{
		Flow:                flow,
		MerchantID:          trk.Intent.MerchantID,
		PaymentID:           trk.Intent.ID,
		AttemptID:           trk.Attempt.ID,
		MerchantConnectorID: pinned.MerchantConnectorID,
		Auth:                pinned.Auth,
		Status:              trk.Attempt.Status,
	}
	return rd, callType, nil
}

package operations

import (
	"context"
	"time"

	"github.com/cassiomorais/switchboard/internal/connector"
	"github.com/cassiomorais/switchboard/internal/domain/errors"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
	"github.com/cassiomorais/switchboard/internal/routing"
	"github.com/google/uuid"
)

// RefundRequest is the normalized inbound request for refund operations.
type RefundRequest struct {
	MerchantID string
	PaymentID  uuid.UUID
	RefundID   uuid.UUID
	Amount     *payments.Amount
	Reason     *string
	ForceSync  bool
}

// RefundTrackers is the persisted state a refund operation runs over.
type RefundTrackers struct {
	Intent  *payments.PaymentIntent
	Attempt *payments.PaymentAttempt
	Refund  *payments.Refund
}

// RefundOperation mirrors Operation for the refund state machine. Refunds
// track their own aggregate, so they do not share the payment runner.
type RefundOperation interface {
	Name() string
	Flow() connector.Flow
	ValidateRequest(req *RefundRequest) error
	GetTracker(ctx context.Context, svc *Service, req *RefundRequest) (*RefundTrackers, error)
	Domain(ctx context.Context, svc *Service, req *RefundRequest, trk *RefundTrackers) (*DomainResult, error)
	UpdateTracker(ctx context.Context, svc *Service, trk *RefundTrackers, rd *connector.RouterData) (*RefundTrackers, error)
}

// RunRefund executes one refund operation through the same stage order as
// the payment runner.
func RunRefund(ctx context.Context, svc *Service, op RefundOperation, req *RefundRequest) (*RefundTrackers, error) {
	start := time.Now()
	defer func() {
		svc.Metrics.OperationDuration.WithLabelValues(op.Name()).Observe(time.Since(start).Seconds())
	}()

	if err := op.ValidateRequest(req); err != nil {
		svc.Metrics.OperationsTotal.WithLabelValues(op.Name(), "invalid").Inc()
		return nil, err
	}
	trk, err := op.GetTracker(ctx, svc, req)
	if err != nil {
		svc.Metrics.OperationsTotal.WithLabelValues(op.Name(), "tracker_error").Inc()
		return nil, err
	}
	domain, err := op.Domain(ctx, svc, req, trk)
	if err != nil {
		svc.Metrics.OperationsTotal.WithLabelValues(op.Name(), "domain_error").Inc()
		return nil, err
	}

	rd := domain.RouterData
	if !domain.SkipCall {
		rd, err = svc.Dispatcher.Call(ctx, domain.CallType, domain.RouterData)
		if err != nil {
			svc.Metrics.OperationsTotal.WithLabelValues(op.Name(), "dispatch_error").Inc()
			return nil, err
		}
	}

	trk, err = op.UpdateTracker(ctx, svc, trk, rd)
	if err != nil {
		svc.Metrics.OperationsTotal.WithLabelValues(op.Name(), "update_error").Inc()
		return nil, err
	}

	outcome := "success"
	if rd != nil && rd.Error != nil {
		outcome = "connector_error"
	}
	svc.Metrics.OperationsTotal.WithLabelValues(op.Name(), outcome).Inc()
	return trk, nil
}

// RefundCreate opens a refund against a charged attempt and executes it.
type RefundCreate struct{}

func (RefundCreate) Name() string         { return "refund_create" }
func (RefundCreate) Flow() connector.Flow { return connector.FlowExecuteRefund }

func (RefundCreate) ValidateRequest(req *RefundRequest) error {
	if req.MerchantID == "" {
		return errors.NewValidationError("merchant_id", "cannot be empty")
	}
	if req.Amount != nil {
		return req.Amount.Validate()
	}
	return nil
}

func (RefundCreate) GetTracker(ctx context.Context, svc *Service, req *RefundRequest) (*RefundTrackers, error) {
	intent, err := svc.Intents.FindByID(ctx, req.MerchantID, req.PaymentID, svc.Scheme)
	if err != nil {
		return nil, err
	}
	switch intent.Status {
	case payments.IntentSucceeded, payments.IntentPartiallyCaptured, payments.IntentPartiallyCapturedAndCapturable:
	default:
		return nil, domainStateError("refund_create", intent)
	}
	if intent.ActiveAttemptID == nil {
		return nil, errors.ErrAttemptNotFound
	}
	attempt, err := svc.Attempts.FindByID(ctx, *intent.ActiveAttemptID, svc.Scheme)
	if err != nil {
		return nil, err
	}
	if attempt.ConnectorTransactionID == nil {
		return nil, errors.ErrAttemptNotFound
	}

	amount := payments.Amount{ValueMinor: intent.AmountCaptured, Currency: intent.Amount.Currency}
	if amount.ValueMinor == 0 {
		amount.ValueMinor = intent.Amount.ValueMinor
	}
	if req.Amount != nil {
		amount = *req.Amount
	}

	alreadyRefunded, err := svc.Refunds.AmountRefunded(ctx, intent.ID)
	if err != nil {
		return nil, err
	}
	captured := intent.AmountCaptured
	if captured == 0 {
		captured = intent.Amount.ValueMinor
	}
	if alreadyRefunded+amount.ValueMinor > captured {
		return nil, errors.NewValidationError("amount", "exceeds the refundable amount")
	}

	refund := payments.NewRefund(intent, attempt, amount, req.Reason)
	if err := svc.Refunds.Insert(ctx, refund, svc.Scheme); err != nil {
		return nil, err
	}
	return &RefundTrackers{Intent: intent, Attempt: attempt, Refund: refund}, nil
}

func (RefundCreate) Domain(ctx context.Context, svc *Service, req *RefundRequest, trk *RefundTrackers) (*DomainResult, error) {
	rd, callType, err := refundScopedCall(ctx, svc, trk, connector.FlowExecuteRefund)
	if err != nil {
		return nil, err
	}
	rd.Request = connector.RefundsRequest{
		RefundID:               trk.Refund.ID,
		ConnectorTransactionID: *trk.Attempt.ConnectorTransactionID,
		AmountMinor:            trk.Refund.Amount.ValueMinor,
		Currency:               trk.Refund.Amount.Currency,
		Reason:                 trk.Refund.Reason,
	}
	return &DomainResult{RouterData: rd, CallType: callType}, nil
}

func (RefundCreate) UpdateTracker(ctx context.Context, svc *Service, trk *RefundTrackers, rd *connector.RouterData) (*RefundTrackers, error) {
	return persistRefundOutcome(ctx, svc, trk, rd)
}

// RefundSync refreshes a pending refund from the connector.
type RefundSync struct{}

func (RefundSync) Name() string         { return "refund_sync" }
func (RefundSync) Flow() connector.Flow { return connector.FlowRSync }

func (RefundSync) ValidateRequest(req *RefundRequest) error { return nil }

func (RefundSync) GetTracker(ctx context.Context, svc *Service, req *RefundRequest) (*RefundTrackers, error) {
	refund, err := svc.Refunds.FindByID(ctx, req.MerchantID, req.RefundID, svc.Scheme)
	if err != nil {
		return nil, err
	}
	intent, err := svc.Intents.FindByID(ctx, req.MerchantID, refund.PaymentID, svc.Scheme)
	if err != nil {
		return nil, err
	}
	attempt, err := svc.Attempts.FindByID(ctx, refund.AttemptID, svc.Scheme)
	if err != nil {
		return nil, err
	}
	return &RefundTrackers{Intent: intent, Attempt: attempt, Refund: refund}, nil
}

func (RefundSync) Domain(ctx context.Context, svc *Service, req *RefundRequest, trk *RefundTrackers) (*DomainResult, error) {
	if trk.Refund.Status.IsTerminal() && !req.ForceSync {
		return &DomainResult{SkipCall: true}, nil
	}
	if trk.Attempt.ConnectorTransactionID == nil {
		return &DomainResult{SkipCall: true}, nil
	}

	rd, callType, err := refundScopedCall(ctx, svc, trk, connector.FlowRSync)
	if err != nil {
		return nil, err
	}
	rd.Request = connector.RefundsRequest{
		RefundID:               trk.Refund.ID,
		ConnectorTransactionID: *trk.Attempt.ConnectorTransactionID,
		ConnectorRefundID:      trk.Refund.ConnectorRefundID,
		AmountMinor:            trk.Refund.Amount.ValueMinor,
		Currency:               trk.Refund.Amount.Currency,
	}
	return &DomainResult{RouterData: rd, CallType: callType}, nil
}

func (RefundSync) UpdateTracker(ctx context.Context, svc *Service, trk *RefundTrackers, rd *connector.RouterData) (*RefundTrackers, error) {
	if rd == nil {
		return trk, nil
	}
	if rd.Error != nil {
		svc.Logger.Warn().
			Str("refund_id", trk.Refund.ID.String()).
			Str("error_code", rd.Error.Code).
			Msg("refund sync probe failed")
		return trk, nil
	}
	resp, ok := rd.Response.(connector.RefundsResponse)
	if !ok || resp.Status == trk.Refund.Status {
		return trk, nil
	}
	return persistRefundOutcome(ctx, svc, trk, rd)
}

// persistRefundOutcome writes the refund outcome and emits the terminal
// refund events.
func persistRefundOutcome(ctx context.Context, svc *Service, trk *RefundTrackers, rd *connector.RouterData) (*RefundTrackers, error) {
	var update payments.RefundUpdate
	var status payments.RefundStatus

	if rd.Error != nil {
		status = payments.RefundFailure
		if rd.Error.Kind == connector.KindTransport {
			// The connector may have accepted the refund; leave it for
			// the sync worker to settle instead of declaring failure.
			status = payments.RefundPending
		}
		update = payments.RefundErrorUpdate{
			Status:       status,
			ErrorCode:    rd.Error.Code,
			ErrorMessage: rd.Error.Message,
		}
	} else {
		resp, ok := rd.Response.(connector.RefundsResponse)
		if !ok {
			return nil, errors.NewDomainError("REFUND_RESPONSE_INVALID", "connector returned no refund payload", nil)
		}
		status = resp.Status
		var connectorRefundID *string
		if resp.ConnectorRefundID != "" {
			id := resp.ConnectorRefundID
			connectorRefundID = &id
		}
		update = payments.RefundResponseUpdate{Status: status, ConnectorRefundID: connectorRefundID}
	}

	var out RefundTrackers
	err := svc.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		refund, err := svc.Refunds.Update(txCtx, trk.Refund, update, svc.Scheme)
		if err != nil {
			return err
		}
		out = RefundTrackers{Intent: trk.Intent, Attempt: trk.Attempt, Refund: refund}
		if status.IsTerminal() {
			eventType := "refund.failed"
			if status == payments.RefundSuccess {
				eventType = "refund.succeeded"
			}
			svc.appendEvent(txCtx, "refund", refund.ID, refund.MerchantID, eventType, map[string]any{
				"payment_id": refund.PaymentID.String(),
				"amount":     refund.Amount.ValueMinor,
				"status":     string(status),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// refundScopedCall is attemptScopedCall for the refund tracker set.
func refundScopedCall(ctx context.Context, svc *Service, trk *RefundTrackers, flow connector.Flow) (*connector.RouterData, routing.ConnectorCallType, error) {
	rd, callType, err := attemptScopedCall(ctx, svc, &Trackers{Intent: trk.Intent, Attempt: trk.Attempt}, flow)
	if err != nil {
		return nil, routing.ConnectorCallType{}, err
	}
	conn, err := svc.Registry.Get(callType.Candidates[0].ConnectorName)
	if err != nil {
		return nil, routing.ConnectorCallType{}, err
	}
	if !conn.Capabilities().SupportsRefunds {
		return nil, routing.ConnectorCallType{}, connector.NewNotSupported("refunds are not supported by " + conn.Name())
	}
	return rd, callType, nil
}

// domainStateError is the state-guard rejection for the refund machine,
// which checks intent status inside GetTracker rather than via the runner.
func domainStateError(op string, intent *payments.PaymentIntent) error {
	return errors.NewUnexpectedState(op, string(intent.Status), []string{
		string(payments.IntentSucceeded),
		string(payments.IntentPartiallyCaptured),
		string(payments.IntentPartiallyCapturedAndCapturable),
	})
}

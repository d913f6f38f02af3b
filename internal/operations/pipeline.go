package operations

import (
	"context"
	"time"

	"github.com/cassiomorais/switchboard/internal/connector"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
	"github.com/cassiomorais/switchboard/internal/routing"
	"github.com/google/uuid"
)

// PaymentRequest is the normalized inbound request consumed by payment
// operations. Controllers decode and validate DTOs into this shape.
type PaymentRequest struct {
	MerchantID      string
	PaymentID       uuid.UUID
	ClientSecret    string
	Amount          payments.Amount
	CaptureMethod   payments.CaptureMethod
	PaymentMethod   *connector.PaymentMethodData
	AmountToCapture *int64
	ReturnURL       *string
	Description     *string
	CustomerID      *string
	SetupFutureUsage bool
	MandateID       *uuid.UUID
	CancellationReason *string
	ForceSync       bool
}

// Trackers is the persisted intent/attempt pair an operation runs over.
type Trackers struct {
	Intent  *payments.PaymentIntent
	Attempt *payments.PaymentAttempt
}

// DomainResult is what the Domain stage hands to the dispatcher: the built
// envelope plus the routing decision, consumed exactly once per run.
type DomainResult struct {
	RouterData *connector.RouterData
	CallType   routing.ConnectorCallType
	// SkipCall is set by operations that complete without a connector call
	// (e.g. create, or a sync the caller did not force).
	SkipCall bool
}

// Operation is one named state-machine operation over an intent. Stages run
// strictly in order: ValidateRequest → GetTracker → Domain → UpdateTracker
// [→ PostUpdateTracker for operations implementing PostTracker].
type Operation interface {
	Name() string
	Flow() connector.Flow

	// AllowedStatuses declares the intent statuses this operation may run
	// from; the runner rejects anything else before Domain executes.
	AllowedStatuses() []payments.IntentStatus

	// ValidateRequest is stateless request validation; it must not touch
	// storage.
	ValidateRequest(req *PaymentRequest) error

	// GetTracker loads (and for creation paths inserts) tracker state.
	GetTracker(ctx context.Context, svc *Service, req *PaymentRequest) (*Trackers, error)

	// Domain resolves payment-method data and the routing decision, and
	// builds the RouterData for the connector call.
	Domain(ctx context.Context, svc *Service, req *PaymentRequest, trk *Trackers) (*DomainResult, error)

	// UpdateTracker persists the outcome as a typed intent/attempt update
	// pair under the merchant's storage scheme.
	UpdateTracker(ctx context.Context, svc *Service, trk *Trackers, rd *connector.RouterData) (*Trackers, error)
}

// PostTracker is implemented by operations that need a second, narrower
// persistence pass limited to connector-returned fields.
type PostTracker interface {
	PostUpdateTracker(ctx context.Context, svc *Service, trk *Trackers, rd *connector.RouterData) (*Trackers, error)
}

// Run executes one operation through the pipeline. The returned Trackers
// reflect the persisted state; connector failures surface as tracker state,
// not as errors — the error return is for pipeline-level faults only
// (validation, guard, storage).
func Run(ctx context.Context, svc *Service, op Operation, req *PaymentRequest) (*Trackers, error) {
	start := time.Now()
	svc.Metrics.ActivePayments.Inc()
	defer func() {
		svc.Metrics.ActivePayments.Dec()
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

	if err := svc.guard(op, trk.Intent); err != nil {
		svc.Metrics.OperationsTotal.WithLabelValues(op.Name(), "rejected").Inc()
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

	if post, ok := op.(PostTracker); ok && !domain.SkipCall {
		trk, err = post.PostUpdateTracker(ctx, svc, trk, rd)
		if err != nil {
			svc.Metrics.OperationsTotal.WithLabelValues(op.Name(), "update_error").Inc()
			return nil, err
		}
	}

	outcome := "success"
	if rd != nil && rd.Error != nil {
		outcome = "connector_error"
	}
	svc.Metrics.OperationsTotal.WithLabelValues(op.Name(), outcome).Inc()
	return trk, nil
}

// persistOutcome maps a resolved RouterData onto typed tracker updates and
// writes both atomically. It is shared by every payment operation's
// UpdateTracker stage so the status-pair invariant is enforced in one place.
func persistOutcome(ctx context.Context, svc *Service, trk *Trackers, rd *connector.RouterData, failureStatus payments.AttemptStatus) (*Trackers, error) {
	var (
		attemptUpdate payments.AttemptUpdate
		attemptStatus payments.AttemptStatus
	)

	// The dispatcher may have resolved the attempt through a fallback
	// candidate; the row must record the connector that actually ran.
	var winner, winnerAccount *string
	if rd.ConnectorName != "" {
		name := rd.ConnectorName
		account := rd.MerchantConnectorID
		winner = &name
		winnerAccount = &account
	}

	if rd.Error != nil {
		attemptStatus = rd.Error.FailedAttemptStatus(failureStatus)
		attemptUpdate = payments.AttemptErrorUpdate{
			Status:              attemptStatus,
			Connector:           winner,
			MerchantConnectorID: winnerAccount,
			ErrorCode:           rd.Error.Code,
			ErrorMessage:        rd.Error.Message,
			ErrorReason:         rd.Error.Reason,
		}
	} else {
		attemptStatus = rd.Status
		update := payments.AttemptResponseUpdate{
			Status:              attemptStatus,
			Connector:           winner,
			MerchantConnectorID: winnerAccount,
		}
		if resp, ok := rd.Response.(connector.PaymentsResponse); ok {
			if resp.ConnectorTransactionID != "" {
				id := resp.ConnectorTransactionID
				update.ConnectorTransactionID = &id
			}
			if resp.MandateReference != nil {
				update.ConnectorReferenceID = resp.MandateReference
			}
		}
		attemptUpdate = update
	}

	intentStatus := payments.IntentStatusFor(attemptStatus, trk.Intent.CaptureMethod)
	if err := payments.ValidateStatusPair(intentStatus, attemptStatus); err != nil {
		return nil, err
	}

	var out Trackers
	err := svc.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		attempt, err := svc.Attempts.Update(txCtx, trk.Attempt, attemptUpdate, svc.Scheme)
		if err != nil {
			return err
		}
		intent, err := svc.Intents.Update(txCtx, trk.Intent, payments.IntentResponseUpdate{Status: intentStatus}, svc.Scheme)
		if err != nil {
			return err
		}
		out = Trackers{Intent: intent, Attempt: attempt}

		// Events fire on the transition into a terminal status, never on a
		// re-applied outcome, so a webhook replay cannot duplicate them.
		if intentStatus.IsTerminal() && trk.Intent.Status != intentStatus {
			eventType := "payment.failed"
			if intentStatus == payments.IntentSucceeded {
				eventType = "payment.succeeded"
			} else if intentStatus == payments.IntentCancelled {
				eventType = "payment.cancelled"
			}
			svc.appendEvent(txCtx, "payment_intent", intent.ID, intent.MerchantID, eventType, map[string]any{
				"status":         string(intentStatus),
				"attempt_status": string(attemptStatus),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

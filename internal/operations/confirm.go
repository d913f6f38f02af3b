package operations

import (
	"context"

	"github.com/cassiomorais/switchboard/internal/connector"
	"github.com/cassiomorais/switchboard/internal/domain/errors"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
	"github.com/cassiomorais/switchboard/internal/routing"
	"github.com/google/uuid"
)

// PaymentConfirm runs the Authorize flow over a new attempt. It is the
// operation that first touches a connector, so it also resolves routing,
// per-candidate credentials, and stored mandates.
type PaymentConfirm struct{}

func (PaymentConfirm) Name() string         { return "payment_confirm" }
func (PaymentConfirm) Flow() connector.Flow { return connector.FlowAuthorize }

func (PaymentConfirm) AllowedStatuses() []payments.IntentStatus {
	return []payments.IntentStatus{
		payments.IntentRequiresPaymentMethod,
		payments.IntentRequiresConfirmation,
		payments.IntentRequiresCustomerAction,
	}
}

func (PaymentConfirm) ValidateRequest(req *PaymentRequest) error {
	if req.PaymentMethod == nil && req.MandateID == nil {
		return errors.NewValidationError("payment_method", "a payment method or mandate id is required to confirm")
	}
	return nil
}

func (PaymentConfirm) GetTracker(ctx context.Context, svc *Service, req *PaymentRequest) (*Trackers, error) {
	intent, err := svc.loadIntent(ctx, req.MerchantID, req.PaymentID, req.ClientSecret)
	if err != nil {
		return nil, err
	}
	return &Trackers{Intent: intent}, nil
}

func (o PaymentConfirm) Domain(ctx context.Context, svc *Service, req *PaymentRequest, trk *Trackers) (*DomainResult, error) {
	intent := trk.Intent

	attempt := payments.NewPaymentAttempt(intent)
	callType, err := routing.Decide(nil, svc.Routing)
	if err != nil {
		return nil, err
	}
	callType, err = svc.resolveCandidates(callType, req.PaymentMethod)
	if err != nil {
		return nil, err
	}
	primary := callType.Candidates[0]

	mandateRef, err := o.resolveMandate(ctx, svc, req, intent)
	if err != nil {
		return nil, err
	}

	// Record the routing decision and move the pair into the in-flight
	// statuses before the wire call, so a crash mid-call is visible.
	err = svc.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := svc.Attempts.Insert(txCtx, attempt, svc.Scheme); err != nil {
			return err
		}
		methodName := ""
		if req.PaymentMethod != nil {
			methodName = string(req.PaymentMethod.Type)
		}
		attempt, err = svc.Attempts.Update(txCtx, attempt, payments.AttemptConnectorUpdate{
			Status:              payments.AttemptAuthorizing,
			Connector:           primary.ConnectorName,
			MerchantConnectorID: primary.MerchantConnectorID,
			PaymentMethod:       methodName,
		}, svc.Scheme)
		if err != nil {
			return err
		}
		intent, err = svc.Intents.Update(txCtx, intent, payments.IntentConfirmUpdate{
			Status:          payments.IntentProcessing,
			ActiveAttemptID: attempt.ID,
		}, svc.Scheme)
		return err
	})
	if err != nil {
		return nil, err
	}
	trk.Intent = intent
	trk.Attempt = attempt

	rd := &connector.RouterData{
		Flow:                connector.FlowAuthorize,
		MerchantID:          intent.MerchantID,
		PaymentID:           intent.ID,
		AttemptID:           attempt.ID,
		MerchantConnectorID: primary.MerchantConnectorID,
		Auth:                primary.Auth,
		Status:              attempt.Status,
		Request: connector.PaymentsRequest{
			AmountMinor:      intent.Amount.ValueMinor,
			Currency:         intent.Amount.Currency,
			PaymentMethod:    req.PaymentMethod,
			CaptureMethod:    intent.CaptureMethod,
			MandateReference: mandateRef,
			SetupFutureUsage: intent.SetupFutureUsage,
			ReturnURL:        intent.ReturnURL,
			Description:      intent.Description,
			CustomerID:       intent.CustomerID,
			OffSession:       mandateRef != nil,
		},
	}
	return &DomainResult{RouterData: rd, CallType: callType}, nil
}

// resolveMandate looks up the connector-side mandate reference when the
// request charges a stored instrument instead of raw payment-method data.
func (PaymentConfirm) resolveMandate(ctx context.Context, svc *Service, req *PaymentRequest, intent *payments.PaymentIntent) (*string, error) {
	if req.MandateID == nil {
		return nil, nil
	}
	mandate, err := svc.Mandates.FindByID(ctx, intent.MerchantID, *req.MandateID)
	if err != nil {
		return nil, err
	}
	if mandate.Status != payments.MandateActive {
		return nil, errors.NewValidationError("mandate_id", "mandate is not active")
	}
	ref := mandate.ConnectorMandateID
	return &ref, nil
}

func (PaymentConfirm) UpdateTracker(ctx context.Context, svc *Service, trk *Trackers, rd *connector.RouterData) (*Trackers, error) {
	return persistOutcome(ctx, svc, trk, rd, payments.AttemptAuthorizationFailed)
}

// PostUpdateTracker persists a mandate created by this authorization. It runs
// after the tracker pair is committed so a mandate write failure never
// corrupts payment state.
func (PaymentConfirm) PostUpdateTracker(ctx context.Context, svc *Service, trk *Trackers, rd *connector.RouterData) (*Trackers, error) {
	if rd.Error != nil || !trk.Intent.SetupFutureUsage {
		return trk, nil
	}
	resp, ok := rd.Response.(connector.PaymentsResponse)
	if !ok || resp.MandateReference == nil || trk.Intent.CustomerID == nil {
		return trk, nil
	}

	mandate := &payments.Mandate{
		ID:                  uuid.New(),
		MerchantID:          trk.Intent.MerchantID,
		CustomerID:          *trk.Intent.CustomerID,
		Connector:           derefOr(trk.Attempt.Connector, ""),
		MerchantConnectorID: derefOr(trk.Attempt.MerchantConnectorID, ""),
		ConnectorMandateID:  *resp.MandateReference,
		Status:              payments.MandateActive,
		CreatedAt:           trk.Attempt.UpdatedAt,
		UpdatedAt:           trk.Attempt.UpdatedAt,
	}
	if err := svc.Mandates.Insert(ctx, mandate); err != nil {
		svc.Logger.Error().Err(err).Str("payment_id", trk.Intent.ID.String()).Msg("mandate insert failed after authorization")
		return trk, nil
	}
	id := mandate.ID
	attempt, err := svc.Attempts.Update(ctx, trk.Attempt, payments.AttemptResponseUpdate{
		Status:    trk.Attempt.Status,
		MandateID: &id,
	}, svc.Scheme)
	if err != nil {
		return nil, err
	}
	trk.Attempt = attempt
	return trk, nil
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

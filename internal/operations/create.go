package operations

import (
	"context"

	"github.com/cassiomorais/switchboard/internal/connector"
	"github.com/cassiomorais/switchboard/internal/domain/errors"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
)

// PaymentCreate opens an intent. No connector is called; the intent waits in
// requires_payment_method or requires_confirmation until a confirm arrives.
type PaymentCreate struct{}

func (PaymentCreate) Name() string        { return "payment_create" }
func (PaymentCreate) Flow() connector.Flow { return connector.FlowAuthorize }

func (PaymentCreate) AllowedStatuses() []payments.IntentStatus {
	// Creation has no prior status; the guard sees the freshly built
	// intent, which is always one of the two initial statuses.
	return []payments.IntentStatus{
		payments.IntentRequiresPaymentMethod,
		payments.IntentRequiresConfirmation,
	}
}

func (PaymentCreate) ValidateRequest(req *PaymentRequest) error {
	if req.MerchantID == "" {
		return errors.NewValidationError("merchant_id", "cannot be empty")
	}
	return req.Amount.Validate()
}

func (PaymentCreate) GetTracker(ctx context.Context, svc *Service, req *PaymentRequest) (*Trackers, error) {
	intent, err := payments.NewPaymentIntent(req.MerchantID, req.Amount, req.CaptureMethod, req.PaymentMethod != nil, svc.SecretTTL)
	if err != nil {
		return nil, err
	}
	intent.Description = req.Description
	intent.ReturnURL = req.ReturnURL
	intent.CustomerID = req.CustomerID
	intent.SetupFutureUsage = req.SetupFutureUsage

	if err := svc.Intents.Insert(ctx, intent, svc.Scheme); err != nil {
		return nil, err
	}
	return &Trackers{Intent: intent}, nil
}

func (PaymentCreate) Domain(ctx context.Context, svc *Service, req *PaymentRequest, trk *Trackers) (*DomainResult, error) {
	return &DomainResult{SkipCall: true}, nil
}

func (PaymentCreate) UpdateTracker(ctx context.Context, svc *Service, trk *Trackers, rd *connector.RouterData) (*Trackers, error) {
	svc.appendEvent(ctx, "payment_intent", trk.Intent.ID, trk.Intent.MerchantID, "payment.created", map[string]any{
		"amount":   trk.Intent.Amount.ValueMinor,
		"currency": trk.Intent.Amount.Currency,
		"status":   string(trk.Intent.Status),
	})
	return trk, nil
}

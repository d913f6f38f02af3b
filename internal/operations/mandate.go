package operations

import (
	"context"

	"github.com/cassiomorais/switchboard/internal/connector"
	"github.com/cassiomorais/switchboard/internal/domain/errors"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
	"github.com/cassiomorais/switchboard/internal/routing"
	"github.com/google/uuid"
)

// MandateRequest is the inbound request for a zero-amount mandate setup.
type MandateRequest struct {
	MerchantID    string
	CustomerID    string
	PaymentMethod *connector.PaymentMethodData
	Currency      string
}

// SetupMandate runs the SetupMandate flow: a zero-amount verification that
// stores a connector-side token for future off-session charges.
type SetupMandate struct{}

func (SetupMandate) Name() string         { return "setup_mandate" }
func (SetupMandate) Flow() connector.Flow { return connector.FlowSetupMandate }

// Execute runs the setup end to end. Mandates have no intent tracker, so
// this does not go through the payment runner.
func (o SetupMandate) Execute(ctx context.Context, svc *Service, req *MandateRequest) (*payments.Mandate, error) {
	if req.MerchantID == "" {
		return nil, errors.NewValidationError("merchant_id", "cannot be empty")
	}
	if req.CustomerID == "" {
		return nil, errors.NewValidationError("customer_id", "cannot be empty")
	}
	if req.PaymentMethod == nil {
		return nil, errors.NewValidationError("payment_method", "cannot be empty")
	}

	callType, err := routing.Decide(nil, svc.Routing)
	if err != nil {
		return nil, err
	}
	callType, err = svc.resolveCandidates(callType, nil)
	if err != nil {
		return nil, err
	}
	primary := callType.Candidates[0]

	conn, err := svc.Registry.Get(primary.ConnectorName)
	if err != nil {
		return nil, err
	}
	if !conn.Capabilities().SupportsMandates {
		return nil, connector.NewNotSupported("mandates are not supported by " + conn.Name())
	}

	rd := &connector.RouterData{
		Flow:                connector.FlowSetupMandate,
		MerchantID:          req.MerchantID,
		MerchantConnectorID: primary.MerchantConnectorID,
		Auth:                primary.Auth,
		Request: connector.PaymentsRequest{
			Currency:         req.Currency,
			PaymentMethod:    req.PaymentMethod,
			CustomerID:       &req.CustomerID,
			SetupFutureUsage: true,
		},
	}

	out, err := svc.Dispatcher.Call(ctx, routing.Single(primary), rd)
	if err != nil {
		return nil, err
	}
	if out.Error != nil {
		return nil, errors.NewDomainError("MANDATE_SETUP_FAILED", out.Error.Message, nil)
	}
	resp, ok := out.Response.(connector.PaymentsResponse)
	if !ok || resp.MandateReference == nil {
		return nil, errors.NewDomainError("MANDATE_SETUP_FAILED", "connector returned no mandate reference", nil)
	}

	mandate := &payments.Mandate{
		ID:                  uuid.New(),
		MerchantID:          req.MerchantID,
		CustomerID:          req.CustomerID,
		Connector:           primary.ConnectorName,
		MerchantConnectorID: primary.MerchantConnectorID,
		ConnectorMandateID:  *resp.MandateReference,
		Status:              payments.MandateActive,
	}
	if err := svc.Mandates.Insert(ctx, mandate); err != nil {
		return nil, err
	}
	svc.appendEvent(ctx, "mandate", mandate.ID, mandate.MerchantID, "mandate.created", map[string]any{
		"customer_id": mandate.CustomerID,
		"connector":   mandate.Connector,
	})
	return mandate, nil
}

// RevokeMandate marks a stored mandate revoked. Connector-side revocation is
// out of band; the local status flip is what stops future off-session use.
func (s *Service) RevokeMandate(ctx context.Context, merchantID string, id uuid.UUID) error {
	mandate, err := s.Mandates.FindByID(ctx, merchantID, id)
	if err != nil {
		return err
	}
	if mandate.Status == payments.MandateRevoked {
		return nil
	}
	return s.Mandates.UpdateStatus(ctx, id, payments.MandateRevoked)
}

// Package stripe adapts the payment switch to the Stripe-style card API:
// JSON bodies, bearer-key auth, the full authorize/capture/void/refund
// matrix and signed webhooks.
package stripe

import (
	"github.com/cassiomorais/switchboard/internal/connector"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
)

const connectorName = "stripe"

// Connector is the stripe adapter. Stateless after construction; one
// instance serves all merchants.
type Connector struct {
	baseURL string
}

// New creates the stripe adapter against the configured API base URL.
func New(baseURL string) *Connector {
	return &Connector{baseURL: baseURL}
}

func (c *Connector) Name() string { return connectorName }

func (c *Connector) Capabilities() connector.Capability {
	return connector.Capability{
		DisplayName: "Stripe",
		Flows: []connector.Flow{
			connector.FlowAuthorize,
			connector.FlowCapture,
			connector.FlowVoid,
			connector.FlowPSync,
			connector.FlowExecuteRefund,
			connector.FlowRSync,
			connector.FlowSetupMandate,
			connector.FlowSession,
		},
		PaymentMethods: []connector.PaymentMethodType{
			connector.MethodCard,
			connector.MethodWallet,
			connector.MethodBankDebit,
		},
		CaptureMethods: []payments.CaptureMethod{
			payments.CaptureAutomatic,
			payments.CaptureManual,
		},
		SupportsRefunds:  true,
		SupportsMandates: true,
		SupportsWebhooks: true,
		WebhookEvents: []connector.WebhookEventType{
			connector.EventPaymentSuccess,
			connector.EventPaymentFailure,
			connector.EventPaymentProcessing,
			connector.EventActionRequired,
			connector.EventRefundSuccess,
			connector.EventRefundFailure,
			connector.EventMandateActive,
			connector.EventMandateRevoked,
		},
	}
}

func (c *Connector) Integration(flow connector.Flow) (connector.Integration, error) {
	switch flow {
	case connector.FlowAuthorize, connector.FlowCapture, connector.FlowVoid, connector.FlowPSync, connector.FlowSetupMandate:
		return &paymentsIntegration{baseURL: c.baseURL, flow: flow}, nil
	case connector.FlowExecuteRefund, connector.FlowRSync:
		return &refundsIntegration{baseURL: c.baseURL, flow: flow}, nil
	case connector.FlowSession:
		return &sessionIntegration{baseURL: c.baseURL}, nil
	}
	return nil, connector.NewFlowNotSupported(flow, connectorName)
}

func (c *Connector) Webhook() connector.IncomingWebhook {
	return &incomingWebhook{}
}

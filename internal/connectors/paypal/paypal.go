// Package paypal adapts the payment switch to the PayPal-style orders API:
// JSON bodies, a client-credentials token pre-step, and order-scoped
// capture/void/refund calls.
package paypal

import (
	"github.com/cassiomorais/switchboard/internal/connector"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
)

const connectorName = "paypal"

// Connector is the paypal adapter.
type Connector struct {
	baseURL string
}

// New creates the paypal adapter against the configured API base URL.
func New(baseURL string) *Connector {
	return &Connector{baseURL: baseURL}
}

func (c *Connector) Name() string { return connectorName }

func (c *Connector) Capabilities() connector.Capability {
	return connector.Capability{
		DisplayName: "PayPal",
		Flows: []connector.Flow{
			connector.FlowAccessTokenAuth,
			connector.FlowAuthorize,
			connector.FlowCapture,
			connector.FlowVoid,
			connector.FlowPSync,
			connector.FlowExecuteRefund,
			connector.FlowRSync,
		},
		PaymentMethods: []connector.PaymentMethodType{
			connector.MethodCard,
			connector.MethodWallet,
		},
		CaptureMethods: []payments.CaptureMethod{
			payments.CaptureAutomatic,
			payments.CaptureManual,
		},
		SupportsRefunds:  true,
		SupportsWebhooks: true,
		WebhookEvents: []connector.WebhookEventType{
			connector.EventPaymentSuccess,
			connector.EventPaymentFailure,
			connector.EventRefundSuccess,
			connector.EventRefundFailure,
		},
	}
}

func (c *Connector) Integration(flow connector.Flow) (connector.Integration, error) {
	switch flow {
	case connector.FlowAccessTokenAuth:
		return &accessTokenIntegration{baseURL: c.baseURL}, nil
	case connector.FlowAuthorize, connector.FlowCapture, connector.FlowVoid, connector.FlowPSync:
		return &ordersIntegration{baseURL: c.baseURL, flow: flow}, nil
	case connector.FlowExecuteRefund, connector.FlowRSync:
		return &refundsIntegration{baseURL: c.baseURL, flow: flow}, nil
	}
	return nil, connector.NewFlowNotSupported(flow, connectorName)
}

func (c *Connector) Webhook() connector.IncomingWebhook {
	return &incomingWebhook{}
}

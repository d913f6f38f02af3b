// Package wirepay adapts the payment switch to a legacy bank-transfer
// processor: form-encoded requests signed with a shared secret, an XML error
// envelope, and no void support once a transfer is submitted.
package wirepay

import (
	"github.com/cassiomorais/switchboard/internal/connector"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
)

const connectorName = "wirepay"

// Connector is the wirepay adapter.
type Connector struct {
	baseURL string
}

// New creates the wirepay adapter against the configured API base URL.
func New(baseURL string) *Connector {
	return &Connector{baseURL: baseURL}
}

func (c *Connector) Name() string { return connectorName }

func (c *Connector) Capabilities() connector.Capability {
	return connector.Capability{
		DisplayName: "WirePay",
		Flows: []connector.Flow{
			connector.FlowAuthorize,
			connector.FlowCapture,
			connector.FlowPSync,
			connector.FlowExecuteRefund,
			connector.FlowRSync,
			connector.FlowPayoutCreate,
		},
		PaymentMethods: []connector.PaymentMethodType{
			connector.MethodBankTransfer,
			connector.MethodBankDebit,
		},
		CaptureMethods: []payments.CaptureMethod{
			payments.CaptureAutomatic,
		},
		SupportsRefunds: true,
	}
}

func (c *Connector) Integration(flow connector.Flow) (connector.Integration, error) {
	switch flow {
	case connector.FlowAuthorize, connector.FlowCapture, connector.FlowPSync:
		return &transferIntegration{baseURL: c.baseURL, flow: flow}, nil
	case connector.FlowExecuteRefund, connector.FlowRSync:
		return &refundsIntegration{baseURL: c.baseURL, flow: flow}, nil
	case connector.FlowPayoutCreate:
		return &payoutIntegration{baseURL: c.baseURL}, nil
	}
	return nil, connector.NewFlowNotSupported(flow, connectorName)
}

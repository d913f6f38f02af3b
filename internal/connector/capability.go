package connector

import "github.com/cassiomorais/switchboard/internal/domain/payments"

// Capability is the static description each connector publishes. It is
// consumed by merchant-facing configuration surfaces and by the registry's
// startup completeness check, not by dispatch itself.
type Capability struct {
	DisplayName    string
	Flows          []Flow
	PaymentMethods []PaymentMethodType
	CaptureMethods []payments.CaptureMethod
	SupportsRefunds  bool
	SupportsMandates bool
	SupportsWebhooks bool
	WebhookEvents    []WebhookEventType
}

// SupportsFlow reports whether the capability matrix includes the flow.
func (c Capability) SupportsFlow(flow Flow) bool {
	for _, f := range c.Flows {
		if f == flow {
			return true
		}
	}
	return false
}

// SupportsPaymentMethod reports whether the connector carries the method.
func (c Capability) SupportsPaymentMethod(m PaymentMethodType) bool {
	for _, pm := range c.PaymentMethods {
		if pm == m {
			return true
		}
	}
	return false
}

// Connector is one external provider adapter. Adapters are stateless and
// read-only after construction; a single instance is shared across tasks.
type Connector interface {
	// Name is the registry key (lowercase, stable).
	Name() string

	// Capabilities returns the static capability description.
	Capabilities() Capability

	// Integration resolves the per-flow adapter. It returns a
	// FlowNotSupported error for flows outside the capability matrix;
	// for supported flows it must never return nil.
	Integration(flow Flow) (Integration, error)
}

// WebhookConnector is implemented by connectors that ingest webhooks.
type WebhookConnector interface {
	Connector
	Webhook() IncomingWebhook
}

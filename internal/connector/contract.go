package connector

import (
	"context"
	"encoding/json"

	"github.com/cassiomorais/switchboard/internal/connector/connhttp"
)

// Integration adapts one flow to one connector's wire protocol. Every method
// returns an error value; nothing across this boundary may panic.
type Integration interface {
	// Headers builds transport headers including auth. Fails with a
	// FailedToObtainAuthType error when the configured credential shape does
	// not match what the connector expects.
	Headers(ctx context.Context, rd *RouterData) ([][2]string, error)

	// URL constructs the endpoint from configuration plus request fields.
	// Fails with MissingRequiredField when a needed identifier is absent.
	URL(rd *RouterData) (string, error)

	// ContentType names the wire format this integration produces.
	ContentType() string

	// RequestBody maps the normalized request into the connector's format.
	// Must fail with NotImplemented for payment-method variants the
	// connector cannot carry, never silently drop data.
	RequestBody(rd *RouterData) (*connhttp.RequestContent, error)

	// BuildRequest composes headers, URL and body. A nil request with a nil
	// error means no network call is needed and the RouterData passes
	// through unchanged.
	BuildRequest(ctx context.Context, rd *RouterData) (*connhttp.Request, error)

	// HandleResponse deserializes the connector's success payload and
	// resolves rd with the normalized response and mapped status. Every
	// connector status variant must map explicitly; unknown values map to
	// the designated pending status, never to a terminal one.
	HandleResponse(rd *RouterData, resp *connhttp.Response) error

	// HandleErrorResponse parses the connector's error envelope into the
	// normalized ErrorResponse. Must not fail on unexpected shapes — it
	// falls back to a decoding-failed record carrying the raw body.
	HandleErrorResponse(resp *connhttp.Response) ErrorResponse
}

// ComposeRequest assembles a Request from an integration's parts. Most
// BuildRequest implementations delegate here; integrations with unusual wire
// shapes build by hand.
func ComposeRequest(ctx context.Context, i Integration, rd *RouterData, method string) (*connhttp.Request, error) {
	headers, err := i.Headers(ctx, rd)
	if err != nil {
		return nil, err
	}
	u, err := i.URL(rd)
	if err != nil {
		return nil, err
	}
	body, err := i.RequestBody(rd)
	if err != nil {
		return nil, err
	}
	return &connhttp.Request{
		Method:  method,
		URL:     u,
		Headers: headers,
		Content: body,
	}, nil
}

// ServerErrorHandler is implemented by integrations that can decode some 5xx
// bodies as business errors rather than opaque transport faults.
type ServerErrorHandler interface {
	Handle5xxErrorResponse(resp *connhttp.Response) ErrorResponse
}

// NoRequestIntegration is the explicit "no network call needed" marker for a
// flow a connector supports without a wire round-trip (e.g. AccessTokenAuth
// for connectors with no token step). Registering it is an opt-in; absence of
// any integration for a declared-supported flow is a capability-matrix bug.
type NoRequestIntegration struct{}

func (NoRequestIntegration) Headers(context.Context, *RouterData) ([][2]string, error) {
	return nil, nil
}
func (NoRequestIntegration) URL(*RouterData) (string, error) { return "", nil }
func (NoRequestIntegration) ContentType() string             { return connhttp.ContentTypeJSON }
func (NoRequestIntegration) RequestBody(*RouterData) (*connhttp.RequestContent, error) {
	return nil, nil
}
func (NoRequestIntegration) BuildRequest(context.Context, *RouterData) (*connhttp.Request, error) {
	return nil, nil
}
func (NoRequestIntegration) HandleResponse(*RouterData, *connhttp.Response) error { return nil }
func (NoRequestIntegration) HandleErrorResponse(resp *connhttp.Response) ErrorResponse {
	return ErrorResponse{
		Kind:       KindBusiness,
		StatusCode: resp.StatusCode,
		Code:       CodeNoErrorCode,
		Message:    CodeNoErrorMessage,
		RawBody:    resp.Body,
	}
}

// WebhookEventType is the normalized event vocabulary.
type WebhookEventType string

const (
	EventPaymentSuccess    WebhookEventType = "payment_intent_success"
	EventPaymentFailure    WebhookEventType = "payment_intent_failure"
	EventPaymentProcessing WebhookEventType = "payment_intent_processing"
	EventActionRequired    WebhookEventType = "payment_action_required"
	EventRefundSuccess     WebhookEventType = "refund_success"
	EventRefundFailure     WebhookEventType = "refund_failure"
	EventMandateActive     WebhookEventType = "mandate_active"
	EventMandateRevoked    WebhookEventType = "mandate_revoked"
	EventNotSupported      WebhookEventType = "event_not_supported"
)

// ObjectReferenceKind names what a webhook event refers to.
type ObjectReferenceKind string

const (
	RefPayment ObjectReferenceKind = "payment"
	RefRefund  ObjectReferenceKind = "refund"
	RefMandate ObjectReferenceKind = "mandate"
)

// ObjectReference is the id a webhook event points at, in the connector's
// own vocabulary (a connector transaction id, refund id or mandate id).
type ObjectReference struct {
	Kind ObjectReferenceKind
	ID   string
}

// WebhookAck is the connector-specific synchronous reply to the provider.
type WebhookAck struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IncomingWebhook is the per-connector webhook ingestion capability.
// Verification must fail closed: unverifiable means reject.
type IncomingWebhook interface {
	// VerifySource checks the provider signature against the merchant
	// secret. Returning false or an error both reject the delivery.
	VerifySource(ctx context.Context, secret []byte, headers map[string][]string, body []byte) (bool, error)

	// ObjectReferenceID extracts the payment/refund/mandate reference the
	// event refers to.
	ObjectReferenceID(body []byte) (ObjectReference, error)

	// EventType maps the provider's event vocabulary onto the normalized
	// enum. Unmapped provider statuses map to EventNotSupported, never to a
	// default success or failure.
	EventType(body []byte) (WebhookEventType, error)

	// ResourceObject returns the payload persisted for idempotent replay.
	ResourceObject(body []byte) (json.RawMessage, error)

	// Ack renders the synchronous HTTP reply the provider expects.
	Ack(accepted bool) WebhookAck
}

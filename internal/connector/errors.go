package connector

import (
	"fmt"

	"github.com/cassiomorais/switchboard/internal/domain/payments"
)

// ErrorKind classifies every failure that can come out of a connector call.
// The kind is the single declared policy for routing and surfacing decisions:
// only KindTransport advances a Retryable candidate list, and only
// KindTransport surfaces as 5xx to the merchant.
type ErrorKind string

const (
	// KindConfiguration: caller-caused setup problems (bad credentials,
	// missing required fields). Surfaced as 4xx, never retried.
	KindConfiguration ErrorKind = "configuration"
	// KindCapability: the connector/flow/payment-method combination is out of
	// scope. Surfaced as a clear "unsupported" 4xx.
	KindCapability ErrorKind = "capability"
	// KindTransport: timeout, connection failure, or a 5xx without a
	// decodable body. The only kind that advances a Retryable list.
	KindTransport ErrorKind = "transport"
	// KindBusiness: a decoded connector error envelope (decline, validation
	// failure). Never retried; code/message preserved verbatim.
	KindBusiness ErrorKind = "business"
	// KindState: the caller attempted an illegal transition.
	KindState ErrorKind = "state"
	// KindWebhook: webhook verification or decoding failure. Always rejected.
	KindWebhook ErrorKind = "webhook"
)

// Error codes shared across all connectors.
const (
	CodeFailedToObtainAuthType = "FAILED_TO_OBTAIN_AUTH_TYPE"
	CodeInvalidConnectorConfig = "INVALID_CONNECTOR_CONFIG"
	CodeMissingRequiredField   = "MISSING_REQUIRED_FIELD"
	CodeNotImplemented         = "NOT_IMPLEMENTED"
	CodeNotSupported           = "NOT_SUPPORTED"
	CodeFlowNotSupported       = "FLOW_NOT_SUPPORTED"
	CodeRequestTimeout         = "REQUEST_TIMEOUT"
	CodeConnectionFailure      = "CONNECTION_FAILURE"
	CodeResponseDecodingFailed = "RESPONSE_DECODING_FAILED"
	CodeProcessingError        = "PROCESSING_ERROR"
	CodeCircuitOpen            = "CIRCUIT_OPEN"
	CodeNoErrorCode            = "NO_ERROR_CODE"
	CodeNoErrorMessage         = "NO_ERROR_MESSAGE"
)

// Error is a structured failure produced inside the adapter boundary. It is
// always carried as a value in a Result-style return, never panicked.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %s", e.Code, e.Kind, e.Message)
}

// NewFailedToObtainAuthType reports a credential-shape mismatch.
func NewFailedToObtainAuthType(want, got AuthKind) *Error {
	return &Error{
		Kind:    KindConfiguration,
		Code:    CodeFailedToObtainAuthType,
		Message: fmt.Sprintf("connector expects %s credentials, merchant configured %s", want, got),
	}
}

// NewInvalidConnectorConfig reports a malformed connector account config.
func NewInvalidConnectorConfig(detail string) *Error {
	return &Error{Kind: KindConfiguration, Code: CodeInvalidConnectorConfig, Message: detail}
}

// NewMissingRequiredField reports an absent request field the connector needs.
func NewMissingRequiredField(field string) *Error {
	return &Error{
		Kind:    KindConfiguration,
		Code:    CodeMissingRequiredField,
		Message: fmt.Sprintf("missing required field %q", field),
	}
}

// NewNotImplemented reports a payment-method gap for an otherwise supported flow.
func NewNotImplemented(detail string) *Error {
	return &Error{Kind: KindCapability, Code: CodeNotImplemented, Message: detail}
}

// NewNotSupported reports a business-rule gap (e.g. "ACH payouts unsupported").
func NewNotSupported(detail string) *Error {
	return &Error{Kind: KindCapability, Code: CodeNotSupported, Message: detail}
}

// NewFlowNotSupported reports that the capability matrix excludes the flow
// for this connector entirely.
func NewFlowNotSupported(flow Flow, connectorName string) *Error {
	return &Error{
		Kind:    KindCapability,
		Code:    CodeFlowNotSupported,
		Message: fmt.Sprintf("flow %s is not supported by connector %s", flow, connectorName),
	}
}

// IsFlowNotSupported reports whether err is a FlowNotSupported error.
func IsFlowNotSupported(err error) bool {
	ce, ok := err.(*Error)
	return ok && ce.Code == CodeFlowNotSupported
}

// ErrorResponse is the normalized failure record attached to RouterData on any
// connector-side failure. It is the only channel through which connector
// failures reach the operation pipeline.
type ErrorResponse struct {
	Kind          ErrorKind
	StatusCode    int
	Code          string
	Message       string
	Reason        *string
	AttemptStatus *payments.AttemptStatus
	// RawBody keeps the undecodable payload for observability.
	RawBody []byte
}

// ShouldAdvance reports whether this failure permits trying the next
// candidate in a Retryable list. Business declines, configuration and
// capability errors must never advance (a decline retried against another
// connector is a correctness problem, not a resiliency one).
func (e *ErrorResponse) ShouldAdvance() bool {
	return e.Kind == KindTransport
}

// FailedAttemptStatus returns the attempt status to persist for this failure,
// falling back when the connector did not indicate one.
func (e *ErrorResponse) FailedAttemptStatus(fallback payments.AttemptStatus) payments.AttemptStatus {
	if e.AttemptStatus != nil {
		return *e.AttemptStatus
	}
	return fallback
}

// ErrorResponseFrom converts an adapter-boundary error into the normalized
// record. Unknown error values are classified as business processing errors
// so nothing below the pipeline ever sees an unclassified fault.
func ErrorResponseFrom(err error) ErrorResponse {
	if ce, ok := err.(*Error); ok {
		return ErrorResponse{
			Kind:    ce.Kind,
			Code:    ce.Code,
			Message: ce.Message,
		}
	}
	return ErrorResponse{
		Kind:    KindBusiness,
		Code:    CodeProcessingError,
		Message: err.Error(),
	}
}

package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Tracker errors
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrAttemptNotFound        = errors.New("payment attempt not found")
	ErrRefundNotFound         = errors.New("refund not found")
	ErrMandateNotFound        = errors.New("mandate not found")
	ErrUniqueViolation        = errors.New("unique constraint violation")
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// Dispatch errors
	ErrConnectorNotFound    = errors.New("connector not found")
	ErrConnectorUnavailable = errors.New("connector unavailable")

	// Caller errors
	ErrClientSecretInvalid     = errors.New("client secret invalid")
	ErrClientSecretExpired     = errors.New("client secret expired")
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrForbidden               = errors.New("forbidden")

	// Webhook errors
	ErrWebhookSourceVerificationFailed = errors.New("webhook source verification failed")
	ErrWebhookBodyDecodingFailed       = errors.New("webhook body decoding failed")
	ErrWebhookEventNotSupported        = errors.New("webhook event not supported")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// UnexpectedStateError is returned when an operation runs against a payment
// whose current intent status is outside the operation's allowed set.
type UnexpectedStateError struct {
	CurrentFlow  string
	CurrentValue string
	Allowed      []string
}

func (e *UnexpectedStateError) Error() string {
	return fmt.Sprintf(
		"%s is not allowed while payment status is %q (allowed: %s)",
		e.CurrentFlow, e.CurrentValue, strings.Join(e.Allowed, ", "),
	)
}

func (e *UnexpectedStateError) Unwrap() error {
	return ErrInvalidStateTransition
}

// NewUnexpectedState builds an UnexpectedStateError for an operation guard violation.
func NewUnexpectedState(flow, current string, allowed []string) *UnexpectedStateError {
	return &UnexpectedStateError{CurrentFlow: flow, CurrentValue: current, Allowed: allowed}
}

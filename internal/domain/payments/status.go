package payments

import "fmt"

// IntentStatus is the lifecycle status of a PaymentIntent.
type IntentStatus string

const (
	IntentRequiresPaymentMethod           IntentStatus = "requires_payment_method"
	IntentRequiresConfirmation            IntentStatus = "requires_confirmation"
	IntentRequiresCapture                 IntentStatus = "requires_capture"
	IntentProcessing                      IntentStatus = "processing"
	IntentRequiresCustomerAction          IntentStatus = "requires_customer_action"
	IntentRequiresMerchantAction          IntentStatus = "requires_merchant_action"
	IntentSucceeded                       IntentStatus = "succeeded"
	IntentFailed                          IntentStatus = "failed"
	IntentCancelled                       IntentStatus = "cancelled"
	IntentPartiallyCaptured               IntentStatus = "partially_captured"
	IntentPartiallyCapturedAndCapturable  IntentStatus = "partially_captured_and_capturable"
)

// AllIntentStatuses lists every intent status, used by guard-matrix checks.
var AllIntentStatuses = []IntentStatus{
	IntentRequiresPaymentMethod,
	IntentRequiresConfirmation,
	IntentRequiresCapture,
	IntentProcessing,
	IntentRequiresCustomerAction,
	IntentRequiresMerchantAction,
	IntentSucceeded,
	IntentFailed,
	IntentCancelled,
	IntentPartiallyCaptured,
	IntentPartiallyCapturedAndCapturable,
}

// IsTerminal reports whether no further operation may transition out of the status.
func (s IntentStatus) IsTerminal() bool {
	switch s {
	case IntentSucceeded, IntentFailed, IntentCancelled:
		return true
	}
	return false
}

// AttemptStatus is the status of a single connector call attempt.
type AttemptStatus string

const (
	AttemptStarted                  AttemptStatus = "started"
	AttemptAuthenticationPending    AttemptStatus = "authentication_pending"
	AttemptAuthenticationSuccessful AttemptStatus = "authentication_successful"
	AttemptAuthenticationFailed     AttemptStatus = "authentication_failed"
	AttemptAuthorizing              AttemptStatus = "authorizing"
	AttemptAuthorized               AttemptStatus = "authorized"
	AttemptAuthorizationFailed      AttemptStatus = "authorization_failed"
	AttemptCharged                  AttemptStatus = "charged"
	AttemptPartialCharged           AttemptStatus = "partial_charged"
	AttemptPending                  AttemptStatus = "pending"
	AttemptFailure                  AttemptStatus = "failure"
	AttemptVoided                   AttemptStatus = "voided"
	AttemptVoidFailed               AttemptStatus = "void_failed"
	AttemptAutoRefunded             AttemptStatus = "auto_refunded"
	AttemptCaptureFailed            AttemptStatus = "capture_failed"
	AttemptPaymentMethodAwaited     AttemptStatus = "payment_method_awaited"
	AttemptConfirmationAwaited      AttemptStatus = "confirmation_awaited"
	AttemptDeviceDataCollectionPending AttemptStatus = "device_data_collection_pending"
)

// IsTerminal reports whether the attempt reached a final state.
func (s AttemptStatus) IsTerminal() bool {
	switch s {
	case AttemptCharged, AttemptFailure, AttemptVoided, AttemptAuthorizationFailed,
		AttemptCaptureFailed, AttemptAutoRefunded, AttemptAuthenticationFailed:
		return true
	}
	return false
}

// RefundStatus is the status of a refund against a charged attempt.
type RefundStatus string

const (
	RefundPending       RefundStatus = "pending"
	RefundSuccess       RefundStatus = "success"
	RefundFailure       RefundStatus = "failure"
	RefundManualReview  RefundStatus = "manual_review"
	RefundTransactionFailure RefundStatus = "transaction_failure"
)

// IsTerminal reports whether the refund reached a final state.
func (s RefundStatus) IsTerminal() bool {
	return s == RefundSuccess || s == RefundFailure || s == RefundTransactionFailure
}

// CaptureMethod controls whether authorization and capture are a single step.
type CaptureMethod string

const (
	CaptureAutomatic CaptureMethod = "automatic"
	CaptureManual    CaptureMethod = "manual"
)

// IntentStatusFor derives the intent status implied by an attempt status under
// the given capture method. This is the single place the pair is computed so
// UpdateTracker cannot persist mismatched combinations.
func IntentStatusFor(attempt AttemptStatus, capture CaptureMethod) IntentStatus {
	switch attempt {
	case AttemptCharged, AttemptAutoRefunded:
		return IntentSucceeded
	case AttemptPartialCharged:
		return IntentPartiallyCaptured
	case AttemptAuthorized:
		if capture == CaptureManual {
			return IntentRequiresCapture
		}
		return IntentProcessing
	case AttemptAuthorizing, AttemptPending, AttemptStarted:
		return IntentProcessing
	case AttemptAuthenticationPending, AttemptDeviceDataCollectionPending:
		return IntentRequiresCustomerAction
	case AttemptAuthenticationSuccessful, AttemptConfirmationAwaited:
		return IntentRequiresConfirmation
	case AttemptPaymentMethodAwaited:
		return IntentRequiresPaymentMethod
	case AttemptVoided:
		return IntentCancelled
	case AttemptFailure, AttemptAuthorizationFailed, AttemptAuthenticationFailed, AttemptCaptureFailed:
		return IntentFailed
	case AttemptVoidFailed:
		// Void failed leaves the authorization standing.
		return IntentRequiresCapture
	}
	return IntentProcessing
}

// ValidateStatusPair rejects intent/attempt combinations that must never be
// persisted together (e.g. a succeeded intent with a pending attempt).
func ValidateStatusPair(intent IntentStatus, attempt AttemptStatus) error {
	switch intent {
	case IntentSucceeded:
		if attempt != AttemptCharged && attempt != AttemptPartialCharged && attempt != AttemptAutoRefunded {
			return fmt.Errorf("intent status %q is inconsistent with attempt status %q", intent, attempt)
		}
	case IntentFailed:
		if !attempt.IsTerminal() || attempt == AttemptCharged || attempt == AttemptVoided {
			return fmt.Errorf("intent status %q is inconsistent with attempt status %q", intent, attempt)
		}
	case IntentCancelled:
		if attempt != AttemptVoided {
			return fmt.Errorf("intent status %q is inconsistent with attempt status %q", intent, attempt)
		}
	}
	return nil
}

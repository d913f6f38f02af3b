package payments_test

import (
	"testing"

	"github.com/cassiomorais/switchboard/internal/domain/payments"
	"github.com/stretchr/testify/assert"
)

func TestIntentStatusFor(t *testing.T) {
	cases := []struct {
		name    string
		attempt payments.AttemptStatus
		capture payments.CaptureMethod
		want    payments.IntentStatus
	}{
		{"charged", payments.AttemptCharged, payments.CaptureAutomatic, payments.IntentSucceeded},
		{"auto refunded", payments.AttemptAutoRefunded, payments.CaptureAutomatic, payments.IntentSucceeded},
		{"partial charge", payments.AttemptPartialCharged, payments.CaptureAutomatic, payments.IntentPartiallyCaptured},
		{"authorized under manual capture", payments.AttemptAuthorized, payments.CaptureManual, payments.IntentRequiresCapture},
		{"authorized under automatic capture", payments.AttemptAuthorized, payments.CaptureAutomatic, payments.IntentProcessing},
		{"authorizing", payments.AttemptAuthorizing, payments.CaptureAutomatic, payments.IntentProcessing},
		{"authentication pending", payments.AttemptAuthenticationPending, payments.CaptureAutomatic, payments.IntentRequiresCustomerAction},
		{"authentication successful", payments.AttemptAuthenticationSuccessful, payments.CaptureAutomatic, payments.IntentRequiresConfirmation},
		{"payment method awaited", payments.AttemptPaymentMethodAwaited, payments.CaptureAutomatic, payments.IntentRequiresPaymentMethod},
		{"voided", payments.AttemptVoided, payments.CaptureManual, payments.IntentCancelled},
		{"declined", payments.AttemptAuthorizationFailed, payments.CaptureAutomatic, payments.IntentFailed},
		{"capture failed", payments.AttemptCaptureFailed, payments.CaptureManual, payments.IntentFailed},
		{"void failed keeps authorization standing", payments.AttemptVoidFailed, payments.CaptureManual, payments.IntentRequiresCapture},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, payments.IntentStatusFor(tc.attempt, tc.capture))
		})
	}
}

func TestValidateStatusPair(t *testing.T) {
	valid := []struct {
		intent  payments.IntentStatus
		attempt payments.AttemptStatus
	}{
		{payments.IntentSucceeded, payments.AttemptCharged},
		{payments.IntentSucceeded, payments.AttemptPartialCharged},
		{payments.IntentFailed, payments.AttemptAuthorizationFailed},
		{payments.IntentFailed, payments.AttemptFailure},
		{payments.IntentCancelled, payments.AttemptVoided},
		{payments.IntentProcessing, payments.AttemptPending},
		{payments.IntentRequiresCapture, payments.AttemptAuthorized},
	}
	for _, tc := range valid {
		assert.NoError(t, payments.ValidateStatusPair(tc.intent, tc.attempt), "%s/%s", tc.intent, tc.attempt)
	}

	invalid := []struct {
		intent  payments.IntentStatus
		attempt payments.AttemptStatus
	}{
		{payments.IntentSucceeded, payments.AttemptPending},
		{payments.IntentSucceeded, payments.AttemptAuthorizationFailed},
		{payments.IntentFailed, payments.AttemptCharged},
		{payments.IntentFailed, payments.AttemptPending},
		{payments.IntentFailed, payments.AttemptVoided},
		{payments.IntentCancelled, payments.AttemptCharged},
	}
	for _, tc := range invalid {
		assert.Error(t, payments.ValidateStatusPair(tc.intent, tc.attempt), "%s/%s", tc.intent, tc.attempt)
	}
}

func TestStatusTerminality(t *testing.T) {
	assert.True(t, payments.IntentSucceeded.IsTerminal())
	assert.True(t, payments.IntentFailed.IsTerminal())
	assert.True(t, payments.IntentCancelled.IsTerminal())
	assert.False(t, payments.IntentProcessing.IsTerminal())
	assert.False(t, payments.IntentRequiresCapture.IsTerminal())

	assert.True(t, payments.AttemptCharged.IsTerminal())
	assert.True(t, payments.AttemptVoided.IsTerminal())
	assert.False(t, payments.AttemptAuthorized.IsTerminal())
	assert.False(t, payments.AttemptPending.IsTerminal())

	assert.True(t, payments.RefundSuccess.IsTerminal())
	assert.True(t, payments.RefundFailure.IsTerminal())
	assert.False(t, payments.RefundPending.IsTerminal())
	assert.False(t, payments.RefundManualReview.IsTerminal())
}

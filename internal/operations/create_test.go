package operations_test

import (
	"context"
	"testing"

	"github.com/cassiomorais/switchboard/internal/domain/payments"
	"github.com/cassiomorais/switchboard/internal/operations"
	"github.com/cassiomorais/switchboard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentCreate_WithoutPaymentMethod(t *testing.T) {
	env := newEnv()
	trk, err := operations.Run(context.Background(), env.Service, operations.PaymentCreate{}, &operations.PaymentRequest{
		MerchantID: testutil.TestMerchant,
		Amount:     payments.Amount{ValueMinor: 2500, Currency: "USD"},
	})
	require.NoError(t, err)

	assert.Equal(t, payments.IntentRequiresPaymentMethod, trk.Intent.Status)
	assert.NotEmpty(t, trk.Intent.ClientSecret)
	assert.Zero(t, env.Dispatcher.Calls())

	stored := env.Intents.Get(trk.Intent.ID)
	require.NotNil(t, stored)
	assert.Equal(t, int64(2500), stored.Amount.ValueMinor)
	assert.Equal(t, []string{"payment.created"}, env.Outbox.EventTypes())
}

func TestPaymentCreate_WithPaymentMethod(t *testing.T) {
	env := newEnv()
	trk, err := operations.Run(context.Background(), env.Service, operations.PaymentCreate{}, &operations.PaymentRequest{
		MerchantID:    testutil.TestMerchant,
		Amount:        payments.Amount{ValueMinor: 2500, Currency: "USD"},
		PaymentMethod: cardMethod(),
		CaptureMethod: payments.CaptureManual,
	})
	require.NoError(t, err)

	assert.Equal(t, payments.IntentRequiresConfirmation, trk.Intent.Status)
	assert.Equal(t, payments.CaptureManual, trk.Intent.CaptureMethod)
}

func TestPaymentCreate_InvalidAmount(t *testing.T) {
	env := newEnv()
	cases := []payments.Amount{
		{ValueMinor: 0, Currency: "USD"},
		{ValueMinor: -100, Currency: "USD"},
		{ValueMinor: 100, Currency: ""},
		{ValueMinor: 100, Currency: "USDT"},
	}
	for _, amount := range cases {
		_, err := operations.Run(context.Background(), env.Service, operations.PaymentCreate{}, &operations.PaymentRequest{
			MerchantID: testutil.TestMerchant,
			Amount:     amount,
		})
		assert.Error(t, err, "amount %+v", amount)
	}
	assert.Empty(t, env.Outbox.EventTypes())
}

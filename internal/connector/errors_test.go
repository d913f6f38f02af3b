package connector_test

import (
	"errors"
	"testing"

	"github.com/cassiomorais/switchboard/internal/connector"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
	"github.com/stretchr/testify/assert"
)

func TestRouterData_FailIsExactlyOnce(t *testing.T) {
	rd := &connector.RouterData{Flow: connector.FlowAuthorize}

	rd.Fail(connector.ErrorResponse{Kind: connector.KindBusiness, Code: "card_declined"})
	rd.Fail(connector.ErrorResponse{Kind: connector.KindTransport, Code: connector.CodeConnectionFailure})

	assert.False(t, rd.Succeeded())
	assert.Equal(t, "card_declined", rd.Error.Code)
}

func TestRouterData_ResolveAfterFailIsIgnored(t *testing.T) {
	rd := &connector.RouterData{Flow: connector.FlowAuthorize}

	rd.Fail(connector.ErrorResponse{Kind: connector.KindTransport, Code: connector.CodeRequestTimeout})
	rd.Resolve(connector.PaymentsResponse{ResourceID: "pi_123"})

	assert.False(t, rd.Succeeded())
	assert.Nil(t, rd.Response)
}

func TestRouterData_FailAfterResolveIsIgnored(t *testing.T) {
	rd := &connector.RouterData{Flow: connector.FlowAuthorize}

	rd.Resolve(connector.PaymentsResponse{ResourceID: "pi_123"})
	rd.Fail(connector.ErrorResponse{Kind: connector.KindBusiness, Code: "late_failure"})

	assert.True(t, rd.Succeeded())
	resp, ok := rd.Response.(connector.PaymentsResponse)
	assert.True(t, ok)
	assert.Equal(t, "pi_123", resp.ResourceID)
}

func TestErrorResponse_ShouldAdvance(t *testing.T) {
	cases := []struct {
		kind    connector.ErrorKind
		advance bool
	}{
		{connector.KindTransport, true},
		{connector.KindBusiness, false},
		{connector.KindConfiguration, false},
		{connector.KindCapability, false},
		{connector.KindState, false},
		{connector.KindWebhook, false},
	}
	for _, tc := range cases {
		e := &connector.ErrorResponse{Kind: tc.kind}
		assert.Equal(t, tc.advance, e.ShouldAdvance(), "kind %s", tc.kind)
	}
}

func TestErrorResponse_FailedAttemptStatus(t *testing.T) {
	declined := payments.AttemptAuthorizationFailed
	e := &connector.ErrorResponse{AttemptStatus: &declined}
	assert.Equal(t, payments.AttemptAuthorizationFailed, e.FailedAttemptStatus(payments.AttemptFailure))

	e = &connector.ErrorResponse{}
	assert.Equal(t, payments.AttemptFailure, e.FailedAttemptStatus(payments.AttemptFailure))
}

func TestErrorResponseFrom(t *testing.T) {
	t.Run("adapter error keeps kind and code", func(t *testing.T) {
		er := connector.ErrorResponseFrom(connector.NewMissingRequiredField("payment_method"))
		assert.Equal(t, connector.KindConfiguration, er.Kind)
		assert.Equal(t, connector.CodeMissingRequiredField, er.Code)
	})

	t.Run("unknown error becomes business processing error", func(t *testing.T) {
		er := connector.ErrorResponseFrom(errors.New("boom"))
		assert.Equal(t, connector.KindBusiness, er.Kind)
		assert.Equal(t, connector.CodeProcessingError, er.Code)
		assert.Equal(t, "boom", er.Message)
	})
}

func TestIsFlowNotSupported(t *testing.T) {
	assert.True(t, connector.IsFlowNotSupported(connector.NewFlowNotSupported(connector.FlowVoid, "stubpay")))
	assert.False(t, connector.IsFlowNotSupported(connector.NewNotImplemented("card payouts")))
	assert.False(t, connector.IsFlowNotSupported(errors.New("plain")))
}

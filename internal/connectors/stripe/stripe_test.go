package stripe_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cassiomorais/switchboard/internal/connector"
	"github.com/cassiomorais/switchboard/internal/connector/connhttp"
	"github.com/cassiomorais/switchboard/internal/connectors/stripe"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "https://api.stripe.test"

func authorizeRD(t *testing.T) *connector.RouterData {
	t.Helper()
	return &connector.RouterData{
		Flow:       connector.FlowAuthorize,
		MerchantID: "merchant_test",
		PaymentID:  uuid.New(),
		AttemptID:  uuid.New(),
		Auth:       connector.AuthType{Kind: connector.AuthHeaderKey, APIKey: "sk_test_123"},
		Request: connector.PaymentsRequest{
			AmountMinor:   1000,
			Currency:      "USD",
			CaptureMethod: payments.CaptureAutomatic,
			PaymentMethod: &connector.PaymentMethodData{
				Type: connector.MethodCard,
				Card: &connector.CardData{Number: "4242424242424242", ExpMonth: "12", ExpYear: "2030", CVC: "123"},
			},
		},
	}
}

func integrationFor(t *testing.T, flow connector.Flow) connector.Integration {
	t.Helper()
	integ, err := stripe.New(baseURL).Integration(flow)
	require.NoError(t, err)
	return integ
}

func TestAuthorize_BuildRequest(t *testing.T) {
	rd := authorizeRD(t)
	req, err := integrationFor(t, connector.FlowAuthorize).BuildRequest(context.Background(), rd)
	require.NoError(t, err)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, baseURL+"/v1/payment_intents", req.URL)

	headers := map[string]string{}
	for _, h := range req.Headers {
		headers[h[0]] = h[1]
	}
	assert.Equal(t, "Bearer sk_test_123", headers["Authorization"])
	assert.Equal(t, rd.AttemptID.String(), headers["Idempotency-Key"])

	raw, err := json.Marshal(req.Content.JSON)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, float64(1000), body["amount"])
	assert.Equal(t, "USD", body["currency"])
	assert.Equal(t, true, body["confirm"])
	pm := body["payment_method_data"].(map[string]any)
	assert.Equal(t, "card", pm["type"])
}

func TestAuthorize_WrongAuthKindRejected(t *testing.T) {
	rd := authorizeRD(t)
	rd.Auth = connector.AuthType{Kind: connector.AuthBodyKey, APIKey: "id", Key1: "secret"}

	_, err := integrationFor(t, connector.FlowAuthorize).BuildRequest(context.Background(), rd)
	require.Error(t, err)
	var cerr *connector.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, connector.CodeFailedToObtainAuthType, cerr.Code)
}

func TestAuthorize_MissingPaymentMethodRejected(t *testing.T) {
	rd := authorizeRD(t)
	rd.Request = connector.PaymentsRequest{AmountMinor: 1000, Currency: "USD"}

	_, err := integrationFor(t, connector.FlowAuthorize).BuildRequest(context.Background(), rd)
	var cerr *connector.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, connector.CodeMissingRequiredField, cerr.Code)
}

func TestAuthorize_MandateOnlyRequestAllowed(t *testing.T) {
	rd := authorizeRD(t)
	ref := "mandate_1"
	rd.Request = connector.PaymentsRequest{AmountMinor: 1000, Currency: "USD", MandateReference: &ref, OffSession: true}

	req, err := integrationFor(t, connector.FlowAuthorize).BuildRequest(context.Background(), rd)
	require.NoError(t, err)
	raw, _ := json.Marshal(req.Content.JSON)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "mandate_1", body["mandate"])
	assert.Equal(t, true, body["off_session"])
}

func TestHandleResponse_StatusMapping(t *testing.T) {
	cases := []struct {
		stripeStatus string
		want         payments.AttemptStatus
	}{
		{"succeeded", payments.AttemptCharged},
		{"requires_capture", payments.AttemptAuthorized},
		{"requires_action", payments.AttemptAuthenticationPending},
		{"processing", payments.AttemptPending},
		{"requires_payment_method", payments.AttemptPaymentMethodAwaited},
		{"requires_confirmation", payments.AttemptConfirmationAwaited},
		{"canceled", payments.AttemptVoided},
		{"some_future_status", payments.AttemptPending},
	}
	for _, tc := range cases {
		t.Run(tc.stripeStatus, func(t *testing.T) {
			rd := authorizeRD(t)
			body := []byte(`{"id":"pi_1","status":"` + tc.stripeStatus + `"}`)
			err := integrationFor(t, connector.FlowAuthorize).HandleResponse(rd, &connhttp.Response{StatusCode: 200, Body: body})
			require.NoError(t, err)
			assert.Equal(t, tc.want, rd.Status)
			resp := rd.Response.(connector.PaymentsResponse)
			assert.Equal(t, "pi_1", resp.ConnectorTransactionID)
		})
	}
}

func TestHandleErrorResponse_CardDecline(t *testing.T) {
	body := []byte(`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined.","decline_code":"insufficient_funds"}}`)
	er := integrationFor(t, connector.FlowAuthorize).HandleErrorResponse(&connhttp.Response{StatusCode: 402, Body: body})

	assert.Equal(t, connector.KindBusiness, er.Kind)
	assert.Equal(t, "card_declined", er.Code)
	assert.Equal(t, "Your card was declined.", er.Message)
	require.NotNil(t, er.Reason)
	assert.Equal(t, "insufficient_funds", *er.Reason)
	require.NotNil(t, er.AttemptStatus)
	assert.Equal(t, payments.AttemptAuthorizationFailed, *er.AttemptStatus)
}

func TestHandleErrorResponse_UnreadableBodyKeepsRaw(t *testing.T) {
	body := []byte("<html>gateway error</html>")
	er := integrationFor(t, connector.FlowAuthorize).HandleErrorResponse(&connhttp.Response{StatusCode: 400, Body: body})

	assert.Equal(t, connector.CodeNoErrorCode, er.Code)
	assert.Equal(t, body, er.RawBody)
}

func TestHandle5xx_DecodableEnvelopeIsBusiness(t *testing.T) {
	integ := integrationFor(t, connector.FlowAuthorize)
	h, ok := integ.(connector.ServerErrorHandler)
	require.True(t, ok)

	body := []byte(`{"error":{"type":"api_error","message":"Something went wrong on our end."}}`)
	er := h.Handle5xxErrorResponse(&connhttp.Response{StatusCode: 500, Body: body})
	assert.Equal(t, connector.KindBusiness, er.Kind)
	assert.Equal(t, "api_error", er.Code)

	er = h.Handle5xxErrorResponse(&connhttp.Response{StatusCode: 502, Body: []byte("bad gateway")})
	assert.Equal(t, connector.KindTransport, er.Kind)
	assert.Equal(t, connector.CodeConnectionFailure, er.Code)
}

func TestCapture_URLAndBody(t *testing.T) {
	rd := authorizeRD(t)
	rd.Flow = connector.FlowCapture
	txn := "pi_1"
	rd.Request = connector.PaymentsRequest{AmountMinor: 400, Currency: "USD", ConnectorTransactionID: &txn}

	req, err := integrationFor(t, connector.FlowCapture).BuildRequest(context.Background(), rd)
	require.NoError(t, err)
	assert.Equal(t, baseURL+"/v1/payment_intents/pi_1/capture", req.URL)

	raw, _ := json.Marshal(req.Content.JSON)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, float64(400), body["amount_to_capture"])
}

func TestCapture_MissingTransactionID(t *testing.T) {
	rd := authorizeRD(t)
	rd.Flow = connector.FlowCapture
	rd.Request = connector.PaymentsRequest{AmountMinor: 400, Currency: "USD"}

	_, err := integrationFor(t, connector.FlowCapture).BuildRequest(context.Background(), rd)
	var cerr *connector.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, connector.CodeMissingRequiredField, cerr.Code)
}

func TestPSync_IsBodylessGet(t *testing.T) {
	rd := authorizeRD(t)
	rd.Flow = connector.FlowPSync
	txn := "pi_2"
	rd.Request = connector.PaymentsRequest{ConnectorTransactionID: &txn}

	req, err := integrationFor(t, connector.FlowPSync).BuildRequest(context.Background(), rd)
	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, baseURL+"/v1/payment_intents/pi_2", req.URL)
	assert.Nil(t, req.Content)
}

func TestRefund_BuildRequest(t *testing.T) {
	rd := authorizeRD(t)
	rd.Flow = connector.FlowExecuteRefund
	refundID := uuid.New()
	rd.Request = connector.RefundsRequest{
		RefundID:               refundID,
		ConnectorTransactionID: "pi_3",
		AmountMinor:            250,
		Currency:               "USD",
	}

	req, err := integrationFor(t, connector.FlowExecuteRefund).BuildRequest(context.Background(), rd)
	require.NoError(t, err)
	assert.Equal(t, baseURL+"/v1/refunds", req.URL)

	raw, _ := json.Marshal(req.Content.JSON)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "pi_3", body["payment_intent"])
	assert.Equal(t, float64(250), body["amount"])
	meta := body["metadata"].(map[string]any)
	assert.Equal(t, refundID.String(), meta["refund_id"])
}

func TestRefund_HandleResponseStatusMapping(t *testing.T) {
	cases := []struct {
		stripeStatus string
		want         payments.RefundStatus
	}{
		{"succeeded", payments.RefundSuccess},
		{"failed", payments.RefundFailure},
		{"canceled", payments.RefundFailure},
		{"requires_action", payments.RefundManualReview},
		{"pending", payments.RefundPending},
	}
	for _, tc := range cases {
		rd := authorizeRD(t)
		rd.Flow = connector.FlowExecuteRefund
		body := []byte(`{"id":"re_1","status":"` + tc.stripeStatus + `"}`)
		err := integrationFor(t, connector.FlowExecuteRefund).HandleResponse(rd, &connhttp.Response{StatusCode: 200, Body: body})
		require.NoError(t, err)
		resp := rd.Response.(connector.RefundsResponse)
		assert.Equal(t, tc.want, resp.Status, "stripe status %s", tc.stripeStatus)
		assert.Equal(t, "re_1", resp.ConnectorRefundID)
	}
}

func TestRSync_RequiresConnectorRefundID(t *testing.T) {
	rd := authorizeRD(t)
	rd.Flow = connector.FlowRSync
	rd.Request = connector.RefundsRequest{ConnectorTransactionID: "pi_4"}

	_, err := integrationFor(t, connector.FlowRSync).BuildRequest(context.Background(), rd)
	var cerr *connector.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, connector.CodeMissingRequiredField, cerr.Code)
}

func TestCapabilities_DeclaredFlowsResolve(t *testing.T) {
	conn := stripe.New(baseURL)
	for _, flow := range conn.Capabilities().Flows {
		integ, err := conn.Integration(flow)
		require.NoError(t, err, "flow %s", flow)
		require.NotNil(t, integ)
	}
	_, err := conn.Integration(connector.FlowPayoutCreate)
	assert.True(t, connector.IsFlowNotSupported(err))
}

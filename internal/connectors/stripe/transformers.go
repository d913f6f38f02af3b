package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cassiomorais/switchboard/internal/connector"
	"github.com/cassiomorais/switchboard/internal/connector/connhttp"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
)

// paymentIntentRequest is the stripe payment-intent wire shape.
type paymentIntentRequest struct {
	Amount           int64          `json:"amount,omitempty"`
	Currency         string         `json:"currency,omitempty"`
	CaptureMethod    string         `json:"capture_method,omitempty"`
	Confirm          bool           `json:"confirm,omitempty"`
	PaymentMethod    *paymentMethod `json:"payment_method_data,omitempty"`
	Customer         *string        `json:"customer,omitempty"`
	SetupFutureUsage string         `json:"setup_future_usage,omitempty"`
	Mandate          *string        `json:"mandate,omitempty"`
	OffSession       bool           `json:"off_session,omitempty"`
	ReturnURL        *string        `json:"return_url,omitempty"`
	Description      *string        `json:"description,omitempty"`
	CancellationReason *string      `json:"cancellation_reason,omitempty"`
	AmountToCapture  int64          `json:"amount_to_capture,omitempty"`
}

type paymentMethod struct {
	Type string      `json:"type"`
	Card *cardDetail `json:"card,omitempty"`
	BankDebit *bankDebitDetail `json:"us_bank_account,omitempty"`
	Wallet *walletDetail `json:"wallet,omitempty"`
}

type cardDetail struct {
	Number   string `json:"number"`
	ExpMonth string `json:"exp_month"`
	ExpYear  string `json:"exp_year"`
	CVC      string `json:"cvc"`
}

type bankDebitDetail struct {
	AccountNumber string `json:"account_number"`
	SortCode      string `json:"sort_code"`
	HolderName    string `json:"account_holder_name"`
}

type walletDetail struct {
	Provider string `json:"provider"`
	Token    string `json:"token"`
}

// paymentIntentResponse is the stripe payment-intent reply.
type paymentIntentResponse struct {
	ID               string  `json:"id"`
	Status           string  `json:"status"`
	Mandate          *string `json:"mandate,omitempty"`
	NextActionURL    *string `json:"next_action_url,omitempty"`
	LatestCharge     *string `json:"latest_charge,omitempty"`
	AmountReceived   int64   `json:"amount_received"`
}

// errorEnvelope is stripe's uniform error body.
type errorEnvelope struct {
	Error struct {
		Type        string  `json:"type"`
		Code        string  `json:"code"`
		Message     string  `json:"message"`
		DeclineCode *string `json:"decline_code,omitempty"`
	} `json:"error"`
}

// attemptStatusFrom maps stripe's payment-intent status vocabulary onto the
// normalized attempt statuses. Unknown values deliberately land on pending.
func attemptStatusFrom(status string) payments.AttemptStatus {
	switch status {
	case "succeeded":
		return payments.AttemptCharged
	case "requires_capture":
		return payments.AttemptAuthorized
	case "requires_action":
		return payments.AttemptAuthenticationPending
	case "processing":
		return payments.AttemptPending
	case "requires_payment_method":
		return payments.AttemptPaymentMethodAwaited
	case "requires_confirmation":
		return payments.AttemptConfirmationAwaited
	case "canceled":
		return payments.AttemptVoided
	}
	return payments.AttemptPending
}

type paymentsIntegration struct {
	baseURL string
	flow    connector.Flow
}

func (i *paymentsIntegration) Headers(ctx context.Context, rd *connector.RouterData) ([][2]string, error) {
	key, err := connector.HeaderKeyFrom(rd.Auth)
	if err != nil {
		return nil, err
	}
	return [][2]string{
		{"Authorization", "Bearer " + key.APIKey},
		{"Idempotency-Key", rd.AttemptID.String()},
	}, nil
}

func (i *paymentsIntegration) URL(rd *connector.RouterData) (string, error) {
	req, _ := rd.Request.(connector.PaymentsRequest)
	switch i.flow {
	case connector.FlowAuthorize, connector.FlowSetupMandate:
		return i.baseURL + "/v1/payment_intents", nil
	case connector.FlowCapture, connector.FlowVoid, connector.FlowPSync:
		if req.ConnectorTransactionID == nil || *req.ConnectorTransactionID == "" {
			return "", connector.NewMissingRequiredField("connector_transaction_id")
		}
		switch i.flow {
		case connector.FlowCapture:
			return fmt.Sprintf("%s/v1/payment_intents/%s/capture", i.baseURL, *req.ConnectorTransactionID), nil
		case connector.FlowVoid:
			return fmt.Sprintf("%s/v1/payment_intents/%s/cancel", i.baseURL, *req.ConnectorTransactionID), nil
		default:
			return fmt.Sprintf("%s/v1/payment_intents/%s", i.baseURL, *req.ConnectorTransactionID), nil
		}
	}
	return "", connector.NewFlowNotSupported(i.flow, connectorName)
}

func (i *paymentsIntegration) ContentType() string { return connhttp.ContentTypeJSON }

func (i *paymentsIntegration) RequestBody(rd *connector.RouterData) (*connhttp.RequestContent, error) {
	req, ok := rd.Request.(connector.PaymentsRequest)
	if !ok {
		return nil, connector.NewMissingRequiredField("payments_request")
	}

	switch i.flow {
	case connector.FlowPSync:
		return nil, nil
	case connector.FlowCapture:
		return &connhttp.RequestContent{JSON: paymentIntentRequest{AmountToCapture: req.AmountMinor}}, nil
	case connector.FlowVoid:
		return &connhttp.RequestContent{JSON: paymentIntentRequest{CancellationReason: req.Description}}, nil
	}

	body := paymentIntentRequest{
		Amount:        req.AmountMinor,
		Currency:      req.Currency,
		CaptureMethod: string(req.CaptureMethod),
		Confirm:       true,
		Customer:      req.CustomerID,
		Mandate:       req.MandateReference,
		OffSession:    req.OffSession,
		ReturnURL:     req.ReturnURL,
		Description:   req.Description,
	}
	if req.SetupFutureUsage {
		body.SetupFutureUsage = "off_session"
	}
	if req.PaymentMethod != nil {
		pm, err := paymentMethodFrom(req.PaymentMethod)
		if err != nil {
			return nil, err
		}
		body.PaymentMethod = pm
	} else if req.MandateReference == nil {
		return nil, connector.NewMissingRequiredField("payment_method")
	}
	return &connhttp.RequestContent{JSON: body}, nil
}

func paymentMethodFrom(pm *connector.PaymentMethodData) (*paymentMethod, error) {
	switch pm.Type {
	case connector.MethodCard:
		if pm.Card == nil {
			return nil, connector.NewMissingRequiredField("card")
		}
		return &paymentMethod{Type: "card", Card: &cardDetail{
			Number:   pm.Card.Number,
			ExpMonth: pm.Card.ExpMonth,
			ExpYear:  pm.Card.ExpYear,
			CVC:      pm.Card.CVC,
		}}, nil
	case connector.MethodBankDebit:
		if pm.BankDebit == nil {
			return nil, connector.NewMissingRequiredField("bank_debit")
		}
		return &paymentMethod{Type: "us_bank_account", BankDebit: &bankDebitDetail{
			AccountNumber: pm.BankDebit.AccountNumber,
			SortCode:      pm.BankDebit.SortCode,
			HolderName:    pm.BankDebit.HolderName,
		}}, nil
	case connector.MethodWallet:
		if pm.Wallet == nil {
			return nil, connector.NewMissingRequiredField("wallet")
		}
		return &paymentMethod{Type: "wallet", Wallet: &walletDetail{
			Provider: pm.Wallet.Provider,
			Token:    pm.Wallet.Token,
		}}, nil
	}
	return nil, connector.NewNotImplemented("payment method " + string(pm.Type) + " is not implemented for stripe")
}

func (i *paymentsIntegration) BuildRequest(ctx context.Context, rd *connector.RouterData) (*connhttp.Request, error) {
	method := http.MethodPost
	if i.flow == connector.FlowPSync {
		method = http.MethodGet
	}
	return connector.ComposeRequest(ctx, i, rd, method)
}

func (i *paymentsIntegration) HandleResponse(rd *connector.RouterData, resp *connhttp.Response) error {
	var out paymentIntentResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return err
	}
	rd.Status = attemptStatusFrom(out.Status)
	rd.Resolve(connector.PaymentsResponse{
		ResourceID:             out.ID,
		ConnectorTransactionID: out.ID,
		RedirectURL:            out.NextActionURL,
		MandateReference:       out.Mandate,
	})
	return nil
}

func (i *paymentsIntegration) HandleErrorResponse(resp *connhttp.Response) connector.ErrorResponse {
	return decodeErrorEnvelope(resp)
}

// Handle5xxErrorResponse decodes stripe 5xx bodies that still carry the
// uniform error envelope; everything else stays a transport fault.
func (i *paymentsIntegration) Handle5xxErrorResponse(resp *connhttp.Response) connector.ErrorResponse {
	var env errorEnvelope
	if err := json.Unmarshal(resp.Body, &env); err != nil || env.Error.Message == "" {
		return connector.ErrorResponse{
			Kind:       connector.KindTransport,
			StatusCode: resp.StatusCode,
			Code:       connector.CodeConnectionFailure,
			Message:    "connector returned an unreadable server error",
			RawBody:    resp.Body,
		}
	}
	return errorResponseFromEnvelope(env, resp)
}

func decodeErrorEnvelope(resp *connhttp.Response) connector.ErrorResponse {
	var env errorEnvelope
	if err := json.Unmarshal(resp.Body, &env); err != nil || env.Error.Message == "" {
		return connector.ErrorResponse{
			Kind:       connector.KindBusiness,
			StatusCode: resp.StatusCode,
			Code:       connector.CodeNoErrorCode,
			Message:    connector.CodeNoErrorMessage,
			RawBody:    resp.Body,
		}
	}
	return errorResponseFromEnvelope(env, resp)
}

func errorResponseFromEnvelope(env errorEnvelope, resp *connhttp.Response) connector.ErrorResponse {
	out := connector.ErrorResponse{
		Kind:       connector.KindBusiness,
		StatusCode: resp.StatusCode,
		Code:       env.Error.Code,
		Message:    env.Error.Message,
		Reason:     env.Error.DeclineCode,
	}
	if out.Code == "" {
		out.Code = env.Error.Type
	}
	if env.Error.Type == "card_error" {
		status := payments.AttemptAuthorizationFailed
		out.AttemptStatus = &status
	}
	return out
}

type refundsIntegration struct {
	baseURL string
	flow    connector.Flow
}

func (i *refundsIntegration) Headers(ctx context.Context, rd *connector.RouterData) ([][2]string, error) {
	key, err := connector.HeaderKeyFrom(rd.Auth)
	if err != nil {
		return nil, err
	}
	return [][2]string{
		{"Authorization", "Bearer " + key.APIKey},
		{"Idempotency-Key", rd.AttemptID.String()},
	}, nil
}

func (i *refundsIntegration) URL(rd *connector.RouterData) (string, error) {
	req, ok := rd.Request.(connector.RefundsRequest)
	if !ok {
		return "", connector.NewMissingRequiredField("refunds_request")
	}
	if i.flow == connector.FlowRSync {
		if req.ConnectorRefundID == nil || *req.ConnectorRefundID == "" {
			return "", connector.NewMissingRequiredField("connector_refund_id")
		}
		return fmt.Sprintf("%s/v1/refunds/%s", i.baseURL, *req.ConnectorRefundID), nil
	}
	return i.baseURL + "/v1/refunds", nil
}

func (i *refundsIntegration) ContentType() string { return connhttp.ContentTypeJSON }

func (i *refundsIntegration) RequestBody(rd *connector.RouterData) (*connhttp.RequestContent, error) {
	if i.flow == connector.FlowRSync {
		return nil, nil
	}
	req, ok := rd.Request.(connector.RefundsRequest)
	if !ok {
		return nil, connector.NewMissingRequiredField("refunds_request")
	}
	if req.ConnectorTransactionID == "" {
		return nil, connector.NewMissingRequiredField("connector_transaction_id")
	}
	return &connhttp.RequestContent{JSON: map[string]any{
		"payment_intent": req.ConnectorTransactionID,
		"amount":         req.AmountMinor,
		"metadata":       map[string]string{"refund_id": req.RefundID.String()},
	}}, nil
}

func (i *refundsIntegration) BuildRequest(ctx context.Context, rd *connector.RouterData) (*connhttp.Request, error) {
	method := http.MethodPost
	if i.flow == connector.FlowRSync {
		method = http.MethodGet
	}
	return connector.ComposeRequest(ctx, i, rd, method)
}

func (i *refundsIntegration) HandleResponse(rd *connector.RouterData, resp *connhttp.Response) error {
	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return err
	}
	status := payments.RefundPending
	switch out.Status {
	case "succeeded":
		status = payments.RefundSuccess
	case "failed", "canceled":
		status = payments.RefundFailure
	case "requires_action":
		status = payments.RefundManualReview
	}
	rd.Resolve(connector.RefundsResponse{ConnectorRefundID: out.ID, Status: status})
	return nil
}

func (i *refundsIntegration) HandleErrorResponse(resp *connhttp.Response) connector.ErrorResponse {
	return decodeErrorEnvelope(resp)
}

type sessionIntegration struct {
	baseURL string
}

func (i *sessionIntegration) Headers(ctx context.Context, rd *connector.RouterData) ([][2]string, error) {
	key, err := connector.HeaderKeyFrom(rd.Auth)
	if err != nil {
		return nil, err
	}
	return [][2]string{{"Authorization", "Bearer " + key.APIKey}}, nil
}

func (i *sessionIntegration) URL(rd *connector.RouterData) (string, error) {
	return i.baseURL + "/v1/ephemeral_keys", nil
}

func (i *sessionIntegration) ContentType() string { return connhttp.ContentTypeJSON }

func (i *sessionIntegration) RequestBody(rd *connector.RouterData) (*connhttp.RequestContent, error) {
	req, ok := rd.Request.(connector.SessionRequest)
	if !ok {
		return nil, connector.NewMissingRequiredField("session_request")
	}
	return &connhttp.RequestContent{JSON: map[string]any{
		"amount":   req.AmountMinor,
		"currency": req.Currency,
	}}, nil
}

func (i *sessionIntegration) BuildRequest(ctx context.Context, rd *connector.RouterData) (*connhttp.Request, error) {
	return connector.ComposeRequest(ctx, i, rd, http.MethodPost)
}

func (i *sessionIntegration) HandleResponse(rd *connector.RouterData, resp *connhttp.Response) error {
	var out struct {
		Secret string `json:"secret"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return err
	}
	rd.Resolve(connector.SessionResponse{SessionToken: out.Secret})
	return nil
}

func (i *sessionIntegration) HandleErrorResponse(resp *connhttp.Response) connector.ErrorResponse {
	return decodeErrorEnvelope(resp)
}

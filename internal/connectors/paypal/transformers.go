package paypal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cassiomorais/switchboard/internal/connector"
	"github.com/cassiomorais/switchboard/internal/connector/connhttp"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
)

// accessTokenIntegration implements the client-credentials exchange. It is
// the only paypal call that authenticates with the raw key pair; every other
// flow carries the obtained bearer token.
type accessTokenIntegration struct {
	baseURL string
}

func (i *accessTokenIntegration) Headers(ctx context.Context, rd *connector.RouterData) ([][2]string, error) {
	key, err := connector.BodyKeyFrom(rd.Auth)
	if err != nil {
		return nil, err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(key.APIKey + ":" + key.Key1))
	return [][2]string{{"Authorization", "Basic " + basic}}, nil
}

func (i *accessTokenIntegration) URL(rd *connector.RouterData) (string, error) {
	return i.baseURL + "/v1/oauth2/token", nil
}

func (i *accessTokenIntegration) ContentType() string { return connhttp.ContentTypeForm }

func (i *accessTokenIntegration) RequestBody(rd *connector.RouterData) (*connhttp.RequestContent, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	return &connhttp.RequestContent{Form: form}, nil
}

func (i *accessTokenIntegration) BuildRequest(ctx context.Context, rd *connector.RouterData) (*connhttp.Request, error) {
	return connector.ComposeRequest(ctx, i, rd, http.MethodPost)
}

func (i *accessTokenIntegration) HandleResponse(rd *connector.RouterData, resp *connhttp.Response) error {
	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return err
	}
	rd.Resolve(connector.AccessTokenResponse{Token: connector.AccessToken{
		Token:     out.AccessToken,
		ExpiresIn: time.Duration(out.ExpiresIn) * time.Second,
	}})
	return nil
}

func (i *accessTokenIntegration) HandleErrorResponse(resp *connhttp.Response) connector.ErrorResponse {
	return decodeErrorEnvelope(resp)
}

// orderRequest is the paypal orders wire shape.
type orderRequest struct {
	Intent        string         `json:"intent,omitempty"`
	PurchaseUnits []purchaseUnit `json:"purchase_units,omitempty"`
	PaymentSource *paymentSource `json:"payment_source,omitempty"`
}

type purchaseUnit struct {
	Amount orderAmount `json:"amount"`
}

type orderAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paymentSource struct {
	Card   *cardSource   `json:"card,omitempty"`
	Wallet *walletSource `json:"paypal,omitempty"`
}

type cardSource struct {
	Number       string `json:"number"`
	Expiry       string `json:"expiry"`
	SecurityCode string `json:"security_code"`
	Name         string `json:"name,omitempty"`
}

type walletSource struct {
	Token string `json:"vault_id"`
}

// orderResponse is the paypal orders reply.
type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"links"`
}

// errorEnvelope is paypal's uniform error body.
type errorEnvelope struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

// minorToDecimal renders a minor-unit amount in paypal's decimal format.
// Currency exponent handling is limited to the common two-decimal case and
// the known zero-decimal currencies the switch routes here.
func minorToDecimal(minor int64, currency string) string {
	switch currency {
	case "JPY", "KRW", "VND":
		return fmt.Sprintf("%d", minor)
	}
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}

func attemptStatusFrom(status string) payments.AttemptStatus {
	switch status {
	case "COMPLETED":
		return payments.AttemptCharged
	case "APPROVED":
		return payments.AttemptAuthorized
	case "CREATED", "SAVED", "PENDING":
		return payments.AttemptPending
	case "PAYER_ACTION_REQUIRED":
		return payments.AttemptAuthenticationPending
	case "VOIDED":
		return payments.AttemptVoided
	case "DECLINED", "FAILED":
		return payments.AttemptFailure
	}
	return payments.AttemptPending
}

type ordersIntegration struct {
	baseURL string
	flow    connector.Flow
}

func bearerHeaders(rd *connector.RouterData) ([][2]string, error) {
	if rd.AccessToken == nil || rd.AccessToken.Token == "" {
		return nil, connector.NewInvalidConnectorConfig("paypal call attempted without an access token")
	}
	return [][2]string{
		{"Authorization", "Bearer " + rd.AccessToken.Token},
		{"PayPal-Request-Id", rd.AttemptID.String()},
	}, nil
}

func (i *ordersIntegration) Headers(ctx context.Context, rd *connector.RouterData) ([][2]string, error) {
	return bearerHeaders(rd)
}

func (i *ordersIntegration) URL(rd *connector.RouterData) (string, error) {
	req, _ := rd.Request.(connector.PaymentsRequest)
	switch i.flow {
	case connector.FlowAuthorize:
		return i.baseURL + "/v2/checkout/orders", nil
	}
	if req.ConnectorTransactionID == nil || *req.ConnectorTransactionID == "" {
		return "", connector.NewMissingRequiredField("connector_transaction_id")
	}
	id := *req.ConnectorTransactionID
	switch i.flow {
	case connector.FlowCapture:
		return fmt.Sprintf("%s/v2/checkout/orders/%s/capture", i.baseURL, id), nil
	case connector.FlowVoid:
		return fmt.Sprintf("%s/v2/payments/authorizations/%s/void", i.baseURL, id), nil
	case connector.FlowPSync:
		return fmt.Sprintf("%s/v2/checkout/orders/%s", i.baseURL, id), nil
	}
	return "", connector.NewFlowNotSupported(i.flow, connectorName)
}

func (i *ordersIntegration) ContentType() string { return connhttp.ContentTypeJSON }

func (i *ordersIntegration) RequestBody(rd *connector.RouterData) (*connhttp.RequestContent, error) {
	if i.flow != connector.FlowAuthorize {
		// Capture, void and sync are id-addressed calls with empty bodies.
		return nil, nil
	}
	req, ok := rd.Request.(connector.PaymentsRequest)
	if !ok {
		return nil, connector.NewMissingRequiredField("payments_request")
	}

	intent := "CAPTURE"
	if req.CaptureMethod == payments.CaptureManual {
		intent = "AUTHORIZE"
	}
	body := orderRequest{
		Intent: intent,
		PurchaseUnits: []purchaseUnit{{Amount: orderAmount{
			CurrencyCode: req.Currency,
			Value:        minorToDecimal(req.AmountMinor, req.Currency),
		}}},
	}
	if req.PaymentMethod == nil {
		return nil, connector.NewMissingRequiredField("payment_method")
	}
	switch req.PaymentMethod.Type {
	case connector.MethodCard:
		if req.PaymentMethod.Card == nil {
			return nil, connector.NewMissingRequiredField("card")
		}
		card := req.PaymentMethod.Card
		body.PaymentSource = &paymentSource{Card: &cardSource{
			Number:       card.Number,
			Expiry:       card.ExpYear + "-" + card.ExpMonth,
			SecurityCode: card.CVC,
			Name:         card.HolderName,
		}}
	case connector.MethodWallet:
		if req.PaymentMethod.Wallet == nil {
			return nil, connector.NewMissingRequiredField("wallet")
		}
		body.PaymentSource = &paymentSource{Wallet: &walletSource{Token: req.PaymentMethod.Wallet.Token}}
	default:
		return nil, connector.NewNotImplemented("payment method " + string(req.PaymentMethod.Type) + " is not implemented for paypal")
	}
	return &connhttp.RequestContent{JSON: body}, nil
}

func (i *ordersIntegration) BuildRequest(ctx context.Context, rd *connector.RouterData) (*connhttp.Request, error) {
	method := http.MethodPost
	if i.flow == connector.FlowPSync {
		method = http.MethodGet
	}
	return connector.ComposeRequest(ctx, i, rd, method)
}

func (i *ordersIntegration) HandleResponse(rd *connector.RouterData, resp *connhttp.Response) error {
	var out orderResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return err
	}
	rd.Status = attemptStatusFrom(out.Status)
	result := connector.PaymentsResponse{
		ResourceID:             out.ID,
		ConnectorTransactionID: out.ID,
	}
	for _, link := range out.Links {
		if link.Rel == "payer-action" {
			href := link.Href
			result.RedirectURL = &href
			break
		}
	}
	rd.Resolve(result)
	return nil
}

func (i *ordersIntegration) HandleErrorResponse(resp *connhttp.Response) connector.ErrorResponse {
	return decodeErrorEnvelope(resp)
}

type refundsIntegration struct {
	baseURL string
	flow    connector.Flow
}

func (i *refundsIntegration) Headers(ctx context.Context, rd *connector.RouterData) ([][2]string, error) {
	return bearerHeaders(rd)
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
		return fmt.Sprintf("%s/v2/payments/refunds/%s", i.baseURL, *req.ConnectorRefundID), nil
	}
	if req.ConnectorTransactionID == "" {
		return "", connector.NewMissingRequiredField("connector_transaction_id")
	}
	return fmt.Sprintf("%s/v2/payments/captures/%s/refund", i.baseURL, req.ConnectorTransactionID), nil
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
	return &connhttp.RequestContent{JSON: map[string]any{
		"amount": orderAmount{
			CurrencyCode: req.Currency,
			Value:        minorToDecimal(req.AmountMinor, req.Currency),
		},
		"invoice_id": req.RefundID.String(),
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
	case "COMPLETED":
		status = payments.RefundSuccess
	case "FAILED", "CANCELLED":
		status = payments.RefundFailure
	}
	rd.Resolve(connector.RefundsResponse{ConnectorRefundID: out.ID, Status: status})
	return nil
}

func (i *refundsIntegration) HandleErrorResponse(resp *connhttp.Response) connector.ErrorResponse {
	return decodeErrorEnvelope(resp)
}

func decodeErrorEnvelope(resp *connhttp.Response) connector.ErrorResponse {
	var env errorEnvelope
	if err := json.Unmarshal(resp.Body, &env); err != nil || env.Name == "" {
		return connector.ErrorResponse{
			Kind:       connector.KindBusiness,
			StatusCode: resp.StatusCode,
			Code:       connector.CodeNoErrorCode,
			Message:    connector.CodeNoErrorMessage,
			RawBody:    resp.Body,
		}
	}
	out := connector.ErrorResponse{
		Kind:       connector.KindBusiness,
		StatusCode: resp.StatusCode,
		Code:       env.Name,
		Message:    env.Message,
	}
	if len(env.Details) > 0 {
		reason := env.Details[0].Issue + ": " + env.Details[0].Description
		out.Reason = &reason
	}
	return out
}

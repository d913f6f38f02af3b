package wirepay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/cassiomorais/switchboard/internal/connector"
	"github.com/cassiomorais/switchboard/internal/connector/connhttp"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
)

// errorEnvelope is wirepay's XML error body, used for 4xx and some 5xx.
type errorEnvelope struct {
	XMLName xml.Name `xml:"error"`
	Code    string   `xml:"code"`
	Message string   `xml:"message"`
	Detail  string   `xml:"detail,omitempty"`
}

// transferResponse is the JSON success payload. Wirepay answers success in
// JSON but errors in XML, an asymmetry the decode paths must not conflate.
type transferResponse struct {
	TransferID string `json:"transfer_id"`
	State      string `json:"state"`
}

// signedHeaders computes wirepay's request signature: HMAC-SHA256 over the
// sorted form fields, keyed by the api secret, with the merchant id and key
// carried alongside.
func signedHeaders(rd *connector.RouterData, form url.Values) ([][2]string, error) {
	key, err := connector.SignatureKeyFrom(rd.Auth)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(form))
	for name := range form {
		names = append(names, name)
	}
	sort.Strings(names)
	var payload strings.Builder
	for _, name := range names {
		payload.WriteString(name)
		payload.WriteString("=")
		payload.WriteString(form.Get(name))
		payload.WriteString("&")
	}
	mac := hmac.New(sha256.New, []byte(key.APISecret))
	mac.Write([]byte(payload.String()))
	return [][2]string{
		{"X-Wirepay-Key", key.APIKey},
		{"X-Wirepay-Merchant", key.Key1},
		{"X-Wirepay-Signature", hex.EncodeToString(mac.Sum(nil))},
	}, nil
}

func attemptStatusFrom(state string) payments.AttemptStatus {
	switch state {
	case "settled":
		return payments.AttemptCharged
	case "accepted":
		return payments.AttemptAuthorized
	case "submitted", "in_transit":
		return payments.AttemptPending
	case "rejected", "returned":
		return payments.AttemptFailure
	}
	return payments.AttemptPending
}

func decodeErrorEnvelope(resp *connhttp.Response) connector.ErrorResponse {
	var env errorEnvelope
	if err := xml.Unmarshal(resp.Body, &env); err != nil || env.Code == "" {
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
		Code:       env.Code,
		Message:    env.Message,
	}
	if env.Detail != "" {
		detail := env.Detail
		out.Reason = &detail
	}
	return out
}

type transferIntegration struct {
	baseURL string
	flow    connector.Flow
}

func (i *transferIntegration) form(rd *connector.RouterData) (url.Values, error) {
	req, ok := rd.Request.(connector.PaymentsRequest)
	if !ok {
		return nil, connector.NewMissingRequiredField("payments_request")
	}
	form := url.Values{}
	switch i.flow {
	case connector.FlowAuthorize:
		if req.PaymentMethod == nil {
			return nil, connector.NewMissingRequiredField("payment_method")
		}
		form.Set("amount", fmt.Sprintf("%d", req.AmountMinor))
		form.Set("currency", req.Currency)
		form.Set("reference", rd.AttemptID.String())
		switch req.PaymentMethod.Type {
		case connector.MethodBankTransfer:
			bt := req.PaymentMethod.BankTransfer
			if bt == nil {
				return nil, connector.NewMissingRequiredField("bank_transfer")
			}
			form.Set("account_number", bt.AccountNumber)
			form.Set("routing_number", bt.RoutingNumber)
			form.Set("country", bt.Country)
		case connector.MethodBankDebit:
			bd := req.PaymentMethod.BankDebit
			if bd == nil {
				return nil, connector.NewMissingRequiredField("bank_debit")
			}
			form.Set("account_number", bd.AccountNumber)
			form.Set("sort_code", bd.SortCode)
			form.Set("holder_name", bd.HolderName)
		default:
			return nil, connector.NewNotImplemented("payment method " + string(req.PaymentMethod.Type) + " is not implemented for wirepay")
		}
	case connector.FlowCapture:
		if req.ConnectorTransactionID == nil || *req.ConnectorTransactionID == "" {
			return nil, connector.NewMissingRequiredField("connector_transaction_id")
		}
		form.Set("transfer_id", *req.ConnectorTransactionID)
		form.Set("amount", fmt.Sprintf("%d", req.AmountMinor))
	case connector.FlowPSync:
		if req.ConnectorTransactionID == nil || *req.ConnectorTransactionID == "" {
			return nil, connector.NewMissingRequiredField("connector_transaction_id")
		}
		form.Set("transfer_id", *req.ConnectorTransactionID)
	}
	return form, nil
}

func (i *transferIntegration) Headers(ctx context.Context, rd *connector.RouterData) ([][2]string, error) {
	form, err := i.form(rd)
	if err != nil {
		return nil, err
	}
	return signedHeaders(rd, form)
}

func (i *transferIntegration) URL(rd *connector.RouterData) (string, error) {
	switch i.flow {
	case connector.FlowAuthorize:
		return i.baseURL + "/api/transfers", nil
	case connector.FlowCapture:
		return i.baseURL + "/api/transfers/settle", nil
	case connector.FlowPSync:
		return i.baseURL + "/api/transfers/status", nil
	}
	return "", connector.NewFlowNotSupported(i.flow, connectorName)
}

func (i *transferIntegration) ContentType() string { return connhttp.ContentTypeForm }

func (i *transferIntegration) RequestBody(rd *connector.RouterData) (*connhttp.RequestContent, error) {
	form, err := i.form(rd)
	if err != nil {
		return nil, err
	}
	return &connhttp.RequestContent{Form: form}, nil
}

func (i *transferIntegration) BuildRequest(ctx context.Context, rd *connector.RouterData) (*connhttp.Request, error) {
	return connector.ComposeRequest(ctx, i, rd, http.MethodPost)
}

func (i *transferIntegration) HandleResponse(rd *connector.RouterData, resp *connhttp.Response) error {
	var out transferResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return err
	}
	rd.Status = attemptStatusFrom(out.State)
	rd.Resolve(connector.PaymentsResponse{
		ResourceID:             out.TransferID,
		ConnectorTransactionID: out.TransferID,
	})
	return nil
}

func (i *transferIntegration) HandleErrorResponse(resp *connhttp.Response) connector.ErrorResponse {
	return decodeErrorEnvelope(resp)
}

type refundsIntegration struct {
	baseURL string
	flow    connector.Flow
}

func (i *refundsIntegration) form(rd *connector.RouterData) (url.Values, error) {
	req, ok := rd.Request.(connector.RefundsRequest)
	if !ok {
		return nil, connector.NewMissingRequiredField("refunds_request")
	}
	form := url.Values{}
	if i.flow == connector.FlowRSync {
		if req.ConnectorRefundID == nil || *req.ConnectorRefundID == "" {
			return nil, connector.NewMissingRequiredField("connector_refund_id")
		}
		form.Set("return_id", *req.ConnectorRefundID)
		return form, nil
	}
	if req.ConnectorTransactionID == "" {
		return nil, connector.NewMissingRequiredField("connector_transaction_id")
	}
	form.Set("transfer_id", req.ConnectorTransactionID)
	form.Set("amount", fmt.Sprintf("%d", req.AmountMinor))
	form.Set("reference", req.RefundID.String())
	return form, nil
}

func (i *refundsIntegration) Headers(ctx context.Context, rd *connector.RouterData) ([][2]string, error) {
	form, err := i.form(rd)
	if err != nil {
		return nil, err
	}
	return signedHeaders(rd, form)
}

func (i *refundsIntegration) URL(rd *connector.RouterData) (string, error) {
	if i.flow == connector.FlowRSync {
		return i.baseURL + "/api/returns/status", nil
	}
	return i.baseURL + "/api/returns", nil
}

func (i *refundsIntegration) ContentType() string { return connhttp.ContentTypeForm }

func (i *refundsIntegration) RequestBody(rd *connector.RouterData) (*connhttp.RequestContent, error) {
	form, err := i.form(rd)
	if err != nil {
		return nil, err
	}
	return &connhttp.RequestContent{Form: form}, nil
}

func (i *refundsIntegration) BuildRequest(ctx context.Context, rd *connector.RouterData) (*connhttp.Request, error) {
	return connector.ComposeRequest(ctx, i, rd, http.MethodPost)
}

func (i *refundsIntegration) HandleResponse(rd *connector.RouterData, resp *connhttp.Response) error {
	var out struct {
		ReturnID string `json:"return_id"`
		State    string `json:"state"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return err
	}
	status := payments.RefundPending
	switch out.State {
	case "settled":
		status = payments.RefundSuccess
	case "rejected":
		status = payments.RefundFailure
	case "review":
		status = payments.RefundManualReview
	}
	rd.Resolve(connector.RefundsResponse{ConnectorRefundID: out.ReturnID, Status: status})
	return nil
}

func (i *refundsIntegration) HandleErrorResponse(resp *connhttp.Response) connector.ErrorResponse {
	return decodeErrorEnvelope(resp)
}

// payoutIntegration creates outbound transfers. Wirepay moves money to bank
// accounts only; card payouts fail before any wire call.
type payoutIntegration struct {
	baseURL string
}

func (i *payoutIntegration) form(rd *connector.RouterData) (url.Values, error) {
	req, ok := rd.Request.(connector.PayoutsRequest)
	if !ok {
		return nil, connector.NewMissingRequiredField("payouts_request")
	}
	if req.PayoutMethod == nil {
		return nil, connector.NewMissingRequiredField("payout_method")
	}
	if req.PayoutMethod.Type != connector.MethodBankTransfer || req.PayoutMethod.Bank == nil {
		return nil, connector.NewNotImplemented("wirepay payouts support bank transfer destinations only")
	}
	form := url.Values{}
	form.Set("amount", fmt.Sprintf("%d", req.AmountMinor))
	form.Set("currency", req.Currency)
	form.Set("account_number", req.PayoutMethod.Bank.AccountNumber)
	form.Set("routing_number", req.PayoutMethod.Bank.RoutingNumber)
	form.Set("country", req.PayoutMethod.Bank.Country)
	return form, nil
}

func (i *payoutIntegration) Headers(ctx context.Context, rd *connector.RouterData) ([][2]string, error) {
	form, err := i.form(rd)
	if err != nil {
		return nil, err
	}
	return signedHeaders(rd, form)
}

func (i *payoutIntegration) URL(rd *connector.RouterData) (string, error) {
	return i.baseURL + "/api/payouts", nil
}

func (i *payoutIntegration) ContentType() string { return connhttp.ContentTypeForm }

func (i *payoutIntegration) RequestBody(rd *connector.RouterData) (*connhttp.RequestContent, error) {
	form, err := i.form(rd)
	if err != nil {
		return nil, err
	}
	return &connhttp.RequestContent{Form: form}, nil
}

func (i *payoutIntegration) BuildRequest(ctx context.Context, rd *connector.RouterData) (*connhttp.Request, error) {
	return connector.ComposeRequest(ctx, i, rd, http.MethodPost)
}

func (i *payoutIntegration) HandleResponse(rd *connector.RouterData, resp *connhttp.Response) error {
	var out struct {
		PayoutID string `json:"payout_id"`
		State    string `json:"state"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return err
	}
	rd.Resolve(connector.PayoutsResponse{ConnectorPayoutID: out.PayoutID, Status: out.State})
	return nil
}

func (i *payoutIntegration) HandleErrorResponse(resp *connhttp.Response) connector.ErrorResponse {
	return decodeErrorEnvelope(resp)
}

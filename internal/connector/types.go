package connector

import (
	"time"

	"github.com/cassiomorais/switchboard/internal/domain/payments"
	"github.com/google/uuid"
)

// RouterData is the unified envelope for one connector call. It is built
// fresh per attempt by the Domain stage, owned by the engine call stack, and
// carries either Response or Error when it comes back — the engine sets
// exactly one of them exactly once.
type RouterData struct {
	Flow                Flow
	MerchantID          string
	PaymentID           uuid.UUID
	AttemptID           uuid.UUID
	ConnectorName       string
	MerchantConnectorID string
	Auth                AuthType
	Address             *Address
	Status              payments.AttemptStatus
	AccessToken         *AccessToken
	SessionToken        *string

	Request  RequestData
	Response ResponseData
	Error    *ErrorResponse
}

// Succeeded reports whether the call resolved without a normalized error.
func (rd *RouterData) Succeeded() bool {
	return rd.Error == nil
}

// Fail attaches a normalized error. The first failure wins; later calls are
// ignored so the exactly-once invariant holds on every engine branch.
func (rd *RouterData) Fail(e ErrorResponse) {
	if rd.Error == nil && rd.Response == nil {
		rd.Error = &e
	}
}

// Resolve attaches the normalized success response, subject to the same
// exactly-once rule as Fail.
func (rd *RouterData) Resolve(resp ResponseData) {
	if rd.Error == nil && rd.Response == nil {
		rd.Response = resp
	}
}

// RequestData is implemented by the flow-specific request payloads.
type RequestData interface {
	isRequestData()
}

// ResponseData is implemented by the flow-specific response payloads.
type ResponseData interface {
	isResponseData()
}

// Address carries billing details some connectors require.
type Address struct {
	Line1   string
	Line2   string
	City    string
	State   string
	Zip     string
	Country string
}

// AccessToken is a connector OAuth-style token obtained via AccessTokenAuth.
// Cached externally per merchant+connector; never stored on the adapter.
type AccessToken struct {
	Token     string
	ExpiresIn time.Duration
}

// PaymentMethodType names the normalized payment-method families.
type PaymentMethodType string

const (
	MethodCard         PaymentMethodType = "card"
	MethodWallet       PaymentMethodType = "wallet"
	MethodBankTransfer PaymentMethodType = "bank_transfer"
	MethodBankDebit    PaymentMethodType = "bank_debit"
)

// PaymentMethodData is the normalized payment instrument. Exactly one member
// is non-nil; Type names which.
type PaymentMethodData struct {
	Type         PaymentMethodType
	Card         *CardData
	Wallet       *WalletData
	BankTransfer *BankTransferData
	BankDebit    *BankDebitData
}

type CardData struct {
	Number       string
	ExpMonth     string
	ExpYear      string
	CVC          string
	HolderName   string
	NetworkToken *string
}

type WalletData struct {
	Provider string
	Token    string
}

type BankTransferData struct {
	AccountNumber string
	RoutingNumber string
	BankName      string
	Country       string
}

type BankDebitData struct {
	AccountNumber string
	SortCode      string
	HolderName    string
}

// PaymentsRequest is the normalized request for Authorize/Capture/Void/PSync
// and the authentication flows.
type PaymentsRequest struct {
	AmountMinor          int64
	Currency             string
	PaymentMethod        *PaymentMethodData
	CaptureMethod        payments.CaptureMethod
	ConnectorTransactionID *string
	MandateReference     *string
	SetupFutureUsage     bool
	ReturnURL            *string
	Description          *string
	CustomerID           *string
	OffSession           bool
}

func (PaymentsRequest) isRequestData() {}

// PaymentsResponse is the normalized success payload for payment flows.
type PaymentsResponse struct {
	ResourceID             string
	ConnectorTransactionID string
	RedirectURL            *string
	MandateReference       *string
	NetworkTransactionID   *string
	SessionToken           *string
}

func (PaymentsResponse) isResponseData() {}

// RefundsRequest is the normalized request for ExecuteRefund and RSync.
type RefundsRequest struct {
	RefundID               uuid.UUID
	ConnectorTransactionID string
	ConnectorRefundID      *string
	AmountMinor            int64
	Currency               string
	Reason                 *string
}

func (RefundsRequest) isRequestData() {}

// RefundsResponse is the normalized refund outcome.
type RefundsResponse struct {
	ConnectorRefundID string
	Status            payments.RefundStatus
}

func (RefundsResponse) isResponseData() {}

// PayoutMethodData is the normalized payout destination.
type PayoutMethodData struct {
	Type PaymentMethodType
	Card *CardData
	Bank *BankTransferData
}

// PayoutsRequest is the normalized request for PayoutCreate.
type PayoutsRequest struct {
	AmountMinor  int64
	Currency     string
	PayoutMethod *PayoutMethodData
}

func (PayoutsRequest) isRequestData() {}

// PayoutsResponse is the normalized payout outcome.
type PayoutsResponse struct {
	ConnectorPayoutID string
	Status            string
}

func (PayoutsResponse) isResponseData() {}

// AccessTokenRequest is the credentials exchange for AccessTokenAuth.
type AccessTokenRequest struct{}

func (AccessTokenRequest) isRequestData() {}

// AccessTokenResponse carries the obtained token.
type AccessTokenResponse struct {
	Token AccessToken
}

func (AccessTokenResponse) isResponseData() {}

// SessionRequest asks the connector for a client session token.
type SessionRequest struct {
	AmountMinor int64
	Currency    string
}

func (SessionRequest) isRequestData() {}

// SessionResponse carries the client session token.
type SessionResponse struct {
	SessionToken string
}

func (SessionResponse) isResponseData() {}

// CustomerRequest asks the connector to create a customer object.
type CustomerRequest struct {
	CustomerID string
	Email      *string
	Name       *string
}

func (CustomerRequest) isRequestData() {}

// CustomerResponse carries the connector-side customer id.
type CustomerResponse struct {
	ConnectorCustomerID string
}

func (CustomerResponse) isResponseData() {}

package controller

import (
	"time"

	"github.com/cassiomorais/switchboard/internal/connector"
	"github.com/cassiomorais/switchboard/internal/domain/payments"
)

// --- Request DTOs ---
// DTOs carry HTTP/JSON concerns (string ids, validation tags). Controllers
// convert them to operation requests before touching the pipeline.

// CreatePaymentRequest holds the input for opening a payment intent.
type CreatePaymentRequest struct {
	AmountMinor     int64   `json:"amount" validate:"required,gt=0"`
	Currency        string  `json:"currency" validate:"required,len=3"`
	CaptureMethod   string  `json:"capture_method,omitempty" validate:"omitempty,oneof=automatic manual"`
	PaymentMethod   *PaymentMethodDTO `json:"payment_method,omitempty"`
	Description     *string `json:"description,omitempty"`
	ReturnURL       *string `json:"return_url,omitempty" validate:"omitempty,url"`
	CustomerID      *string `json:"customer_id,omitempty"`
	SetupFutureUsage bool   `json:"setup_future_usage,omitempty"`
}

// ConfirmPaymentRequest holds the input for confirming an intent.
type ConfirmPaymentRequest struct {
	ClientSecret  string            `json:"client_secret,omitempty"`
	PaymentMethod *PaymentMethodDTO `json:"payment_method,omitempty"`
	MandateID     *string           `json:"mandate_id,omitempty" validate:"omitempty,uuid"`
}

// CapturePaymentRequest holds the input for capturing an authorization.
type CapturePaymentRequest struct {
	AmountToCapture *int64 `json:"amount_to_capture,omitempty" validate:"omitempty,gt=0"`
}

// CancelPaymentRequest holds the input for cancelling an intent.
type CancelPaymentRequest struct {
	CancellationReason *string `json:"cancellation_reason,omitempty"`
}

// CreateRefundRequest holds the input for refunding a payment.
type CreateRefundRequest struct {
	PaymentID   string  `json:"payment_id" validate:"required,uuid"`
	AmountMinor *int64  `json:"amount,omitempty" validate:"omitempty,gt=0"`
	Currency    string  `json:"currency,omitempty" validate:"omitempty,len=3"`
	Reason      *string `json:"reason,omitempty"`
}

// SetupMandateRequest holds the input for a zero-amount mandate setup.
type SetupMandateRequest struct {
	CustomerID    string            `json:"customer_id" validate:"required"`
	Currency      string            `json:"currency" validate:"required,len=3"`
	PaymentMethod *PaymentMethodDTO `json:"payment_method" validate:"required"`
}

// PaymentMethodDTO is the wire shape of a payment instrument.
type PaymentMethodDTO struct {
	Type         string            `json:"type" validate:"required,oneof=card wallet bank_transfer bank_debit"`
	Card         *CardDTO          `json:"card,omitempty"`
	Wallet       *WalletDTO        `json:"wallet,omitempty"`
	BankTransfer *BankTransferDTO  `json:"bank_transfer,omitempty"`
	BankDebit    *BankDebitDTO     `json:"bank_debit,omitempty"`
}

type CardDTO struct {
	Number     string  `json:"number" validate:"required"`
	ExpMonth   string  `json:"exp_month" validate:"required"`
	ExpYear    string  `json:"exp_year" validate:"required"`
	CVC        string  `json:"cvc" validate:"required"`
	HolderName string  `json:"holder_name,omitempty"`
}

type WalletDTO struct {
	Provider string `json:"provider" validate:"required"`
	Token    string `json:"token" validate:"required"`
}

type BankTransferDTO struct {
	AccountNumber string `json:"account_number" validate:"required"`
	RoutingNumber string `json:"routing_number" validate:"required"`
	BankName      string `json:"bank_name,omitempty"`
	Country       string `json:"country" validate:"required,len=2"`
}

type BankDebitDTO struct {
	AccountNumber string `json:"account_number" validate:"required"`
	SortCode      string `json:"sort_code" validate:"required"`
	HolderName    string `json:"holder_name,omitempty"`
}

// --- Response DTOs ---

// PaymentResponse represents an intent with its active attempt.
type PaymentResponse struct {
	ID              string     `json:"id"`
	Status          string     `json:"status"`
	AmountMinor     int64      `json:"amount"`
	AmountCaptured  int64      `json:"amount_captured"`
	Currency        string     `json:"currency"`
	CaptureMethod   string     `json:"capture_method"`
	ClientSecret    string     `json:"client_secret,omitempty"`
	AttemptCount    int        `json:"attempt_count"`
	Description     *string    `json:"description,omitempty"`
	CustomerID      *string    `json:"customer_id,omitempty"`
	Attempt         *AttemptResponse `json:"attempt,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// AttemptResponse represents the active attempt in API responses.
type AttemptResponse struct {
	ID                     string  `json:"id"`
	Status                 string  `json:"status"`
	Connector              *string `json:"connector,omitempty"`
	ConnectorTransactionID *string `json:"connector_transaction_id,omitempty"`
	ErrorCode              *string `json:"error_code,omitempty"`
	ErrorMessage           *string `json:"error_message,omitempty"`
	ErrorReason            *string `json:"error_reason,omitempty"`
}

// RefundResponse represents a refund in API responses.
type RefundResponse struct {
	ID                string    `json:"id"`
	PaymentID         string    `json:"payment_id"`
	Status            string    `json:"status"`
	AmountMinor       int64     `json:"amount"`
	Currency          string    `json:"currency"`
	Connector         string    `json:"connector,omitempty"`
	ConnectorRefundID *string   `json:"connector_refund_id,omitempty"`
	Reason            *string   `json:"reason,omitempty"`
	ErrorCode         *string   `json:"error_code,omitempty"`
	ErrorMessage      *string   `json:"error_message,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// MandateResponse represents a stored mandate.
type MandateResponse struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Connector  string    `json:"connector"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// ConnectorResponse describes one registered connector's capability matrix.
type ConnectorResponse struct {
	Name             string   `json:"name"`
	DisplayName      string   `json:"display_name"`
	Flows            []string `json:"flows"`
	PaymentMethods   []string `json:"payment_methods"`
	CaptureMethods   []string `json:"capture_methods"`
	SupportsRefunds  bool     `json:"supports_refunds"`
	SupportsMandates bool     `json:"supports_mandates"`
	SupportsWebhooks bool     `json:"supports_webhooks"`
}

// APIError represents an error response.
type APIError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Conversion helpers ---

// FromIntent converts tracker state to the API response. The client secret is
// included only on creation responses.
func FromIntent(intent *payments.PaymentIntent, attempt *payments.PaymentAttempt, includeSecret bool) *PaymentResponse {
	resp := &PaymentResponse{
		ID:             intent.ID.String(),
		Status:         string(intent.Status),
		AmountMinor:    intent.Amount.ValueMinor,
		AmountCaptured: intent.AmountCaptured,
		Currency:       intent.Amount.Currency,
		CaptureMethod:  string(intent.CaptureMethod),
		AttemptCount:   intent.AttemptCount,
		Description:    intent.Description,
		CustomerID:     intent.CustomerID,
		CreatedAt:      intent.CreatedAt,
		UpdatedAt:      intent.UpdatedAt,
	}
	if includeSecret {
		resp.ClientSecret = intent.ClientSecret
	}
	if attempt != nil {
		resp.Attempt = &AttemptResponse{
			ID:                     attempt.ID.String(),
			Status:                 string(attempt.Status),
			Connector:              attempt.Connector,
			ConnectorTransactionID: attempt.ConnectorTransactionID,
			ErrorCode:              attempt.ErrorCode,
			ErrorMessage:           attempt.ErrorMessage,
			ErrorReason:            attempt.ErrorReason,
		}
	}
	return resp
}

// FromRefund converts a refund to the API response.
func FromRefund(r *payments.Refund) *RefundResponse {
	return &RefundResponse{
		ID:                r.ID.String(),
		PaymentID:         r.PaymentID.String(),
		Status:            string(r.Status),
		AmountMinor:       r.Amount.ValueMinor,
		Currency:          r.Amount.Currency,
		Connector:         r.Connector,
		ConnectorRefundID: r.ConnectorRefundID,
		Reason:            r.Reason,
		ErrorCode:         r.ErrorCode,
		ErrorMessage:      r.ErrorMessage,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

// FromMandate converts a mandate to the API response.
func FromMandate(m *payments.Mandate) *MandateResponse {
	return &MandateResponse{
		ID:         m.ID.String(),
		CustomerID: m.CustomerID,
		Connector:  m.Connector,
		Status:     string(m.Status),
		CreatedAt:  m.CreatedAt,
	}
}

// FromCapability converts a connector's capability matrix to the API response.
func FromCapability(name string, c connector.Capability) *ConnectorResponse {
	flows := make([]string, 0, len(c.Flows))
	for _, f := range c.Flows {
		flows = append(flows, string(f))
	}
	methods := make([]string, 0, len(c.PaymentMethods))
	for _, m := range c.PaymentMethods {
		methods = append(methods, string(m))
	}
	captures := make([]string, 0, len(c.CaptureMethods))
	for _, cm := range c.CaptureMethods {
		captures = append(captures, string(cm))
	}
	return &ConnectorResponse{
		Name:             name,
		DisplayName:      c.DisplayName,
		Flows:            flows,
		PaymentMethods:   methods,
		CaptureMethods:   captures,
		SupportsRefunds:  c.SupportsRefunds,
		SupportsMandates: c.SupportsMandates,
		SupportsWebhooks: c.SupportsWebhooks,
	}
}

// PaymentMethodFrom converts the wire DTO into the normalized instrument.
func PaymentMethodFrom(dto *PaymentMethodDTO) *connector.PaymentMethodData {
	if dto == nil {
		return nil
	}
	out := &connector.PaymentMethodData{Type: connector.PaymentMethodType(dto.Type)}
	if dto.Card != nil {
		out.Card = &connector.CardData{
			Number:     dto.Card.Number,
			ExpMonth:   dto.Card.ExpMonth,
			ExpYear:    dto.Card.ExpYear,
			CVC:        dto.Card.CVC,
			HolderName: dto.Card.HolderName,
		}
	}
	if dto.Wallet != nil {
		out.Wallet = &connector.WalletData{Provider: dto.Wallet.Provider, Token: dto.Wallet.Token}
	}
	if dto.BankTransfer != nil {
		out.BankTransfer = &connector.BankTransferData{
			AccountNumber: dto.BankTransfer.AccountNumber,
			RoutingNumber: dto.BankTransfer.RoutingNumber,
			BankName:      dto.BankTransfer.BankName,
			Country:       dto.BankTransfer.Country,
		}
	}
	if dto.BankDebit != nil {
		out.BankDebit = &connector.BankDebitData{
			AccountNumber: dto.BankDebit.AccountNumber,
			SortCode:      dto.BankDebit.SortCode,
			HolderName:    dto.BankDebit.HolderName,
		}
	}
	return out
}

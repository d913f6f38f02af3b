package controller

import (
	"net/http"

	"github.com/cassiomorais/switchboard/internal/domain/payments"
	"github.com/cassiomorais/switchboard/internal/middleware"
	"github.com/cassiomorais/switchboard/internal/operations"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// PaymentController handles payment lifecycle HTTP requests.
type PaymentController struct {
	ops *operations.Service
}

// NewPaymentController creates a new PaymentController.
func NewPaymentController(ops *operations.Service) *PaymentController {
	return &PaymentController{ops: ops}
}

// merchantFrom reads the authenticated merchant id set by the auth middleware.
func merchantFrom(r *http.Request) string {
	return middleware.GetMerchantID(r.Context())
}

// CreatePayment handles POST /api/v1/payments
func (h *PaymentController) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	capture := payments.CaptureMethod(req.CaptureMethod)
	trk, err := operations.Run(r.Context(), h.ops, operations.PaymentCreate{}, &operations.PaymentRequest{
		MerchantID:       merchantFrom(r),
		Amount:           payments.Amount{ValueMinor: req.AmountMinor, Currency: req.Currency},
		CaptureMethod:    capture,
		PaymentMethod:    PaymentMethodFrom(req.PaymentMethod),
		Description:      req.Description,
		ReturnURL:        req.ReturnURL,
		CustomerID:       req.CustomerID,
		SetupFutureUsage: req.SetupFutureUsage,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, FromIntent(trk.Intent, trk.Attempt, true))
}

// ConfirmPayment handles POST /api/v1/payments/{id}/confirm
func (h *PaymentController) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Error: "invalid payment id", Code: "invalid_id"})
		return
	}
	var req ConfirmPaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	opReq := &operations.PaymentRequest{
		MerchantID:    merchantFrom(r),
		PaymentID:     id,
		ClientSecret:  req.ClientSecret,
		PaymentMethod: PaymentMethodFrom(req.PaymentMethod),
	}
	if req.MandateID != nil {
		mid, err := uuid.Parse(*req.MandateID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, APIError{Error: "invalid mandate id", Code: "invalid_id"})
			return
		}
		opReq.MandateID = &mid
	}

	trk, err := operations.Run(r.Context(), h.ops, operations.PaymentConfirm{}, opReq)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromIntent(trk.Intent, trk.Attempt, false))
}

// CapturePayment handles POST /api/v1/payments/{id}/capture
func (h *PaymentController) CapturePayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Error: "invalid payment id", Code: "invalid_id"})
		return
	}
	var req CapturePaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	trk, err := operations.Run(r.Context(), h.ops, operations.PaymentCapture{}, &operations.PaymentRequest{
		MerchantID:      merchantFrom(r),
		PaymentID:       id,
		AmountToCapture: req.AmountToCapture,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromIntent(trk.Intent, trk.Attempt, false))
}

// CancelPayment handles POST /api/v1/payments/{id}/cancel
func (h *PaymentController) CancelPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Error: "invalid payment id", Code: "invalid_id"})
		return
	}
	var req CancelPaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	trk, err := operations.Run(r.Context(), h.ops, operations.PaymentCancel{}, &operations.PaymentRequest{
		MerchantID:         merchantFrom(r),
		PaymentID:          id,
		CancellationReason: req.CancellationReason,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromIntent(trk.Intent, trk.Attempt, false))
}

// GetPayment handles GET /api/v1/payments/{id}; force_sync=true runs PSync.
func (h *PaymentController) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Error: "invalid payment id", Code: "invalid_id"})
		return
	}

	trk, err := operations.Run(r.Context(), h.ops, operations.PaymentSync{}, &operations.PaymentRequest{
		MerchantID:   merchantFrom(r),
		PaymentID:    id,
		ClientSecret: r.URL.Query().Get("client_secret"),
		ForceSync:    r.URL.Query().Get("force_sync") == "true",
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromIntent(trk.Intent, trk.Attempt, false))
}

// SetupMandate handles POST /api/v1/mandates
func (h *PaymentController) SetupMandate(w http.ResponseWriter, r *http.Request) {
	var req SetupMandateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	mandate, err := operations.SetupMandate{}.Execute(r.Context(), h.ops, &operations.MandateRequest{
		MerchantID:    merchantFrom(r),
		CustomerID:    req.CustomerID,
		Currency:      req.Currency,
		PaymentMethod: PaymentMethodFrom(req.PaymentMethod),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, FromMandate(mandate))
}

// RevokeMandate handles POST /api/v1/mandates/{id}/revoke
func (h *PaymentController) RevokeMandate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Error: "invalid mandate id", Code: "invalid_id"})
		return
	}
	if err := h.ops.RevokeMandate(r.Context(), merchantFrom(r), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(payments.MandateRevoked)})
}

// GetMandate handles GET /api/v1/mandates/{id}
func (h *PaymentController) GetMandate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Error: "invalid mandate id", Code: "invalid_id"})
		return
	}
	mandate, err := h.ops.Mandates.FindByID(r.Context(), merchantFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromMandate(mandate))
}

package controller

import (
	"net/http"

	"github.com/cassiomorais/switchboard/internal/domain/payments"
	"github.com/cassiomorais/switchboard/internal/operations"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// RefundController handles refund HTTP requests.
type RefundController struct {
	ops *operations.Service
}

// NewRefundController creates a new RefundController.
func NewRefundController(ops *operations.Service) *RefundController {
	return &RefundController{ops: ops}
}

// CreateRefund handles POST /api/v1/refunds
func (h *RefundController) CreateRefund(w http.ResponseWriter, r *http.Request) {
	var req CreateRefundRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	paymentID, err := uuid.Parse(req.PaymentID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Error: "invalid payment id", Code: "invalid_id"})
		return
	}

	opReq := &operations.RefundRequest{
		MerchantID: merchantFrom(r),
		PaymentID:  paymentID,
		Reason:     req.Reason,
	}
	if req.AmountMinor != nil {
		opReq.Amount = &payments.Amount{ValueMinor: *req.AmountMinor, Currency: req.Currency}
	}

	trk, err := operations.RunRefund(r.Context(), h.ops, operations.RefundCreate{}, opReq)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, FromRefund(trk.Refund))
}

// GetRefund handles GET /api/v1/refunds/{id}; force_sync=true runs RSync.
func (h *RefundController) GetRefund(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Error: "invalid refund id", Code: "invalid_id"})
		return
	}

	trk, err := operations.RunRefund(r.Context(), h.ops, operations.RefundSync{}, &operations.RefundRequest{
		MerchantID: merchantFrom(r),
		RefundID:   id,
		ForceSync:  r.URL.Query().Get("force_sync") == "true",
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromRefund(trk.Refund))
}

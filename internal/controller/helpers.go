package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cassiomorais/switchboard/internal/connector"
	domainErrors "github.com/cassiomorais/switchboard/internal/domain/errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domainErrors.ErrPaymentNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrAttemptNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrRefundNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrMandateNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrClientSecretInvalid, http.StatusForbidden, "client_secret_invalid"},
	{domainErrors.ErrClientSecretExpired, http.StatusForbidden, "client_secret_expired"},
	{domainErrors.ErrDuplicateIdempotencyKey, http.StatusConflict, "duplicate_request"},
	{domainErrors.ErrInvalidStateTransition, http.StatusConflict, "invalid_state_transition"},
	{domainErrors.ErrUniqueViolation, http.StatusConflict, "conflict"},
	{domainErrors.ErrConnectorNotFound, http.StatusBadRequest, "connector_not_found"},
	{domainErrors.ErrConnectorUnavailable, http.StatusServiceUnavailable, "connector_unavailable"},
	{domainErrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domainErrors.ErrForbidden, http.StatusForbidden, "forbidden"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	resp := APIError{Error: err.Error()}

	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		resp.Code = "validation_error"
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	var stateErr *domainErrors.UnexpectedStateError
	if errors.As(err, &stateErr) {
		resp.Code = "unexpected_state"
		writeJSON(w, http.StatusConflict, resp)
		return
	}

	var connErr *connector.Error
	if errors.As(err, &connErr) {
		resp.Code = connErr.Code
		writeJSON(w, statusForConnectorKind(connErr.Kind), resp)
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			resp.Code = m.code
			writeJSON(w, m.status, resp)
			return
		}
	}

	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		resp.Code = domainErr.Code
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	log.Error().Err(err).Msg("unhandled error in handler")
	resp.Code = "internal_error"
	resp.Error = "internal server error"
	writeJSON(w, http.StatusInternalServerError, resp)
}

// statusForConnectorKind maps the error taxonomy onto HTTP statuses: caller
// problems are 4xx, only transport faults surface as 5xx.
func statusForConnectorKind(kind connector.ErrorKind) int {
	switch kind {
	case connector.KindConfiguration:
		return http.StatusBadRequest
	case connector.KindCapability:
		return http.StatusBadRequest
	case connector.KindState:
		return http.StatusConflict
	case connector.KindTransport:
		return http.StatusBadGateway
	}
	return http.StatusUnprocessableEntity
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Field(), ve[0].Tag()+" validation failed")
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}

package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/speedpay/speedpay-api/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

func RespondDomainError(w http.ResponseWriter, err error) {
	var appErr *AppError

	switch {
	case errors.Is(err, domain.ErrNotFound):
		appErr = ErrResourceNotFound
	case errors.Is(err, domain.ErrAccountNotFound):
		appErr = ErrAccountNotFound
	case errors.Is(err, domain.ErrInvalidAmount):
		appErr = ErrInvalidAmount
	case errors.Is(err, domain.ErrInsufficientFunds):
		appErr = ErrInsufficientFunds
	case errors.Is(err, domain.ErrInvalidTransactionKind):
		appErr = ErrValidationFailed
	case errors.Is(err, domain.ErrEmailTaken):
		appErr = ErrEmailTaken
	case errors.Is(err, domain.ErrInvalidRequest):
		appErr = ErrInvalidRequest
	default:
		slog.Error("unhandled domain error", "error", err)
		appErr = ErrInternalError
	}

	RespondAppError(w, appErr, nil)
}

// amountJSON renders a decimal as a bare JSON number with two fractional
// digits, matching the wire format of balances and amounts.
func amountJSON(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

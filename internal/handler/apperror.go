package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken       = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken       = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidCredentials = &AppError{http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password"}
	ErrRefreshRejected    = &AppError{http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Refresh token is blacklisted, invalid or expired"}
	ErrInvalidRequest     = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed   = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound   = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError      = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInvalidAmount     = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrInsufficientFunds = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient funds"}
	ErrAccountNotFound   = &AppError{http.StatusUnprocessableEntity, "ACCOUNT_NOT_FOUND", "Account not found"}
	ErrEmailTaken        = &AppError{http.StatusConflict, "EMAIL_ALREADY_REGISTERED", "A user with this email already exists"}
)

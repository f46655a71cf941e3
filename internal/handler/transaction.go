package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/speedpay/speedpay-api/internal/auth"
	"github.com/speedpay/speedpay-api/internal/domain"
	"github.com/speedpay/speedpay-api/internal/logging"
	"github.com/speedpay/speedpay-api/internal/service"
)

type ledger interface {
	Apply(ctx context.Context, req service.ApplyRequest) (*service.ApplyResult, error)
}

type TransactionHandler struct {
	ledger   ledger
	accounts accountGetter
}

func NewTransactionHandler(ledger ledger, accounts accountGetter) *TransactionHandler {
	return &TransactionHandler{ledger: ledger, accounts: accounts}
}

type createTransactionRequest struct {
	BankAccount     string          `json:"bank_account"`
	TransactionType string          `json:"transaction_type"`
	Amount          decimal.Decimal `json:"amount"`
}

func (r createTransactionRequest) Validate() []FieldError {
	var errs []FieldError
	if r.BankAccount == "" {
		errs = append(errs, FieldError{Field: "bank_account", Message: "required"})
	} else if _, err := uuid.Parse(r.BankAccount); err != nil {
		errs = append(errs, FieldError{Field: "bank_account", Message: "must be a valid account id"})
	}
	if r.TransactionType == "" {
		errs = append(errs, FieldError{Field: "transaction_type", Message: "required"})
	} else if !domain.TransactionKind(r.TransactionType).IsValid() {
		errs = append(errs, FieldError{Field: "transaction_type", Message: "must be Deposit or Withdraw"})
	}
	return errs
}

type createTransactionResponse struct {
	Transaction string      `json:"transaction"`
	Message     string      `json:"message"`
	NewBalance  json.Number `json:"new_balance"`
}

func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	authUserID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	accountID := uuid.MustParse(req.BankAccount)
	account, err := h.accounts.GetByID(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			RespondAppError(w, ErrAccountNotFound, nil)
			return
		}
		RespondDomainError(w, err)
		return
	}
	if account.UserID != authUserID {
		RespondAppError(w, ErrAccountNotFound, nil)
		return
	}

	result, err := h.ledger.Apply(r.Context(), service.ApplyRequest{
		AccountID: accountID,
		Kind:      domain.TransactionKind(req.TransactionType),
		Amount:    req.Amount,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrInsufficientFunds) && !errors.Is(err, domain.ErrInvalidAmount) {
			logging.FromContext(r.Context()).Error("failed to apply transaction", "error", err)
		}
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, createTransactionResponse{
		Transaction: result.TransactionNumber,
		Message:     "transaction successful",
		NewBalance:  amountJSON(result.NewBalance),
	})
}

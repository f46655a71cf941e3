package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/speedpay/speedpay-api/internal/domain"
	"github.com/speedpay/speedpay-api/internal/logging"
)

type accountGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BankAccount, error)
}

type transactionLister interface {
	ListByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, int, error)
}

type AccountHandler struct {
	accounts     accountGetter
	transactions transactionLister
}

func NewAccountHandler(accounts accountGetter, transactions transactionLister) *AccountHandler {
	return &AccountHandler{accounts: accounts, transactions: transactions}
}

type accountDTO struct {
	ID            uuid.UUID   `json:"id"`
	UserID        uuid.UUID   `json:"user_id"`
	AccountNumber string      `json:"account_number"`
	Balance       json.Number `json:"account_balance"`
	CreatedAt     time.Time   `json:"created_at"`
}

func toAccountDTO(a *domain.BankAccount) accountDTO {
	return accountDTO{
		ID:            a.ID,
		UserID:        a.UserID,
		AccountNumber: a.AccountNumber,
		Balance:       amountJSON(a.Balance),
		CreatedAt:     a.CreatedAt,
	}
}

type transactionDTO struct {
	ID                uuid.UUID   `json:"id"`
	AccountID         uuid.UUID   `json:"bank_account"`
	TransactionNumber string      `json:"transaction_id"`
	Kind              string      `json:"transaction_type"`
	Amount            json.Number `json:"amount"`
	CreatedAt         time.Time   `json:"created_at"`
}

func toTransactionDTO(t *domain.Transaction) transactionDTO {
	return transactionDTO{
		ID:                t.ID,
		AccountID:         t.AccountID,
		TransactionNumber: t.TransactionNumber,
		Kind:              string(t.Kind),
		Amount:            amountJSON(t.Amount),
		CreatedAt:         t.CreatedAt,
	}
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, appErr := accountForOwner(r, h.accounts)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	RespondSuccess(w, http.StatusOK, toAccountDTO(account))
}

func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	account, appErr := accountForOwner(r, h.accounts)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	limit, offset := pagination(r)
	txns, total, err := h.transactions.ListByAccountID(r.Context(), account.ID, limit, offset)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list transactions", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]transactionDTO, len(txns))
	for i := range txns {
		dtos[i] = toTransactionDTO(&txns[i])
	}

	RespondSuccess(w, http.StatusOK, map[string]any{
		"transactions": dtos,
		"total":        total,
		"limit":        limit,
		"offset":       offset,
	})
}

func pagination(r *http.Request) (limit, offset int) {
	limit, offset = 20, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

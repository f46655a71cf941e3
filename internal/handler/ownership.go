package handler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/speedpay/speedpay-api/internal/auth"
	"github.com/speedpay/speedpay-api/internal/domain"
)

// accountForOwner loads the {id} path account and verifies the
// authenticated user owns it. A foreign account is reported exactly like a
// missing one so account ids cannot be probed.
func accountForOwner(r *http.Request, accounts accountGetter) (*domain.BankAccount, *AppError) {
	authUserID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return nil, ErrMissingToken
	}

	accountID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return nil, ErrResourceNotFound
	}

	account, err := accounts.GetByID(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, ErrResourceNotFound
		}
		return nil, ErrInternalError
	}

	if account.UserID != authUserID {
		return nil, ErrResourceNotFound
	}

	return account, nil
}

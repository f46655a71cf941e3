package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/speedpay/speedpay-api/internal/domain"
	"github.com/speedpay/speedpay-api/internal/logging"
	"github.com/speedpay/speedpay-api/internal/service"
)

type userLister interface {
	ListUsers(ctx context.Context) ([]service.UserWithAccount, error)
}

type UserHandler struct {
	users userLister
}

func NewUserHandler(users userLister) *UserHandler {
	return &UserHandler{users: users}
}

type userDTO struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	DateOfBirth *string   `json:"date_of_birth"`
}

func toUserDTO(u *domain.User) userDTO {
	dto := userDTO{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
	}
	if u.DateOfBirth != nil {
		dob := u.DateOfBirth.Format("2006-01-02")
		dto.DateOfBirth = &dob
	}
	return dto
}

type userWithAccountDTO struct {
	User           userDTO    `json:"user"`
	AccountDetails accountDTO `json:"account_details"`
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.users.ListUsers(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list users", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]userWithAccountDTO, len(entries))
	for i := range entries {
		dtos[i] = userWithAccountDTO{
			User:           toUserDTO(&entries[i].User),
			AccountDetails: toAccountDTO(&entries[i].Account),
		}
	}

	RespondSuccess(w, http.StatusOK, map[string]any{"list_of_users": dtos})
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/speedpay/speedpay-api/internal/auth"
	"github.com/speedpay/speedpay-api/internal/domain"
	"github.com/speedpay/speedpay-api/internal/logging"
	"github.com/speedpay/speedpay-api/internal/repository"
	"github.com/speedpay/speedpay-api/internal/service"
)

type registrar interface {
	Register(ctx context.Context, req service.RegisterRequest) (*service.UserWithAccount, error)
}

type userReader interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type accountReader interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.BankAccount, error)
}

type refreshTokenStore interface {
	Create(ctx context.Context, token *repository.RefreshToken) error
	GetByHash(ctx context.Context, tokenHash string) (*repository.RefreshToken, error)
	Revoke(ctx context.Context, id uuid.UUID) error
}

type AuthHandler struct {
	registration  registrar
	users         userReader
	accounts      accountReader
	refreshTokens refreshTokenStore
	jwtSecret     string
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

func NewAuthHandler(
	registration registrar,
	users userReader,
	accounts accountReader,
	refreshTokens refreshTokenStore,
	jwtSecret string,
	accessExpiry, refreshExpiry time.Duration,
) *AuthHandler {
	return &AuthHandler{
		registration:  registration,
		users:         users,
		accounts:      accounts,
		refreshTokens: refreshTokens,
		jwtSecret:     jwtSecret,
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
	}
}

type registerRequest struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	DateOfBirth string `json:"date_of_birth"`
	Password    string `json:"password"`
}

func (r registerRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Email == "" {
		errs = append(errs, FieldError{Field: "email", Message: "required"})
	}
	if r.Name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "required"})
	}
	if len(r.Password) < 8 {
		errs = append(errs, FieldError{Field: "password", Message: "must be at least 8 characters"})
	}
	if r.DateOfBirth != "" {
		if _, err := time.Parse("2006-01-02", r.DateOfBirth); err != nil {
			errs = append(errs, FieldError{Field: "date_of_birth", Message: "must be YYYY-MM-DD"})
		}
	}
	return errs
}

type sessionResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	User         userDTO    `json:"user"`
	BankAccount  accountDTO `json:"bank_account"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	var dob *time.Time
	if req.DateOfBirth != "" {
		parsed, _ := time.Parse("2006-01-02", req.DateOfBirth)
		dob = &parsed
	}

	created, err := h.registration.Register(r.Context(), service.RegisterRequest{
		Email:       req.Email,
		Name:        req.Name,
		DateOfBirth: dob,
		Password:    req.Password,
	})
	if err != nil {
		logging.FromContext(r.Context()).Error("registration failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	session, err := h.issueSession(r.Context(), &created.User, &created.Account)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to issue session", "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	RespondSuccess(w, http.StatusCreated, session)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Email == "" {
		errs = append(errs, FieldError{Field: "email", Message: "required"})
	}
	if r.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "required"})
	}
	return errs
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			RespondAppError(w, ErrInvalidCredentials, nil)
			return
		}
		RespondDomainError(w, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		RespondAppError(w, ErrInvalidCredentials, nil)
		return
	}

	accounts, err := h.accounts.GetByUserID(r.Context(), user.ID)
	if err != nil || len(accounts) == 0 {
		logging.FromContext(r.Context()).Error("failed to load account for login", "error", err, "user_id", user.ID)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	session, err := h.issueSession(r.Context(), user, &accounts[0])
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to issue session", "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	RespondSuccess(w, http.StatusOK, session)
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Refresh == "" {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	stored, err := h.validRefreshToken(r.Context(), req.Refresh)
	if err != nil {
		RespondAppError(w, ErrRefreshRejected, nil)
		return
	}

	user, err := h.users.GetByID(r.Context(), stored.UserID)
	if err != nil {
		RespondAppError(w, ErrRefreshRejected, nil)
		return
	}

	// Rotation: the presented token is revoked and a fresh pair issued.
	if err := h.refreshTokens.Revoke(r.Context(), stored.ID); err != nil {
		logging.FromContext(r.Context()).Error("failed to revoke refresh token", "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	access, refresh, err := h.issueTokenPair(r.Context(), user)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to issue tokens", "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	RespondSuccess(w, http.StatusOK, map[string]string{
		"access_token":  access,
		"refresh_token": refresh,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Refresh == "" {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	stored, err := h.validRefreshToken(r.Context(), req.Refresh)
	if err != nil {
		RespondAppError(w, ErrRefreshRejected, nil)
		return
	}

	if err := h.refreshTokens.Revoke(r.Context(), stored.ID); err != nil {
		logging.FromContext(r.Context()).Error("failed to revoke refresh token", "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	RespondSuccess(w, http.StatusOK, map[string]string{"detail": "Successfully logged out."})
}

func (h *AuthHandler) validRefreshToken(ctx context.Context, raw string) (*repository.RefreshToken, error) {
	stored, err := h.refreshTokens.GetByHash(ctx, auth.HashRefreshToken(raw))
	if err != nil {
		return nil, err
	}
	if stored.Revoked || time.Now().After(stored.ExpiresAt) {
		return nil, domain.ErrNotFound
	}
	return stored, nil
}

func (h *AuthHandler) issueTokenPair(ctx context.Context, user *domain.User) (access, refresh string, err error) {
	access, err = auth.GenerateToken(user.ID, user.Email, h.jwtSecret, h.accessExpiry)
	if err != nil {
		return "", "", err
	}

	raw, hash, err := auth.NewRefreshToken()
	if err != nil {
		return "", "", err
	}

	now := time.Now().UTC()
	err = h.refreshTokens.Create(ctx, &repository.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: now.Add(h.refreshExpiry),
		CreatedAt: now,
	})
	if err != nil {
		return "", "", err
	}
	return access, raw, nil
}

func (h *AuthHandler) issueSession(ctx context.Context, user *domain.User, account *domain.BankAccount) (*sessionResponse, error) {
	access, refresh, err := h.issueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}
	return &sessionResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         toUserDTO(user),
		BankAccount:  toAccountDTO(account),
	}, nil
}

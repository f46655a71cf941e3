package handler_test

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedpay/speedpay-api/internal/handler"
	"github.com/speedpay/speedpay-api/internal/repository"
	"github.com/speedpay/speedpay-api/internal/service"
	"github.com/speedpay/speedpay-api/internal/testutil"
)

const testJWTSecret = "integration-test-secret"

func setupAuthHandler(db *sql.DB) *handler.AuthHandler {
	users := repository.NewUserRepository(db)
	accounts := repository.NewAccountRepository(db)
	refreshTokens := repository.NewRefreshTokenRepository(db)
	registration := service.NewRegistrationService(users, accounts, db)

	return handler.NewAuthHandler(
		registration, users, accounts, refreshTokens,
		testJWTSecret, 15*time.Minute, 24*time.Hour,
	)
}

type sessionData struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         struct {
		Email string `json:"email"`
	} `json:"user"`
	BankAccount struct {
		AccountNumber string      `json:"account_number"`
		Balance       json.Number `json:"account_balance"`
	} `json:"bank_account"`
}

func decodeSession(t *testing.T, body []byte) sessionData {
	t.Helper()
	var resp struct {
		Success bool        `json:"success"`
		Data    sessionData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.True(t, resp.Success)
	return resp.Data
}

func post(h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestAuthFlow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := setupAuthHandler(db)

	registerBody := `{"email":"flow@test.com","name":"Flow User","date_of_birth":"1990-06-15","password":"password123"}`
	rec := post(h.Register, "/api/v1/auth/register", registerBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	session := decodeSession(t, rec.Body.Bytes())
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, "flow@test.com", session.User.Email)
	assert.Regexp(t, `^[0-9]{10}$`, session.BankAccount.AccountNumber)
	assert.Equal(t, json.Number("0.00"), session.BankAccount.Balance)

	// Login with the same credentials.
	rec = post(h.Login, "/api/v1/auth/login", `{"email":"flow@test.com","password":"password123"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decodeSession(t, rec.Body.Bytes())
	assert.Equal(t, session.BankAccount.AccountNumber, login.BankAccount.AccountNumber)

	// Refresh rotates the pair; the old refresh token stops working.
	rec = post(h.Refresh, "/api/v1/auth/refresh", `{"refresh":"`+login.RefreshToken+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var refreshResp struct {
		Data struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refreshResp))
	assert.NotEmpty(t, refreshResp.Data.AccessToken)
	assert.NotEqual(t, login.RefreshToken, refreshResp.Data.RefreshToken)

	rec = post(h.Refresh, "/api/v1/auth/refresh", `{"refresh":"`+login.RefreshToken+`"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_REFRESH_TOKEN")

	// Logout revokes; a second logout with the same token is rejected.
	rec = post(h.Logout, "/api/v1/auth/logout", `{"refresh":"`+refreshResp.Data.RefreshToken+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Successfully logged out.")

	rec = post(h.Logout, "/api/v1/auth/logout", `{"refresh":"`+refreshResp.Data.RefreshToken+`"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := setupAuthHandler(db)

	rec := post(h.Register, "/api/v1/auth/register",
		`{"email":"creds@test.com","name":"Creds","password":"password123"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = post(h.Login, "/api/v1/auth/login", `{"email":"creds@test.com","password":"wrong-password"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_CREDENTIALS")

	rec = post(h.Login, "/api/v1/auth/login", `{"email":"nobody@test.com","password":"password123"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_CREDENTIALS")
}

func TestRegisterValidation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := setupAuthHandler(db)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing email", body: `{"name":"X","password":"password123"}`},
		{name: "short password", body: `{"email":"x@test.com","name":"X","password":"short"}`},
		{name: "bad date of birth", body: `{"email":"x@test.com","name":"X","password":"password123","date_of_birth":"15-06-1990"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := post(h.Register, "/api/v1/auth/register", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "VALIDATION_FAILED")
		})
	}

	rec := post(h.Register, "/api/v1/auth/register",
		`{"email":"taken@test.com","name":"First","password":"password123"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = post(h.Register, "/api/v1/auth/register",
		`{"email":"taken@test.com","name":"Second","password":"password123"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "EMAIL_ALREADY_REGISTERED")
}

package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/speedpay/speedpay-api/internal/domain"
)

func SeedTestUser(t *testing.T, db *sql.DB, email, name string) *domain.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	u := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	_, err = db.Exec(
		`INSERT INTO users (id, email, name, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return u
}

func SeedTestAccount(t *testing.T, db *sql.DB, userID uuid.UUID, accountNumber string, balance decimal.Decimal) *domain.BankAccount {
	t.Helper()

	a := &domain.BankAccount{
		ID:            uuid.New(),
		UserID:        userID,
		AccountNumber: accountNumber,
		Balance:       balance,
		CreatedAt:     time.Now().UTC(),
	}
	_, err := db.Exec(
		`INSERT INTO bank_accounts (id, user_id, account_number, balance, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.UserID, a.AccountNumber, a.Balance, a.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed account %s: %v", accountNumber, err)
	}
	return a
}

func GetAccountBalance(t *testing.T, db *sql.DB, accountID uuid.UUID) decimal.Decimal {
	t.Helper()

	var balance decimal.Decimal
	err := db.QueryRow(`SELECT balance FROM bank_accounts WHERE id = $1`, accountID).Scan(&balance)
	if err != nil {
		t.Fatalf("get balance for %s: %v", accountID, err)
	}
	return balance
}

func CountTransactions(t *testing.T, db *sql.DB, accountID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM transactions WHERE account_id = $1`, accountID).Scan(&count)
	if err != nil {
		t.Fatalf("count transactions for %s: %v", accountID, err)
	}
	return count
}

package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/speedpay/speedpay-api/internal/domain"
	"github.com/speedpay/speedpay-api/internal/logging"
	"github.com/speedpay/speedpay-api/internal/numgen"
	"golang.org/x/crypto/bcrypt"
)

type registrationUserRepo interface {
	Create(ctx context.Context, tx *sql.Tx, user *domain.User) error
	EmailExists(ctx context.Context, email string) (bool, error)
	List(ctx context.Context) ([]domain.User, error)
}

type registrationAccountRepo interface {
	Create(ctx context.Context, tx *sql.Tx, account *domain.BankAccount) error
	AccountNumberExists(ctx context.Context, tx *sql.Tx, accountNumber string) (bool, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.BankAccount, error)
}

// RegistrationService creates users and their bank account in one step.
// Every user gets exactly one account at registration, opened with a zero
// balance and a unique 10-digit account number.
type RegistrationService struct {
	users    registrationUserRepo
	accounts registrationAccountRepo
	db       *sql.DB
}

func NewRegistrationService(users registrationUserRepo, accounts registrationAccountRepo, db *sql.DB) *RegistrationService {
	return &RegistrationService{users: users, accounts: accounts, db: db}
}

type RegisterRequest struct {
	Email       string
	Name        string
	DateOfBirth *time.Time
	Password    string
}

type UserWithAccount struct {
	User    domain.User
	Account domain.BankAccount
}

func (s *RegistrationService) Register(ctx context.Context, req RegisterRequest) (*UserWithAccount, error) {
	log := logging.FromContext(ctx)

	taken, err := s.users.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("Register: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("Register: %w", domain.ErrEmailTaken)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("Register: hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
		DateOfBirth:  req.DateOfBirth,
		CreatedAt:    now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Register: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.users.Create(ctx, tx, user); err != nil {
		return nil, fmt.Errorf("Register: %w", err)
	}

	number, err := s.uniqueAccountNumber(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("Register: %w", err)
	}

	account := &domain.BankAccount{
		ID:            uuid.New(),
		UserID:        user.ID,
		AccountNumber: number,
		Balance:       decimal.Zero,
		CreatedAt:     now,
	}
	if err := s.accounts.Create(ctx, tx, account); err != nil {
		return nil, fmt.Errorf("Register: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Register: commit: %w", err)
	}

	log.Info("user registered",
		"user_id", user.ID,
		"account_id", account.ID,
		"account_number", account.AccountNumber,
	)

	return &UserWithAccount{User: *user, Account: *account}, nil
}

// ListUsers returns every user with their account details.
func (s *RegistrationService) ListUsers(ctx context.Context) ([]UserWithAccount, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListUsers: %w", err)
	}

	out := make([]UserWithAccount, 0, len(users))
	for _, u := range users {
		accounts, err := s.accounts.GetByUserID(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("ListUsers: %w", err)
		}
		entry := UserWithAccount{User: u}
		if len(accounts) > 0 {
			entry.Account = accounts[0]
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *RegistrationService) uniqueAccountNumber(ctx context.Context, tx *sql.Tx) (string, error) {
	for range maxNumberAttempts {
		number, err := numgen.Digits(numgen.AccountNumberLength)
		if err != nil {
			return "", fmt.Errorf("uniqueAccountNumber: %w", err)
		}
		exists, err := s.accounts.AccountNumberExists(ctx, tx, number)
		if err != nil {
			return "", fmt.Errorf("uniqueAccountNumber: %w", err)
		}
		if !exists {
			return number, nil
		}
	}
	return "", fmt.Errorf("uniqueAccountNumber: %w", domain.ErrNumberExhausted)
}

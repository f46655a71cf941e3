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
)

// Number generation retries before giving up. With 10^15 candidate
// transaction numbers a second collision in a row is already vanishingly
// unlikely; the unique index is the durable backstop.
const maxNumberAttempts = 5

type ledgerAccountRepo interface {
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.BankAccount, error)
	UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, newBalance decimal.Decimal) error
}

type ledgerTransactionRepo interface {
	Create(ctx context.Context, tx *sql.Tx, txn *domain.Transaction) error
	TransactionNumberExists(ctx context.Context, tx *sql.Tx, transactionNumber string) (bool, error)
}

// LedgerService applies deposit and withdraw operations to bank accounts.
// Every operation commits the balance write and the transaction row
// together, or not at all.
type LedgerService struct {
	accounts     ledgerAccountRepo
	transactions ledgerTransactionRepo
	db           *sql.DB
}

func NewLedgerService(accounts ledgerAccountRepo, transactions ledgerTransactionRepo, db *sql.DB) *LedgerService {
	return &LedgerService{accounts: accounts, transactions: transactions, db: db}
}

type ApplyRequest struct {
	AccountID uuid.UUID
	Kind      domain.TransactionKind
	Amount    decimal.Decimal
}

type ApplyResult struct {
	TransactionNumber string
	NewBalance        decimal.Decimal
	Transaction       *domain.Transaction
}

// Apply loads the account under a row lock, computes the candidate balance
// through the account's pure deposit/withdraw primitives, and persists the
// new balance together with an append-only transaction row. Rejections
// (invalid amount, unknown kind, insufficient funds, missing account) leave
// no trace in storage.
func (s *LedgerService) Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	log := logging.FromContext(ctx)

	if req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("Apply: %w", domain.ErrInvalidAmount)
	}
	if !req.Kind.IsValid() {
		return nil, fmt.Errorf("Apply: %q: %w", req.Kind, domain.ErrInvalidTransactionKind)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Apply: begin tx: %w", err)
	}
	defer tx.Rollback()

	account, err := s.accounts.GetForUpdate(ctx, tx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("Apply: %w", err)
	}

	var candidate decimal.Decimal
	switch req.Kind {
	case domain.TransactionKindDeposit:
		candidate, err = account.Deposit(req.Amount)
	case domain.TransactionKindWithdraw:
		candidate, err = account.Withdraw(req.Amount)
	}
	if err != nil {
		return nil, fmt.Errorf("Apply: %w", err)
	}

	number, err := s.uniqueTransactionNumber(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("Apply: %w", err)
	}

	txn := &domain.Transaction{
		ID:                uuid.New(),
		AccountID:         account.ID,
		TransactionNumber: number,
		Kind:              req.Kind,
		Amount:            req.Amount,
		CreatedAt:         time.Now().UTC(),
	}

	if err := s.accounts.UpdateBalance(ctx, tx, account.ID, candidate); err != nil {
		return nil, fmt.Errorf("Apply: %w", err)
	}
	if err := s.transactions.Create(ctx, tx, txn); err != nil {
		return nil, fmt.Errorf("Apply: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Apply: commit: %w", err)
	}

	log.Info("transaction applied",
		"account_id", account.ID,
		"transaction_number", number,
		"kind", req.Kind,
		"amount", req.Amount,
		"new_balance", candidate,
	)

	return &ApplyResult{
		TransactionNumber: number,
		NewBalance:        candidate,
		Transaction:       txn,
	}, nil
}

func (s *LedgerService) uniqueTransactionNumber(ctx context.Context, tx *sql.Tx) (string, error) {
	for range maxNumberAttempts {
		number, err := numgen.Digits(numgen.TransactionNumberLength)
		if err != nil {
			return "", fmt.Errorf("uniqueTransactionNumber: %w", err)
		}
		exists, err := s.transactions.TransactionNumberExists(ctx, tx, number)
		if err != nil {
			return "", fmt.Errorf("uniqueTransactionNumber: %w", err)
		}
		if !exists {
			return number, nil
		}
	}
	return "", fmt.Errorf("uniqueTransactionNumber: %w", domain.ErrNumberExhausted)
}

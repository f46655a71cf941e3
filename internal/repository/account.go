package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/speedpay/speedpay-api/internal/domain"
)

const accountColumns = `id, user_id, account_number, balance, created_at`

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, tx *sql.Tx, account *domain.BankAccount) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO bank_accounts (id, user_id, account_number, balance, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		account.ID, account.UserID, account.AccountNumber, account.Balance, account.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.BankAccount, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM bank_accounts WHERE id = $1`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.BankAccount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM bank_accounts WHERE user_id = $1 ORDER BY created_at`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByUserID: %w", err)
	}
	defer rows.Close()

	var accounts []domain.BankAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("GetByUserID: scan: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByUserID: rows: %w", err)
	}
	return accounts, nil
}

// GetForUpdate loads an account under a row lock. Concurrent ledger
// operations on the same account serialize here; operations on different
// accounts do not block each other.
func (r *AccountRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.BankAccount, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM bank_accounts WHERE id = $1 FOR UPDATE`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return a, nil
}

// UpdateBalance writes the new balance for exactly one account.
func (r *AccountRepository) UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, newBalance decimal.Decimal) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE bank_accounts SET balance = $1 WHERE id = $2`,
		newBalance, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateBalance: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateBalance: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateBalance: %w", domain.ErrAccountNotFound)
	}
	return nil
}

func (r *AccountRepository) AccountNumberExists(ctx context.Context, tx *sql.Tx, accountNumber string) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM bank_accounts WHERE account_number = $1)`, accountNumber,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("AccountNumberExists: %w", err)
	}
	return exists, nil
}

func scanAccount(s scanner) (*domain.BankAccount, error) {
	var a domain.BankAccount
	err := s.Scan(&a.ID, &a.UserID, &a.AccountNumber, &a.Balance, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

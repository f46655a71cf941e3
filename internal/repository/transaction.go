package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/speedpay/speedpay-api/internal/domain"
)

const transactionColumns = `id, account_id, transaction_number, kind, amount, created_at`

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *sql.Tx, txn *domain.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (id, account_id, transaction_number, kind, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		txn.ID, txn.AccountID, txn.TransactionNumber, txn.Kind, txn.Amount, txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *TransactionRepository) TransactionNumberExists(ctx context.Context, tx *sql.Tx, transactionNumber string) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE transaction_number = $1)`, transactionNumber,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("TransactionNumberExists: %w", err)
	}
	return exists, nil
}

func (r *TransactionRepository) ListByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE account_id = $1`, accountID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByAccountID: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		accountID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByAccountID: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ListByAccountID: scan: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ListByAccountID: rows: %w", err)
	}
	return txns, total, nil
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var t domain.Transaction
	err := s.Scan(&t.ID, &t.AccountID, &t.TransactionNumber, &t.Kind, &t.Amount, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BankAccount holds the balance for a single user. The balance is only
// ever changed through the ledger service; Deposit and Withdraw compute
// candidate balances without touching stored state, so every invariant
// (non-negative balance, positive amount) is checked before a durable
// write happens.
type BankAccount struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	AccountNumber string
	Balance       decimal.Decimal
	CreatedAt     time.Time
}

// Deposit returns the candidate balance after adding amount.
func (a *BankAccount) Deposit(amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("Deposit: %w", ErrInvalidAmount)
	}
	return a.Balance.Add(amount), nil
}

// Withdraw returns the candidate balance after subtracting amount. A
// withdrawal of the full balance is allowed and leaves the account at zero.
func (a *BankAccount) Withdraw(amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("Withdraw: %w", ErrInvalidAmount)
	}
	if amount.GreaterThan(a.Balance) {
		return decimal.Zero, fmt.Errorf("Withdraw: %w", ErrInsufficientFunds)
	}
	return a.Balance.Sub(amount), nil
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	TransactionKindDeposit  TransactionKind = "Deposit"
	TransactionKindWithdraw TransactionKind = "Withdraw"
)

func (k TransactionKind) IsValid() bool {
	switch k {
	case TransactionKindDeposit, TransactionKindWithdraw:
		return true
	}
	return false
}

// Transaction is one committed ledger movement. Rows are append-only: the
// transaction number is assigned once the balance mutation has been
// validated, and nothing is mutated afterwards.
type Transaction struct {
	ID                uuid.UUID
	AccountID         uuid.UUID
	TransactionNumber string
	Kind              TransactionKind
	Amount            decimal.Decimal
	CreatedAt         time.Time
}

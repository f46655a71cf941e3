package domain

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrAccountNotFound        = errors.New("account not found")
	ErrInvalidAmount          = errors.New("amount must be greater than zero")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrInvalidTransactionKind = errors.New("invalid transaction type")
	ErrEmailTaken             = errors.New("email already registered")
	ErrInvalidRequest         = errors.New("invalid request")
	ErrNumberExhausted        = errors.New("could not generate a unique number")
)

package ledger

import "errors"

var (
	// ErrAccountNumberTaken is returned by Store.InsertAccount when the
	// number is already in use.
	ErrAccountNumberTaken = errors.New("account number taken")
	// ErrAccountNotFound is returned when no account has the given number.
	ErrAccountNotFound = errors.New("account not found")
	// ErrVersionConflict is returned by Store.UpdateBalance when the
	// account changed since it was read.
	ErrVersionConflict = errors.New("account version conflict")
	// ErrExhausted is returned when no free account number or no
	// conflict-free update was found within the attempt budget.
	ErrExhausted = errors.New("ledger attempts exhausted")
	// ErrInsufficientFunds is returned when a debit would leave a negative balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidAmount is returned for zero or negative movement amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrNegativeBalance is returned when an account is opened below zero.
	ErrNegativeBalance = errors.New("balance must not be negative")
	// ErrSameAccount is returned when a transfer names one account twice.
	ErrSameAccount = errors.New("transfer source and destination are the same account")
	// ErrNoTransactions is returned by Transfer when the store cannot run
	// a transaction.
	ErrNoTransactions = errors.New("store does not support transactions")
)

// Package domain provides definitions of all ledger entities and the rules that keep them consistent.
package domain

import "errors"

// Ledger error taxonomy. Stores and services wrap these with detail;
// callers match them with errors.Is.
var (
	// ErrInvalidState indicates a malformed field or a negative initial balance.
	ErrInvalidState = errors.New("invalid state")
	// ErrNegativeBalance indicates that an append would drive the wallet balance below zero.
	ErrNegativeBalance = errors.New("resulting wallet balance cannot be negative")
	// ErrDuplicateTxid indicates that a transaction with the given txid already exists.
	ErrDuplicateTxid = errors.New("transaction with this txid already exists")
	// ErrImmutableRecord indicates an attempt to edit or delete a committed transaction.
	ErrImmutableRecord = errors.New("transactions cannot be edited or deleted")
	// ErrRetryable indicates lock contention or a transient storage conflict.
	ErrRetryable = errors.New("ledger is busy, retry the operation")
	// ErrWalletNotFound indicates that the wallet is not found.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrTransactionNotFound indicates that the transaction is not found.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// Kind returns the taxonomy name of err, or "internal" for anything else.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrNegativeBalance):
		return "negative_balance"
	case errors.Is(err, ErrDuplicateTxid):
		return "duplicate_txid"
	case errors.Is(err, ErrImmutableRecord):
		return "immutable_record"
	case errors.Is(err, ErrRetryable):
		return "retryable"
	case errors.Is(err, ErrWalletNotFound), errors.Is(err, ErrTransactionNotFound):
		return "not_found"
	}

	return "internal"
}

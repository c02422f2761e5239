package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/go-petr/pet-ledger/pkg/moneypkg"
)

// MaxTxIDLength is the longest txid that can be stored.
const MaxTxIDLength = 255

// Transaction is an immutable balance change of a wallet.
type Transaction struct {
	ID        int64           `json:"id"`
	WalletID  int64           `json:"wallet"`
	TxID      string          `json:"txid"`
	Amount    decimal.Decimal `json:"amount"` // positive is a credit, negative is a debit
	CreatedAt time.Time       `json:"created"`
}

// AppendTransactionParams is the input data for the append procedure.
type AppendTransactionParams struct {
	WalletID int64
	TxID     string
	Amount   decimal.Decimal
}

// Validate checks the field shapes. Balance rules are enforced by the store.
func (p AppendTransactionParams) Validate() error {
	if p.WalletID <= 0 {
		return fmt.Errorf("%w: wallet id must be positive", ErrInvalidState)
	}

	if p.TxID == "" {
		return fmt.Errorf("%w: txid is required", ErrInvalidState)
	}

	if len([]rune(p.TxID)) > MaxTxIDLength {
		return fmt.Errorf("%w: txid is longer than %d characters", ErrInvalidState, MaxTxIDLength)
	}

	if !moneypkg.Fits(p.Amount) {
		return fmt.Errorf("%w: amount %s does not fit numeric(36,18)", ErrInvalidState, p.Amount)
	}

	return nil
}

// UpdateTransactionParams carries the fields a caller tried to change on a committed transaction.
type UpdateTransactionParams struct {
	WalletID int64
	TxID     string
	Amount   decimal.Decimal
}

// AppendResult is the result of the append procedure: the new transaction
// and the wallet with its recomputed balance, committed together.
type AppendResult struct {
	Transaction Transaction `json:"transaction"`
	Wallet      Wallet      `json:"wallet"`
}

// ListTransactionsParams is the input data to list transactions.
type ListTransactionsParams struct {
	WalletID int64  // zero means any
	TxID     string // empty means any
	Ordering Ordering
	Page     int
}

// NextBalance returns the balance a wallet has after amount is applied to the
// sum of its committed transactions.
//
// The caller must hold the wallet's exclusive lock from reading sum until the
// new balance is committed.
func NextBalance(sum, amount decimal.Decimal) (decimal.Decimal, error) {
	balance := sum.Add(amount)

	if balance.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: balance %s, amount %s", ErrNegativeBalance, sum, amount)
	}

	if !moneypkg.Fits(balance) {
		return decimal.Decimal{}, fmt.Errorf("%w: balance %s overflows numeric(36,18)", ErrInvalidState, balance)
	}

	return balance, nil
}

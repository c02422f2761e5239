package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/go-petr/pet-ledger/pkg/moneypkg"
)

// MaxLabelLength is the longest wallet label that can be stored.
const MaxLabelLength = 255

// OpeningTxIDPrefix prefixes the txid of the transaction that carries a wallet's initial balance.
const OpeningTxIDPrefix = "opening-"

// Wallet holds a balance that always equals the sum of its transactions.
type Wallet struct {
	ID        int64           `json:"id"`
	Label     string          `json:"label"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created"`
}

// CreateWalletParams is the input data to open a wallet.
type CreateWalletParams struct {
	Label   string
	Balance decimal.Decimal // initial balance, normally zero
}

// Validate rejects wallets that must never reach storage.
func (p CreateWalletParams) Validate() error {
	if err := ValidateLabel(p.Label); err != nil {
		return err
	}

	if p.Balance.IsNegative() {
		return fmt.Errorf("%w: wallet balance cannot be negative", ErrInvalidState)
	}

	if !moneypkg.Fits(p.Balance) {
		return fmt.Errorf("%w: balance %s does not fit numeric(36,18)", ErrInvalidState, p.Balance)
	}

	return nil
}

// ValidateLabel checks the wallet label length.
func ValidateLabel(label string) error {
	if label == "" {
		return fmt.Errorf("%w: label is required", ErrInvalidState)
	}

	if len([]rune(label)) > MaxLabelLength {
		return fmt.Errorf("%w: label is longer than %d characters", ErrInvalidState, MaxLabelLength)
	}

	return nil
}

// ListWalletsParams is the input data to list wallets.
type ListWalletsParams struct {
	Label    string // exact match, empty means any
	Ordering Ordering
	Page     int
}

// BalanceCheck is the result of re-validating a wallet's cached balance.
type BalanceCheck struct {
	WalletID   int64           `json:"wallet"`
	Balance    decimal.Decimal `json:"balance"`
	Sum        decimal.Decimal `json:"sum"`
	Consistent bool            `json:"consistent"`
}

// NewBalanceCheck compares the stored balance against the transaction sum.
func NewBalanceCheck(walletID int64, balance, sum decimal.Decimal) BalanceCheck {
	return BalanceCheck{
		WalletID:   walletID,
		Balance:    balance,
		Sum:        sum,
		Consistent: balance.Equal(sum),
	}
}

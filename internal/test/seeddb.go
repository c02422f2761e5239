// Package test provides shared test helpers.
package test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/transactionrepo"
	"github.com/go-petr/pet-ledger/internal/walletrepo"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
	"github.com/go-petr/pet-ledger/pkg/randompkg"
)

// SeedWallet creates an empty wallet with a random label inside a test transaction.
func SeedWallet(t *testing.T, tx dbpkg.SQLInterface, rnd *randompkg.Source) domain.Wallet {
	t.Helper()

	label := rnd.Label()

	wallet, err := walletrepo.NewRepoPGS(tx).Create(context.Background(), label, decimal.Zero)
	if err != nil {
		t.Fatalf("walletRepo.Create(context.Background(), %q, 0) returned error: %v", label, err)
	}

	return wallet
}

// SeedTransaction inserts a transaction row and moves the wallet balance accordingly.
func SeedTransaction(t *testing.T, tx dbpkg.SQLInterface, walletID int64, txID string, amount decimal.Decimal) domain.Transaction {
	t.Helper()

	ctx := context.Background()
	walletRepo := walletrepo.NewRepoPGS(tx)

	wallet, err := walletRepo.Get(ctx, walletID)
	if err != nil {
		t.Fatalf("walletRepo.Get(ctx, %d) returned error: %v", walletID, err)
	}

	transaction, err := transactionrepo.NewRepoPGS(tx).Create(ctx, walletID, txID, amount)
	if err != nil {
		t.Fatalf("transactionRepo.Create(ctx, %d, %q, %s) returned error: %v", walletID, txID, amount, err)
	}

	if _, err := walletRepo.SetBalance(ctx, walletID, wallet.Balance.Add(amount)); err != nil {
		t.Fatalf("walletRepo.SetBalance(ctx, %d, ...) returned error: %v", walletID, err)
	}

	return transaction
}

// SeedTransactions creates count credits with random amounts for the wallet inside a test transaction.
func SeedTransactions(t *testing.T, tx dbpkg.SQLInterface, rnd *randompkg.Source, count int, walletID int64) []domain.Transaction {
	t.Helper()

	transactions := make([]domain.Transaction, 0, count)

	for i := 0; i < count; i++ {
		transactions = append(transactions, SeedTransaction(t, tx, walletID, rnd.TxID(), rnd.AmountBetween(1, 100)))
	}

	return transactions
}

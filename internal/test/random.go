package test

import (
	"time"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/randompkg"
)

// RandomWallet returns random wallet.
func RandomWallet(rnd *randompkg.Source) domain.Wallet {
	return domain.Wallet{
		ID:        int64(rnd.IntBetween(1, 100)),
		Label:     rnd.Label(),
		Balance:   rnd.AmountBetween(1000, 10_000),
		CreatedAt: time.Now().Truncate(time.Second).UTC(),
	}
}

// RandomTransaction returns random transaction of the given wallet.
func RandomTransaction(rnd *randompkg.Source, walletID int64) domain.Transaction {
	return domain.Transaction{
		ID:        int64(rnd.IntBetween(1, 1000)),
		WalletID:  walletID,
		TxID:      rnd.TxID(),
		Amount:    rnd.AmountBetween(-100, 100),
		CreatedAt: time.Now().Truncate(time.Second).UTC(),
	}
}

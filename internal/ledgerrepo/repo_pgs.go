// Package ledgerrepo implements the units of work that change wallet balances.
package ledgerrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/transactionrepo"
	"github.com/go-petr/pet-ledger/internal/walletrepo"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
)

// RepoPGS runs ledger units of work on a Postgres connection.
type RepoPGS struct {
	conn        *sql.DB
	lockTimeout time.Duration
}

// NewRepoPGS returns ledger RepoPGS. A positive lockTimeout bounds every lock wait
// inside a unit of work.
func NewRepoPGS(conn *sql.DB, lockTimeout time.Duration) *RepoPGS {
	return &RepoPGS{
		conn:        conn,
		lockTimeout: lockTimeout,
	}
}

func (r *RepoPGS) begin(ctx context.Context) (*sql.Tx, error) {
	l := zerolog.Ctx(ctx)

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	if r.lockTimeout > 0 {
		q := fmt.Sprintf("SET LOCAL lock_timeout = %d", r.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, q); err != nil {
			l.Error().Err(err).Send()
			rollback(ctx, tx)

			return nil, errorspkg.ErrInternal
		}
	}

	return tx, nil
}

func rollback(ctx context.Context, tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		zerolog.Ctx(ctx).Error().Err(err).Msg("rollback")
	}
}

func commit(ctx context.Context, tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("commit")

		if dbpkg.IsRetryable(err) {
			return fmt.Errorf("%w: %v", domain.ErrRetryable, err)
		}

		return errorspkg.ErrInternal
	}

	return nil
}

// CreateWallet opens a wallet.
//
// A positive initial balance is recorded as an opening transaction in the same
// database transaction, so the wallet balance equals the sum of its transactions
// from the start.
func (r *RepoPGS) CreateWallet(ctx context.Context, arg domain.CreateWalletParams) (domain.Wallet, error) {
	if err := arg.Validate(); err != nil {
		return domain.Wallet{}, err
	}

	tx, err := r.begin(ctx)
	if err != nil {
		return domain.Wallet{}, err
	}
	defer rollback(ctx, tx)

	walletRepo := walletrepo.NewRepoPGS(tx)
	transactionRepo := transactionrepo.NewRepoPGS(tx)

	wallet, err := walletRepo.Create(ctx, arg.Label, arg.Balance)
	if err != nil {
		return domain.Wallet{}, err
	}

	if arg.Balance.IsPositive() {
		txID := domain.OpeningTxIDPrefix + uuid.NewString()

		if _, err := transactionRepo.Create(ctx, wallet.ID, txID, arg.Balance); err != nil {
			return domain.Wallet{}, err
		}
	}

	if err := commit(ctx, tx); err != nil {
		return domain.Wallet{}, err
	}

	return wallet, nil
}

// Append adds a transaction to the wallet and stores the recomputed balance.
//
// The wallet row lock is held from reading the sum of transactions until commit,
// so appends to the same wallet are linearized while other wallets proceed.
// Any failure rolls the whole unit of work back.
func (r *RepoPGS) Append(ctx context.Context, arg domain.AppendTransactionParams) (domain.AppendResult, error) {
	l := zerolog.Ctx(ctx)

	var result domain.AppendResult

	if err := arg.Validate(); err != nil {
		return result, err
	}

	tx, err := r.begin(ctx)
	if err != nil {
		return result, err
	}
	defer rollback(ctx, tx)

	walletRepo := walletrepo.NewRepoPGS(tx)
	transactionRepo := transactionrepo.NewRepoPGS(tx)

	if _, err := walletRepo.GetForUpdate(ctx, arg.WalletID); err != nil {
		return result, err
	}

	sum, err := transactionRepo.SumForUpdate(ctx, arg.WalletID)
	if err != nil {
		return result, err
	}

	balance, err := domain.NextBalance(sum, arg.Amount)
	if err != nil {
		l.Info().Err(err).Int64("wallet", arg.WalletID).Msg("append rejected")
		return result, err
	}

	result.Transaction, err = transactionRepo.Create(ctx, arg.WalletID, arg.TxID, arg.Amount)
	if err != nil {
		return result, err
	}

	result.Wallet, err = walletRepo.SetBalance(ctx, arg.WalletID, balance)
	if err != nil {
		return result, err
	}

	if err := commit(ctx, tx); err != nil {
		return domain.AppendResult{}, err
	}

	return result, nil
}

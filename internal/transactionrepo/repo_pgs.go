// Package transactionrepo manages repository layer of transactions.
package transactionrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
)

// RepoPGS facilitates transaction repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns transaction RepoPGS running on a connection or a transaction.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

const transactionColumns = `id, wallet_id, txid, amount, created_at`

func scanTransaction(row interface{ Scan(...any) error }) (domain.Transaction, error) {
	var t domain.Transaction

	err := row.Scan(
		&t.ID,
		&t.WalletID,
		&t.TxID,
		&t.Amount,
		&t.CreatedAt,
	)

	return t, err
}

// mapError translates driver errors into ledger errors.
func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrTransactionNotFound
	}

	if dbpkg.IsRetryable(err) {
		return fmt.Errorf("%w: %v", domain.ErrRetryable, err)
	}

	switch dbpkg.Constraint(err) {
	case "transactions_txid_key":
		return domain.ErrDuplicateTxid
	case "transactions_wallet_id_fkey":
		return domain.ErrWalletNotFound
	case "transactions_immutable":
		return domain.ErrImmutableRecord
	}

	return errorspkg.ErrInternal
}

const createQuery = `
INSERT INTO
    transactions (wallet_id, txid, amount)
VALUES
    ($1, $2, $3)
RETURNING ` + transactionColumns

// Create inserts the transaction row and returns it.
//
// It does not touch the wallet balance, use the ledger store to append transactions.
func (r *RepoPGS) Create(ctx context.Context, walletID int64, txID string, amount decimal.Decimal) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	t, err := scanTransaction(r.db.QueryRowContext(ctx, createQuery, walletID, txID, amount))
	if err != nil {
		l.Error().Err(err).Msgf("Create(ctx, %d, %q, %s)", walletID, txID, amount)
		return domain.Transaction{}, mapError(err)
	}

	return t, nil
}

const getQuery = `
SELECT ` + transactionColumns + `
FROM transactions
WHERE id = $1
`

// Get returns the transaction with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int64) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	t, err := scanTransaction(r.db.QueryRowContext(ctx, getQuery, id))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			l.Error().Err(err).Send()
		}

		return domain.Transaction{}, mapError(err)
	}

	return t, nil
}

const sumForUpdateQuery = `
SELECT COALESCE(SUM(amount), 0)
FROM (
    SELECT amount
    FROM transactions
    WHERE wallet_id = $1
    FOR UPDATE
) t
`

// SumForUpdate returns the sum of the wallet's transactions, locking the summed rows.
//
// The caller must already hold the wallet row lock.
func (r *RepoPGS) SumForUpdate(ctx context.Context, walletID int64) (decimal.Decimal, error) {
	l := zerolog.Ctx(ctx)

	var sum decimal.Decimal

	if err := r.db.QueryRowContext(ctx, sumForUpdateQuery, walletID).Scan(&sum); err != nil {
		l.Error().Err(err).Send()
		return decimal.Decimal{}, mapError(err)
	}

	return sum, nil
}

const updateQuery = `
UPDATE transactions
SET wallet_id = $2, txid = $3, amount = $4
WHERE id = $1
RETURNING ` + transactionColumns

// Update always fails: the immutability trigger rejects changes of committed rows.
// A missing id gives domain.ErrTransactionNotFound.
func (r *RepoPGS) Update(ctx context.Context, id int64, arg domain.UpdateTransactionParams) error {
	l := zerolog.Ctx(ctx)

	_, err := scanTransaction(r.db.QueryRowContext(ctx, updateQuery, id, arg.WalletID, arg.TxID, arg.Amount))
	if err == nil {
		l.Error().Msgf("transaction %d was updated in spite of the immutability trigger", id)
		return errorspkg.ErrInternal
	}

	err = mapError(err)
	l.Warn().Err(err).Int64("id", id).Msg("update rejected")

	return err
}

const deleteQuery = `
DELETE FROM transactions
WHERE id = $1
`

// Delete always fails: the immutability trigger rejects removal of committed rows.
// A missing id gives domain.ErrTransactionNotFound.
func (r *RepoPGS) Delete(ctx context.Context, id int64) error {
	l := zerolog.Ctx(ctx)

	res, err := r.db.ExecContext(ctx, deleteQuery, id)
	if err != nil {
		err = mapError(err)
		l.Warn().Err(err).Int64("id", id).Msg("delete rejected")

		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		l.Error().Err(err).Send()
		return errorspkg.ErrInternal
	}

	if n == 0 {
		return domain.ErrTransactionNotFound
	}

	l.Error().Msgf("transaction %d was deleted in spite of the immutability trigger", id)

	return errorspkg.ErrInternal
}

var orderColumns = map[string]string{
	domain.OrderByCreated: "created_at",
	domain.OrderByID:      "id",
	domain.OrderByTxID:    "txid",
	domain.OrderByAmount:  "amount",
	domain.OrderByWallet:  "wallet_id",
}

const filter = `
WHERE ($1::bigint IS NULL OR wallet_id = $1)
  AND ($2::text IS NULL OR txid = $2)
`

const countQuery = `
SELECT count(*)
FROM transactions` + filter

const listQuery = `
SELECT ` + transactionColumns + `
FROM transactions` + filter + `
ORDER BY %s %s, id %[2]s
LIMIT $3 OFFSET $4
`

// List returns a page of transactions matching the filters together with the total count.
func (r *RepoPGS) List(ctx context.Context, arg domain.ListTransactionsParams) (domain.Page[domain.Transaction], error) {
	l := zerolog.Ctx(ctx)

	page := domain.Page[domain.Transaction]{Items: []domain.Transaction{}}

	column, ok := orderColumns[arg.Ordering.Field]
	if !ok {
		column = orderColumns[domain.OrderByCreated]
	}

	direction := "ASC"
	if arg.Ordering.Desc {
		direction = "DESC"
	}

	walletID := sql.NullInt64{Int64: arg.WalletID, Valid: arg.WalletID != 0}
	txID := sql.NullString{String: arg.TxID, Valid: arg.TxID != ""}

	if err := r.db.QueryRowContext(ctx, countQuery, walletID, txID).Scan(&page.Count); err != nil {
		l.Error().Err(err).Send()
		return page, errorspkg.ErrInternal
	}

	query := fmt.Sprintf(listQuery, column, direction)

	rows, err := r.db.QueryContext(ctx, query, walletID, txID, domain.PageSize, domain.PageOffset(arg.Page))
	if err != nil {
		l.Error().Err(err).Send()
		return page, errorspkg.ErrInternal
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return page, errorspkg.ErrInternal
		}

		page.Items = append(page.Items, t)
	}

	if err := rows.Close(); err != nil {
		l.Error().Err(err).Send()
		return page, errorspkg.ErrInternal
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return page, errorspkg.ErrInternal
	}

	return page, nil
}

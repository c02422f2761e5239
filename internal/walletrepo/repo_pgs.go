// Package walletrepo manages repository layer of wallets.
package walletrepo

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

// RepoPGS facilitates wallet repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns wallet RepoPGS running on a connection or a transaction.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

const walletColumns = `id, label, balance, created_at`

func scanWallet(row interface{ Scan(...any) error }) (domain.Wallet, error) {
	var w domain.Wallet

	err := row.Scan(
		&w.ID,
		&w.Label,
		&w.Balance,
		&w.CreatedAt,
	)

	return w, err
}

// mapError translates driver errors into ledger errors.
func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrWalletNotFound
	}

	if dbpkg.IsRetryable(err) {
		return fmt.Errorf("%w: %v", domain.ErrRetryable, err)
	}

	if dbpkg.Constraint(err) == "wallets_balance_check" {
		return fmt.Errorf("%w: wallet balance cannot be negative", domain.ErrInvalidState)
	}

	return errorspkg.ErrInternal
}

const createQuery = `
INSERT INTO
    wallets (label, balance)
VALUES
    ($1, $2)
RETURNING ` + walletColumns

// Create creates the wallet and then returns it.
func (r *RepoPGS) Create(ctx context.Context, label string, balance decimal.Decimal) (domain.Wallet, error) {
	l := zerolog.Ctx(ctx)

	w, err := scanWallet(r.db.QueryRowContext(ctx, createQuery, label, balance))
	if err != nil {
		l.Error().Err(err).Msgf("Create(ctx, %q, %s)", label, balance)
		return domain.Wallet{}, mapError(err)
	}

	return w, nil
}

const getQuery = `
SELECT ` + walletColumns + `
FROM wallets
WHERE id = $1
`

// Get returns the wallet with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int64) (domain.Wallet, error) {
	l := zerolog.Ctx(ctx)

	w, err := scanWallet(r.db.QueryRowContext(ctx, getQuery, id))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			l.Error().Err(err).Send()
		}

		return domain.Wallet{}, mapError(err)
	}

	return w, nil
}

const getForUpdateQuery = `
SELECT ` + walletColumns + `
FROM wallets
WHERE id = $1
FOR UPDATE
`

// GetForUpdate returns the wallet and holds its row lock until the surrounding transaction ends.
//
// It is the serialization point of every balance change and must be called on a transaction.
func (r *RepoPGS) GetForUpdate(ctx context.Context, id int64) (domain.Wallet, error) {
	l := zerolog.Ctx(ctx)

	w, err := scanWallet(r.db.QueryRowContext(ctx, getForUpdateQuery, id))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			l.Error().Err(err).Send()
		}

		return domain.Wallet{}, mapError(err)
	}

	return w, nil
}

const setBalanceQuery = `
UPDATE wallets
SET balance = $1
WHERE id = $2
RETURNING ` + walletColumns

// SetBalance stores the recomputed balance of the wallet and returns the changed wallet.
func (r *RepoPGS) SetBalance(ctx context.Context, id int64, balance decimal.Decimal) (domain.Wallet, error) {
	l := zerolog.Ctx(ctx)

	w, err := scanWallet(r.db.QueryRowContext(ctx, setBalanceQuery, balance, id))
	if err != nil {
		l.Error().Err(err).Msgf("SetBalance(ctx, %d, %s)", id, balance)
		return domain.Wallet{}, mapError(err)
	}

	return w, nil
}

const updateLabelQuery = `
UPDATE wallets
SET label = $1
WHERE id = $2
RETURNING ` + walletColumns

// UpdateLabel renames the wallet. The balance is left untouched.
func (r *RepoPGS) UpdateLabel(ctx context.Context, id int64, label string) (domain.Wallet, error) {
	l := zerolog.Ctx(ctx)

	w, err := scanWallet(r.db.QueryRowContext(ctx, updateLabelQuery, label, id))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			l.Error().Err(err).Send()
		}

		return domain.Wallet{}, mapError(err)
	}

	return w, nil
}

var orderColumns = map[string]string{
	domain.OrderByCreated: "created_at",
	domain.OrderByID:      "id",
	domain.OrderByLabel:   "label",
	domain.OrderByBalance: "balance",
}

const countQuery = `
SELECT count(*)
FROM wallets
WHERE ($1::text IS NULL OR label = $1)
`

const listQuery = `
SELECT ` + walletColumns + `
FROM wallets
WHERE ($1::text IS NULL OR label = $1)
ORDER BY %s %s, id %[2]s
LIMIT $2 OFFSET $3
`

// List returns a page of wallets matching the label filter together with the total count.
func (r *RepoPGS) List(ctx context.Context, arg domain.ListWalletsParams) (domain.Page[domain.Wallet], error) {
	l := zerolog.Ctx(ctx)

	page := domain.Page[domain.Wallet]{Items: []domain.Wallet{}}

	column, ok := orderColumns[arg.Ordering.Field]
	if !ok {
		column = orderColumns[domain.OrderByCreated]
	}

	direction := "ASC"
	if arg.Ordering.Desc {
		direction = "DESC"
	}

	label := sql.NullString{String: arg.Label, Valid: arg.Label != ""}

	if err := r.db.QueryRowContext(ctx, countQuery, label).Scan(&page.Count); err != nil {
		l.Error().Err(err).Send()
		return page, errorspkg.ErrInternal
	}

	query := fmt.Sprintf(listQuery, column, direction)

	rows, err := r.db.QueryContext(ctx, query, label, domain.PageSize, domain.PageOffset(arg.Page))
	if err != nil {
		l.Error().Err(err).Send()
		return page, errorspkg.ErrInternal
	}
	defer rows.Close()

	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return page, errorspkg.ErrInternal
		}

		page.Items = append(page.Items, w)
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

const reconcileQuery = `
SELECT w.balance, COALESCE(SUM(t.amount), 0)
FROM wallets w
LEFT JOIN transactions t ON t.wallet_id = w.id
WHERE w.id = $1
GROUP BY w.id, w.balance
`

// Reconcile compares the stored balance with the sum of the wallet's transactions
// inside a single statement snapshot.
func (r *RepoPGS) Reconcile(ctx context.Context, id int64) (domain.BalanceCheck, error) {
	l := zerolog.Ctx(ctx)

	var balance, sum decimal.Decimal

	if err := r.db.QueryRowContext(ctx, reconcileQuery, id).Scan(&balance, &sum); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			l.Error().Err(err).Send()
		}

		return domain.BalanceCheck{}, mapError(err)
	}

	return domain.NewBalanceCheck(id, balance, sum), nil
}

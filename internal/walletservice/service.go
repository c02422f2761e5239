// Package walletservice manages business logic layer of wallets.
package walletservice

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
)

// Repo provides data access layer interface needed by wallet service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package walletservice
type Repo interface {
	Get(ctx context.Context, id int64) (domain.Wallet, error)
	List(ctx context.Context, arg domain.ListWalletsParams) (domain.Page[domain.Wallet], error)
	UpdateLabel(ctx context.Context, id int64, label string) (domain.Wallet, error)
	Reconcile(ctx context.Context, id int64) (domain.BalanceCheck, error)
}

// Ledger opens wallets inside a single unit of work.
type Ledger interface {
	CreateWallet(ctx context.Context, arg domain.CreateWalletParams) (domain.Wallet, error)
}

// Service facilitates wallet service layer logic.
type Service struct {
	repo   Repo
	ledger Ledger
}

// New returns wallet service struct to manage wallet bussines logic.
func New(wr Repo, l Ledger) *Service {
	return &Service{
		repo:   wr,
		ledger: l,
	}
}

// Create opens a wallet with the given label and initial balance.
func (s *Service) Create(ctx context.Context, arg domain.CreateWalletParams) (domain.Wallet, error) {
	if err := arg.Validate(); err != nil {
		zerolog.Ctx(ctx).Info().Err(err).Send()
		return domain.Wallet{}, err
	}

	return s.ledger.CreateWallet(ctx, arg)
}

// Get returns the wallet with the given id.
func (s *Service) Get(ctx context.Context, id int64) (domain.Wallet, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of wallets.
func (s *Service) List(ctx context.Context, arg domain.ListWalletsParams) (domain.Page[domain.Wallet], error) {
	if arg.Page < 1 {
		arg.Page = 1
	}

	return s.repo.List(ctx, arg)
}

// Rename changes the wallet label. The balance can only change through appends.
func (s *Service) Rename(ctx context.Context, id int64, label string) (domain.Wallet, error) {
	if err := domain.ValidateLabel(label); err != nil {
		zerolog.Ctx(ctx).Info().Err(err).Send()
		return domain.Wallet{}, err
	}

	return s.repo.UpdateLabel(ctx, id, label)
}

// Reconcile re-validates that the wallet balance equals the sum of its transactions.
func (s *Service) Reconcile(ctx context.Context, id int64) (domain.BalanceCheck, error) {
	check, err := s.repo.Reconcile(ctx, id)
	if err != nil {
		return check, err
	}

	if !check.Consistent {
		zerolog.Ctx(ctx).Error().
			Int64("wallet", id).
			Str("balance", check.Balance.String()).
			Str("sum", check.Sum.String()).
			Msg("wallet balance drifted from its transactions")
	}

	return check, nil
}

// Package transactionservice manages business logic layer of transactions.
package transactionservice

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
)

// Repo provides data access layer interface needed by transaction service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package transactionservice
type Repo interface {
	Get(ctx context.Context, id int64) (domain.Transaction, error)
	List(ctx context.Context, arg domain.ListTransactionsParams) (domain.Page[domain.Transaction], error)
	Update(ctx context.Context, id int64, arg domain.UpdateTransactionParams) error
	Delete(ctx context.Context, id int64) error
}

// Ledger appends transactions inside a single unit of work.
type Ledger interface {
	Append(ctx context.Context, arg domain.AppendTransactionParams) (domain.AppendResult, error)
}

// Publisher announces committed appends.
type Publisher interface {
	Publish(ctx context.Context, res domain.AppendResult) error
}

// RetryPolicy controls how appends failed with domain.ErrRetryable are retried.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration // multiplied by the attempt number
}

// Service facilitates transaction service layer logic.
type Service struct {
	repo      Repo
	ledger    Ledger
	publisher Publisher
	retry     RetryPolicy
}

// New returns transaction service struct to manage transaction bussines logic.
func New(tr Repo, l Ledger, p Publisher, retry RetryPolicy) *Service {
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}

	return &Service{
		repo:      tr,
		ledger:    l,
		publisher: p,
		retry:     retry,
	}
}

// Append validates the request, appends the transaction and publishes the result.
//
// Lock contention is retried. A retry cannot apply the amount twice because
// the txid is unique.
func (s *Service) Append(ctx context.Context, arg domain.AppendTransactionParams) (domain.AppendResult, error) {
	l := zerolog.Ctx(ctx)

	if err := arg.Validate(); err != nil {
		l.Info().Err(err).Send()
		return domain.AppendResult{}, err
	}

	var (
		res domain.AppendResult
		err error
	)

	for attempt := 1; ; attempt++ {
		res, err = s.ledger.Append(ctx, arg)
		if err == nil {
			break
		}

		if !errors.Is(err, domain.ErrRetryable) || attempt >= s.retry.MaxAttempts {
			l.Info().Err(err).Str("kind", domain.Kind(err)).Int("attempt", attempt).Msg("append failed")
			return domain.AppendResult{}, err
		}

		l.Warn().Err(err).Int("attempt", attempt).Msg("retrying append")

		select {
		case <-time.After(s.retry.Backoff * time.Duration(attempt)):
		case <-ctx.Done():
			return domain.AppendResult{}, err
		}
	}

	if err := s.publisher.Publish(ctx, res); err != nil {
		l.Error().Err(err).Int64("transaction", res.Transaction.ID).Msg("publish appended transaction")
	}

	return res, nil
}

// Get returns the transaction with the given id.
func (s *Service) Get(ctx context.Context, id int64) (domain.Transaction, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of transactions.
func (s *Service) List(ctx context.Context, arg domain.ListTransactionsParams) (domain.Page[domain.Transaction], error) {
	if arg.Page < 1 {
		arg.Page = 1
	}

	return s.repo.List(ctx, arg)
}

// Update is rejected for every committed transaction.
func (s *Service) Update(ctx context.Context, id int64, arg domain.UpdateTransactionParams) error {
	err := s.repo.Update(ctx, id, arg)
	if err == nil {
		return domain.ErrImmutableRecord
	}

	zerolog.Ctx(ctx).Info().Err(err).Int64("transaction", id).Msg("update rejected")

	return err
}

// Delete is rejected for every committed transaction.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.Delete(ctx, id)
	if err == nil {
		return domain.ErrImmutableRecord
	}

	zerolog.Ctx(ctx).Info().Err(err).Int64("transaction", id).Msg("delete rejected")

	return err
}

// Package memstore keeps the ledger in process memory.
//
// It follows the same unit-of-work rules as the Postgres store: appends to a
// wallet hold that wallet's lock from summing its transactions until the new
// transaction and balance are published together.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/go-petr/pet-ledger/internal/domain"
)

type wallet struct {
	// lock is held over the read-sum-write span of an append.
	lock chan struct{}

	// Guarded by Store.mu.
	data domain.Wallet
	txs  []int
}

// Store is the in-memory ledger. The zero value is not usable, call New.
type Store struct {
	lockTimeout time.Duration
	now         func() time.Time

	mu           sync.RWMutex
	wallets      map[int64]*wallet
	transactions []domain.Transaction // transaction id is index + 1
	txids        map[string]int64
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout bounds how long an append waits for the wallet lock.
// A wait that runs out fails with domain.ErrRetryable.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.lockTimeout = d
	}
}

// WithClock replaces the clock used for creation times.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		now:     func() time.Time { return time.Now().UTC() },
		wallets: make(map[int64]*wallet),
		txids:   make(map[string]int64),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Store) wallet(id int64) (*wallet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[id]

	return w, ok
}

func (s *Store) acquire(ctx context.Context, w *wallet) error {
	var timeout <-chan time.Time

	if s.lockTimeout > 0 {
		t := time.NewTimer(s.lockTimeout)
		defer t.Stop()

		timeout = t.C
	}

	select {
	case w.lock <- struct{}{}:
		return nil
	case <-timeout:
		return fmt.Errorf("%w: wallet %d lock wait exceeded %s", domain.ErrRetryable, w.data.ID, s.lockTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func release(w *wallet) {
	<-w.lock
}

// insert publishes a transaction. Callers hold s.mu for writing.
func (s *Store) insert(w *wallet, txID string, amount decimal.Decimal) domain.Transaction {
	t := domain.Transaction{
		ID:        int64(len(s.transactions)) + 1,
		WalletID:  w.data.ID,
		TxID:      txID,
		Amount:    amount,
		CreatedAt: s.now(),
	}

	s.transactions = append(s.transactions, t)
	s.txids[txID] = t.ID
	w.txs = append(w.txs, len(s.transactions)-1)

	return t
}

// CreateWallet opens a wallet. A positive initial balance is recorded as an
// opening transaction published together with the wallet.
func (s *Store) CreateWallet(ctx context.Context, arg domain.CreateWalletParams) (domain.Wallet, error) {
	if err := arg.Validate(); err != nil {
		return domain.Wallet{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w := &wallet{
		lock: make(chan struct{}, 1),
		data: domain.Wallet{
			ID:        int64(len(s.wallets)) + 1,
			Label:     arg.Label,
			Balance:   arg.Balance,
			CreatedAt: s.now(),
		},
	}

	if arg.Balance.IsPositive() {
		s.insert(w, domain.OpeningTxIDPrefix+uuid.NewString(), arg.Balance)
	}

	s.wallets[w.data.ID] = w

	zerolog.Ctx(ctx).Debug().Int64("wallet", w.data.ID).Msg("wallet created")

	return w.data, nil
}

// Append adds a transaction to the wallet and stores the recomputed balance.
func (s *Store) Append(ctx context.Context, arg domain.AppendTransactionParams) (domain.AppendResult, error) {
	l := zerolog.Ctx(ctx)

	if err := arg.Validate(); err != nil {
		return domain.AppendResult{}, err
	}

	w, ok := s.wallet(arg.WalletID)
	if !ok {
		return domain.AppendResult{}, domain.ErrWalletNotFound
	}

	if err := s.acquire(ctx, w); err != nil {
		l.Warn().Err(err).Int64("wallet", arg.WalletID).Msg("wallet lock")
		return domain.AppendResult{}, err
	}
	defer release(w)

	sum := s.sum(w)

	balance, err := domain.NextBalance(sum, arg.Amount)
	if err != nil {
		l.Info().Err(err).Int64("wallet", arg.WalletID).Msg("append rejected")
		return domain.AppendResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.txids[arg.TxID]; dup {
		return domain.AppendResult{}, domain.ErrDuplicateTxid
	}

	t := s.insert(w, arg.TxID, arg.Amount)
	w.data.Balance = balance

	return domain.AppendResult{Transaction: t, Wallet: w.data}, nil
}

func (s *Store) sum(w *wallet) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := decimal.Zero
	for _, i := range w.txs {
		sum = sum.Add(s.transactions[i].Amount)
	}

	return sum
}

// Wallets returns the wallet queries of the store.
func (s *Store) Wallets() *Wallets {
	return &Wallets{s: s}
}

// Transactions returns the transaction queries of the store.
func (s *Store) Transactions() *Transactions {
	return &Transactions{s: s}
}

// Wallets serves wallet reads and renames.
type Wallets struct {
	s *Store
}

// Get returns the wallet with the given id.
func (r *Wallets) Get(_ context.Context, id int64) (domain.Wallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	w, ok := r.s.wallets[id]
	if !ok {
		return domain.Wallet{}, domain.ErrWalletNotFound
	}

	return w.data, nil
}

// UpdateLabel renames the wallet. The balance is left untouched.
func (r *Wallets) UpdateLabel(_ context.Context, id int64, label string) (domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	w, ok := r.s.wallets[id]
	if !ok {
		return domain.Wallet{}, domain.ErrWalletNotFound
	}

	w.data.Label = label

	return w.data, nil
}

// Reconcile compares the stored balance with the sum of the wallet's transactions.
func (r *Wallets) Reconcile(_ context.Context, id int64) (domain.BalanceCheck, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	w, ok := r.s.wallets[id]
	if !ok {
		return domain.BalanceCheck{}, domain.ErrWalletNotFound
	}

	sum := decimal.Zero
	for _, i := range w.txs {
		sum = sum.Add(r.s.transactions[i].Amount)
	}

	return domain.NewBalanceCheck(id, w.data.Balance, sum), nil
}

// List returns a page of wallets matching the label filter together with the total count.
func (r *Wallets) List(_ context.Context, arg domain.ListWalletsParams) (domain.Page[domain.Wallet], error) {
	r.s.mu.RLock()

	items := make([]domain.Wallet, 0, len(r.s.wallets))
	for _, w := range r.s.wallets {
		if arg.Label == "" || w.data.Label == arg.Label {
			items = append(items, w.data)
		}
	}

	r.s.mu.RUnlock()

	cmp := walletComparators[arg.Ordering.Field]
	if cmp == nil {
		cmp = walletComparators[domain.OrderByCreated]
	}

	sortPage(items, arg.Ordering.Desc, cmp, func(w domain.Wallet) int64 { return w.ID })

	return paginate(items, arg.Page), nil
}

// Transactions serves transaction reads and rejects mutations.
type Transactions struct {
	s *Store
}

// Get returns the transaction with the given id.
func (r *Transactions) Get(_ context.Context, id int64) (domain.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if id < 1 || id > int64(len(r.s.transactions)) {
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}

	return r.s.transactions[id-1], nil
}

// Update always fails: committed transactions are immutable.
func (r *Transactions) Update(ctx context.Context, id int64, _ domain.UpdateTransactionParams) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}

	return domain.ErrImmutableRecord
}

// Delete always fails: committed transactions are immutable.
func (r *Transactions) Delete(ctx context.Context, id int64) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}

	return domain.ErrImmutableRecord
}

// List returns a page of transactions matching the filters together with the total count.
func (r *Transactions) List(_ context.Context, arg domain.ListTransactionsParams) (domain.Page[domain.Transaction], error) {
	r.s.mu.RLock()

	var items []domain.Transaction

	switch {
	case arg.TxID != "":
		if id, ok := r.s.txids[arg.TxID]; ok {
			t := r.s.transactions[id-1]
			if arg.WalletID == 0 || t.WalletID == arg.WalletID {
				items = append(items, t)
			}
		}
	case arg.WalletID != 0:
		if w, ok := r.s.wallets[arg.WalletID]; ok {
			items = make([]domain.Transaction, 0, len(w.txs))
			for _, i := range w.txs {
				items = append(items, r.s.transactions[i])
			}
		}
	default:
		items = append(items, r.s.transactions...)
	}

	r.s.mu.RUnlock()

	cmp := transactionComparators[arg.Ordering.Field]
	if cmp == nil {
		cmp = transactionComparators[domain.OrderByCreated]
	}

	sortPage(items, arg.Ordering.Desc, cmp, func(t domain.Transaction) int64 { return t.ID })

	return paginate(items, arg.Page), nil
}

var walletComparators = map[string]func(a, b domain.Wallet) int{
	domain.OrderByCreated: func(a, b domain.Wallet) int { return a.CreatedAt.Compare(b.CreatedAt) },
	domain.OrderByID:      func(a, b domain.Wallet) int { return compareInt(a.ID, b.ID) },
	domain.OrderByLabel:   func(a, b domain.Wallet) int { return compareString(a.Label, b.Label) },
	domain.OrderByBalance: func(a, b domain.Wallet) int { return a.Balance.Cmp(b.Balance) },
}

var transactionComparators = map[string]func(a, b domain.Transaction) int{
	domain.OrderByCreated: func(a, b domain.Transaction) int { return a.CreatedAt.Compare(b.CreatedAt) },
	domain.OrderByID:      func(a, b domain.Transaction) int { return compareInt(a.ID, b.ID) },
	domain.OrderByTxID:    func(a, b domain.Transaction) int { return compareString(a.TxID, b.TxID) },
	domain.OrderByAmount:  func(a, b domain.Transaction) int { return a.Amount.Cmp(b.Amount) },
	domain.OrderByWallet:  func(a, b domain.Transaction) int { return compareInt(a.WalletID, b.WalletID) },
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}

	return 0
}

func compareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}

	return 0
}

// sortPage orders items by cmp with the id as a tiebreak. desc reverses both.
func sortPage[T any](items []T, desc bool, cmp func(a, b T) int, id func(T) int64) {
	sort.Slice(items, func(i, j int) bool {
		c := cmp(items[i], items[j])
		if c == 0 {
			c = compareInt(id(items[i]), id(items[j]))
		}

		if desc {
			return c > 0
		}

		return c < 0
	})
}

func paginate[T any](items []T, page int) domain.Page[T] {
	p := domain.Page[T]{Count: int64(len(items)), Items: []T{}}

	offset := domain.PageOffset(page)
	if offset >= len(items) {
		return p
	}

	end := offset + domain.PageSize
	if end > len(items) {
		end = len(items)
	}

	p.Items = append(p.Items, items[offset:end]...)

	return p
}

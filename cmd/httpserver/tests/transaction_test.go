//go:build integration

package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/integrationtest"
	"github.com/go-petr/pet-ledger/internal/test"
	"github.com/go-petr/pet-ledger/pkg/web"
)

type appendBody struct {
	WalletID int64  `json:"wallet"`
	TxID     string `json:"txid"`
	Amount   string `json:"amount"`
}

func postTransaction(t *testing.T, body appendBody) (int, web.Response) {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Errorf("Encoding request body error: %v", err)
		return 0, web.Response{}
	}

	req, err := http.NewRequest(http.MethodPost, "/transactions", bytes.NewReader(data))
	if err != nil {
		t.Errorf("Creating request error: %v", err)
		return 0, web.Response{}
	}

	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	res := web.Response{Data: &domain.AppendResult{}}
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Errorf("Decoding response body error: %v", err)
	}

	return w.Code, res
}

func listTransactions(t *testing.T, query string) domain.Page[domain.Transaction] {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, "/transactions?"+query, nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var page domain.Page[domain.Transaction]
	require.NoError(t, json.NewDecoder(w.Body).Decode(&web.Response{Data: &page}))

	return page
}

func TestAppendTransactionAPI(t *testing.T) {
	defer integrationtest.Flush(t, server.DB)

	wallet := test.SeedWallet(t, server.DB, rnd)
	test.SeedTransaction(t, server.DB, wallet.ID, "seed", decimal.NewFromInt(100))

	testCases := []struct {
		name           string
		body           appendBody
		wantStatusCode int
		wantBalance    string
		wantError      string
	}{
		{
			name:           "Credit",
			body:           appendBody{WalletID: wallet.ID, TxID: "credit", Amount: "50"},
			wantStatusCode: http.StatusCreated,
			wantBalance:    "150",
		},
		{
			name:           "DebitToZero",
			body:           appendBody{WalletID: wallet.ID, TxID: "debit", Amount: "-150"},
			wantStatusCode: http.StatusCreated,
			wantBalance:    "0",
		},
		{
			name:           "NegativeBalance",
			body:           appendBody{WalletID: wallet.ID, TxID: "overdraft", Amount: "-0.000000000000000001"},
			wantStatusCode: http.StatusBadRequest,
			wantError:      domain.ErrNegativeBalance.Error(),
		},
		{
			name:           "DuplicateTxid",
			body:           appendBody{WalletID: wallet.ID, TxID: "credit", Amount: "1"},
			wantStatusCode: http.StatusConflict,
			wantError:      domain.ErrDuplicateTxid.Error(),
		},
		{
			name:           "WalletNotFound",
			body:           appendBody{WalletID: wallet.ID + 1000, TxID: "lost", Amount: "1"},
			wantStatusCode: http.StatusBadRequest,
			wantError:      domain.ErrWalletNotFound.Error(),
		},
		{
			name:           "TooManyFractionalDigits",
			body:           appendBody{WalletID: wallet.ID, TxID: "dust", Amount: "0.0000000000000000001"},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "Amount must be a decimal with at most 18 integer and 18 fractional digits",
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			code, res := postTransaction(t, tc.body)
			require.Equal(t, tc.wantStatusCode, code)

			if tc.wantStatusCode != http.StatusCreated {
				require.Contains(t, res.Error, tc.wantError)
				return
			}

			got := res.Data.(*domain.AppendResult)
			require.Equal(t, tc.body.TxID, got.Transaction.TxID)
			require.Equal(t, wallet.ID, got.Transaction.WalletID)
			require.True(t, got.Wallet.Balance.Equal(decimal.RequireFromString(tc.wantBalance)),
				"balance %s, want %s", got.Wallet.Balance, tc.wantBalance)
		})
	}

	page := listTransactions(t, fmt.Sprintf("wallet=%d&ordering=id", wallet.ID))
	require.EqualValues(t, 3, page.Count)
}

func TestConcurrentAppendsAPI(t *testing.T) {
	defer integrationtest.Flush(t, server.DB)

	wallet := test.SeedWallet(t, server.DB, rnd)
	test.SeedTransaction(t, server.DB, wallet.ID, "seed", decimal.NewFromInt(10))

	n := 20

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		committed int
	)

	for i := 0; i < n; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			code, _ := postTransaction(t, appendBody{WalletID: wallet.ID, TxID: fmt.Sprintf("debit-%d", i), Amount: "-1"})
			if !assert.Contains(t, []int{http.StatusCreated, http.StatusBadRequest}, code) {
				return
			}

			if code == http.StatusCreated {
				mu.Lock()
				committed++
				mu.Unlock()
			}
		}(i)
	}

	wg.Wait()

	require.Equal(t, 10, committed)

	got, err := walletBalance(wallet.ID)
	require.NoError(t, err)
	require.True(t, got.Balance.IsZero(), "balance %s", got.Balance)
}

func TestGetTransactionAPI(t *testing.T) {
	defer integrationtest.Flush(t, server.DB)

	wallet := test.SeedWallet(t, server.DB, rnd)
	transaction := test.SeedTransaction(t, server.DB, wallet.ID, rnd.TxID(), rnd.AmountBetween(1, 100))

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("/transactions/%d", transaction.ID), nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Transaction domain.Transaction `json:"transaction"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&web.Response{Data: &data}))

	require.Equal(t, transaction.ID, data.Transaction.ID)
	require.Equal(t, transaction.TxID, data.Transaction.TxID)
	require.True(t, transaction.Amount.Equal(data.Transaction.Amount))

	req, err = http.NewRequest(http.MethodGet, fmt.Sprintf("/transactions/%d", transaction.ID+1000), nil)
	require.NoError(t, err)

	w = httptest.NewRecorder()
	server.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestListTransactionsAPI(t *testing.T) {
	defer integrationtest.Flush(t, server.DB)

	wallet1 := test.SeedWallet(t, server.DB, rnd)
	wallet2 := test.SeedWallet(t, server.DB, rnd)
	txs := test.SeedTransactions(t, server.DB, rnd, 12, wallet1.ID)
	test.SeedTransactions(t, server.DB, rnd, 3, wallet2.ID)

	page := listTransactions(t, fmt.Sprintf("wallet=%d&ordering=-id&page=2", wallet1.ID))
	require.EqualValues(t, 12, page.Count)
	require.Len(t, page.Items, 2)
	require.Equal(t, txs[1].ID, page.Items[0].ID)
	require.Equal(t, txs[0].ID, page.Items[1].ID)

	page = listTransactions(t, "txid="+txs[5].TxID)
	require.EqualValues(t, 1, page.Count)
	require.Equal(t, txs[5].ID, page.Items[0].ID)

	page = listTransactions(t, "page=2")
	require.EqualValues(t, 15, page.Count)
	require.Len(t, page.Items, 5)
}

func TestMutateTransactionAPI(t *testing.T) {
	defer integrationtest.Flush(t, server.DB)

	wallet := test.SeedWallet(t, server.DB, rnd)
	transaction := test.SeedTransaction(t, server.DB, wallet.ID, rnd.TxID(), decimal.NewFromInt(5))

	for _, method := range []string{http.MethodPut, http.MethodPatch, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			body := bytes.NewReader([]byte(`{"amount":"500"}`))

			req, err := http.NewRequest(method, fmt.Sprintf("/transactions/%d", transaction.ID), body)
			require.NoError(t, err)

			w := httptest.NewRecorder()
			server.ServeHTTP(w, req)

			require.Equal(t, http.StatusMethodNotAllowed, w.Code)

			var res web.Response
			require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
			require.Equal(t, domain.ErrImmutableRecord.Error(), res.Error)
		})
	}

	got, err := walletBalance(wallet.ID)
	require.NoError(t, err)
	require.True(t, got.Balance.Equal(decimal.NewFromInt(5)))
}

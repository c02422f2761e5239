package walletdelivery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/test"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/go-petr/pet-ledger/pkg/moneypkg"
	"github.com/go-petr/pet-ledger/pkg/randompkg"
	"github.com/go-petr/pet-ledger/pkg/web"
)

var rnd *randompkg.Source

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := v.RegisterValidation("decimal", moneypkg.ValidDecimal); err != nil {
			log.Fatalf(`v.RegisterValidation("decimal", moneypkg.ValidDecimal) returned error: %v`, err)
		}
	}

	rnd = randompkg.New(time.Now().UnixNano())

	os.Exit(m.Run())
}

func setupRouter(service Service) *gin.Engine {
	handler := NewHandler(service)

	router := gin.New()
	router.POST("/wallets", handler.Create)
	router.GET("/wallets", handler.List)
	router.GET("/wallets/:id", handler.Get)
	router.PATCH("/wallets/:id", handler.Rename)
	router.GET("/wallets/:id/reconcile", handler.Reconcile)

	return router
}

func decodeWallet(t *testing.T, body *bytes.Buffer) (domain.Wallet, web.Response) {
	t.Helper()

	var got data

	res := web.Response{Data: &got}
	if err := json.NewDecoder(body).Decode(&res); err != nil {
		t.Fatalf("Decoding response body error: %v", err)
	}

	return got.Wallet, res
}

func TestCreate(t *testing.T) {
	wallet := test.RandomWallet(rnd)

	testCases := []struct {
		name           string
		requestBody    gin.H
		buildStubs     func(walletService *MockService)
		wantStatusCode int
		wantError      string
	}{
		{
			name:        "OK",
			requestBody: gin.H{"label": wallet.Label, "balance": wallet.Balance.String()},
			buildStubs: func(walletService *MockService) {
				walletService.EXPECT().
					Create(gomock.Any(), gomock.Eq(domain.CreateWalletParams{
						Label:   wallet.Label,
						Balance: decimal.RequireFromString(wallet.Balance.String()),
					})).
					Times(1).
					Return(wallet, nil)
			},
			wantStatusCode: http.StatusCreated,
		},
		{
			name:        "NoBalance",
			requestBody: gin.H{"label": wallet.Label},
			buildStubs: func(walletService *MockService) {
				walletService.EXPECT().
					Create(gomock.Any(), gomock.Eq(domain.CreateWalletParams{Label: wallet.Label, Balance: decimal.Zero})).
					Times(1).
					Return(wallet, nil)
			},
			wantStatusCode: http.StatusCreated,
		},
		{
			name:        "NoLabel",
			requestBody: gin.H{"balance": "1"},
			buildStubs: func(walletService *MockService) {
				walletService.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "Label field is required",
		},
		{
			name:        "InvalidBalance",
			requestBody: gin.H{"label": wallet.Label, "balance": "ten"},
			buildStubs: func(walletService *MockService) {
				walletService.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "Balance must be a decimal with at most 18 integer and 18 fractional digits",
		},
		{
			name:        "NegativeBalance",
			requestBody: gin.H{"label": wallet.Label, "balance": "-5"},
			buildStubs: func(walletService *MockService) {
				walletService.EXPECT().
					Create(gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.Wallet{}, fmt.Errorf("%w: wallet balance cannot be negative", domain.ErrInvalidState))
			},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid state: wallet balance cannot be negative",
		},
		{
			name:        "InternalServerError",
			requestBody: gin.H{"label": wallet.Label},
			buildStubs: func(walletService *MockService) {
				walletService.EXPECT().
					Create(gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.Wallet{}, errorspkg.ErrInternal)
			},
			wantStatusCode: http.StatusInternalServerError,
			wantError:      errorspkg.ErrInternal.Error(),
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			walletService := NewMockService(ctrl)
			tc.buildStubs(walletService)

			body, err := json.Marshal(tc.requestBody)
			if err != nil {
				t.Fatalf("Encoding request body error: %v", err)
			}

			req, err := http.NewRequest(http.MethodPost, "/wallets", bytes.NewReader(body))
			if err != nil {
				t.Fatalf("Creating request error: %v", err)
			}

			recorder := httptest.NewRecorder()
			setupRouter(walletService).ServeHTTP(recorder, req)

			if got := recorder.Code; got != tc.wantStatusCode {
				t.Errorf("Status code: got %v, want %v", got, tc.wantStatusCode)
			}

			got, res := decodeWallet(t, recorder.Body)

			if tc.wantStatusCode != http.StatusCreated {
				if res.Error != tc.wantError {
					t.Errorf(`resp.Error=%q, want %q`, res.Error, tc.wantError)
				}

				return
			}

			if diff := cmp.Diff(wallet, got, cmpopts.EquateApproxTime(time.Second)); diff != "" {
				t.Errorf("res.Data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGet(t *testing.T) {
	wallet := test.RandomWallet(rnd)

	testCases := []struct {
		name           string
		id             string
		buildStubs     func(walletService *MockService)
		wantStatusCode int
		wantError      string
	}{
		{
			name: "OK",
			id:   fmt.Sprint(wallet.ID),
			buildStubs: func(walletService *MockService) {
				walletService.EXPECT().Get(gomock.Any(), gomock.Eq(wallet.ID)).Times(1).Return(wallet, nil)
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "InvalidID",
			id:   "0",
			buildStubs: func(walletService *MockService) {
				walletService.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "ID field is required",
		},
		{
			name: "NotFound",
			id:   fmt.Sprint(wallet.ID),
			buildStubs: func(walletService *MockService) {
				walletService.EXPECT().Get(gomock.Any(), gomock.Eq(wallet.ID)).Times(1).Return(domain.Wallet{}, domain.ErrWalletNotFound)
			},
			wantStatusCode: http.StatusNotFound,
			wantError:      domain.ErrWalletNotFound.Error(),
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			walletService := NewMockService(ctrl)
			tc.buildStubs(walletService)

			req, err := http.NewRequest(http.MethodGet, "/wallets/"+tc.id, nil)
			if err != nil {
				t.Fatalf("Creating request error: %v", err)
			}

			recorder := httptest.NewRecorder()
			setupRouter(walletService).ServeHTTP(recorder, req)

			if got := recorder.Code; got != tc.wantStatusCode {
				t.Errorf("Status code: got %v, want %v", got, tc.wantStatusCode)
			}

			got, res := decodeWallet(t, recorder.Body)

			if tc.wantStatusCode != http.StatusOK {
				if res.Error != tc.wantError {
					t.Errorf(`resp.Error=%q, want %q`, res.Error, tc.wantError)
				}

				return
			}

			if diff := cmp.Diff(wallet, got, cmpopts.EquateApproxTime(time.Second)); diff != "" {
				t.Errorf("res.Data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestList(t *testing.T) {
	page := domain.Page[domain.Wallet]{Count: 12, Items: []domain.Wallet{test.RandomWallet(rnd), test.RandomWallet(rnd)}}

	testCases := []struct {
		name           string
		query          string
		buildStubs     func(walletService *MockService)
		wantStatusCode int
		wantError      string
	}{
		{
			name:  "OK",
			query: "?label=x&ordering=-balance&page=2",
			buildStubs: func(walletService *MockService) {
				walletService.EXPECT().
					List(gomock.Any(), gomock.Eq(domain.ListWalletsParams{
						Label:    "x",
						Ordering: domain.Ordering{Field: domain.OrderByBalance, Desc: true},
						Page:     2,
					})).
					Times(1).
					Return(page, nil)
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:  "Defaults",
			query: "",
			buildStubs: func(walletService *MockService) {
				walletService.EXPECT().
					List(gomock.Any(), gomock.Eq(domain.ListWalletsParams{Ordering: domain.Ordering{Field: domain.OrderByCreated}})).
					Times(1).
					Return(page, nil)
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:  "UnknownOrdering",
			query: "?ordering=amount",
			buildStubs: func(walletService *MockService) {
				walletService.EXPECT().List(gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusBadRequest,
			wantError:      `invalid state: cannot order by "amount"`,
		},
		{
			name:  "InvalidPage",
			query: "?page=-1",
			buildStubs: func(walletService *MockService) {
				walletService.EXPECT().List(gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "Page must be at least 1",
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			walletService := NewMockService(ctrl)
			tc.buildStubs(walletService)

			req, err := http.NewRequest(http.MethodGet, "/wallets"+tc.query, nil)
			if err != nil {
				t.Fatalf("Creating request error: %v", err)
			}

			recorder := httptest.NewRecorder()
			setupRouter(walletService).ServeHTTP(recorder, req)

			if got := recorder.Code; got != tc.wantStatusCode {
				t.Errorf("Status code: got %v, want %v", got, tc.wantStatusCode)
			}

			var got domain.Page[domain.Wallet]

			res := web.Response{Data: &got}
			if err := json.NewDecoder(recorder.Body).Decode(&res); err != nil {
				t.Fatalf("Decoding response body error: %v", err)
			}

			if tc.wantStatusCode != http.StatusOK {
				if res.Error != tc.wantError {
					t.Errorf(`resp.Error=%q, want %q`, res.Error, tc.wantError)
				}

				return
			}

			if diff := cmp.Diff(page, got, cmpopts.EquateApproxTime(time.Second)); diff != "" {
				t.Errorf("res.Data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRename(t *testing.T) {
	wallet := test.RandomWallet(rnd)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	walletService := NewMockService(ctrl)
	walletService.EXPECT().Rename(gomock.Any(), gomock.Eq(wallet.ID), gomock.Eq(wallet.Label)).Times(1).Return(wallet, nil)

	router := setupRouter(walletService)

	body, err := json.Marshal(gin.H{"label": wallet.Label})
	if err != nil {
		t.Fatalf("Encoding request body error: %v", err)
	}

	req := httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/wallets/%d", wallet.ID), bytes.NewReader(body))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("Status code: got %v, want %v", recorder.Code, http.StatusOK)
	}

	got, _ := decodeWallet(t, recorder.Body)
	if diff := cmp.Diff(wallet, got, cmpopts.EquateApproxTime(time.Second)); diff != "" {
		t.Errorf("res.Data mismatch (-want +got):\n%s", diff)
	}

	req = httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/wallets/%d", wallet.ID), bytes.NewReader([]byte(`{}`)))
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("Status code: got %v, want %v", recorder.Code, http.StatusBadRequest)
	}
}

func TestReconcile(t *testing.T) {
	check := domain.NewBalanceCheck(7, decimal.NewFromInt(10), decimal.NewFromInt(10))

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	walletService := NewMockService(ctrl)
	walletService.EXPECT().Reconcile(gomock.Any(), gomock.Eq(int64(7))).Times(1).Return(check, nil)
	walletService.EXPECT().Reconcile(gomock.Any(), gomock.Eq(int64(8))).Times(1).Return(domain.BalanceCheck{}, domain.ErrRetryable)

	router := setupRouter(walletService)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/wallets/7/reconcile", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("Status code: got %v, want %v", recorder.Code, http.StatusOK)
	}

	var got reconcileResponse
	if err := json.NewDecoder(recorder.Body).Decode(&got); err != nil {
		t.Fatalf("Decoding response body error: %v", err)
	}

	if diff := cmp.Diff(check, got.Data.Check); diff != "" {
		t.Errorf("res.Data mismatch (-want +got):\n%s", diff)
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/wallets/8/reconcile", nil))

	if recorder.Code != http.StatusServiceUnavailable {
		t.Errorf("Status code: got %v, want %v", recorder.Code, http.StatusServiceUnavailable)
	}
}

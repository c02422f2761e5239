// Package walletdelivery manages delivery layer of wallets.
package walletdelivery

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/go-petr/pet-ledger/pkg/moneypkg"
	"github.com/go-petr/pet-ledger/pkg/web"
)

// Service provides service layer interface needed by wallet delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package walletdelivery
type Service interface {
	Create(ctx context.Context, arg domain.CreateWalletParams) (domain.Wallet, error)
	Get(ctx context.Context, id int64) (domain.Wallet, error)
	List(ctx context.Context, arg domain.ListWalletsParams) (domain.Page[domain.Wallet], error)
	Rename(ctx context.Context, id int64, label string) (domain.Wallet, error)
	Reconcile(ctx context.Context, id int64) (domain.BalanceCheck, error)
}

// Handler facilitates wallet delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns wallet handler.
func NewHandler(ws Service) Handler {
	return Handler{service: ws}
}

type data struct {
	Wallet domain.Wallet `json:"wallet"`
}

type response struct {
	Data data `json:"data,omitempty"`
}

func (h *Handler) fail(gctx *gin.Context, err error) {
	l := zerolog.Ctx(gctx.Request.Context())

	switch {
	case errors.Is(err, domain.ErrInvalidState):
		gctx.JSON(http.StatusBadRequest, web.Error(err))
	case errors.Is(err, domain.ErrWalletNotFound):
		gctx.JSON(http.StatusNotFound, web.Error(domain.ErrWalletNotFound))
	case errors.Is(err, domain.ErrRetryable):
		gctx.JSON(http.StatusServiceUnavailable, web.Error(domain.ErrRetryable))
	default:
		l.Error().Err(err).Send()
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
	}
}

type createRequest struct {
	Label   string `json:"label" binding:"required,max=255"`
	Balance string `json:"balance" binding:"omitempty,decimal"`
}

// Create handles http request to open a wallet.
func (h *Handler) Create(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req createRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.BindingError(err))

		return
	}

	balance := decimal.Zero
	if req.Balance != "" {
		balance, _ = moneypkg.Parse(req.Balance) // validated by the decimal tag
	}

	wallet, err := h.service.Create(ctx, domain.CreateWalletParams{Label: req.Label, Balance: balance})
	if err != nil {
		h.fail(gctx, err)
		return
	}

	gctx.JSON(http.StatusCreated, response{Data: data{wallet}})
}

type idRequest struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

// Get handles http request to get a wallet.
func (h *Handler) Get(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req idRequest
	if err := gctx.ShouldBindUri(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.BindingError(err))

		return
	}

	wallet, err := h.service.Get(ctx, req.ID)
	if err != nil {
		h.fail(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, response{Data: data{wallet}})
}

type listRequest struct {
	Label    string `form:"label" binding:"max=255"`
	Ordering string `form:"ordering"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
}

type listResponse struct {
	Data domain.Page[domain.Wallet] `json:"data"`
}

// List handles http request to list wallets.
func (h *Handler) List(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req listRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.BindingError(err))

		return
	}

	ordering, err := domain.ParseOrdering(req.Ordering, domain.WalletOrderings)
	if err != nil {
		h.fail(gctx, err)
		return
	}

	page, err := h.service.List(ctx, domain.ListWalletsParams{
		Label:    req.Label,
		Ordering: ordering,
		Page:     req.Page,
	})
	if err != nil {
		h.fail(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, listResponse{Data: page})
}

type renameRequest struct {
	Label string `json:"label" binding:"required,max=255"`
}

// Rename handles http request to change a wallet label.
func (h *Handler) Rename(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var uri idRequest
	if err := gctx.ShouldBindUri(&uri); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.BindingError(err))

		return
	}

	var req renameRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.BindingError(err))

		return
	}

	wallet, err := h.service.Rename(ctx, uri.ID, req.Label)
	if err != nil {
		h.fail(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, response{Data: data{wallet}})
}

type reconcileResponse struct {
	Data struct {
		Check domain.BalanceCheck `json:"check"`
	} `json:"data"`
}

// Reconcile handles http request to re-validate a wallet balance against its transactions.
func (h *Handler) Reconcile(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req idRequest
	if err := gctx.ShouldBindUri(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.BindingError(err))

		return
	}

	check, err := h.service.Reconcile(ctx, req.ID)
	if err != nil {
		h.fail(gctx, err)
		return
	}

	var res reconcileResponse
	res.Data.Check = check

	gctx.JSON(http.StatusOK, res)
}

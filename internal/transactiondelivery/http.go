// Package transactiondelivery manages delivery layer of transactions.
package transactiondelivery

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/go-petr/pet-ledger/pkg/moneypkg"
	"github.com/go-petr/pet-ledger/pkg/web"
)

// Service provides service layer interface needed by transaction delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package transactiondelivery
type Service interface {
	Append(ctx context.Context, arg domain.AppendTransactionParams) (domain.AppendResult, error)
	Get(ctx context.Context, id int64) (domain.Transaction, error)
	List(ctx context.Context, arg domain.ListTransactionsParams) (domain.Page[domain.Transaction], error)
	Update(ctx context.Context, id int64, arg domain.UpdateTransactionParams) error
	Delete(ctx context.Context, id int64) error
}

// Handler facilitates transaction delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns transaction handler.
func NewHandler(ts Service) Handler {
	return Handler{service: ts}
}

type data struct {
	Transaction domain.Transaction `json:"transaction"`
}

type response struct {
	Data data `json:"data,omitempty"`
}

func (h *Handler) fail(gctx *gin.Context, err error) {
	l := zerolog.Ctx(gctx.Request.Context())

	switch {
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrNegativeBalance):
		gctx.JSON(http.StatusBadRequest, web.Error(err))
	case errors.Is(err, domain.ErrDuplicateTxid):
		gctx.JSON(http.StatusConflict, web.Error(domain.ErrDuplicateTxid))
	case errors.Is(err, domain.ErrImmutableRecord):
		gctx.JSON(http.StatusMethodNotAllowed, web.Error(domain.ErrImmutableRecord))
	case errors.Is(err, domain.ErrRetryable):
		gctx.JSON(http.StatusServiceUnavailable, web.Error(domain.ErrRetryable))
	case errors.Is(err, domain.ErrTransactionNotFound):
		gctx.JSON(http.StatusNotFound, web.Error(domain.ErrTransactionNotFound))
	case errors.Is(err, domain.ErrWalletNotFound): // the wallet comes from the request body
		gctx.JSON(http.StatusBadRequest, web.Error(domain.ErrWalletNotFound))
	default:
		l.Error().Err(err).Send()
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
	}
}

type appendRequest struct {
	WalletID int64  `json:"wallet" binding:"required,min=1"`
	TxID     string `json:"txid" binding:"required,max=255"`
	Amount   string `json:"amount" binding:"required,decimal"`
}

type appendResponse struct {
	Data domain.AppendResult `json:"data"`
}

// Append handles http request to append a transaction to a wallet.
func (h *Handler) Append(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req appendRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.BindingError(err))

		return
	}

	amount, _ := moneypkg.Parse(req.Amount) // validated by the decimal tag

	res, err := h.service.Append(ctx, domain.AppendTransactionParams{
		WalletID: req.WalletID,
		TxID:     req.TxID,
		Amount:   amount,
	})
	if err != nil {
		h.fail(gctx, err)
		return
	}

	gctx.JSON(http.StatusCreated, appendResponse{Data: res})
}

type idRequest struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

// Get handles http request to get a transaction.
func (h *Handler) Get(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req idRequest
	if err := gctx.ShouldBindUri(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.BindingError(err))

		return
	}

	t, err := h.service.Get(ctx, req.ID)
	if err != nil {
		h.fail(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, response{Data: data{t}})
}

type listRequest struct {
	WalletID int64  `form:"wallet" binding:"omitempty,min=1"`
	TxID     string `form:"txid" binding:"max=255"`
	Ordering string `form:"ordering"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
}

type listResponse struct {
	Data domain.Page[domain.Transaction] `json:"data"`
}

// List handles http request to list transactions.
func (h *Handler) List(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req listRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.BindingError(err))

		return
	}

	ordering, err := domain.ParseOrdering(req.Ordering, domain.TransactionOrderings)
	if err != nil {
		h.fail(gctx, err)
		return
	}

	page, err := h.service.List(ctx, domain.ListTransactionsParams{
		WalletID: req.WalletID,
		TxID:     req.TxID,
		Ordering: ordering,
		Page:     req.Page,
	})
	if err != nil {
		h.fail(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, listResponse{Data: page})
}

type updateRequest struct {
	WalletID int64  `json:"wallet"`
	TxID     string `json:"txid"`
	Amount   string `json:"amount"`
}

// Update handles http request to change a transaction. Committed transactions
// are immutable, so it only ever reports why the change was refused.
func (h *Handler) Update(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var uri idRequest
	if err := gctx.ShouldBindUri(&uri); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.BindingError(err))

		return
	}

	var req updateRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Debug().Err(err).Msg("update body ignored")
	}

	arg := domain.UpdateTransactionParams{WalletID: req.WalletID, TxID: req.TxID}
	if amount, err := moneypkg.Parse(req.Amount); err == nil {
		arg.Amount = amount
	}

	h.fail(gctx, h.service.Update(ctx, uri.ID, arg))
}

// Delete handles http request to delete a transaction. Committed transactions
// are immutable, so it only ever reports why the removal was refused.
func (h *Handler) Delete(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var uri idRequest
	if err := gctx.ShouldBindUri(&uri); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.BindingError(err))

		return
	}

	h.fail(gctx, h.service.Delete(ctx, uri.ID))
}

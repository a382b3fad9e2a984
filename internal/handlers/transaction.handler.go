package handlers

import (
	"context"
	"errors"

	"github.com/fasthttp/router"
	"github.com/nimasrn/finance-tracker/internal/model"
	"github.com/nimasrn/finance-tracker/internal/services"
	xhttp "github.com/nimasrn/finance-tracker/pkg/http"
)

type TransactionService interface {
	List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, error)
	Get(ctx context.Context, id int64) (*model.Transaction, error)
	Create(ctx context.Context, t *model.Transaction) (*model.Transaction, error)
	Delete(ctx context.Context, id int64) error
	Summary(ctx context.Context, month model.Month) (*model.MonthSummary, error)
}

type InsightService interface {
	Insight(ctx context.Context, month model.Month) (*model.Insight, error)
}

type TransactionHandler struct {
	svc      TransactionService
	insights InsightService
}

func RegisterTransactionRoutes(g *router.Group, h *TransactionHandler) {
	g.GET("/tx", h.ListTransactions)
	g.POST("/tx", h.CreateTransaction)
	g.GET("/tx/summary", h.GetSummary)
	g.GET("/tx/insights", h.GetInsights)
	g.GET("/tx/{id}", h.GetTransaction)
	g.DELETE("/tx/{id}", h.DeleteTransaction)
}

func NewTransactionHandler(svc TransactionService, insights InsightService) *TransactionHandler {
	return &TransactionHandler{
		svc:      svc,
		insights: insights,
	}
}

// ListTransactions accepts q, from, to, category and month. Unparseable
// dates are ignored rather than rejected.
func (h *TransactionHandler) ListTransactions(ctx *xhttp.RequestCtx) {
	f := model.NewTransactionFilter(
		query(ctx, "q"),
		query(ctx, "from"),
		query(ctx, "to"),
		query(ctx, "category"),
		query(ctx, "month"),
	)

	items, err := h.svc.List(ctx, f)
	if err != nil {
		internalError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, items)
}

func (h *TransactionHandler) GetTransaction(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusNotFound, "transaction not found")
		return
	}

	t, err := h.svc.Get(ctx, id)
	if errors.Is(err, services.ErrNotFound) {
		writeError(ctx, xhttp.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		internalError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, t)
}

func (h *TransactionHandler) CreateTransaction(ctx *xhttp.RequestCtx) {
	var req model.Transaction
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	t, err := h.svc.Create(ctx, &req)
	if err != nil {
		internalError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, t)
}

func (h *TransactionHandler) DeleteTransaction(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusNotFound, "transaction not found")
		return
	}

	err = h.svc.Delete(ctx, id)
	if errors.Is(err, services.ErrNotFound) {
		writeError(ctx, xhttp.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		internalError(ctx, err)
		return
	}
	ctx.SetStatusCode(xhttp.StatusNoContent)
}

func (h *TransactionHandler) GetSummary(ctx *xhttp.RequestCtx) {
	month, err := monthParam(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	s, err := h.svc.Summary(ctx, month)
	if err != nil {
		internalError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, s)
}

func (h *TransactionHandler) GetInsights(ctx *xhttp.RequestCtx) {
	month, err := monthParam(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	insight, err := h.insights.Insight(ctx, month)
	if err != nil {
		internalError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, insight)
}

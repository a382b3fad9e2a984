package handlers

import (
	"context"
	"errors"
	"net/url"

	"github.com/fasthttp/router"
	"github.com/nimasrn/finance-tracker/internal/model"
	"github.com/nimasrn/finance-tracker/internal/services"
	xhttp "github.com/nimasrn/finance-tracker/pkg/http"
)

type BudgetService interface {
	List(ctx context.Context) ([]*model.Budget, error)
	Upsert(ctx context.Context, category string, limit float64) (*model.Budget, error)
	Delete(ctx context.Context, category string) error
	Alerts(ctx context.Context, month model.Month) ([]*model.BudgetAlert, error)
}

type BudgetHandler struct {
	svc BudgetService
}

func RegisterBudgetRoutes(g *router.Group, h *BudgetHandler) {
	g.GET("/budgets", h.ListBudgets)
	g.PUT("/budgets/{category}", h.PutBudget)
	g.DELETE("/budgets/{category}", h.DeleteBudget)
	g.GET("/tx/alerts", h.GetAlerts)
}

func NewBudgetHandler(svc BudgetService) *BudgetHandler {
	return &BudgetHandler{
		svc: svc,
	}
}

type putBudgetRequest struct {
	Limit *float64 `json:"limit"`
}

func (h *BudgetHandler) ListBudgets(ctx *xhttp.RequestCtx) {
	items, err := h.svc.List(ctx)
	if err != nil {
		internalError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, items)
}

func (h *BudgetHandler) PutBudget(ctx *xhttp.RequestCtx) {
	var req putBudgetRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Limit == nil {
		writeError(ctx, xhttp.StatusBadRequest, "limit is required")
		return
	}

	b, err := h.svc.Upsert(ctx, categoryParam(ctx), *req.Limit)
	if errors.Is(err, services.ErrInvalidBudget) {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		internalError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, b)
}

func (h *BudgetHandler) DeleteBudget(ctx *xhttp.RequestCtx) {
	err := h.svc.Delete(ctx, categoryParam(ctx))
	if errors.Is(err, services.ErrNotFound) {
		writeError(ctx, xhttp.StatusNotFound, "budget not found")
		return
	}
	if err != nil {
		internalError(ctx, err)
		return
	}
	ctx.SetStatusCode(xhttp.StatusNoContent)
}

func (h *BudgetHandler) GetAlerts(ctx *xhttp.RequestCtx) {
	month, err := monthParam(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	alerts, err := h.svc.Alerts(ctx, month)
	if err != nil {
		internalError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, alerts)
}

// categoryParam decodes the path segment; the router leaves escapes such as
// %20 in place when the raw path is used.
func categoryParam(ctx *xhttp.RequestCtx) string {
	raw := pathParam(ctx, "category")
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

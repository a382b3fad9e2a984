package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/fasthttp/router"
	"github.com/nimasrn/finance-tracker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	ok := pingerFunc(func(context.Context) error { return nil })

	t.Run("all dependencies up", func(t *testing.T) {
		h := NewHealthHandler(map[string]Pinger{"postgres": ok, "redis": ok})
		ctx := setupTestContext("GET", "/health", nil)
		h.GetHealth(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.Equal(t, "success", string(ctx.Response.Body()))
	})

	t.Run("dependency down", func(t *testing.T) {
		down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })
		h := NewHealthHandler(map[string]Pinger{"redis": down})
		ctx := setupTestContext("GET", "/health", nil)
		h.GetHealth(ctx)

		assert.Equal(t, 503, ctx.Response.StatusCode())
		assert.Equal(t, "redis unavailable", errorBody(t, ctx))
	})

	t.Run("ping gets a deadline", func(t *testing.T) {
		var hasDeadline bool
		check := pingerFunc(func(c context.Context) error {
			_, hasDeadline = c.Deadline()
			return nil
		})
		h := NewHealthHandler(map[string]Pinger{"postgres": check})
		h.GetHealth(setupTestContext("GET", "/health", nil))
		assert.True(t, hasDeadline)
	})
}

func TestRoutes(t *testing.T) {
	txs := new(MockTransactionService)
	insights := new(MockInsightService)
	budgets := new(MockBudgetService)

	r := router.New()
	api := r.Group("/api")
	RegisterTransactionRoutes(api, NewTransactionHandler(txs, insights))
	RegisterBudgetRoutes(api, NewBudgetHandler(budgets))

	txs.On("Summary", mock.Anything, mustMonth("2024-03")).Return(nil, errors.New("boom")).Once()
	txs.On("Delete", mock.Anything, int64(12)).Return(nil).Once()
	budgets.On("Alerts", mock.Anything, mustMonth("2024-03")).Return([]*model.BudgetAlert{}, nil).Once()

	ctx := setupTestContext("GET", "/api/tx/summary?month=2024-03", nil)
	r.Handler(ctx)
	assert.Equal(t, 500, ctx.Response.StatusCode())

	ctx = setupTestContext("DELETE", "/api/tx/12", nil)
	r.Handler(ctx)
	assert.Equal(t, 204, ctx.Response.StatusCode())

	ctx = setupTestContext("GET", "/api/tx/summary", nil)
	r.Handler(ctx)
	assert.Equal(t, 400, ctx.Response.StatusCode())

	ctx = setupTestContext("GET", "/api/tx/alerts?month=2024-03", nil)
	r.Handler(ctx)
	assert.Equal(t, 200, ctx.Response.StatusCode())
	assert.Equal(t, "[]", string(ctx.Response.Body()))

	txs.AssertExpectations(t)
	budgets.AssertExpectations(t)
}

func TestRegisterHealthRoutes(t *testing.T) {
	r := router.New()
	RegisterHealthRoutes(r, NewHealthHandler(nil))

	ctx := setupTestContext("GET", "/health", nil)
	r.Handler(ctx)
	assert.Equal(t, 200, ctx.Response.StatusCode())
	assert.Equal(t, "success", string(ctx.Response.Body()))
}

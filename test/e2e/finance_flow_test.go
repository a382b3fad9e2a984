package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/finance-tracker/internal/handlers"
	"github.com/nimasrn/finance-tracker/internal/insights"
	"github.com/nimasrn/finance-tracker/internal/model"
	"github.com/nimasrn/finance-tracker/internal/processor"
	"github.com/nimasrn/finance-tracker/internal/queue"
	"github.com/nimasrn/finance-tracker/internal/repository"
	"github.com/nimasrn/finance-tracker/internal/seed"
	"github.com/nimasrn/finance-tracker/internal/services"
	xhttp "github.com/nimasrn/finance-tracker/pkg/http"
	"github.com/nimasrn/finance-tracker/pkg/pg"
	"github.com/nimasrn/finance-tracker/test/fixtures"
	"github.com/nimasrn/finance-tracker/test/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

type TestEnvironment struct {
	DB              *pg.DB
	Redis           *miniredis.Miniredis
	Events          *queue.Queue
	Worker          *processor.ProcessorService
	TransactionRepo *repository.TransactionRepository
	Client          *fasthttp.Client
}

func setupE2EEnvironment(t *testing.T) *TestEnvironment {
	db := helpers.SetupTestDB(t)
	mr, adapter := helpers.SetupTestRedis(t)

	queueConfig := queue.QueueConfig{
		Name:              "test:tx-events",
		ConsumerGroup:     "insight-refreshers",
		ConsumerName:      "e2e",
		MaxRetries:        3,
		VisibilityTimeout: 2 * time.Second,
		PollInterval:      20 * time.Millisecond,
		BatchSize:         10,
		MaxLen:            1000,
		EnableDLQ:         true,
	}
	events, err := queue.NewQueue(adapter, queueConfig)
	require.NoError(t, err)

	transactionRepo := repository.NewTransactionRepository(db)
	budgetRepo := repository.NewBudgetRepository(db)
	cache := insights.NewCache(adapter, 10*time.Minute)

	transactionService := services.NewTransactionService(transactionRepo, events, cache)
	insightService := services.NewInsightService(transactionRepo, insights.NewRuleBased(), cache)
	budgetService := services.NewBudgetService(budgetRepo, transactionRepo)

	r := xhttp.CreateDefaultRouter()
	api := r.Group("/api")
	handlers.RegisterTransactionRoutes(api, handlers.NewTransactionHandler(transactionService, insightService))
	handlers.RegisterBudgetRoutes(api, handlers.NewBudgetHandler(budgetService))
	handlers.RegisterHealthRoutes(r, handlers.NewHealthHandler(map[string]handlers.Pinger{"postgres": db, "redis": adapter}))

	worker, err := processor.NewProcessorService(adapter,
		processor.NewRefreshProcessor(insightService, processor.NewIdempotencyService(adapter, processor.DefaultIdempotencyConfig())),
		// one consumer and one worker apply events in publish order
		processor.ServiceConfig{Queue: queueConfig, Consumers: 1, Workers: 1},
	)
	require.NoError(t, err)
	require.NoError(t, worker.Start())

	env := &TestEnvironment{
		DB:              db,
		Redis:           mr,
		Events:          events,
		Worker:          worker,
		TransactionRepo: transactionRepo,
		Client:          helpers.StartTestServer(t, xhttp.RecoverMiddleware(r.Handler)),
	}
	t.Cleanup(env.Cleanup)
	return env
}

func (env *TestEnvironment) Cleanup() {
	env.Worker.Stop()
	_ = env.Events.Stop(5 * time.Second)
}

// expectedInsight renders the rule-based text from what the store holds now.
func (env *TestEnvironment) expectedInsight(t *testing.T, month string) string {
	t.Helper()
	m, err := model.ParseMonth(month)
	require.NoError(t, err)

	ctx := context.Background()
	current, err := env.TransactionRepo.FindByMonth(ctx, m)
	require.NoError(t, err)
	previous, err := env.TransactionRepo.FindByMonth(ctx, m.Prev())
	require.NoError(t, err)
	return insights.NewRuleBased().Summarize(ctx, m, current, previous)
}

func (env *TestEnvironment) cached(month string) string {
	v, err := env.Redis.Get("insights:" + insights.StrategyRuleBased + ":" + month)
	if err != nil {
		return ""
	}
	return v
}

func (env *TestEnvironment) postTransaction(t *testing.T, date, merchant string, amount float64, category string) *model.Transaction {
	t.Helper()
	body, err := json.Marshal(fixtures.CreateRequestBody(date, merchant, amount, category))
	require.NoError(t, err)

	status, resp := helpers.Do(t, env.Client, "POST", "/api/tx", body)
	require.Equal(t, 200, status, string(resp))

	var created model.Transaction
	require.NoError(t, json.Unmarshal(resp, &created))
	require.NotZero(t, created.ID)
	return &created
}

func TestE2E_CreateTransactionWarmsInsightCache(t *testing.T) {
	env := setupE2EEnvironment(t)
	_, err := env.TransactionRepo.CreateBatch(context.Background(), fixtures.Clone(fixtures.FebruaryTransactions))
	require.NoError(t, err)

	env.postTransaction(t, "2024-03-02", "Whole Foods", 31, "Groceries")

	helpers.AssertEventually(t, 5*time.Second, func() bool {
		return env.cached("2024-03") != "" && env.cached("2024-04") != ""
	}, "worker did not refresh the insight of the changed month and the next one")

	want := env.expectedInsight(t, "2024-03")
	assert.Equal(t, want, env.cached("2024-03"))
	assert.Equal(t, "No spending recorded for 2024-04.", env.cached("2024-04"))

	status, resp := helpers.Do(t, env.Client, "GET", "/api/tx/insights?month=2024-03", nil)
	require.Equal(t, 200, status)
	var insight model.Insight
	require.NoError(t, json.Unmarshal(resp, &insight))
	assert.Equal(t, "2024-03", insight.Month)
	assert.Equal(t, want, insight.Summary)
}

func TestE2E_DeleteTransactionRefreshesInsight(t *testing.T) {
	env := setupE2EEnvironment(t)

	env.postTransaction(t, "2024-03-02", "Whole Foods", 31, "Groceries")
	shell := env.postTransaction(t, "2024-03-09", "Shell", 42.10, "Transport")

	helpers.AssertEventually(t, 5*time.Second, func() bool {
		return env.cached("2024-03") == env.expectedInsight(t, "2024-03")
	}, "insight was not refreshed after the creates")
	before := env.cached("2024-03")

	status, _ := helpers.Do(t, env.Client, "DELETE", fmt.Sprintf("/api/tx/%d", shell.ID), nil)
	require.Equal(t, 204, status)

	after := env.expectedInsight(t, "2024-03")
	require.NotEqual(t, before, after)
	helpers.AssertEventually(t, 5*time.Second, func() bool {
		return env.cached("2024-03") == after
	}, "insight was not refreshed after the delete")

	status, _ = helpers.Do(t, env.Client, "GET", fmt.Sprintf("/api/tx/%d", shell.ID), nil)
	assert.Equal(t, 404, status)
	status, _ = helpers.Do(t, env.Client, "DELETE", fmt.Sprintf("/api/tx/%d", shell.ID), nil)
	assert.Equal(t, 404, status)
}

func TestE2E_SummaryListingAndAlerts(t *testing.T) {
	env := setupE2EEnvironment(t)
	ctx := context.Background()
	_, err := env.TransactionRepo.CreateBatch(ctx, fixtures.Clone(fixtures.FebruaryTransactions))
	require.NoError(t, err)
	_, err = env.TransactionRepo.CreateBatch(ctx, fixtures.Clone(fixtures.MarchTransactions))
	require.NoError(t, err)

	status, resp := helpers.Do(t, env.Client, "GET", "/api/tx/summary?month=2024-03", nil)
	require.Equal(t, 200, status)
	assert.Equal(t, `{"month":"2024-03","total":85.85,"byCategory":{"Groceries":31,"Dining":4.5,"Transport":42.1,"Uncategorized":8.25}}`, string(resp))

	status, _ = helpers.Do(t, env.Client, "GET", "/api/tx/summary?month=03-2024", nil)
	assert.Equal(t, 400, status)

	status, resp = helpers.Do(t, env.Client, "GET", "/api/tx?month=2024-03&q=whole", nil)
	require.Equal(t, 200, status)
	var listed []model.Transaction
	require.NoError(t, json.Unmarshal(resp, &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "2024-03-02", listed[0].Date.String())

	status, resp = helpers.Do(t, env.Client, "GET", "/api/tx?category=groceries", nil)
	require.Equal(t, 200, status)
	require.NoError(t, json.Unmarshal(resp, &listed))
	assert.Len(t, listed, 2)

	for _, b := range fixtures.TestBudgets {
		body, _ := json.Marshal(map[string]float64{"limit": b.Limit})
		status, resp = helpers.Do(t, env.Client, "PUT", "/api/budgets/"+b.Category, body)
		require.Equal(t, 200, status, string(resp))
	}
	status, _ = helpers.Do(t, env.Client, "PUT", "/api/budgets/Rent", []byte(`{"limit":0}`))
	assert.Equal(t, 400, status)

	status, resp = helpers.Do(t, env.Client, "GET", "/api/tx/alerts?month=2024-03", nil)
	require.Equal(t, 200, status)
	var alerts []model.BudgetAlert
	require.NoError(t, json.Unmarshal(resp, &alerts))
	require.Len(t, alerts, 3)
	assert.Equal(t, "Transport", alerts[0].Category)
	assert.Equal(t, model.AlertBad, alerts[0].Level)
	assert.Equal(t, "Dining", alerts[1].Category)
	assert.Equal(t, model.AlertWarn, alerts[1].Level)
	assert.Equal(t, "Groceries", alerts[2].Category)
	assert.Equal(t, model.AlertOK, alerts[2].Level)

	status, _ = helpers.Do(t, env.Client, "DELETE", "/api/budgets/dining", nil)
	assert.Equal(t, 204, status)
	status, resp = helpers.Do(t, env.Client, "GET", "/api/budgets", nil)
	require.Equal(t, 200, status)
	var budgets []model.Budget
	require.NoError(t, json.Unmarshal(resp, &budgets))
	assert.Len(t, budgets, 2)
}

func TestE2E_SeedAndHealth(t *testing.T) {
	env := setupE2EEnvironment(t)
	ctx := context.Background()

	n, err := seed.LoadFile(ctx, env.TransactionRepo, "../../data/transactions.csv")
	require.NoError(t, err)
	assert.Positive(t, n)

	_, err = seed.LoadFile(ctx, env.TransactionRepo, "../../data/transactions.csv")
	assert.True(t, errors.Is(err, seed.ErrStoreNotEmpty))

	status, resp := helpers.Do(t, env.Client, "GET", "/api/tx", nil)
	require.Equal(t, 200, status)
	var listed []model.Transaction
	require.NoError(t, json.Unmarshal(resp, &listed))
	assert.Len(t, listed, n)

	status, resp = helpers.Do(t, env.Client, "GET", "/health", nil)
	assert.Equal(t, 200, status)
	assert.Equal(t, "success", string(resp))
}

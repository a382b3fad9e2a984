package services

import (
	"context"

	"github.com/nimasrn/finance-tracker/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	args := m.Called(ctx, txn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindByID(ctx context.Context, id int64) (*model.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) DeleteByID(ctx context.Context, id int64) (*model.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindByMonth(ctx context.Context, month model.Month) ([]*model.Transaction, error) {
	args := m.Called(ctx, month)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Transaction), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	args := m.Called(ctx, data, metadata)
	return args.String(0), args.Error(1)
}

type MockInsightCache struct {
	mock.Mock
}

func (m *MockInsightCache) Get(ctx context.Context, strategy string, month model.Month) (string, bool, error) {
	args := m.Called(ctx, strategy, month)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockInsightCache) Set(ctx context.Context, strategy string, month model.Month, text string) error {
	args := m.Called(ctx, strategy, month, text)
	return args.Error(0)
}

func (m *MockInsightCache) Invalidate(ctx context.Context, months ...model.Month) error {
	args := m.Called(ctx, months)
	return args.Error(0)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Name() string {
	return "mock"
}

func (m *MockGenerator) Summarize(ctx context.Context, month model.Month, current, previous []*model.Transaction) string {
	args := m.Called(ctx, month, current, previous)
	return args.String(0)
}

type MockBudgetRepository struct {
	mock.Mock
}

func (m *MockBudgetRepository) List(ctx context.Context) ([]*model.Budget, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Budget), args.Error(1)
}

func (m *MockBudgetRepository) Upsert(ctx context.Context, b *model.Budget) (*model.Budget, error) {
	args := m.Called(ctx, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Budget), args.Error(1)
}

func (m *MockBudgetRepository) Delete(ctx context.Context, category string) error {
	args := m.Called(ctx, category)
	return args.Error(0)
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func txn(id int64, date string, amount float64, category string) *model.Transaction {
	t := &model.Transaction{ID: id, Date: model.ParseDatePtr(date), Amount: floatPtr(amount)}
	if category != "" {
		t.Category = strPtr(category)
	}
	return t
}

func mustMonth(s string) model.Month {
	m, err := model.ParseMonth(s)
	if err != nil {
		panic(err)
	}
	return m
}

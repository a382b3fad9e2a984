package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/nimasrn/finance-tracker/internal/model"
	"github.com/nimasrn/finance-tracker/internal/repository"
)

type BudgetRepository interface {
	List(ctx context.Context) ([]*model.Budget, error)
	Upsert(ctx context.Context, b *model.Budget) (*model.Budget, error)
	Delete(ctx context.Context, category string) error
}

type BudgetService struct {
	budgets BudgetRepository
	txs     MonthReader
	now     func() time.Time
}

func NewBudgetService(budgets BudgetRepository, txs MonthReader) *BudgetService {
	return &BudgetService{
		budgets: budgets,
		txs:     txs,
		now:     time.Now,
	}
}

func (s *BudgetService) List(ctx context.Context) ([]*model.Budget, error) {
	budgets, err := s.budgets.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	if budgets == nil {
		budgets = []*model.Budget{}
	}
	return budgets, nil
}

func (s *BudgetService) Upsert(ctx context.Context, category string, limit float64) (*model.Budget, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, fmt.Errorf("%w: category is required", ErrInvalidBudget)
	}
	if limit <= 0 || math.IsNaN(limit) || math.IsInf(limit, 0) {
		return nil, fmt.Errorf("%w: limit must be greater than zero", ErrInvalidBudget)
	}

	b, err := s.budgets.Upsert(ctx, &model.Budget{Category: category, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to save budget %q: %w", category, err)
	}
	return b, nil
}

func (s *BudgetService) Delete(ctx context.Context, category string) error {
	err := s.budgets.Delete(ctx, category)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete budget %q: %w", category, err)
	}
	return nil
}

// Alerts compares every budget with the spending recorded in month.
func (s *BudgetService) Alerts(ctx context.Context, month model.Month) ([]*model.BudgetAlert, error) {
	budgets, err := s.budgets.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	if len(budgets) == 0 {
		return []*model.BudgetAlert{}, nil
	}

	txs, err := s.txs.FindByMonth(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", month, err)
	}

	alerts := model.BuildAlerts(month, budgets, txs, s.now())
	if alerts == nil {
		alerts = []*model.BudgetAlert{}
	}
	return alerts, nil
}

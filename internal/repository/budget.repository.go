package repository

import (
	"context"
	"strings"

	"github.com/nimasrn/finance-tracker/internal/model"
	"github.com/nimasrn/finance-tracker/pkg/pg"
	"gorm.io/gorm/clause"
)

type BudgetRepository struct {
	*pg.DB
}

func NewBudgetRepository(db *pg.DB) *BudgetRepository {
	return &BudgetRepository{
		db,
	}
}

func (r *BudgetRepository) List(ctx context.Context) ([]*model.Budget, error) {
	var entities []*BudgetEntity
	if err := r.Read(ctx).Order("category_key ASC").Find(&entities).Error; err != nil {
		return nil, err
	}
	budgets := make([]*model.Budget, len(entities))
	for i, e := range entities {
		budgets[i] = toBudgetModel(e)
	}
	return budgets, nil
}

// Upsert creates the budget or replaces the one whose category matches
// case-insensitively.
func (r *BudgetRepository) Upsert(ctx context.Context, b *model.Budget) (*model.Budget, error) {
	entity := toBudgetEntity(&model.Budget{Category: strings.TrimSpace(b.Category), Limit: b.Limit})

	err := r.Write(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "category_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"category", "limit_amount", "updated_at"}),
	}).Create(entity).Error
	if err != nil {
		return nil, err
	}
	return toBudgetModel(entity), nil
}

func (r *BudgetRepository) Delete(ctx context.Context, category string) error {
	res := r.Write(ctx).Where("category_key = ?", model.NormalizeCategory(&category)).Delete(&BudgetEntity{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

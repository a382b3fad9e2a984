package repository

import (
	"time"

	"github.com/nimasrn/finance-tracker/internal/model"
)

// BudgetEntity is keyed by the normalized category so "Food" and " food "
// share one row; Category keeps the spelling last written.
type BudgetEntity struct {
	CategoryKey string    `db:"category_key" gorm:"primaryKey;column:category_key"`
	Category    string    `db:"category"     gorm:"column:category;not null"`
	LimitAmount float64   `db:"limit_amount" gorm:"column:limit_amount;not null"`
	UpdatedAt   time.Time `db:"updated_at"   gorm:"column:updated_at;autoUpdateTime"`
}

func (BudgetEntity) TableName() string {
	return "budgets"
}

func toBudgetEntity(m *model.Budget) *BudgetEntity {
	return &BudgetEntity{
		CategoryKey: model.NormalizeCategory(&m.Category),
		Category:    m.Category,
		LimitAmount: m.Limit,
	}
}

func toBudgetModel(e *BudgetEntity) *model.Budget {
	return &model.Budget{
		Category: e.Category,
		Limit:    e.LimitAmount,
	}
}

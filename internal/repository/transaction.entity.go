package repository

import (
	"time"

	"github.com/nimasrn/finance-tracker/internal/model"
)

type TransactionEntity struct {
	ID       int64      `db:"id"       gorm:"primaryKey;autoIncrement;column:id"`
	Date     *time.Time `db:"date"     gorm:"column:date;type:date;index"`
	Merchant *string    `db:"merchant" gorm:"column:merchant;type:text"`
	Amount   *float64   `db:"amount"   gorm:"column:amount;type:double precision"`
	Category *string    `db:"category" gorm:"column:category;type:text;index"`
	Notes    *string    `db:"notes"    gorm:"column:notes;type:text"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	e := &TransactionEntity{
		ID:       m.ID,
		Merchant: m.Merchant,
		Amount:   m.Amount,
		Category: m.Category,
		Notes:    m.Notes,
	}
	if m.Date != nil {
		t := m.Date.Time()
		e.Date = &t
	}
	return e
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	m := &model.Transaction{
		ID:       e.ID,
		Merchant: e.Merchant,
		Amount:   e.Amount,
		Category: e.Category,
		Notes:    e.Notes,
	}
	if e.Date != nil {
		d := model.DateOf(e.Date.UTC())
		m.Date = &d
	}
	return m
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}

package fixtures

import (
	"github.com/nimasrn/finance-tracker/internal/model"
)

// FebruaryTransactions and MarchTransactions give a two-month history with
// one income row and one uncategorized row.
var (
	FebruaryTransactions = []*model.Transaction{
		NewTestTransaction("2024-02-03", "Whole Foods", 24.00, "Groceries"),
		NewTestTransaction("2024-02-14", "Netflix", 15.99, "Entertainment"),
		NewTestTransaction("2024-02-28", "Employer Inc", -2500, "Income"),
	}

	MarchTransactions = []*model.Transaction{
		NewTestTransaction("2024-03-02", "Whole Foods", 31.00, "Groceries"),
		NewTestTransaction("2024-03-05", "Starbucks", 4.50, "Dining"),
		NewTestTransaction("2024-03-09", "Shell", 42.10, "Transport"),
		{Date: model.ParseDatePtr("2024-03-12"), Merchant: strPtr("Corner Shop"), Amount: floatPtr(8.25)},
	}

	TestBudgets = []*model.Budget{
		{Category: "Groceries", Limit: 300},
		{Category: "Transport", Limit: 40},
		{Category: "Dining", Limit: 5},
	}
)

func NewTestTransaction(date, merchant string, amount float64, category string) *model.Transaction {
	return &model.Transaction{
		Date:     model.ParseDatePtr(date),
		Merchant: strPtr(merchant),
		Amount:   floatPtr(amount),
		Category: strPtr(category),
	}
}

// CreateRequestBody is the POST /api/tx payload for t.
func CreateRequestBody(date, merchant string, amount float64, category string) map[string]any {
	return map[string]any{
		"date":     date,
		"merchant": merchant,
		"amount":   amount,
		"category": category,
	}
}

// Clone returns deep copies so tests can hand fixtures to a store that
// assigns ids.
func Clone(txs []*model.Transaction) []*model.Transaction {
	out := make([]*model.Transaction, len(txs))
	for i, t := range txs {
		c := *t
		if t.Date != nil {
			d := *t.Date
			c.Date = &d
		}
		out[i] = &c
	}
	return out
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

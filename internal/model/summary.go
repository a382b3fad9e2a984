package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.New(5, -1)
)

type MonthSummary struct {
	Month      Month
	Total      float64
	ByCategory Groups
}

func NewMonthSummary(month Month, txs []*Transaction) *MonthSummary {
	byCategory := GroupBy(txs, ByCategory)
	if byCategory == nil {
		byCategory = Groups{}
	}
	return &MonthSummary{
		Month:      month,
		Total:      roundCents(Total(txs)).InexactFloat64(),
		ByCategory: byCategory,
	}
}

func (s MonthSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Month      string  `json:"month"`
		Total      float64 `json:"total"`
		ByCategory Groups  `json:"byCategory"`
	}{
		Month:      s.Month.String(),
		Total:      s.Total,
		ByCategory: s.ByCategory,
	})
}

// roundCents rounds to two places with ties going toward positive infinity,
// so 0.125 becomes 0.13 and -0.125 becomes -0.12.
func roundCents(d decimal.Decimal) decimal.Decimal {
	return d.Mul(hundred).Add(half).Floor().Div(hundred)
}

type Insight struct {
	Month   string `json:"month"`
	Summary string `json:"summary"`
}

package model

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type AlertLevel string

const (
	AlertOK   AlertLevel = "ok"
	AlertWarn AlertLevel = "warn"
	AlertBad  AlertLevel = "bad"
)

const warnRatio = 0.8

// Budget is a monthly spending limit for one category.
type Budget struct {
	Category string  `json:"category"`
	Limit    float64 `json:"limit"`
}

type BudgetAlert struct {
	Category string     `json:"category"`
	Limit    float64    `json:"limit"`
	Spent    float64    `json:"spent"`
	Ratio    float64    `json:"ratio"`
	Percent  int        `json:"percent"`
	Level    AlertLevel `json:"level"`
	Expected float64    `json:"expected"`
	Delta    float64    `json:"delta"`
}

// NormalizeCategory is the budget matching key: trimmed, lower-cased, with
// absent categories mapped to the uncategorized label.
func NormalizeCategory(c *string) string {
	if c == nil {
		return strings.ToLower(UncategorizedLabel)
	}
	return strings.ToLower(strings.TrimSpace(*c))
}

func LevelFor(ratio float64) AlertLevel {
	switch {
	case ratio >= 1:
		return AlertBad
	case ratio >= warnRatio:
		return AlertWarn
	default:
		return AlertOK
	}
}

// DaysPassed reports how many days of month have elapsed at now: all of them
// for a past month, none for a future one.
func DaysPassed(month Month, now time.Time) int {
	current := MonthOf(now)
	switch {
	case month == current:
		return min(now.Day(), month.Days())
	case month.Before(current):
		return month.Days()
	default:
		return 0
	}
}

// BuildAlerts evaluates every budget against the expenses in txs, which must
// all belong to month. Only positive amounts count as spending.
func BuildAlerts(month Month, budgets []*Budget, txs []*Transaction, now time.Time) []*BudgetAlert {
	spent := make(map[string]decimal.Decimal)
	for _, t := range txs {
		amt := AmountOf(t)
		if !amt.IsPositive() {
			continue
		}
		k := NormalizeCategory(t.Category)
		spent[k] = spent[k].Add(amt)
	}

	days := decimal.NewFromInt(int64(month.Days()))
	passed := decimal.NewFromInt(int64(DaysPassed(month, now)))

	alerts := make([]*BudgetAlert, 0, len(budgets))
	for _, b := range budgets {
		limit := decimal.NewFromFloat(b.Limit)
		s := spent[NormalizeCategory(&b.Category)]

		ratio := 0.0
		if limit.IsPositive() {
			ratio = s.Div(limit).InexactFloat64()
		}
		expected := limit.Mul(passed).Div(days)

		alerts = append(alerts, &BudgetAlert{
			Category: b.Category,
			Limit:    b.Limit,
			Spent:    s.Round(2).InexactFloat64(),
			Ratio:    ratio,
			Percent:  int(math.Min(100, math.Round(ratio*100))),
			Level:    LevelFor(ratio),
			Expected: expected.Round(2).InexactFloat64(),
			Delta:    s.Sub(expected).Round(2).InexactFloat64(),
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Ratio > alerts[j].Ratio
	})
	return alerts
}

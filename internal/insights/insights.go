// Package insights turns a month of transactions into a one-sentence
// spending summary.
package insights

import (
	"context"
	"fmt"
	"strings"

	"github.com/nimasrn/finance-tracker/internal/model"
)

const (
	StrategyRuleBased  = "rule"
	StrategyGenerative = "llm"
)

// FallbackPrefix marks text produced by the rule-based strategy after the
// text generation service failed.
const FallbackPrefix = "[LLM offline → fallback] "

// Generator produces the insight text for month. previous holds the
// transactions of the calendar month before month. Implementations never fail.
type Generator interface {
	Name() string
	Summarize(ctx context.Context, month model.Month, current, previous []*model.Transaction) string
}

func IsFallback(text string) bool {
	return strings.HasPrefix(text, FallbackPrefix)
}

func emptyMonth(month model.Month) string {
	return fmt.Sprintf("No spending recorded for %s.", month)
}

// IsEmptyMonthText reports whether text is the fixed sentence for a month
// without transactions.
func IsEmptyMonthText(month model.Month, text string) bool {
	return text == emptyMonth(month)
}

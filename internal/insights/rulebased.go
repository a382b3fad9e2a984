package insights

import (
	"context"
	"fmt"

	"github.com/nimasrn/finance-tracker/internal/model"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type RuleBased struct{}

func NewRuleBased() *RuleBased {
	return &RuleBased{}
}

func (*RuleBased) Name() string { return StrategyRuleBased }

func (*RuleBased) Summarize(_ context.Context, month model.Month, current, previous []*model.Transaction) string {
	if len(current) == 0 {
		return emptyMonth(month)
	}

	total := model.Total(current)
	prevTotal := model.Total(previous)

	trend := "no prior data"
	if !prevTotal.IsZero() {
		change := total.Sub(prevTotal).Div(prevTotal).Mul(hundred)
		trend = fmt.Sprintf("%s%% vs %s", signedFixed(change, 1), month.Prev())
	}

	topCategory, _ := model.GroupBy(current, model.ByCategory).Top()
	topMerchant, _ := model.GroupBy(current, model.ByMerchant).Top()

	return fmt.Sprintf("%s total $%s (%s). Top category: %s. Biggest merchant: %s.",
		month, total.StringFixed(2), trend, topCategory.Key, topMerchant.Key)
}

// signedFixed rounds half away from zero and always carries a sign. The sign
// comes from the unrounded value, so -0.04 renders as -0.0.
func signedFixed(d decimal.Decimal, places int32) string {
	if d.IsNegative() {
		return "-" + d.Abs().StringFixed(places)
	}
	return "+" + d.StringFixed(places)
}

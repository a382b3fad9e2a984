package model

import "strings"

const (
	UncategorizedLabel = "Uncategorized"
	UnknownMerchant    = "Unknown"
)

// Transaction is a single recorded financial event. Every field but ID may
// be absent. Expenses are positive amounts, income negative.
type Transaction struct {
	ID       int64    `json:"id,omitempty"`
	Date     *Date    `json:"date"`
	Merchant *string  `json:"merchant"`
	Amount   *float64 `json:"amount"`
	Category *string  `json:"category"`
	Notes    *string  `json:"notes"`
}

func (t *Transaction) AmountOrZero() float64 {
	if t.Amount == nil {
		return 0
	}
	return *t.Amount
}

func (t *Transaction) CategoryOrDefault() string {
	if t.Category == nil {
		return UncategorizedLabel
	}
	return *t.Category
}

func (t *Transaction) MerchantOrDefault() string {
	if t.Merchant == nil {
		return UnknownMerchant
	}
	return *t.Merchant
}

// Month reports the month of the transaction date, false when the date is absent.
func (t *Transaction) Month() (Month, bool) {
	if t.Date == nil {
		return Month{}, false
	}
	return t.Date.MonthOf(), true
}

func lower(s *string) string {
	if s == nil {
		return ""
	}
	return strings.ToLower(*s)
}

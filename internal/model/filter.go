package model

import "strings"

// TransactionFilter narrows a listing. All set criteria must hold.
type TransactionFilter struct {
	Query    string
	From     *Date
	To       *Date
	Category string
	Month    *Month
}

// NewTransactionFilter builds a filter from raw query values. Malformed dates
// and months are dropped rather than rejected.
func NewTransactionFilter(q, from, to, category, month string) TransactionFilter {
	f := TransactionFilter{
		Query:    q,
		From:     ParseDatePtr(from),
		To:       ParseDatePtr(to),
		Category: category,
	}
	if m, err := ParseMonth(month); err == nil {
		f.Month = &m
	}
	return f
}

func (f TransactionFilter) IsEmpty() bool {
	return isBlank(f.Query) && f.From == nil && f.To == nil && isBlank(f.Category) && f.Month == nil
}

func (f TransactionFilter) Matches(t *Transaction) bool {
	if !isBlank(f.Query) {
		q := strings.ToLower(f.Query)
		if !strings.Contains(lower(t.Merchant), q) &&
			!strings.Contains(lower(t.Category), q) &&
			!strings.Contains(lower(t.Notes), q) {
			return false
		}
	}
	if f.From != nil && (t.Date == nil || t.Date.Before(*f.From)) {
		return false
	}
	if f.To != nil && (t.Date == nil || t.Date.After(*f.To)) {
		return false
	}
	if !isBlank(f.Category) && lower(t.Category) != strings.ToLower(f.Category) {
		return false
	}
	if f.Month != nil && (t.Date == nil || !f.Month.Contains(*t.Date)) {
		return false
	}
	return true
}

func (f TransactionFilter) Apply(txs []*Transaction) []*Transaction {
	out := make([]*Transaction, 0, len(txs))
	for _, t := range txs {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

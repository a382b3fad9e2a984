package model

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Group is one bucket of a GroupBy result.
type Group struct {
	Key string
	Sum decimal.Decimal
}

// Groups keeps buckets in the order their key was first seen.
type Groups []Group

func AmountOf(t *Transaction) decimal.Decimal {
	if t.Amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*t.Amount)
}

func Total(txs []*Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(AmountOf(t))
	}
	return total
}

func GroupBy(txs []*Transaction, key func(*Transaction) string) Groups {
	index := make(map[string]int)
	var groups Groups
	for _, t := range txs {
		k := key(t)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Key: k, Sum: decimal.Zero})
		}
		groups[i].Sum = groups[i].Sum.Add(AmountOf(t))
	}
	return groups
}

// Top returns the group with the strictly largest sum. On ties the group seen
// first wins.
func (g Groups) Top() (Group, bool) {
	if len(g) == 0 {
		return Group{}, false
	}
	top := g[0]
	for _, gr := range g[1:] {
		if gr.Sum.GreaterThan(top.Sum) {
			top = gr
		}
	}
	return top, true
}

func (g Groups) Total() decimal.Decimal {
	total := decimal.Zero
	for _, gr := range g {
		total = total.Add(gr.Sum)
	}
	return total
}

// MarshalJSON renders the groups as a JSON object whose key order follows
// the slice order.
func (g Groups) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, gr := range g {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(gr.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.WriteString(gr.Sum.String())
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func ByCategory(t *Transaction) string { return t.CategoryOrDefault() }
func ByMerchant(t *Transaction) string { return t.MerchantOrDefault() }

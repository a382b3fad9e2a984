package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupsTop(t *testing.T) {
	t.Run("strictly largest wins", func(t *testing.T) {
		txs := []*Transaction{
			{Amount: floatPtr(30), Category: strPtr("A")},
			{Amount: floatPtr(50), Category: strPtr("B")},
			{Amount: floatPtr(20), Category: strPtr("C")},
		}
		top, ok := GroupBy(txs, ByCategory).Top()
		require.True(t, ok)
		assert.Equal(t, "B", top.Key)
	})

	t.Run("tie keeps first encountered", func(t *testing.T) {
		txs := []*Transaction{
			{Amount: floatPtr(10), Category: strPtr("X")},
			{Amount: floatPtr(40), Category: strPtr("Y")},
			{Amount: floatPtr(30), Category: strPtr("X")},
		}
		top, _ := GroupBy(txs, ByCategory).Top()
		assert.Equal(t, "X", top.Key)
	})

	t.Run("absent values use defaults", func(t *testing.T) {
		txs := []*Transaction{{Amount: floatPtr(5)}, {}}
		g := GroupBy(txs, ByMerchant)
		require.Len(t, g, 1)
		assert.Equal(t, UnknownMerchant, g[0].Key)
		assert.Equal(t, "5", g[0].Sum.String())
	})

	t.Run("empty", func(t *testing.T) {
		_, ok := Groups(nil).Top()
		assert.False(t, ok)
	})
}

func TestMonthSummary(t *testing.T) {
	m, _ := ParseMonth("2024-03")
	txs := []*Transaction{
		{Amount: floatPtr(0.1), Category: strPtr("Food")},
		{Amount: floatPtr(0.2), Category: strPtr("Food")},
		{Amount: floatPtr(150.005)},
		{Category: strPtr("Rent")},
		{Amount: floatPtr(-10), Category: strPtr("Salary")},
	}

	s := NewMonthSummary(m, txs)
	assert.Equal(t, 140.31, s.Total)
	assert.True(t, s.ByCategory.Total().Equal(Total(txs)))

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t,
		`{"month":"2024-03","total":140.31,"byCategory":{"Food":0.3,"Uncategorized":150.005,"Rent":0,"Salary":-10}}`,
		string(out))
}

func TestMonthSummary_TotalRounding(t *testing.T) {
	m, _ := ParseMonth("2024-03")
	cases := []struct {
		amounts []float64
		want    float64
	}{
		{[]float64{0.125}, 0.13},
		{[]float64{-0.125}, -0.12},
		{[]float64{-0.126}, -0.13},
		{[]float64{10, -10.005}, 0},
		{[]float64{2.675}, 2.68},
	}
	for _, tc := range cases {
		txs := make([]*Transaction, 0, len(tc.amounts))
		for _, a := range tc.amounts {
			txs = append(txs, &Transaction{Amount: floatPtr(a)})
		}
		assert.Equal(t, tc.want, NewMonthSummary(m, txs).Total, "amounts %v", tc.amounts)
	}
}

func TestMonthSummary_Empty(t *testing.T) {
	m, _ := ParseMonth("2024-05")
	out, err := json.Marshal(NewMonthSummary(m, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"month":"2024-05","total":0,"byCategory":{}}`, string(out))
}

func TestBuildAlerts(t *testing.T) {
	march, _ := ParseMonth("2024-03")
	txs := []*Transaction{
		{Amount: floatPtr(90), Category: strPtr("Food")},
		{Amount: floatPtr(30), Category: strPtr(" food ")},
		{Amount: floatPtr(-500), Category: strPtr("Food")},
		{Amount: floatPtr(40), Category: strPtr("Transport")},
		{Amount: floatPtr(10)},
	}
	budgets := []*Budget{
		{Category: "Transport", Limit: 50},
		{Category: "Food", Limit: 100},
		{Category: "Fun", Limit: 80},
		{Category: "uncategorized", Limit: 100},
	}

	t.Run("past month", func(t *testing.T) {
		now := time.Date(2024, time.May, 10, 12, 0, 0, 0, time.UTC)
		alerts := BuildAlerts(march, budgets, txs, now)
		require.Len(t, alerts, 4)

		assert.Equal(t, "Food", alerts[0].Category)
		assert.Equal(t, 120.0, alerts[0].Spent)
		assert.Equal(t, AlertBad, alerts[0].Level)
		assert.Equal(t, 100, alerts[0].Percent)
		assert.Equal(t, 100.0, alerts[0].Expected)
		assert.Equal(t, 20.0, alerts[0].Delta)

		assert.Equal(t, "Transport", alerts[1].Category)
		assert.Equal(t, AlertWarn, alerts[1].Level)
		assert.Equal(t, 80, alerts[1].Percent)

		assert.Equal(t, "uncategorized", alerts[2].Category)
		assert.Equal(t, AlertOK, alerts[2].Level)
		assert.Equal(t, 10.0, alerts[2].Spent)

		assert.Equal(t, "Fun", alerts[3].Category)
		assert.Equal(t, 0.0, alerts[3].Spent)
		assert.Equal(t, -80.0, alerts[3].Delta)
	})

	t.Run("current month paces by elapsed days", func(t *testing.T) {
		now := time.Date(2024, time.March, 10, 8, 0, 0, 0, time.UTC)
		alerts := BuildAlerts(march, []*Budget{{Category: "Fun", Limit: 31}}, nil, now)
		assert.Equal(t, 10.0, alerts[0].Expected)
	})

	t.Run("future month expects nothing", func(t *testing.T) {
		now := time.Date(2024, time.February, 10, 8, 0, 0, 0, time.UTC)
		alerts := BuildAlerts(march, []*Budget{{Category: "Food", Limit: 100}}, txs, now)
		assert.Equal(t, 0.0, alerts[0].Expected)
		assert.Equal(t, 120.0, alerts[0].Delta)
	})
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, AlertOK, LevelFor(0.79))
	assert.Equal(t, AlertWarn, LevelFor(0.8))
	assert.Equal(t, AlertBad, LevelFor(1))
}

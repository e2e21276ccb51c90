package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMoney_ToDecimal(t *testing.T) {
	m := NewMoney(10_500, CurrencyGNF)
	assert.Equal(t, "10500", m.ToDecimal().String())
}

func TestFromDecimal_RoundsHalfUp(t *testing.T) {
	assert.Equal(t, int64(101), FromDecimal(decimal.NewFromFloat(100.5)))
	assert.Equal(t, int64(100), FromDecimal(decimal.NewFromFloat(100.4)))
	assert.Equal(t, int64(100), FromDecimal(decimal.NewFromInt(100)))
}

func TestMoney_Percent(t *testing.T) {
	cases := []struct {
		name   string
		amount int64
		pct    decimal.Decimal
		want   int64
	}{
		{name: "two_percent", amount: 5000, pct: decimal.NewFromInt(2), want: 100},
		{name: "half_percent", amount: 10_000, pct: decimal.NewFromFloat(0.5), want: 50},
		{name: "rounds_half_up", amount: 101, pct: decimal.NewFromFloat(0.5), want: 1},
		{name: "zero_percent", amount: 5000, pct: decimal.Zero, want: 0},
		{name: "full_amount", amount: 5000, pct: decimal.NewFromInt(100), want: 5000},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := NewMoney(tc.amount, CurrencyGNF).Percent(tc.pct)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMoney_Add(t *testing.T) {
	m := NewMoney(1000, CurrencyGNF).Add(-250)
	assert.Equal(t, int64(750), m.Amount)
	assert.Equal(t, CurrencyGNF, m.Currency)
}

func TestMoney_IsPositive(t *testing.T) {
	assert.True(t, NewMoney(1, CurrencyGNF).IsPositive())
	assert.False(t, NewMoney(0, CurrencyGNF).IsPositive())
	assert.False(t, NewMoney(-1, CurrencyGNF).IsPositive())
}

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "25000 GNF", NewMoney(25_000, CurrencyGNF).String())
}

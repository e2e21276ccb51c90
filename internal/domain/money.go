package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value in a specific currency.
// Amount is stored as BIGINT minor units (GNF has exponent 0, so one unit
// is one franc) to avoid floating point errors.
type Money struct {
	Amount   int64  // minor units
	Currency string // ISO 4217
}

// NewMoney creates a new Money instance from minor units.
func NewMoney(amount int64, currency string) Money {
	return Money{
		Amount:   amount,
		Currency: currency,
	}
}

// ToDecimal converts the int64 minor units to a shopspring/decimal.Decimal.
func (m Money) ToDecimal() decimal.Decimal {
	return decimal.NewFromInt(m.Amount)
}

// FromDecimal converts a decimal.Decimal to int64 minor units, rounding
// half-up to the nearest unit.
func FromDecimal(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// Percent returns the given percentage of the amount, rounded half-up.
// Percent(decimal 2) of 5000 is 100.
func (m Money) Percent(pct decimal.Decimal) int64 {
	return FromDecimal(m.ToDecimal().Mul(pct).Div(decimal.NewFromInt(100)))
}

// Add returns a new Money with the given delta applied.
func (m Money) Add(delta int64) Money {
	return Money{Amount: m.Amount + delta, Currency: m.Currency}
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.Amount > 0
}

// String returns the string representation of the money.
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.ToDecimal().StringFixed(0), m.Currency)
}

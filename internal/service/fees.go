package service

import (
	"github.com/shopspring/decimal"

	"github.com/solutions224/payments-core/internal/domain"
)

// FeeSchedule prices a transfer for one caller role: a percentage of the
// amount plus a fixed part, clamped to [Min, Max].
type FeeSchedule struct {
	Percent decimal.Decimal
	Fixed   int64
	Min     int64
	Max     int64 // 0 means no ceiling
}

// FeeBreakdown is the priced result. Total is what the sender pays.
type FeeBreakdown struct {
	Fee   int64
	Total int64
}

// FeeCalculator resolves the schedule for a role and prices amounts.
// Unknown roles fall back to the default schedule.
type FeeCalculator struct {
	schedules map[string]FeeSchedule
	fallback  FeeSchedule
}

// DefaultFeeSchedules mirrors the platform pricing: clients pay 1% with a
// 50 GNF floor, merchants 2% plus 100 GNF, drivers and agents 0.5%.
func DefaultFeeSchedules() map[string]FeeSchedule {
	return map[string]FeeSchedule{
		"client":   {Percent: decimal.NewFromInt(1), Min: 50},
		"merchant": {Percent: decimal.NewFromInt(2), Fixed: 100},
		"driver":   {Percent: decimal.NewFromFloat(0.5)},
		"agent":    {Percent: decimal.NewFromFloat(0.5)},
	}
}

func NewFeeCalculator(schedules map[string]FeeSchedule) *FeeCalculator {
	if schedules == nil {
		schedules = DefaultFeeSchedules()
	}
	fallback, ok := schedules["client"]
	if !ok {
		fallback = FeeSchedule{}
	}
	return &FeeCalculator{schedules: schedules, fallback: fallback}
}

// Calculate prices a transfer of amount minor units for the given role.
func (c *FeeCalculator) Calculate(role string, amount int64) (FeeBreakdown, error) {
	if amount <= 0 {
		return FeeBreakdown{}, domain.NewValidation(domain.CodeInvalidAmount, "amount must be positive, got %d", amount)
	}

	schedule, ok := c.schedules[role]
	if !ok {
		schedule = c.fallback
	}

	fee := domain.NewMoney(amount, domain.CurrencyGNF).Percent(schedule.Percent) + schedule.Fixed
	if fee < schedule.Min {
		fee = schedule.Min
	}
	if schedule.Max > 0 && fee > schedule.Max {
		fee = schedule.Max
	}
	if fee < 0 {
		fee = 0
	}
	return FeeBreakdown{Fee: fee, Total: amount + fee}, nil
}

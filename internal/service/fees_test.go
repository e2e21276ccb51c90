package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solutions224/payments-core/internal/domain"
)

func TestFeeCalculatorDefaultSchedules(t *testing.T) {
	calc := NewFeeCalculator(nil)

	cases := []struct {
		name   string
		role   string
		amount int64
		fee    int64
	}{
		{name: "client_one_percent", role: "client", amount: 10_000, fee: 100},
		{name: "client_floor_applies", role: "client", amount: 1000, fee: 50},
		{name: "merchant_percent_plus_fixed", role: "merchant", amount: 5000, fee: 200},
		{name: "driver_half_percent", role: "driver", amount: 10_000, fee: 50},
		{name: "agent_half_percent", role: "agent", amount: 20_000, fee: 100},
		{name: "unknown_role_falls_back_to_client", role: "somebody", amount: 10_000, fee: 100},
		{name: "empty_role_falls_back_to_client", role: "", amount: 10_000, fee: 100},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			breakdown, err := calc.Calculate(tc.role, tc.amount)
			require.NoError(t, err)
			assert.Equal(t, tc.fee, breakdown.Fee)
			assert.Equal(t, tc.amount+tc.fee, breakdown.Total)
		})
	}
}

func TestFeeCalculatorRejectsNonPositiveAmount(t *testing.T) {
	calc := NewFeeCalculator(nil)

	for _, amount := range []int64{0, -100} {
		_, err := calc.Calculate("client", amount)
		require.Error(t, err)
		assert.Equal(t, domain.CodeInvalidAmount, domain.CodeOf(err))
	}
}

func TestFeeCalculatorCeiling(t *testing.T) {
	calc := NewFeeCalculator(map[string]FeeSchedule{
		"client": {Percent: decimal.NewFromInt(2), Max: 500},
	})

	breakdown, err := calc.Calculate("client", 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(500), breakdown.Fee)
}

func TestFeeCalculatorMerchantFixedOnly(t *testing.T) {
	// The merchant fixed part applies even when the percentage rounds to zero.
	calc := NewFeeCalculator(nil)
	breakdown, err := calc.Calculate("merchant", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(100), breakdown.Fee)
}

package amortization

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lendcore/loan-engine/internal/domain"
	customError "github.com/lendcore/loan-engine/pkg/errors"
)

var firstDue = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

func TestGenerateSchedule_TwelveMonths(t *testing.T) {
	principal := decimal.NewFromInt(25000)
	rate := decimal.NewFromFloat(0.15)

	installments, err := GenerateSchedule(principal, rate, 12, firstDue)
	require.NoError(t, err)
	require.Len(t, installments, 12)

	// P*r/(1-(1+r)^-12) with r = 0.15/12 = 0.0125
	expectedTotal := decimal.NewFromFloat(2256.46)
	for _, inst := range installments[:11] {
		assert.True(t, inst.TotalAmount.Equal(expectedTotal),
			"installment %d total %s", inst.InstallmentNumber, inst.TotalAmount)
	}

	first := installments[0]
	assert.True(t, first.InterestAmount.Equal(decimal.NewFromFloat(312.50)), "got %s", first.InterestAmount)
	assert.True(t, first.PrincipalAmount.Equal(decimal.NewFromFloat(1943.96)), "got %s", first.PrincipalAmount)

	// The last row absorbs the rounding drift.
	last := installments[11]
	assert.True(t, last.PrincipalAmount.Equal(decimal.NewFromFloat(2228.57)), "got %s", last.PrincipalAmount)
	assert.True(t, last.InterestAmount.Equal(decimal.NewFromFloat(27.86)), "got %s", last.InterestAmount)
	assert.True(t, last.TotalAmount.Equal(decimal.NewFromFloat(2256.43)), "got %s", last.TotalAmount)
}

func TestGenerateSchedule_PrincipalConservation(t *testing.T) {
	cases := []struct {
		principal string
		rate      string
		count     int
	}{
		{"25000", "0.15", 12},
		{"10000", "0.10", 6},
		{"9999.99", "0.37", 9},
		{"500000", "0.50", 24},
		{"123.45", "0.25", 6},
	}

	for _, tc := range cases {
		principal, err := decimal.NewFromString(tc.principal)
		require.NoError(t, err)
		rate, err := decimal.NewFromString(tc.rate)
		require.NoError(t, err)

		installments, err := GenerateSchedule(principal, rate, tc.count, firstDue)
		require.NoError(t, err, "case %+v", tc)

		sum := decimal.Zero
		for _, inst := range installments {
			sum = sum.Add(inst.PrincipalAmount)
			assert.True(t, inst.TotalAmount.Equal(inst.PrincipalAmount.Add(inst.InterestAmount)))
			assert.Equal(t, domain.InstallmentStatusPending, inst.Status)
		}
		assert.True(t, sum.Equal(principal), "case %+v: principal sum %s", tc, sum)
	}
}

func TestGenerateSchedule_DueDatesMonthly(t *testing.T) {
	installments, err := GenerateSchedule(decimal.NewFromInt(10000), decimal.NewFromFloat(0.12), 6, firstDue)
	require.NoError(t, err)

	for i, inst := range installments {
		assert.Equal(t, firstDue.AddDate(0, i, 0), inst.DueDate)
		assert.Equal(t, i+1, inst.InstallmentNumber)
	}
}

func TestGenerateSchedule_InvalidInput(t *testing.T) {
	principal := decimal.NewFromInt(10000)
	rate := decimal.NewFromFloat(0.15)

	cases := []struct {
		name      string
		principal decimal.Decimal
		rate      decimal.Decimal
		count     int
	}{
		{"zero principal", decimal.Zero, rate, 12},
		{"negative principal", decimal.NewFromInt(-1), rate, 12},
		{"rate below floor", principal, decimal.NewFromFloat(0.05), 12},
		{"rate above cap", principal, decimal.NewFromFloat(0.51), 12},
		{"unsupported count", principal, rate, 10},
		{"zero count", principal, rate, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := GenerateSchedule(tc.principal, tc.rate, tc.count, firstDue)
			require.Error(t, err)
			assert.True(t, errors.Is(err, customError.ErrInvalidScheduleInput))
		})
	}
}

func TestInstallmentTotal(t *testing.T) {
	total, err := InstallmentTotal(decimal.NewFromInt(25000), decimal.NewFromFloat(0.15), 12)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromFloat(2256.46)), "got %s", total)
}

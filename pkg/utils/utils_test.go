package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRoundMoney(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"11.2261", "11.23"},
		{"22.4522", "22.45"},
		{"2.005", "2.01"},
		{"2.004", "2.00"},
		{"-1.005", "-1.01"},
	}

	for _, tc := range cases {
		in, _ := decimal.NewFromString(tc.in)
		want, _ := decimal.NewFromString(tc.want)
		assert.True(t, RoundMoney(in).Equal(want), "%s -> %s", tc.in, RoundMoney(in))
	}
}

func TestDaysBetween(t *testing.T) {
	due := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 5, DaysBetween(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), due))
	assert.Equal(t, -10, DaysBetween(time.Date(2025, 3, 25, 0, 0, 0, 0, time.UTC), due))
	assert.Equal(t, 0, DaysBetween(due, due))

	// Clock time on either side must not change the day count.
	late := time.Date(2025, 3, 10, 23, 59, 59, 0, time.FixedZone("X", 3600))
	assert.Equal(t, 5, DaysBetween(late, due))
}

func TestMonthlyDueDate(t *testing.T) {
	first := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, first, MonthlyDueDate(first, 1))
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), MonthlyDueDate(first, 2))
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), MonthlyDueDate(first, 12))
}

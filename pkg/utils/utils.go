package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// MoneyScale is the rounding scale applied at allocation boundaries.
const MoneyScale = 2

// RoundMoney rounds to 2 decimal places, half up.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// DaysBetween returns the number of whole calendar days from a to b,
// negative when b precedes a. Times are truncated to dates in UTC so the
// result is day-accurate regardless of the clock time on either side.
func DaysBetween(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au).Hours() / 24)
}

// MonthlyDueDate returns the due date of the n-th (1-based) monthly
// installment counted from the first due date.
func MonthlyDueDate(firstDueDate time.Time, n int) time.Time {
	return firstDueDate.AddDate(0, n-1, 0)
}

// DecimalFromString converts string to decimal.Decimal
func DecimalFromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

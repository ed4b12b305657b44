package allocation

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

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// testLoan builds an active loan whose installments all share one total,
// split 90/10 between principal and interest.
func testLoan(totals []string, dueDates []time.Time) *domain.Loan {
	loan := &domain.Loan{
		ID:            "loan-1",
		CustomerID:    "cust-1",
		ReservationID: "res-1",
		Status:        domain.LoanStatusActive,
	}
	for i, s := range totals {
		total := money(s)
		interest := total.Mul(money("0.1")).Round(2)
		loan.Installments = append(loan.Installments, &domain.LoanInstallment{
			InstallmentNumber: i + 1,
			DueDate:           dueDates[i],
			PrincipalAmount:   total.Sub(interest),
			InterestAmount:    interest,
			TotalAmount:       total,
			Status:            domain.InstallmentStatusPending,
			PaidAmount:        decimal.Zero,
			DiscountApplied:   decimal.Zero,
			PenaltyApplied:    decimal.Zero,
		})
	}
	return loan
}

func TestCalculate_EarlyPaymentDiscount(t *testing.T) {
	loan := testLoan([]string{"2245.22"}, []time.Time{date(2025, 3, 15)})
	engine := NewDefaultEngine()

	// 5 days early: 2245.22 * 0.001 * 5 = 11.2261 -> 11.23 half-up
	quote, err := engine.Calculate(loan, nil, date(2025, 3, 10))
	require.NoError(t, err)
	require.Len(t, quote.Quotes, 1)

	iq := quote.Quotes[0]
	assert.Equal(t, 5, iq.DaysEarly)
	assert.True(t, iq.Discount.Equal(money("11.23")), "got %s", iq.Discount)
	assert.True(t, iq.Penalty.IsZero())
	assert.True(t, iq.AmountToPay.Equal(money("2233.99")), "got %s", iq.AmountToPay)
	assert.True(t, quote.TotalToPay.Equal(money("2233.99")))
}

func TestCalculate_LatePaymentPenalty(t *testing.T) {
	loan := testLoan([]string{"2245.22"}, []time.Time{date(2025, 3, 15)})
	engine := NewDefaultEngine()

	// 10 days late: 2245.22 * 0.001 * 10 = 22.4522 -> 22.45
	quote, err := engine.Calculate(loan, nil, date(2025, 3, 25))
	require.NoError(t, err)

	iq := quote.Quotes[0]
	assert.Equal(t, 10, iq.DaysLate)
	assert.True(t, iq.Penalty.Equal(money("22.45")), "got %s", iq.Penalty)
	assert.True(t, iq.Discount.IsZero())
	assert.True(t, iq.AmountToPay.Equal(money("2267.67")), "got %s", iq.AmountToPay)
}

func TestCalculate_OnDueDateNoAdjustment(t *testing.T) {
	loan := testLoan([]string{"1000.00"}, []time.Time{date(2025, 3, 15)})
	engine := NewDefaultEngine()

	quote, err := engine.Calculate(loan, nil, date(2025, 3, 15))
	require.NoError(t, err)
	assert.True(t, quote.TotalToPay.Equal(money("1000.00")))
	assert.True(t, quote.Quotes[0].Discount.IsZero())
	assert.True(t, quote.Quotes[0].Penalty.IsZero())
}

func TestCalculate_DiscountCappedAtTotal(t *testing.T) {
	loan := testLoan([]string{"100.00"}, []time.Time{date(2025, 6, 1)})
	// 2% per day: 60 days early would be 120% of the total without the cap.
	engine := NewEngine(money("0.02"), money("0.02"), 90)

	quote, err := engine.Calculate(loan, nil, date(2025, 4, 2))
	require.NoError(t, err)
	assert.True(t, quote.Quotes[0].Discount.Equal(money("100.00")))
	assert.True(t, quote.TotalToPay.IsZero())
}

func TestCalculate_AdvanceLimitExceeded(t *testing.T) {
	loan := testLoan([]string{"1000.00"}, []time.Time{date(2025, 7, 1)})
	engine := NewDefaultEngine()

	// 95 days before the due date.
	_, err := engine.Calculate(loan, []int{1}, date(2025, 3, 28))
	require.Error(t, err)
	assert.True(t, errors.Is(err, customError.ErrAdvancePaymentLimit))
}

func TestCalculate_TargetValidation(t *testing.T) {
	loan := testLoan([]string{"1000.00", "1000.00"}, []time.Time{date(2025, 3, 15), date(2025, 4, 15)})
	loan.Installments[0].Status = domain.InstallmentStatusPaid
	engine := NewDefaultEngine()

	_, err := engine.Calculate(loan, []int{1}, date(2025, 3, 15))
	assert.True(t, errors.Is(err, customError.ErrInstallmentAlreadyPaid))

	_, err = engine.Calculate(loan, []int{7}, date(2025, 3, 15))
	assert.True(t, errors.Is(err, customError.ErrInstallmentNotFound))
}

func TestCalculate_LoanNotActive(t *testing.T) {
	loan := testLoan([]string{"1000.00"}, []time.Time{date(2025, 3, 15)})
	loan.Status = domain.LoanStatusPending
	engine := NewDefaultEngine()

	_, err := engine.Calculate(loan, nil, date(2025, 3, 15))
	assert.True(t, errors.Is(err, customError.ErrLoanNotActive))
}

func TestAllocate_SingleInstallmentExact(t *testing.T) {
	loan := testLoan([]string{"2245.22", "2245.22"}, []time.Time{date(2025, 3, 15), date(2025, 4, 15)})
	engine := NewDefaultEngine()

	result, err := engine.Allocate(loan, "pay-1", money("2233.99"), date(2025, 3, 10), nil)
	require.NoError(t, err)
	require.Len(t, result.Allocations, 1)

	alloc := result.Allocations[0]
	assert.Equal(t, 1, alloc.InstallmentNumber)
	assert.True(t, alloc.DiscountApplied.Equal(money("11.23")))
	assert.True(t, alloc.EffectiveAmount.Equal(money("2233.99")))
	assert.True(t, alloc.RemainingAmount.IsZero())

	inst := loan.Installments[0]
	assert.Equal(t, domain.InstallmentStatusPaid, inst.Status)
	assert.True(t, inst.PaidAmount.Equal(money("2233.99")))
	require.NotNil(t, inst.PaidDate)

	assert.Equal(t, domain.LoanStatusActive, result.LoanStatus)
	assert.False(t, result.LoanPaidOff)
}

func TestAllocate_AmountMismatchRejected(t *testing.T) {
	loan := testLoan([]string{"1000.00"}, []time.Time{date(2025, 3, 15)})
	engine := NewDefaultEngine()

	_, err := engine.Allocate(loan, "pay-1", money("999.99"), date(2025, 3, 15), []int{1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, customError.ErrAmountMismatch))

	// Nothing settled on a rejected payment.
	assert.Equal(t, domain.InstallmentStatusPending, loan.Installments[0].Status)
}

func TestAllocate_ConsecutivePrefixMatch(t *testing.T) {
	loan := testLoan(
		[]string{"1000.00", "1000.00", "1000.00"},
		[]time.Time{date(2025, 3, 15), date(2025, 4, 15), date(2025, 5, 15)})
	engine := NewDefaultEngine()

	// Paying on the second due date: first is 31 days late (+31.00), second
	// on time. 1031.00 + 1000.00 = 2031.00 settles both.
	result, err := engine.Allocate(loan, "pay-1", money("2031.00"), date(2025, 4, 15), nil)
	require.NoError(t, err)
	require.Len(t, result.Allocations, 2)

	assert.Equal(t, domain.InstallmentStatusPaid, loan.Installments[0].Status)
	assert.Equal(t, domain.InstallmentStatusPaid, loan.Installments[1].Status)
	assert.Equal(t, domain.InstallmentStatusPending, loan.Installments[2].Status)
	assert.True(t, loan.Installments[0].PenaltyApplied.Equal(money("31.00")))
}

func TestAllocate_PrefixMismatchRejected(t *testing.T) {
	loan := testLoan(
		[]string{"1000.00", "1000.00"},
		[]time.Time{date(2025, 3, 15), date(2025, 4, 15)})
	engine := NewDefaultEngine()

	// 1500 lands between one and two installments.
	_, err := engine.Allocate(loan, "pay-1", money("1500.00"), date(2025, 3, 15), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, customError.ErrAmountMismatch))
}

func TestAllocate_ExplicitTargets(t *testing.T) {
	loan := testLoan(
		[]string{"1000.00", "1000.00"},
		[]time.Time{date(2025, 3, 15), date(2025, 4, 15)})
	engine := NewDefaultEngine()

	// Both on 2025-04-15: #1 is 31 days late, #2 on time.
	result, err := engine.Allocate(loan, "pay-1", money("2031.00"), date(2025, 4, 15), []int{2, 1})
	require.NoError(t, err)
	require.Len(t, result.Allocations, 2)
	// Targets are settled in installment order regardless of request order.
	assert.Equal(t, 1, result.Allocations[0].InstallmentNumber)
	assert.Equal(t, 2, result.Allocations[1].InstallmentNumber)
}

func TestAllocate_FinalPaymentPaysOffLoan(t *testing.T) {
	loan := testLoan(
		[]string{"1000.00", "1000.00"},
		[]time.Time{date(2025, 3, 15), date(2025, 4, 15)})
	loan.Installments[0].Status = domain.InstallmentStatusPaid
	engine := NewDefaultEngine()

	result, err := engine.Allocate(loan, "pay-2", money("1000.00"), date(2025, 4, 15), nil)
	require.NoError(t, err)

	assert.True(t, result.LoanPaidOff)
	assert.Equal(t, domain.LoanStatusPaidOff, result.LoanStatus)
	assert.Equal(t, domain.LoanStatusPaidOff, loan.Status)
}

func TestAllocate_PrincipalInterestSplitPreserved(t *testing.T) {
	loan := testLoan([]string{"1000.00"}, []time.Time{date(2025, 3, 15)})
	engine := NewDefaultEngine()

	// 3 days late: effective 1003.00, but the recorded split stays 900/100.
	result, err := engine.Allocate(loan, "pay-1", money("1003.00"), date(2025, 3, 18), nil)
	require.NoError(t, err)

	alloc := result.Allocations[0]
	assert.True(t, alloc.PrincipalPaid.Equal(money("900.00")))
	assert.True(t, alloc.InterestPaid.Equal(money("100.00")))
	assert.True(t, alloc.PenaltyPaid.Equal(money("3.00")))
}

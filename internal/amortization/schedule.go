// Package amortization builds equal-total-installment (annuity) schedules.
// It is pure: no I/O, no clock, deterministic for a given input.
package amortization

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lendcore/loan-engine/internal/domain"
	customError "github.com/lendcore/loan-engine/pkg/errors"
	"github.com/lendcore/loan-engine/pkg/utils"
)

var (
	one          = decimal.NewFromInt(1)
	monthsInYear = decimal.NewFromInt(12)
)

// GenerateSchedule produces the ordered installment list for a loan.
//
// The installment total follows the annuity formula
// P*r/(1-(1+r)^-n) with r the monthly rate derived from annualRate. Per
// period the interest is outstandingBalance*r and the principal share is the
// remainder of the installment total; the final installment's principal is
// adjusted so the cumulative principal equals the original principal to the
// cent.
func GenerateSchedule(principal, annualRate decimal.Decimal, installmentCount int, firstDueDate time.Time) ([]*domain.LoanInstallment, error) {
	if err := validate(principal, annualRate, installmentCount); err != nil {
		return nil, err
	}

	r := annualRate.Div(monthsInYear)
	installmentTotal := annuityPayment(principal, r, installmentCount)

	installments := make([]*domain.LoanInstallment, 0, installmentCount)
	balance := principal
	allocated := decimal.Zero

	for n := 1; n <= installmentCount; n++ {
		interest := utils.RoundMoney(balance.Mul(r))
		principalShare := installmentTotal.Sub(interest)
		total := installmentTotal

		if n == installmentCount {
			// Last installment absorbs the rounding drift.
			principalShare = principal.Sub(allocated)
			total = principalShare.Add(interest)
		}

		installments = append(installments, &domain.LoanInstallment{
			InstallmentNumber: n,
			DueDate:           utils.MonthlyDueDate(firstDueDate, n),
			PrincipalAmount:   principalShare,
			InterestAmount:    interest,
			TotalAmount:       total,
			Status:            domain.InstallmentStatusPending,
			PaidAmount:        decimal.Zero,
			DiscountApplied:   decimal.Zero,
			PenaltyApplied:    decimal.Zero,
		})

		allocated = allocated.Add(principalShare)
		balance = balance.Sub(principalShare)
	}

	return installments, nil
}

// InstallmentTotal returns the constant per-period payment for the given
// terms, rounded to the cent.
func InstallmentTotal(principal, annualRate decimal.Decimal, installmentCount int) (decimal.Decimal, error) {
	if err := validate(principal, annualRate, installmentCount); err != nil {
		return decimal.Zero, err
	}
	return annuityPayment(principal, annualRate.Div(monthsInYear), installmentCount), nil
}

func annuityPayment(principal, monthlyRate decimal.Decimal, n int) decimal.Decimal {
	// P * r / (1 - (1+r)^-n)
	onePlusRPowN := one.Add(monthlyRate).Pow(decimal.NewFromInt(int64(n)))
	denominator := one.Sub(one.Div(onePlusRPowN))
	return utils.RoundMoney(principal.Mul(monthlyRate).Div(denominator))
}

func validate(principal, annualRate decimal.Decimal, installmentCount int) error {
	if principal.LessThanOrEqual(decimal.Zero) {
		return customError.WrapInvalidScheduleInput(fmt.Sprintf("principal must be positive, got %s", principal))
	}
	if annualRate.LessThan(domain.MinAnnualRate) || annualRate.GreaterThan(domain.MaxAnnualRate) {
		return customError.WrapInvalidScheduleInput(fmt.Sprintf("annual rate %s is outside [%s, %s]", annualRate, domain.MinAnnualRate, domain.MaxAnnualRate))
	}
	for _, allowed := range domain.AllowedInstallmentCounts {
		if installmentCount == allowed {
			return nil
		}
	}
	return customError.WrapInvalidScheduleInput(fmt.Sprintf("installment count %d is not one of %v", installmentCount, domain.AllowedInstallmentCounts))
}

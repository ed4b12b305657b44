// Package allocation applies payments to a loan's installment schedule.
// Calculate is pure and safe to run concurrently; Allocate mutates the loan
// it is given, so callers serialize per loan.
package allocation

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lendcore/loan-engine/internal/domain"
	customError "github.com/lendcore/loan-engine/pkg/errors"
	"github.com/lendcore/loan-engine/pkg/utils"
)

const (
	// DefaultAdjustmentRate is the per-day discount and penalty rate.
	DefaultAdjustmentRate = "0.001"
	// DefaultAdvanceLimitDays caps how far ahead of its due date an
	// installment may be paid.
	DefaultAdvanceLimitDays = 90
)

// Engine computes day-accurate discount/penalty adjustments and settles
// whole installments. Partial installment settlement is not permitted.
type Engine struct {
	discountRate     decimal.Decimal
	penaltyRate      decimal.Decimal
	advanceLimitDays int
}

func NewEngine(discountRate, penaltyRate decimal.Decimal, advanceLimitDays int) *Engine {
	return &Engine{
		discountRate:     discountRate,
		penaltyRate:      penaltyRate,
		advanceLimitDays: advanceLimitDays,
	}
}

// NewDefaultEngine uses the documented business policy: 0.001 per day for
// both discount and penalty, 90-day advance limit.
func NewDefaultEngine() *Engine {
	rate, _ := decimal.NewFromString(DefaultAdjustmentRate)
	return NewEngine(rate, rate, DefaultAdvanceLimitDays)
}

// Calculate quotes the adjusted amount due for the targeted installments on
// paymentDate. With no explicit targets it quotes the earliest pending
// installment. The loan is not modified.
func (e *Engine) Calculate(loan *domain.Loan, targetNumbers []int, paymentDate time.Time) (*domain.PaymentQuote, error) {
	if loan.Status != domain.LoanStatusActive {
		return nil, customError.WrapLoanNotActive(loan.ID, loan.Status)
	}

	targets, err := e.resolveTargets(loan, targetNumbers)
	if err != nil {
		return nil, err
	}

	quote := &domain.PaymentQuote{LoanID: loan.ID, TotalToPay: decimal.Zero}
	for _, inst := range targets {
		iq, err := e.quoteInstallment(inst, paymentDate)
		if err != nil {
			return nil, err
		}
		quote.Quotes = append(quote.Quotes, iq)
		quote.TotalToPay = quote.TotalToPay.Add(iq.AmountToPay)
	}
	return quote, nil
}

// Allocate applies a payment to the loan. The payment amount must equal the
// combined adjusted total of the targeted installments exactly; with no
// explicit targets, the earliest consecutive pending installments whose
// combined adjusted total equals the amount are settled. On full payoff the
// loan transitions to paid off and the result flags the credit-release
// trigger for the caller.
func (e *Engine) Allocate(loan *domain.Loan, paymentID string, amount decimal.Decimal, paymentDate time.Time, targetNumbers []int) (*domain.AllocationResult, error) {
	if loan.Status != domain.LoanStatusActive {
		return nil, customError.WrapLoanNotActive(loan.ID, loan.Status)
	}

	var quotes []*domain.InstallmentQuote
	if len(targetNumbers) > 0 {
		quote, err := e.Calculate(loan, targetNumbers, paymentDate)
		if err != nil {
			return nil, err
		}
		if !quote.TotalToPay.Equal(amount) {
			return nil, customError.WrapAmountMismatch(quote.TotalToPay.String(), amount.String())
		}
		quotes = quote.Quotes
	} else {
		matched, err := e.matchPendingPrefix(loan, amount, paymentDate)
		if err != nil {
			return nil, err
		}
		quotes = matched
	}

	payment := &domain.Payment{
		ID:          paymentID,
		LoanID:      loan.ID,
		Amount:      amount,
		PaymentDate: paymentDate,
		Status:      domain.PaymentStatusCompleted,
		CreatedAt:   time.Now(),
	}

	result := &domain.AllocationResult{Payment: payment}
	for _, q := range quotes {
		inst := installmentByNumber(loan, q.InstallmentNumber)

		paidDate := paymentDate
		inst.Status = domain.InstallmentStatusPaid
		inst.PaidAmount = q.AmountToPay
		inst.PaidDate = &paidDate
		inst.DiscountApplied = q.Discount
		inst.PenaltyApplied = q.Penalty

		alloc := &domain.PaymentAllocation{
			ID:                uuid.NewString(),
			PaymentID:         payment.ID,
			InstallmentNumber: inst.InstallmentNumber,
			PrincipalPaid:     inst.PrincipalAmount,
			InterestPaid:      inst.InterestAmount,
			PenaltyPaid:       q.Penalty,
			DiscountApplied:   q.Discount,
			EffectiveAmount:   q.AmountToPay,
			RemainingAmount:   decimal.Zero,
		}
		result.Allocations = append(result.Allocations, alloc)
	}
	payment.Allocations = result.Allocations

	if loan.IsFullyPaid() {
		loan.Status = domain.LoanStatusPaidOff
		result.LoanPaidOff = true
	}
	result.LoanStatus = loan.Status

	return result, nil
}

// matchPendingPrefix finds the earliest consecutive pending installments
// whose combined adjusted total equals amount.
func (e *Engine) matchPendingPrefix(loan *domain.Loan, amount decimal.Decimal, paymentDate time.Time) ([]*domain.InstallmentQuote, error) {
	pending := pendingAscending(loan)
	if len(pending) == 0 {
		return nil, customError.WrapAmountMismatch("0", amount.String())
	}

	var quotes []*domain.InstallmentQuote
	running := decimal.Zero
	for _, inst := range pending {
		iq, err := e.quoteInstallment(inst, paymentDate)
		if err != nil {
			// The next installment sits beyond the advance limit. If the
			// payment was already covered by earlier installments we would
			// have matched; anything larger cannot be satisfied this far
			// ahead of schedule.
			return nil, err
		}
		quotes = append(quotes, iq)
		running = running.Add(iq.AmountToPay)

		if running.Equal(amount) {
			return quotes, nil
		}
		if running.GreaterThan(amount) {
			break
		}
	}
	return nil, customError.WrapAmountMismatch(running.String(), amount.String())
}

func (e *Engine) quoteInstallment(inst *domain.LoanInstallment, paymentDate time.Time) (*domain.InstallmentQuote, error) {
	daysDelta := utils.DaysBetween(paymentDate, inst.DueDate)

	if daysDelta > e.advanceLimitDays {
		return nil, customError.WrapAdvancePaymentLimit(inst.InstallmentNumber, e.advanceLimitDays)
	}

	iq := &domain.InstallmentQuote{
		InstallmentNumber: inst.InstallmentNumber,
		DueDate:           inst.DueDate,
		TotalAmount:       inst.TotalAmount,
		Discount:          decimal.Zero,
		Penalty:           decimal.Zero,
	}

	switch {
	case daysDelta > 0:
		iq.DaysEarly = daysDelta
		discount := utils.RoundMoney(inst.TotalAmount.Mul(e.discountRate).Mul(decimal.NewFromInt(int64(daysDelta))))
		if discount.GreaterThan(inst.TotalAmount) {
			discount = inst.TotalAmount
		}
		iq.Discount = discount
	case daysDelta < 0:
		iq.DaysLate = -daysDelta
		iq.Penalty = utils.RoundMoney(inst.TotalAmount.Mul(e.penaltyRate).Mul(decimal.NewFromInt(int64(-daysDelta))))
	}

	iq.AmountToPay = inst.TotalAmount.Sub(iq.Discount).Add(iq.Penalty)
	return iq, nil
}

func (e *Engine) resolveTargets(loan *domain.Loan, targetNumbers []int) ([]*domain.LoanInstallment, error) {
	if len(targetNumbers) == 0 {
		next := loan.NextPending()
		if next == nil {
			return nil, customError.WrapAmountMismatch("0", "no pending installments")
		}
		return []*domain.LoanInstallment{next}, nil
	}

	numbers := append([]int(nil), targetNumbers...)
	sort.Ints(numbers)

	targets := make([]*domain.LoanInstallment, 0, len(numbers))
	for _, n := range numbers {
		inst := installmentByNumber(loan, n)
		if inst == nil {
			return nil, customError.WrapInstallmentNotFound(n)
		}
		if inst.Status != domain.InstallmentStatusPending {
			return nil, customError.WrapInstallmentAlreadyPaid(n)
		}
		targets = append(targets, inst)
	}
	return targets, nil
}

func installmentByNumber(loan *domain.Loan, n int) *domain.LoanInstallment {
	for _, inst := range loan.Installments {
		if inst.InstallmentNumber == n {
			return inst
		}
	}
	return nil
}

func pendingAscending(loan *domain.Loan) []*domain.LoanInstallment {
	pending := make([]*domain.LoanInstallment, 0, len(loan.Installments))
	for _, inst := range loan.Installments {
		if inst.Status == domain.InstallmentStatusPending {
			pending = append(pending, inst)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].InstallmentNumber < pending[j].InstallmentNumber
	})
	return pending
}

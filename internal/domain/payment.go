package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentStatusCompleted = "completed"
)

// Payment is a completed, immutable payment against a loan.
type Payment struct {
	ID          string          `json:"id" db:"id"`
	LoanID      string          `json:"loan_id" db:"loan_id"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	PaymentDate time.Time       `json:"payment_date" db:"payment_date"`
	Status      string          `json:"status" db:"status"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`

	Allocations []*PaymentAllocation `json:"allocations,omitempty" db:"-"`
}

// PaymentAllocation records how a payment settled one installment. The
// installment is always settled in full: RemainingAmount is zero by rule.
type PaymentAllocation struct {
	ID                string          `json:"id" db:"id"`
	PaymentID         string          `json:"payment_id" db:"payment_id"`
	InstallmentNumber int             `json:"installment_number" db:"installment_number"`
	PrincipalPaid     decimal.Decimal `json:"principal_paid" db:"principal_paid"`
	InterestPaid      decimal.Decimal `json:"interest_paid" db:"interest_paid"`
	PenaltyPaid       decimal.Decimal `json:"penalty_paid" db:"penalty_paid"`
	DiscountApplied   decimal.Decimal `json:"discount_applied" db:"discount_applied"`
	EffectiveAmount   decimal.Decimal `json:"effective_amount" db:"effective_amount"`
	RemainingAmount   decimal.Decimal `json:"remaining_amount" db:"remaining_amount"`
}

// InstallmentQuote is the adjusted amount one installment costs on a given
// payment date.
type InstallmentQuote struct {
	InstallmentNumber int             `json:"installment_number"`
	DueDate           time.Time       `json:"due_date"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Discount          decimal.Decimal `json:"discount"`
	Penalty           decimal.Decimal `json:"penalty"`
	AmountToPay       decimal.Decimal `json:"amount_to_pay"`
	DaysEarly         int             `json:"days_early"`
	DaysLate          int             `json:"days_late"`
}

// PaymentQuote is the full breakdown Calculate produces; ProcessPayment must
// be paid with exactly TotalToPay.
type PaymentQuote struct {
	LoanID     string              `json:"loan_id"`
	Quotes     []*InstallmentQuote `json:"installments"`
	TotalToPay decimal.Decimal     `json:"total_to_pay"`
}

// AllocationResult is the outcome of applying a payment to a loan.
type AllocationResult struct {
	Payment     *Payment             `json:"payment"`
	Allocations []*PaymentAllocation `json:"allocations"`
	LoanStatus  string               `json:"loan_status"`
	LoanPaidOff bool                 `json:"loan_paid_off"`
}

// DTOs for requests.

type ProcessPaymentRequest struct {
	PaymentID          string          `json:"payment_id" validate:"required"`
	LoanID             string          `json:"loan_id" validate:"required"`
	PaymentAmount      decimal.Decimal `json:"payment_amount" validate:"required"`
	PaymentDate        time.Time       `json:"payment_date" validate:"required"`
	InstallmentNumbers []int           `json:"installment_numbers,omitempty"`
}

type CalculatePaymentRequest struct {
	LoanID             string    `json:"loan_id" validate:"required"`
	PaymentDate        time.Time `json:"payment_date" validate:"required"`
	InstallmentNumbers []int     `json:"installment_numbers,omitempty"`
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	LoanStatusPending  = "pending"
	LoanStatusActive   = "active"
	LoanStatusPaidOff  = "paid_off"
	LoanStatusRejected = "rejected"
)

const (
	InstallmentStatusPending = "pending"
	InstallmentStatusPaid    = "paid"
)

// AllowedInstallmentCounts lists the loan terms the product supports.
var AllowedInstallmentCounts = []int{6, 9, 12, 24}

// MinAnnualRate and MaxAnnualRate bound the contractual interest rate.
var (
	MinAnnualRate = decimal.NewFromFloat(0.10)
	MaxAnnualRate = decimal.NewFromFloat(0.50)
)

// Loan is a consumer loan with its installment schedule. Principal, rate and
// installment count are immutable once the loan is created.
type Loan struct {
	ID               string          `json:"id" db:"id"`
	CustomerID       string          `json:"customer_id" db:"customer_id"`
	Principal        decimal.Decimal `json:"principal" db:"principal"`
	AnnualRate       decimal.Decimal `json:"annual_rate" db:"annual_rate"`
	InstallmentCount int             `json:"installment_count" db:"installment_count"`
	ReservationID    string          `json:"reservation_id" db:"reservation_id"`
	Status           string          `json:"status" db:"status"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`

	Installments []*LoanInstallment `json:"installments,omitempty" db:"-"`
}

// LoanInstallment is one row of the amortization schedule. TotalAmount is
// always PrincipalAmount + InterestAmount; discount and penalty only change
// the net cash collected, never the principal/interest split.
type LoanInstallment struct {
	ID                string          `json:"id" db:"id"`
	LoanID            string          `json:"loan_id" db:"loan_id"`
	InstallmentNumber int             `json:"installment_number" db:"installment_number"`
	DueDate           time.Time       `json:"due_date" db:"due_date"`
	PrincipalAmount   decimal.Decimal `json:"principal_amount" db:"principal_amount"`
	InterestAmount    decimal.Decimal `json:"interest_amount" db:"interest_amount"`
	TotalAmount       decimal.Decimal `json:"total_amount" db:"total_amount"`
	Status            string          `json:"status" db:"status"`
	PaidAmount        decimal.Decimal `json:"paid_amount" db:"paid_amount"`
	PaidDate          *time.Time      `json:"paid_date,omitempty" db:"paid_date"`
	DiscountApplied   decimal.Decimal `json:"discount_applied" db:"discount_applied"`
	PenaltyApplied    decimal.Decimal `json:"penalty_applied" db:"penalty_applied"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// IsFullyPaid reports whether every installment of the loan is settled.
func (l *Loan) IsFullyPaid() bool {
	if len(l.Installments) == 0 {
		return false
	}
	for _, inst := range l.Installments {
		if inst.Status != InstallmentStatusPaid {
			return false
		}
	}
	return true
}

// NextPending returns the earliest unpaid installment, or nil.
func (l *Loan) NextPending() *LoanInstallment {
	for _, inst := range l.Installments {
		if inst.Status == InstallmentStatusPending {
			return inst
		}
	}
	return nil
}

// LoanDraft carries the validated parameters of a loan the saga is about to
// create. The draft is persisted as a pending loan and only activated after
// the installment schedule has been generated and stored.
type LoanDraft struct {
	CustomerID       string
	Principal        decimal.Decimal
	AnnualRate       decimal.Decimal
	InstallmentCount int
	ReservationID    string
	FirstDueDate     time.Time
}

// DTOs for requests and responses.

type CreateLoanRequest struct {
	CustomerID       string          `json:"customer_id" validate:"required"`
	LoanAmount       decimal.Decimal `json:"loan_amount" validate:"required"`
	InterestRate     decimal.Decimal `json:"interest_rate" validate:"required"`
	InstallmentCount int             `json:"installment_count" validate:"required,oneof=6 9 12 24"`
	Purpose          string          `json:"purpose" validate:"required"`
}

type CreateLoanResponse struct {
	SagaID         string `json:"saga_id"`
	Status         string `json:"status"`
	TrackingHandle string `json:"tracking_handle"`
}

type ScheduleResponse struct {
	LoanID       string             `json:"loan_id"`
	Status       string             `json:"status"`
	Installments []*LoanInstallment `json:"installments"`
}

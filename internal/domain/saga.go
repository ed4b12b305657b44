package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SagaTypeLoanCreation = "loan_creation"
)

const (
	SagaStatusStarted        = "started"
	SagaStatusStepInProgress = "step_in_progress"
	SagaStatusCompleted      = "completed"
	SagaStatusCompensating   = "compensating"
	SagaStatusFailed         = "failed"
	SagaStatusCancelled      = "cancelled"
)

const (
	StepStatusPending     = "pending"
	StepStatusInProgress  = "in_progress"
	StepStatusCompleted   = "completed"
	StepStatusFailed      = "failed"
	StepStatusCompensated = "compensated"
	StepStatusSkipped     = "skipped"
)

const (
	StepValidateCustomer     = "validate_customer"
	StepReserveCredit        = "reserve_credit"
	StepCreateLoan           = "create_loan"
	StepGenerateInstallments = "generate_installments"
)

// SagaStep tracks one orchestration step of a saga instance.
type SagaStep struct {
	Name       string     `json:"name" db:"name"`
	Status     string     `json:"status" db:"status"`
	StartedAt  *time.Time `json:"started_at,omitempty" db:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" db:"finished_at"`
	Result     string     `json:"result,omitempty" db:"result"`
	Error      string     `json:"error,omitempty" db:"error"`
}

// SagaInstance is the persisted state machine of one loan-creation
// transaction. Terminal statuses (completed, failed, cancelled) are
// immutable; only the orchestrator mutates an instance.
type SagaInstance struct {
	ID            string          `json:"id" db:"id"`
	Type          string          `json:"type" db:"type"`
	Status        string          `json:"status" db:"status"`
	CustomerID    string          `json:"customer_id" db:"customer_id"`
	Principal     decimal.Decimal `json:"principal" db:"principal"`
	AnnualRate    decimal.Decimal `json:"annual_rate" db:"annual_rate"`
	Installments  int             `json:"installments" db:"installments"`
	Purpose       string          `json:"purpose" db:"purpose"`
	ReservationID string          `json:"reservation_id,omitempty" db:"reservation_id"`
	LoanID        string          `json:"loan_id,omitempty" db:"loan_id"`
	FailureReason string          `json:"failure_reason,omitempty" db:"failure_reason"`
	StartedAt     time.Time       `json:"started_at" db:"started_at"`
	TimeoutAt     time.Time       `json:"timeout_at" db:"timeout_at"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty" db:"finished_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`

	Steps []*SagaStep `json:"steps" db:"-"`
}

// IsTerminal reports whether the saga reached an immutable final status.
func (s *SagaInstance) IsTerminal() bool {
	switch s.Status {
	case SagaStatusCompleted, SagaStatusFailed, SagaStatusCancelled:
		return true
	}
	return false
}

// Step returns the named step, or nil.
func (s *SagaInstance) Step(name string) *SagaStep {
	for _, st := range s.Steps {
		if st.Name == name {
			return st
		}
	}
	return nil
}

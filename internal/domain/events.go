package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types published to the audit stream.
const (
	EventTypeCreditReserved  = "credit.reserved"
	EventTypeCreditReleased  = "credit.released"
	EventTypeCreditCommitted = "credit.committed"
	EventTypeLoanCreated     = "loan.created"
	EventTypeLoanPaidOff     = "loan.paid_off"
	EventTypePaymentApplied  = "payment.applied"
	EventTypeSagaStarted     = "saga.started"
	EventTypeSagaStep        = "saga.step"
	EventTypeSagaCompleted   = "saga.completed"
	EventTypeSagaCompensated = "saga.compensated"
)

// BaseEvent carries the fields every domain event shares.
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

type CreditEvent struct {
	BaseEvent
	CustomerID    string          `json:"customer_id"`
	ReservationID string          `json:"reservation_id"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason,omitempty"`
}

type LoanCreatedEvent struct {
	BaseEvent
	LoanID           string          `json:"loan_id"`
	CustomerID       string          `json:"customer_id"`
	Principal        decimal.Decimal `json:"principal"`
	AnnualRate       decimal.Decimal `json:"annual_rate"`
	InstallmentCount int             `json:"installment_count"`
}

type LoanPaidOffEvent struct {
	BaseEvent
	LoanID     string `json:"loan_id"`
	CustomerID string `json:"customer_id"`
}

type PaymentAppliedEvent struct {
	BaseEvent
	PaymentID    string          `json:"payment_id"`
	LoanID       string          `json:"loan_id"`
	Amount       decimal.Decimal `json:"amount"`
	Installments []int           `json:"installments"`
	LoanPaidOff  bool            `json:"loan_paid_off"`
}

type SagaEvent struct {
	BaseEvent
	SagaID     string `json:"saga_id"`
	SagaType   string `json:"saga_type"`
	SagaStatus string `json:"saga_status"`
	Step       string `json:"step,omitempty"`
	StepStatus string `json:"step_status,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

package repository

import (
	"context"
	"time"

	"github.com/lendcore/loan-engine/internal/domain"
)

// LoanRepository defines the interface for loan data operations
type LoanRepository interface {
	// Create persists a loan draft (without installments)
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByID retrieves a loan with its installment schedule
	GetByID(ctx context.Context, loanID string) (*domain.Loan, error)

	// UpdateStatus moves a loan to a new lifecycle status
	UpdateStatus(ctx context.Context, loanID string, status string) error

	// CreateInstallments persists the generated schedule atomically
	CreateInstallments(ctx context.Context, loanID string, installments []*domain.LoanInstallment) error

	// GetInstallments retrieves the schedule ordered by installment number
	GetInstallments(ctx context.Context, loanID string) ([]*domain.LoanInstallment, error)
}

// PaymentRepository defines the interface for payment data operations
type PaymentRepository interface {
	// SaveAllocationResult atomically persists the payment, its allocations,
	// the settled installments and the resulting loan status
	SaveAllocationResult(ctx context.Context, loan *domain.Loan, result *domain.AllocationResult) error

	// GetByID retrieves a payment with its allocations; used for idempotent
	// replay of duplicate submissions
	GetByID(ctx context.Context, paymentID string) (*domain.Payment, error)

	// GetByLoanID retrieves all payments for a loan
	GetByLoanID(ctx context.Context, loanID string) ([]*domain.Payment, error)
}

// CreditRepository backs the credit ledger
type CreditRepository interface {
	GetAccount(ctx context.Context, customerID string) (*domain.CreditAccount, error)

	// UpdateAccount writes the account back guarded by the version it was
	// read at; returns ErrVersionConflict when another writer won
	UpdateAccount(ctx context.Context, account *domain.CreditAccount, expectedVersion int64) error

	CreateReservation(ctx context.Context, reservation *domain.CreditReservation) error
	GetReservation(ctx context.Context, reservationID string) (*domain.CreditReservation, error)
	UpdateReservation(ctx context.Context, reservation *domain.CreditReservation) error

	// ListExpiredActive returns ACTIVE reservations whose expiry has passed
	ListExpiredActive(ctx context.Context, now time.Time) ([]*domain.CreditReservation, error)
}

// CustomerRepository is the backing store of the customer collaborator
type CustomerRepository interface {
	GetProfile(ctx context.Context, customerID string) (*domain.CustomerProfile, error)
}

// SagaRepository persists saga instances after every state transition
type SagaRepository interface {
	Save(ctx context.Context, saga *domain.SagaInstance) error
	Get(ctx context.Context, sagaID string) (*domain.SagaInstance, error)

	// ListStuck returns non-terminal sagas past their deadline; the recovery
	// sweep compensates them
	ListStuck(ctx context.Context, now time.Time) ([]*domain.SagaInstance, error)
}

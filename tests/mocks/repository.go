package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/lendcore/loan-engine/internal/domain"
)

type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) GetByID(ctx context.Context, loanID string) (*domain.Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) UpdateStatus(ctx context.Context, loanID string, status string) error {
	args := m.Called(ctx, loanID, status)
	return args.Error(0)
}

func (m *MockLoanRepository) CreateInstallments(ctx context.Context, loanID string, installments []*domain.LoanInstallment) error {
	args := m.Called(ctx, loanID, installments)
	return args.Error(0)
}

func (m *MockLoanRepository) GetInstallments(ctx context.Context, loanID string) ([]*domain.LoanInstallment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LoanInstallment), args.Error(1)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) SaveAllocationResult(ctx context.Context, loan *domain.Loan, result *domain.AllocationResult) error {
	args := m.Called(ctx, loan, result)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) GetByLoanID(ctx context.Context, loanID string) ([]*domain.Payment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

type MockCreditRepository struct {
	mock.Mock
}

func (m *MockCreditRepository) GetAccount(ctx context.Context, customerID string) (*domain.CreditAccount, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreditAccount), args.Error(1)
}

func (m *MockCreditRepository) UpdateAccount(ctx context.Context, account *domain.CreditAccount, expectedVersion int64) error {
	args := m.Called(ctx, account, expectedVersion)
	return args.Error(0)
}

func (m *MockCreditRepository) CreateReservation(ctx context.Context, reservation *domain.CreditReservation) error {
	args := m.Called(ctx, reservation)
	return args.Error(0)
}

func (m *MockCreditRepository) GetReservation(ctx context.Context, reservationID string) (*domain.CreditReservation, error) {
	args := m.Called(ctx, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreditReservation), args.Error(1)
}

func (m *MockCreditRepository) UpdateReservation(ctx context.Context, reservation *domain.CreditReservation) error {
	args := m.Called(ctx, reservation)
	return args.Error(0)
}

func (m *MockCreditRepository) ListExpiredActive(ctx context.Context, now time.Time) ([]*domain.CreditReservation, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.CreditReservation), args.Error(1)
}

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) GetProfile(ctx context.Context, customerID string) (*domain.CustomerProfile, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CustomerProfile), args.Error(1)
}

type MockSagaRepository struct {
	mock.Mock
}

func (m *MockSagaRepository) Save(ctx context.Context, saga *domain.SagaInstance) error {
	args := m.Called(ctx, saga)
	return args.Error(0)
}

func (m *MockSagaRepository) Get(ctx context.Context, sagaID string) (*domain.SagaInstance, error) {
	args := m.Called(ctx, sagaID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SagaInstance), args.Error(1)
}

func (m *MockSagaRepository) ListStuck(ctx context.Context, now time.Time) ([]*domain.SagaInstance, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SagaInstance), args.Error(1)
}

package mocks

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/lendcore/loan-engine/internal/domain"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishCreditEvent(ctx context.Context, event *domain.CreditEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) PublishLoanCreated(ctx context.Context, event *domain.LoanCreatedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) PublishLoanPaidOff(ctx context.Context, event *domain.LoanPaidOffEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) PublishPaymentApplied(ctx context.Context, event *domain.PaymentAppliedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) PublishSagaEvent(ctx context.Context, event *domain.SagaEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockCustomerValidator struct {
	mock.Mock
}

func (m *MockCustomerValidator) ValidateCustomer(ctx context.Context, customerID string) (*domain.CustomerProfile, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CustomerProfile), args.Error(1)
}

type MockLoanCreator struct {
	mock.Mock
}

func (m *MockLoanCreator) CreateLoan(ctx context.Context, draft *domain.LoanDraft) (string, error) {
	args := m.Called(ctx, draft)
	return args.String(0), args.Error(1)
}

func (m *MockLoanCreator) GenerateInstallments(ctx context.Context, loanID string, draft *domain.LoanDraft) ([]*domain.LoanInstallment, error) {
	args := m.Called(ctx, loanID, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LoanInstallment), args.Error(1)
}

func (m *MockLoanCreator) MarkRejected(ctx context.Context, loanID string) error {
	args := m.Called(ctx, loanID)
	return args.Error(0)
}

type MockCreditLedger struct {
	mock.Mock
}

func (m *MockCreditLedger) Reserve(ctx context.Context, customerID string, amount decimal.Decimal, purpose string, ttl time.Duration) (*domain.CreditReservation, error) {
	args := m.Called(ctx, customerID, amount, purpose, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreditReservation), args.Error(1)
}

func (m *MockCreditLedger) Release(ctx context.Context, reservationID, reason string) error {
	args := m.Called(ctx, reservationID, reason)
	return args.Error(0)
}

func (m *MockCreditLedger) Commit(ctx context.Context, reservationID string, actualUsed decimal.Decimal) error {
	args := m.Called(ctx, reservationID, actualUsed)
	return args.Error(0)
}

func (m *MockCreditLedger) Extend(ctx context.Context, reservationID string, newExpiry time.Time) error {
	args := m.Called(ctx, reservationID, newExpiry)
	return args.Error(0)
}

// MockCache is an in-memory Cache used by service tests.
type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}

func (m *MockCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lendcore/loan-engine/internal/domain"
	customError "github.com/lendcore/loan-engine/pkg/errors"
	"github.com/lendcore/loan-engine/tests/mocks"
)

type mockSagaStarter struct {
	mock.Mock
}

func (m *mockSagaStarter) StartLoanCreation(ctx context.Context, req *domain.CreateLoanRequest) (*domain.SagaInstance, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SagaInstance), args.Error(1)
}

func (m *mockSagaStarter) GetSaga(ctx context.Context, sagaID string) (*domain.SagaInstance, error) {
	args := m.Called(ctx, sagaID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SagaInstance), args.Error(1)
}

func TestCreateLoan_ReturnsTrackingHandle(t *testing.T) {
	starter := &mockSagaStarter{}
	starter.On("StartLoanCreation", mock.Anything, mock.Anything).
		Return(&domain.SagaInstance{ID: "saga-1", Status: domain.SagaStatusStarted}, nil)

	svc := NewLoanService(starter, &mocks.MockLoanRepository{})
	resp, err := svc.CreateLoan(context.Background(), &domain.CreateLoanRequest{CustomerID: "cust-1"})
	require.NoError(t, err)

	assert.Equal(t, "saga-1", resp.SagaID)
	assert.Equal(t, domain.SagaStatusStarted, resp.Status)
	assert.Equal(t, "/api/v1/sagas/saga-1", resp.TrackingHandle)
}

func TestCreateLoan_PropagatesValidationError(t *testing.T) {
	starter := &mockSagaStarter{}
	starter.On("StartLoanCreation", mock.Anything, mock.Anything).
		Return(nil, customError.WrapInvalidScheduleInput("loan amount must be positive"))

	svc := NewLoanService(starter, &mocks.MockLoanRepository{})
	_, err := svc.CreateLoan(context.Background(), &domain.CreateLoanRequest{CustomerID: "cust-1"})
	assert.True(t, errors.Is(err, customError.ErrInvalidScheduleInput))
}

func TestGetOutstanding_SumsPendingInstallments(t *testing.T) {
	loan := activeLoan(
		[]string{"1000.00", "1000.00", "1000.00"},
		[]time.Time{dueDate(2025, 3, 15), dueDate(2025, 4, 15), dueDate(2025, 5, 15)})
	loan.Installments[0].Status = domain.InstallmentStatusPaid

	loanRepo := &mocks.MockLoanRepository{}
	loanRepo.On("GetByID", mock.Anything, "loan-1").Return(loan, nil)

	svc := NewLoanService(&mockSagaStarter{}, loanRepo)
	outstanding, err := svc.GetOutstanding(context.Background(), "loan-1")
	require.NoError(t, err)
	assert.True(t, outstanding.Equal(amount("2000.00")), "got %s", outstanding)
}

func TestGetSchedule_LoanNotFound(t *testing.T) {
	loanRepo := &mocks.MockLoanRepository{}
	loanRepo.On("GetByID", mock.Anything, "missing").Return(nil, sql.ErrNoRows)

	svc := NewLoanService(&mockSagaStarter{}, loanRepo)
	_, err := svc.GetSchedule(context.Background(), "missing")
	assert.True(t, errors.Is(err, customError.ErrLoanNotFound))
}

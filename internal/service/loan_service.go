package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/lendcore/loan-engine/internal/domain"
	"github.com/lendcore/loan-engine/internal/repository"
	customError "github.com/lendcore/loan-engine/pkg/errors"
)

// SagaStarter is the orchestrator surface the loan service depends on.
type SagaStarter interface {
	StartLoanCreation(ctx context.Context, req *domain.CreateLoanRequest) (*domain.SagaInstance, error)
	GetSaga(ctx context.Context, sagaID string) (*domain.SagaInstance, error)
}

type LoanService struct {
	orchestrator SagaStarter
	loanRepo     repository.LoanRepository
}

func NewLoanService(orchestrator SagaStarter, loanRepo repository.LoanRepository) *LoanService {
	return &LoanService{
		orchestrator: orchestrator,
		loanRepo:     loanRepo,
	}
}

// CreateLoan starts the loan-creation saga and returns its tracking handle.
// The loan itself materializes asynchronously.
func (s *LoanService) CreateLoan(ctx context.Context, req *domain.CreateLoanRequest) (*domain.CreateLoanResponse, error) {
	saga, err := s.orchestrator.StartLoanCreation(ctx, req)
	if err != nil {
		return nil, err
	}

	return &domain.CreateLoanResponse{
		SagaID:         saga.ID,
		Status:         saga.Status,
		TrackingHandle: "/api/v1/sagas/" + saga.ID,
	}, nil
}

// GetSagaState returns the current state of a loan-creation saga.
func (s *LoanService) GetSagaState(ctx context.Context, sagaID string) (*domain.SagaInstance, error) {
	return s.orchestrator.GetSaga(ctx, sagaID)
}

// GetSchedule returns the loan's installment schedule.
func (s *LoanService) GetSchedule(ctx context.Context, loanID string) (*domain.ScheduleResponse, error) {
	loan, err := s.getLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	return &domain.ScheduleResponse{
		LoanID:       loan.ID,
		Status:       loan.Status,
		Installments: loan.Installments,
	}, nil
}

// GetOutstanding returns the sum of all pending installment totals.
func (s *LoanService) GetOutstanding(ctx context.Context, loanID string) (decimal.Decimal, error) {
	loan, err := s.getLoan(ctx, loanID)
	if err != nil {
		return decimal.Zero, err
	}

	outstanding := decimal.Zero
	for _, inst := range loan.Installments {
		if inst.Status == domain.InstallmentStatusPending {
			outstanding = outstanding.Add(inst.TotalAmount)
		}
	}

	return outstanding, nil
}

func (s *LoanService) getLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapLoanNotFound(loanID)
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return loan, nil
}

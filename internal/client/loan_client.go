package client

import (
	"context"

	"github.com/google/uuid"

	"github.com/lendcore/loan-engine/internal/amortization"
	"github.com/lendcore/loan-engine/internal/domain"
	"github.com/lendcore/loan-engine/internal/repository"
)

// LoanClient is the loan store collaborator used by the saga's CreateLoan
// and GenerateInstallments steps. It fails fast: an open breaker or an
// exhausted retry budget propagates to the orchestrator, which compensates.
type LoanClient struct {
	repo   repository.LoanRepository
	caller *Caller
}

func NewLoanClient(repo repository.LoanRepository, caller *Caller) *LoanClient {
	return &LoanClient{
		repo:   repo,
		caller: caller,
	}
}

// CreateLoan persists a pending loan from the draft and returns its ID.
func (lc *LoanClient) CreateLoan(ctx context.Context, draft *domain.LoanDraft) (string, error) {
	loan := &domain.Loan{
		ID:               uuid.New().String(),
		CustomerID:       draft.CustomerID,
		Principal:        draft.Principal,
		AnnualRate:       draft.AnnualRate,
		InstallmentCount: draft.InstallmentCount,
		ReservationID:    draft.ReservationID,
		Status:           domain.LoanStatusPending,
	}

	err := lc.caller.Call(ctx, "create_loan", func(ctx context.Context) error {
		return lc.repo.Create(ctx, loan)
	})
	if err != nil {
		return "", err
	}

	return loan.ID, nil
}

// GenerateInstallments computes the amortization schedule, persists it and
// activates the loan. The loan only becomes visible to payments once both
// writes have succeeded.
func (lc *LoanClient) GenerateInstallments(ctx context.Context, loanID string, draft *domain.LoanDraft) ([]*domain.LoanInstallment, error) {
	installments, err := amortization.GenerateSchedule(
		draft.Principal, draft.AnnualRate, draft.InstallmentCount, draft.FirstDueDate)
	if err != nil {
		return nil, err
	}

	for _, inst := range installments {
		inst.ID = uuid.New().String()
		inst.LoanID = loanID
	}

	err = lc.caller.Call(ctx, "persist_installments", func(ctx context.Context) error {
		return lc.repo.CreateInstallments(ctx, loanID, installments)
	})
	if err != nil {
		return nil, err
	}

	err = lc.caller.Call(ctx, "activate_loan", func(ctx context.Context) error {
		return lc.repo.UpdateStatus(ctx, loanID, domain.LoanStatusActive)
	})
	if err != nil {
		return nil, err
	}

	return installments, nil
}

// MarkRejected is the compensation for CreateLoan: the pending loan stays
// on record with a rejected status instead of being deleted.
func (lc *LoanClient) MarkRejected(ctx context.Context, loanID string) error {
	return lc.caller.Call(ctx, "mark_rejected", func(ctx context.Context) error {
		return lc.repo.UpdateStatus(ctx, loanID, domain.LoanStatusRejected)
	})
}

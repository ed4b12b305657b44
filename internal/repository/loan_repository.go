package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lendcore/loan-engine/internal/domain"
)

type loanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (id, customer_id, principal, annual_rate, installment_count, reservation_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	now := time.Now()
	if loan.CreatedAt.IsZero() {
		loan.CreatedAt = now
	}
	loan.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		loan.ID,
		loan.CustomerID,
		loan.Principal,
		loan.AnnualRate,
		loan.InstallmentCount,
		loan.ReservationID,
		loan.Status,
		loan.CreatedAt,
		loan.UpdatedAt,
	)

	return err
}

func (r *loanRepository) GetByID(ctx context.Context, loanID string) (*domain.Loan, error) {
	query := `
		SELECT id, customer_id, principal, annual_rate, installment_count, reservation_id, status, created_at, updated_at
		FROM loans
		WHERE id = $1
	`

	var loan domain.Loan
	if err := r.db.GetContext(ctx, &loan, query, loanID); err != nil {
		return nil, err
	}

	installments, err := r.GetInstallments(ctx, loanID)
	if err != nil {
		return nil, err
	}
	loan.Installments = installments

	return &loan, nil
}

func (r *loanRepository) UpdateStatus(ctx context.Context, loanID string, status string) error {
	query := `
		UPDATE loans
		SET status = $2, updated_at = $3
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, loanID, status, time.Now())
	return err
}

func (r *loanRepository) CreateInstallments(ctx context.Context, loanID string, installments []*domain.LoanInstallment) error {
	query := `
		INSERT INTO loan_installments
			(id, loan_id, installment_number, due_date, principal_amount, interest_amount, total_amount,
			 status, paid_amount, discount_applied, penalty_applied, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	for _, inst := range installments {
		inst.LoanID = loanID
		if inst.CreatedAt.IsZero() {
			inst.CreatedAt = now
		}
		_, err = tx.ExecContext(ctx, query,
			inst.ID,
			inst.LoanID,
			inst.InstallmentNumber,
			inst.DueDate,
			inst.PrincipalAmount,
			inst.InterestAmount,
			inst.TotalAmount,
			inst.Status,
			inst.PaidAmount,
			inst.DiscountApplied,
			inst.PenaltyApplied,
			inst.CreatedAt,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *loanRepository) GetInstallments(ctx context.Context, loanID string) ([]*domain.LoanInstallment, error) {
	query := `
		SELECT id, loan_id, installment_number, due_date, principal_amount, interest_amount, total_amount,
		       status, paid_amount, paid_date, discount_applied, penalty_applied, created_at
		FROM loan_installments
		WHERE loan_id = $1
		ORDER BY installment_number
	`

	var installments []*domain.LoanInstallment
	if err := r.db.SelectContext(ctx, &installments, query, loanID); err != nil {
		return nil, err
	}

	return installments, nil
}

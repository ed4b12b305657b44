package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lendcore/loan-engine/internal/domain"
)

type paymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// SaveAllocationResult writes the payment, its allocations, the settled
// installment rows and the loan status in one transaction so a crash can
// never leave money half-applied.
func (r *paymentRepository) SaveAllocationResult(ctx context.Context, loan *domain.Loan, result *domain.AllocationResult) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	payment := result.Payment
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payments (id, loan_id, amount, payment_date, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, payment.ID, payment.LoanID, payment.Amount, payment.PaymentDate, payment.Status, payment.CreatedAt)
	if err != nil {
		return err
	}

	for _, alloc := range result.Allocations {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO payment_allocations
				(id, payment_id, installment_number, principal_paid, interest_paid, penalty_paid,
				 discount_applied, effective_amount, remaining_amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, alloc.ID, alloc.PaymentID, alloc.InstallmentNumber, alloc.PrincipalPaid, alloc.InterestPaid,
			alloc.PenaltyPaid, alloc.DiscountApplied, alloc.EffectiveAmount, alloc.RemainingAmount)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE loan_installments
			SET status = $3, paid_amount = $4, paid_date = $5, discount_applied = $6, penalty_applied = $7
			WHERE loan_id = $1 AND installment_number = $2
		`, loan.ID, alloc.InstallmentNumber, domain.InstallmentStatusPaid, alloc.EffectiveAmount,
			payment.PaymentDate, alloc.DiscountApplied, alloc.PenaltyPaid)
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE loans SET status = $2, updated_at = $3 WHERE id = $1
	`, loan.ID, result.LoanStatus, time.Now())
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *paymentRepository) GetByID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	query := `
		SELECT id, loan_id, amount, payment_date, status, created_at
		FROM payments
		WHERE id = $1
	`

	var payment domain.Payment
	if err := r.db.GetContext(ctx, &payment, query, paymentID); err != nil {
		return nil, err
	}

	allocQuery := `
		SELECT id, payment_id, installment_number, principal_paid, interest_paid, penalty_paid,
		       discount_applied, effective_amount, remaining_amount
		FROM payment_allocations
		WHERE payment_id = $1
		ORDER BY installment_number
	`
	if err := r.db.SelectContext(ctx, &payment.Allocations, allocQuery, paymentID); err != nil {
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepository) GetByLoanID(ctx context.Context, loanID string) ([]*domain.Payment, error) {
	query := `
		SELECT id, loan_id, amount, payment_date, status, created_at
		FROM payments
		WHERE loan_id = $1
		ORDER BY created_at
	`

	var payments []*domain.Payment
	if err := r.db.SelectContext(ctx, &payments, query, loanID); err != nil {
		return nil, err
	}

	return payments, nil
}

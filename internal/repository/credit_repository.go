package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lendcore/loan-engine/internal/domain"
	customError "github.com/lendcore/loan-engine/pkg/errors"
)

type creditRepository struct {
	db *sqlx.DB
}

func NewCreditRepository(db *sqlx.DB) CreditRepository {
	return &creditRepository{db: db}
}

func (r *creditRepository) GetAccount(ctx context.Context, customerID string) (*domain.CreditAccount, error) {
	query := `
		SELECT customer_id, credit_limit, available_credit, used_credit, version, updated_at
		FROM credit_accounts
		WHERE customer_id = $1
	`

	var account domain.CreditAccount
	if err := r.db.GetContext(ctx, &account, query, customerID); err != nil {
		return nil, err
	}

	return &account, nil
}

// UpdateAccount performs a compare-and-swap on the version column. The
// per-customer lock in the ledger serializes writers in-process; the version
// guard protects against a second process racing the same row.
func (r *creditRepository) UpdateAccount(ctx context.Context, account *domain.CreditAccount, expectedVersion int64) error {
	query := `
		UPDATE credit_accounts
		SET available_credit = $2, used_credit = $3, version = $4, updated_at = $5
		WHERE customer_id = $1 AND version = $6
	`

	account.Version = expectedVersion + 1
	account.UpdatedAt = time.Now()

	res, err := r.db.ExecContext(ctx, query,
		account.CustomerID,
		account.AvailableCredit,
		account.UsedCredit,
		account.Version,
		account.UpdatedAt,
		expectedVersion,
	)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return customError.ErrVersionConflict
	}

	return nil
}

func (r *creditRepository) CreateReservation(ctx context.Context, reservation *domain.CreditReservation) error {
	query := `
		INSERT INTO credit_reservations (id, customer_id, amount, purpose, status, created_at, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		reservation.ID,
		reservation.CustomerID,
		reservation.Amount,
		reservation.Purpose,
		reservation.Status,
		reservation.CreatedAt,
		reservation.ExpiresAt,
		reservation.UpdatedAt,
	)

	return err
}

func (r *creditRepository) GetReservation(ctx context.Context, reservationID string) (*domain.CreditReservation, error) {
	query := `
		SELECT id, customer_id, amount, purpose, status, created_at, expires_at, updated_at
		FROM credit_reservations
		WHERE id = $1
	`

	var reservation domain.CreditReservation
	if err := r.db.GetContext(ctx, &reservation, query, reservationID); err != nil {
		return nil, err
	}

	return &reservation, nil
}

func (r *creditRepository) UpdateReservation(ctx context.Context, reservation *domain.CreditReservation) error {
	query := `
		UPDATE credit_reservations
		SET status = $2, expires_at = $3, updated_at = $4
		WHERE id = $1
	`

	reservation.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		reservation.ID,
		reservation.Status,
		reservation.ExpiresAt,
		reservation.UpdatedAt,
	)

	return err
}

func (r *creditRepository) ListExpiredActive(ctx context.Context, now time.Time) ([]*domain.CreditReservation, error) {
	query := `
		SELECT id, customer_id, amount, purpose, status, created_at, expires_at, updated_at
		FROM credit_reservations
		WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at
	`

	var reservations []*domain.CreditReservation
	if err := r.db.SelectContext(ctx, &reservations, query, domain.ReservationStatusActive, now); err != nil {
		return nil, err
	}

	return reservations, nil
}

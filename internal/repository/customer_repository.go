package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/lendcore/loan-engine/internal/domain"
	customError "github.com/lendcore/loan-engine/pkg/errors"
)

type customerRepository struct {
	db *sqlx.DB
}

func NewCustomerRepository(db *sqlx.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) GetProfile(ctx context.Context, customerID string) (*domain.CustomerProfile, error) {
	query := `
		SELECT customer_id, active, credit_score
		FROM customers
		WHERE customer_id = $1
	`

	var profile domain.CustomerProfile
	if err := r.db.GetContext(ctx, &profile, query, customerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapCustomerNotFound(customerID)
		}
		return nil, err
	}

	profile.Exists = true
	return &profile, nil
}

package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lendcore/loan-engine/internal/domain"
)

type sagaRepository struct {
	db *sqlx.DB
}

func NewSagaRepository(db *sqlx.DB) SagaRepository {
	return &sagaRepository{db: db}
}

// Save upserts the saga instance. Steps are serialized into a jsonb column;
// they are only ever read back as a whole, never queried individually.
func (r *sagaRepository) Save(ctx context.Context, saga *domain.SagaInstance) error {
	steps, err := json.Marshal(saga.Steps)
	if err != nil {
		return err
	}

	saga.UpdatedAt = time.Now()

	query := `
		INSERT INTO saga_instances
			(id, type, status, customer_id, principal, annual_rate, installments, purpose,
			 reservation_id, loan_id, failure_reason, started_at, timeout_at, finished_at, updated_at, steps)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			reservation_id = EXCLUDED.reservation_id,
			loan_id = EXCLUDED.loan_id,
			failure_reason = EXCLUDED.failure_reason,
			finished_at = EXCLUDED.finished_at,
			updated_at = EXCLUDED.updated_at,
			steps = EXCLUDED.steps
	`

	_, err = r.db.ExecContext(ctx, query,
		saga.ID,
		saga.Type,
		saga.Status,
		saga.CustomerID,
		saga.Principal,
		saga.AnnualRate,
		saga.Installments,
		saga.Purpose,
		saga.ReservationID,
		saga.LoanID,
		saga.FailureReason,
		saga.StartedAt,
		saga.TimeoutAt,
		saga.FinishedAt,
		saga.UpdatedAt,
		steps,
	)

	return err
}

func (r *sagaRepository) Get(ctx context.Context, sagaID string) (*domain.SagaInstance, error) {
	query := `
		SELECT id, type, status, customer_id, principal, annual_rate, installments, purpose,
		       reservation_id, loan_id, failure_reason, started_at, timeout_at, finished_at, updated_at, steps
		FROM saga_instances
		WHERE id = $1
	`

	var row sagaRow
	if err := r.db.GetContext(ctx, &row, query, sagaID); err != nil {
		return nil, err
	}

	return row.toDomain()
}

func (r *sagaRepository) ListStuck(ctx context.Context, now time.Time) ([]*domain.SagaInstance, error) {
	query := `
		SELECT id, type, status, customer_id, principal, annual_rate, installments, purpose,
		       reservation_id, loan_id, failure_reason, started_at, timeout_at, finished_at, updated_at, steps
		FROM saga_instances
		WHERE status NOT IN ($1, $2, $3) AND timeout_at < $4
		ORDER BY started_at
	`

	var rows []sagaRow
	err := r.db.SelectContext(ctx, &rows, query,
		domain.SagaStatusCompleted, domain.SagaStatusFailed, domain.SagaStatusCancelled, now)
	if err != nil {
		return nil, err
	}

	sagas := make([]*domain.SagaInstance, 0, len(rows))
	for i := range rows {
		saga, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		sagas = append(sagas, saga)
	}

	return sagas, nil
}

type sagaRow struct {
	domain.SagaInstance
	StepsJSON []byte `db:"steps"`
}

func (r *sagaRow) toDomain() (*domain.SagaInstance, error) {
	saga := r.SagaInstance
	if len(r.StepsJSON) > 0 {
		if err := json.Unmarshal(r.StepsJSON, &saga.Steps); err != nil {
			return nil, err
		}
	}
	return &saga, nil
}

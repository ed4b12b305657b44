// Package saga drives the loan-creation workflow: validate the customer,
// reserve credit, create the loan, generate its schedule. Any step failure
// compensates the completed steps in reverse order.
package saga

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lendcore/loan-engine/internal/broker"
	"github.com/lendcore/loan-engine/internal/domain"
	"github.com/lendcore/loan-engine/internal/logger"
	"github.com/lendcore/loan-engine/internal/metrics"
	"github.com/lendcore/loan-engine/internal/repository"
	customError "github.com/lendcore/loan-engine/pkg/errors"
)

const (
	DefaultTimeout        = 5 * time.Minute
	DefaultReservationTTL = 15 * time.Minute
	DefaultMaturityGrace  = 30 * 24 * time.Hour
)

// CustomerValidator is the customer collaborator surface the saga needs.
type CustomerValidator interface {
	ValidateCustomer(ctx context.Context, customerID string) (*domain.CustomerProfile, error)
}

// LoanCreator is the loan store collaborator surface the saga needs.
type LoanCreator interface {
	CreateLoan(ctx context.Context, draft *domain.LoanDraft) (string, error)
	GenerateInstallments(ctx context.Context, loanID string, draft *domain.LoanDraft) ([]*domain.LoanInstallment, error)
	MarkRejected(ctx context.Context, loanID string) error
}

// CreditLedger is the ledger surface the saga needs.
type CreditLedger interface {
	Reserve(ctx context.Context, customerID string, amount decimal.Decimal, purpose string, ttl time.Duration) (*domain.CreditReservation, error)
	Release(ctx context.Context, reservationID, reason string) error
	Extend(ctx context.Context, reservationID string, newExpiry time.Time) error
}

// Runner schedules saga executions off the request path.
type Runner interface {
	Submit(func())
}

// Options tune the orchestrator's deadlines.
type Options struct {
	Timeout        time.Duration
	ReservationTTL time.Duration
	// MaturityGrace is added past the last due date when the completed
	// saga extends the reservation to back the active loan.
	MaturityGrace time.Duration
}

func (o *Options) withDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.ReservationTTL <= 0 {
		o.ReservationTTL = DefaultReservationTTL
	}
	if o.MaturityGrace <= 0 {
		o.MaturityGrace = DefaultMaturityGrace
	}
}

// Orchestrator runs loan-creation sagas. Every state transition is persisted
// before the next step starts, so a crash leaves a resumable record for the
// recovery sweep.
type Orchestrator struct {
	sagaRepo  repository.SagaRepository
	customers CustomerValidator
	loans     LoanCreator
	ledger    CreditLedger
	publisher broker.Publisher
	runner    Runner
	opts      Options
}

func NewOrchestrator(
	sagaRepo repository.SagaRepository,
	customers CustomerValidator,
	loans LoanCreator,
	ledger CreditLedger,
	publisher broker.Publisher,
	runner Runner,
	opts Options,
) *Orchestrator {
	opts.withDefaults()
	return &Orchestrator{
		sagaRepo:  sagaRepo,
		customers: customers,
		loans:     loans,
		ledger:    ledger,
		publisher: publisher,
		runner:    runner,
		opts:      opts,
	}
}

// StartLoanCreation validates the request bounds, persists a new saga
// instance and schedules its execution. The caller gets the saga ID back
// immediately and polls for the outcome.
func (o *Orchestrator) StartLoanCreation(ctx context.Context, req *domain.CreateLoanRequest) (*domain.SagaInstance, error) {
	if err := validateDraft(req); err != nil {
		return nil, err
	}

	now := time.Now()
	saga := &domain.SagaInstance{
		ID:           uuid.New().String(),
		Type:         domain.SagaTypeLoanCreation,
		Status:       domain.SagaStatusStarted,
		CustomerID:   req.CustomerID,
		Principal:    req.LoanAmount,
		AnnualRate:   req.InterestRate,
		Installments: req.InstallmentCount,
		Purpose:      req.Purpose,
		StartedAt:    now,
		TimeoutAt:    now.Add(o.opts.Timeout),
		Steps: []*domain.SagaStep{
			{Name: domain.StepValidateCustomer, Status: domain.StepStatusPending},
			{Name: domain.StepReserveCredit, Status: domain.StepStatusPending},
			{Name: domain.StepCreateLoan, Status: domain.StepStatusPending},
			{Name: domain.StepGenerateInstallments, Status: domain.StepStatusPending},
		},
	}

	if err := o.sagaRepo.Save(ctx, saga); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	o.publishSaga(ctx, saga, domain.EventTypeSagaStarted, "", "")

	o.runner.Submit(func() {
		o.run(saga)
	})

	return saga, nil
}

// GetSaga returns the saga instance for status polling.
func (o *Orchestrator) GetSaga(ctx context.Context, sagaID string) (*domain.SagaInstance, error) {
	saga, err := o.sagaRepo.Get(ctx, sagaID)
	if err != nil {
		return nil, customError.WrapSagaNotFound(sagaID)
	}
	return saga, nil
}

func validateDraft(req *domain.CreateLoanRequest) error {
	allowed := false
	for _, n := range domain.AllowedInstallmentCounts {
		if req.InstallmentCount == n {
			allowed = true
			break
		}
	}
	if !allowed {
		return customError.WrapInvalidScheduleInput("installment count must be one of 6, 9, 12, 24")
	}
	if !req.LoanAmount.IsPositive() {
		return customError.WrapInvalidScheduleInput("loan amount must be positive")
	}
	if req.InterestRate.LessThan(domain.MinAnnualRate) || req.InterestRate.GreaterThan(domain.MaxAnnualRate) {
		return customError.WrapInvalidScheduleInput("interest rate must be between 0.10 and 0.50")
	}
	return nil
}

type stepDef struct {
	name       string
	execute    func(ctx context.Context, saga *domain.SagaInstance, draft *domain.LoanDraft) error
	compensate func(ctx context.Context, saga *domain.SagaInstance) error
}

func (o *Orchestrator) steps() []stepDef {
	return []stepDef{
		{
			name: domain.StepValidateCustomer,
			execute: func(ctx context.Context, saga *domain.SagaInstance, draft *domain.LoanDraft) error {
				_, err := o.customers.ValidateCustomer(ctx, saga.CustomerID)
				return err
			},
		},
		{
			name: domain.StepReserveCredit,
			execute: func(ctx context.Context, saga *domain.SagaInstance, draft *domain.LoanDraft) error {
				reservation, err := o.ledger.Reserve(ctx, saga.CustomerID, saga.Principal, saga.Purpose, o.opts.ReservationTTL)
				if err != nil {
					return err
				}
				saga.ReservationID = reservation.ID
				draft.ReservationID = reservation.ID
				return nil
			},
			compensate: func(ctx context.Context, saga *domain.SagaInstance) error {
				if saga.ReservationID == "" {
					return nil
				}
				return o.ledger.Release(ctx, saga.ReservationID, "saga_compensation")
			},
		},
		{
			name: domain.StepCreateLoan,
			execute: func(ctx context.Context, saga *domain.SagaInstance, draft *domain.LoanDraft) error {
				loanID, err := o.loans.CreateLoan(ctx, draft)
				if err != nil {
					return err
				}
				saga.LoanID = loanID
				return nil
			},
			compensate: func(ctx context.Context, saga *domain.SagaInstance) error {
				if saga.LoanID == "" {
					return nil
				}
				return o.loans.MarkRejected(ctx, saga.LoanID)
			},
		},
		{
			name: domain.StepGenerateInstallments,
			execute: func(ctx context.Context, saga *domain.SagaInstance, draft *domain.LoanDraft) error {
				_, err := o.loans.GenerateInstallments(ctx, saga.LoanID, draft)
				return err
			},
		},
	}
}

// run executes the saga to a terminal status under its wall-clock deadline.
func (o *Orchestrator) run(saga *domain.SagaInstance) {
	ctx, cancel := context.WithDeadline(context.Background(), saga.TimeoutAt)
	defer cancel()

	draft := &domain.LoanDraft{
		CustomerID:       saga.CustomerID,
		Principal:        saga.Principal,
		AnnualRate:       saga.AnnualRate,
		InstallmentCount: saga.Installments,
		FirstDueDate:     firstDueDate(saga.StartedAt),
	}

	steps := o.steps()
	for i, step := range steps {
		if err := o.executeStep(ctx, saga, draft, step); err != nil {
			reason := err.Error()
			if errors.Is(err, context.DeadlineExceeded) {
				reason = "saga deadline exceeded"
			}
			o.compensate(ctx, saga, steps[:i+1], reason)
			return
		}
	}

	o.complete(saga, draft)
}

func (o *Orchestrator) executeStep(ctx context.Context, saga *domain.SagaInstance, draft *domain.LoanDraft, step stepDef) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := time.Now()
	st := saga.Step(step.name)
	st.Status = domain.StepStatusInProgress
	st.StartedAt = &now
	saga.Status = domain.SagaStatusStepInProgress
	o.save(ctx, saga)
	o.publishSaga(ctx, saga, domain.EventTypeSagaStep, step.name, st.Status)

	err := step.execute(ctx, saga, draft)

	finished := time.Now()
	st.FinishedAt = &finished
	metrics.SagaStepDuration.WithLabelValues(step.name).Observe(finished.Sub(now).Seconds())

	if err != nil {
		st.Status = domain.StepStatusFailed
		st.Error = err.Error()
		o.save(ctx, saga)
		o.publishSaga(ctx, saga, domain.EventTypeSagaStep, step.name, st.Status)

		logger.Get().Warn("saga step failed",
			zap.String("saga_id", saga.ID),
			zap.String("step", step.name),
			zap.Error(err))
		return err
	}

	st.Status = domain.StepStatusCompleted
	o.save(ctx, saga)
	o.publishSaga(ctx, saga, domain.EventTypeSagaStep, step.name, st.Status)
	return nil
}

// compensate unwinds the attempted steps in reverse order and marks the
// saga failed. Compensations run on a fresh context so they still execute
// after the saga deadline has passed.
func (o *Orchestrator) compensate(ctx context.Context, saga *domain.SagaInstance, attempted []stepDef, reason string) {
	saga.Status = domain.SagaStatusCompensating
	saga.FailureReason = reason
	o.save(ctx, saga)

	compCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for i := len(attempted) - 1; i >= 0; i-- {
		step := attempted[i]
		if step.compensate == nil {
			continue
		}
		st := saga.Step(step.name)
		if st.Status != domain.StepStatusCompleted && st.Status != domain.StepStatusFailed {
			continue
		}

		if err := step.compensate(compCtx, saga); err != nil {
			logger.Get().Error("saga compensation failed",
				zap.String("saga_id", saga.ID),
				zap.String("step", step.name),
				zap.Error(err))
			continue
		}
		st.Status = domain.StepStatusCompensated
		o.save(compCtx, saga)
	}

	o.finish(compCtx, saga, domain.SagaStatusFailed)
	o.publishSaga(compCtx, saga, domain.EventTypeSagaCompensated, "", "")

	logger.Get().Warn("saga failed and compensated",
		zap.String("saga_id", saga.ID),
		zap.String("reason", reason))
}

func (o *Orchestrator) complete(saga *domain.SagaInstance, draft *domain.LoanDraft) {
	// The run context may be at its deadline by now; completion work runs
	// on a fresh one, like compensation does.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Keep the reservation backing the active loan until payoff.
	maturity := draft.FirstDueDate.AddDate(0, saga.Installments-1, 0)
	var extendErr error
	for attempt := 0; attempt < 3; attempt++ {
		if extendErr = o.ledger.Extend(ctx, saga.ReservationID, maturity.Add(o.opts.MaturityGrace)); extendErr == nil {
			break
		}
	}
	if extendErr != nil {
		logger.Get().Error("failed to extend reservation after saga completion",
			zap.String("saga_id", saga.ID),
			zap.String("reservation_id", saga.ReservationID),
			zap.Error(extendErr))
	}

	o.finish(ctx, saga, domain.SagaStatusCompleted)
	o.publishSaga(ctx, saga, domain.EventTypeSagaCompleted, "", "")

	event := &domain.LoanCreatedEvent{
		BaseEvent:        domain.BaseEvent{EventType: domain.EventTypeLoanCreated},
		LoanID:           saga.LoanID,
		CustomerID:       saga.CustomerID,
		Principal:        saga.Principal,
		AnnualRate:       saga.AnnualRate,
		InstallmentCount: saga.Installments,
	}
	if err := o.publisher.PublishLoanCreated(ctx, event); err != nil {
		logger.Get().Warn("failed to publish loan created event",
			zap.String("loan_id", saga.LoanID),
			zap.Error(err))
	}

	logger.Get().Info("saga completed",
		zap.String("saga_id", saga.ID),
		zap.String("loan_id", saga.LoanID))
}

func (o *Orchestrator) finish(ctx context.Context, saga *domain.SagaInstance, status string) {
	now := time.Now()
	saga.Status = status
	saga.FinishedAt = &now
	o.save(ctx, saga)
	metrics.SagasTotal.WithLabelValues(status).Inc()
}

// RecoverStuck compensates sagas that never reached a terminal status
// before their deadline, typically after a crash mid-run.
func (o *Orchestrator) RecoverStuck(ctx context.Context, now time.Time) (int, error) {
	stuck, err := o.sagaRepo.ListStuck(ctx, now)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}

	recovered := 0
	for _, saga := range stuck {
		logger.Get().Warn("recovering stuck saga",
			zap.String("saga_id", saga.ID),
			zap.String("status", saga.Status))

		o.compensate(ctx, saga, o.steps(), "recovered after deadline")
		recovered++
	}

	return recovered, nil
}

func (o *Orchestrator) save(ctx context.Context, saga *domain.SagaInstance) {
	if err := o.sagaRepo.Save(ctx, saga); err != nil {
		logger.Get().Error("failed to persist saga state",
			zap.String("saga_id", saga.ID),
			zap.String("status", saga.Status),
			zap.Error(err))
	}
}

func (o *Orchestrator) publishSaga(ctx context.Context, saga *domain.SagaInstance, eventType, step, stepStatus string) {
	event := &domain.SagaEvent{
		BaseEvent:  domain.BaseEvent{EventType: eventType},
		SagaID:     saga.ID,
		SagaType:   saga.Type,
		SagaStatus: saga.Status,
		Step:       step,
		StepStatus: stepStatus,
		Reason:     saga.FailureReason,
	}
	if err := o.publisher.PublishSagaEvent(ctx, event); err != nil {
		logger.Get().Debug("failed to publish saga event",
			zap.String("saga_id", saga.ID),
			zap.Error(err))
	}
}

// firstDueDate is one month after disbursement, date-truncated.
func firstDueDate(startedAt time.Time) time.Time {
	d := startedAt.UTC().Truncate(24 * time.Hour)
	return d.AddDate(0, 1, 0)
}

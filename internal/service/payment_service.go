package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lendcore/loan-engine/internal/allocation"
	"github.com/lendcore/loan-engine/internal/broker"
	"github.com/lendcore/loan-engine/internal/cache"
	"github.com/lendcore/loan-engine/internal/domain"
	"github.com/lendcore/loan-engine/internal/logger"
	"github.com/lendcore/loan-engine/internal/metrics"
	"github.com/lendcore/loan-engine/internal/repository"
	customError "github.com/lendcore/loan-engine/pkg/errors"
)

const paymentReplayTTL = 24 * time.Hour

// CreditReleaser is the ledger surface payoff needs.
type CreditReleaser interface {
	Commit(ctx context.Context, reservationID string, actualUsed decimal.Decimal) error
}

// PaymentService applies payments to loans. Duplicate submissions of the
// same payment ID replay the original outcome without touching the loan.
type PaymentService struct {
	loanRepo    repository.LoanRepository
	paymentRepo repository.PaymentRepository
	engine      *allocation.Engine
	ledger      CreditReleaser
	cache       cache.Cache
	publisher   broker.Publisher

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewPaymentService(
	loanRepo repository.LoanRepository,
	paymentRepo repository.PaymentRepository,
	engine *allocation.Engine,
	ledger CreditReleaser,
	c cache.Cache,
	publisher broker.Publisher,
) *PaymentService {
	return &PaymentService{
		loanRepo:    loanRepo,
		paymentRepo: paymentRepo,
		engine:      engine,
		ledger:      ledger,
		cache:       c,
		publisher:   publisher,
		locks:       make(map[string]*sync.Mutex),
	}
}

// ProcessPayment settles installments with the submitted amount. Concurrent
// payments against one loan are serialized; a replayed payment ID returns
// the stored result and changes nothing.
func (s *PaymentService) ProcessPayment(ctx context.Context, req *domain.ProcessPaymentRequest) (*domain.AllocationResult, error) {
	if replay, ok := s.replayFromCache(ctx, req.PaymentID); ok {
		if err := matchesOriginal(req, replay.Payment); err != nil {
			metrics.PaymentsTotal.WithLabelValues("rejected").Inc()
			return nil, err
		}
		metrics.PaymentsTotal.WithLabelValues("replayed").Inc()
		return replay, nil
	}

	lock := s.loanLock(req.LoanID)
	lock.Lock()
	defer lock.Unlock()

	// Second idempotency check under the lock, against the store of record.
	if replay, err := s.replayFromStore(ctx, req); err != nil {
		return nil, err
	} else if replay != nil {
		metrics.PaymentsTotal.WithLabelValues("replayed").Inc()
		return replay, nil
	}

	loan, err := s.getLoan(ctx, req.LoanID)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Allocate(loan, req.PaymentID, req.PaymentAmount, req.PaymentDate, req.InstallmentNumbers)
	if err != nil {
		metrics.PaymentsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	if err := s.paymentRepo.SaveAllocationResult(ctx, loan, result); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.cacheResult(ctx, req.PaymentID, result)
	s.publishApplied(ctx, req, result)
	metrics.PaymentsTotal.WithLabelValues("applied").Inc()

	if result.LoanPaidOff {
		s.onPaidOff(ctx, loan)
	}

	return result, nil
}

// CalculatePayment quotes the adjusted amount due without mutating anything.
func (s *PaymentService) CalculatePayment(ctx context.Context, req *domain.CalculatePaymentRequest) (*domain.PaymentQuote, error) {
	loan, err := s.getLoan(ctx, req.LoanID)
	if err != nil {
		return nil, err
	}
	return s.engine.Calculate(loan, req.InstallmentNumbers, req.PaymentDate)
}

func (s *PaymentService) loanLock(loanID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[loanID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[loanID] = lock
	}
	return lock
}

func (s *PaymentService) replayFromCache(ctx context.Context, paymentID string) (*domain.AllocationResult, bool) {
	var result domain.AllocationResult
	err := s.cache.GetJSON(ctx, cache.PaymentKey(paymentID), &result)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			logger.Get().Warn("payment replay cache read failed",
				zap.String("payment_id", paymentID),
				zap.Error(err))
		}
		return nil, false
	}
	return &result, true
}

func (s *PaymentService) replayFromStore(ctx context.Context, req *domain.ProcessPaymentRequest) (*domain.AllocationResult, error) {
	payment, err := s.paymentRepo.GetByID(ctx, req.PaymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, customError.WrapDatabaseError(err)
	}

	if err := matchesOriginal(req, payment); err != nil {
		metrics.PaymentsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	loan, err := s.getLoan(ctx, payment.LoanID)
	if err != nil {
		return nil, err
	}

	return &domain.AllocationResult{
		Payment:     payment,
		Allocations: payment.Allocations,
		LoanStatus:  loan.Status,
		LoanPaidOff: loan.Status == domain.LoanStatusPaidOff,
	}, nil
}

// matchesOriginal guards replays: a reused payment ID must carry the same
// loan and amount as the original submission.
func matchesOriginal(req *domain.ProcessPaymentRequest, payment *domain.Payment) error {
	if payment == nil {
		return nil
	}
	if payment.LoanID != req.LoanID || !payment.Amount.Equal(req.PaymentAmount) {
		return customError.WrapPaymentIDConflict(req.PaymentID)
	}
	return nil
}

func (s *PaymentService) cacheResult(ctx context.Context, paymentID string, result *domain.AllocationResult) {
	if err := s.cache.SetJSON(ctx, cache.PaymentKey(paymentID), result, paymentReplayTTL); err != nil {
		logger.Get().Warn("failed to cache payment result",
			zap.String("payment_id", paymentID),
			zap.Error(err))
	}
}

func (s *PaymentService) publishApplied(ctx context.Context, req *domain.ProcessPaymentRequest, result *domain.AllocationResult) {
	numbers := make([]int, 0, len(result.Allocations))
	for _, alloc := range result.Allocations {
		numbers = append(numbers, alloc.InstallmentNumber)
	}

	event := &domain.PaymentAppliedEvent{
		BaseEvent:    domain.BaseEvent{EventType: domain.EventTypePaymentApplied},
		PaymentID:    req.PaymentID,
		LoanID:       req.LoanID,
		Amount:       req.PaymentAmount,
		Installments: numbers,
		LoanPaidOff:  result.LoanPaidOff,
	}
	if err := s.publisher.PublishPaymentApplied(ctx, event); err != nil {
		logger.Get().Warn("failed to publish payment applied event",
			zap.String("payment_id", req.PaymentID),
			zap.Error(err))
	}
}

// onPaidOff releases the reservation that has been backing the loan. A zero
// actual-usage commit restores the full held amount to available credit.
func (s *PaymentService) onPaidOff(ctx context.Context, loan *domain.Loan) {
	if loan.ReservationID != "" {
		if err := s.ledger.Commit(ctx, loan.ReservationID, decimal.Zero); err != nil {
			logger.Get().Error("failed to release credit after payoff",
				zap.String("loan_id", loan.ID),
				zap.String("reservation_id", loan.ReservationID),
				zap.Error(err))
		}
	}

	event := &domain.LoanPaidOffEvent{
		BaseEvent:  domain.BaseEvent{EventType: domain.EventTypeLoanPaidOff},
		LoanID:     loan.ID,
		CustomerID: loan.CustomerID,
	}
	if err := s.publisher.PublishLoanPaidOff(ctx, event); err != nil {
		logger.Get().Warn("failed to publish loan paid off event",
			zap.String("loan_id", loan.ID),
			zap.Error(err))
	}

	logger.Get().Info("loan paid off",
		zap.String("loan_id", loan.ID),
		zap.String("customer_id", loan.CustomerID))
}

func (s *PaymentService) getLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapLoanNotFound(loanID)
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return loan, nil
}

package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lendcore/loan-engine/internal/broker"
	"github.com/lendcore/loan-engine/internal/domain"
	"github.com/lendcore/loan-engine/internal/logger"
	"github.com/lendcore/loan-engine/internal/repository"
	customError "github.com/lendcore/loan-engine/pkg/errors"
)

// casRetries bounds the optimistic-update loop. The per-customer lock
// serializes writers in this process, so conflicts only come from other
// instances and resolve quickly.
const casRetries = 3

// CreditLedger manages per-customer credit lines. The conservation rule
// holds across every operation: available + sum(active reservations) +
// used == limit.
type CreditLedger struct {
	creditRepo repository.CreditRepository
	publisher  broker.Publisher

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewCreditLedger(creditRepo repository.CreditRepository, publisher broker.Publisher) *CreditLedger {
	return &CreditLedger{
		creditRepo: creditRepo,
		publisher:  publisher,
		locks:      make(map[string]*sync.Mutex),
	}
}

// customerLock returns the mutex for one customer, creating it on first use.
func (l *CreditLedger) customerLock(customerID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[customerID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[customerID] = lock
	}
	return lock
}

// Reserve places a hold of amount against the customer's available credit.
func (l *CreditLedger) Reserve(ctx context.Context, customerID string, amount decimal.Decimal, purpose string, ttl time.Duration) (*domain.CreditReservation, error) {
	lock := l.customerLock(customerID)
	lock.Lock()
	defer lock.Unlock()

	var reservation *domain.CreditReservation

	err := l.withAccount(ctx, customerID, func(account *domain.CreditAccount) error {
		if account.AvailableCredit.LessThan(amount) {
			return customError.WrapInsufficientCredit(
				customerID, amount.String(), account.AvailableCredit.String())
		}

		account.AvailableCredit = account.AvailableCredit.Sub(amount)

		now := time.Now()
		reservation = &domain.CreditReservation{
			ID:         uuid.New().String(),
			CustomerID: customerID,
			Amount:     amount,
			Purpose:    purpose,
			Status:     domain.ReservationStatusActive,
			CreatedAt:  now,
			ExpiresAt:  now.Add(ttl),
			UpdatedAt:  now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := l.creditRepo.CreateReservation(ctx, reservation); err != nil {
		// The decrement is already committed; put the hold back so the
		// conservation rule survives the failed insert.
		restoreErr := l.withAccount(ctx, customerID, func(account *domain.CreditAccount) error {
			account.AvailableCredit = account.AvailableCredit.Add(amount)
			return nil
		})
		if restoreErr != nil {
			logger.Get().Error("failed to restore credit after reservation insert failure",
				zap.String("customer_id", customerID),
				zap.String("amount", amount.String()),
				zap.Error(restoreErr))
		}
		return nil, customError.WrapDatabaseError(err)
	}

	l.publishCredit(ctx, domain.EventTypeCreditReserved, reservation, purpose)

	logger.Get().Info("credit reserved",
		zap.String("customer_id", customerID),
		zap.String("reservation_id", reservation.ID),
		zap.String("amount", amount.String()))

	return reservation, nil
}

// Release returns a held amount to available credit. Releasing a reservation
// that is no longer active is a no-op so compensation can run repeatedly.
func (l *CreditLedger) Release(ctx context.Context, reservationID, reason string) error {
	reservation, err := l.getReservation(ctx, reservationID)
	if err != nil {
		return err
	}

	lock := l.customerLock(reservation.CustomerID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock; a concurrent release or sweep may have won.
	reservation, err = l.getReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	if reservation.Status != domain.ReservationStatusActive {
		return nil
	}

	err = l.withAccount(ctx, reservation.CustomerID, func(account *domain.CreditAccount) error {
		account.AvailableCredit = account.AvailableCredit.Add(reservation.Amount)
		return nil
	})
	if err != nil {
		return err
	}

	reservation.Status = domain.ReservationStatusReleased
	if err := l.creditRepo.UpdateReservation(ctx, reservation); err != nil {
		return customError.WrapDatabaseError(err)
	}

	l.publishCredit(ctx, domain.EventTypeCreditReleased, reservation, reason)

	logger.Get().Info("credit released",
		zap.String("customer_id", reservation.CustomerID),
		zap.String("reservation_id", reservationID),
		zap.String("reason", reason))

	return nil
}

// Commit converts an active reservation into final usage. The difference
// between the held amount and actualUsed returns to available credit, so
// Commit with a zero actualUsed restores the full hold (loan payoff).
func (l *CreditLedger) Commit(ctx context.Context, reservationID string, actualUsed decimal.Decimal) error {
	reservation, err := l.getReservation(ctx, reservationID)
	if err != nil {
		return err
	}

	lock := l.customerLock(reservation.CustomerID)
	lock.Lock()
	defer lock.Unlock()

	reservation, err = l.getReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	if reservation.Status == domain.ReservationStatusCommitted {
		return nil
	}
	if reservation.Status != domain.ReservationStatusActive {
		return customError.WrapReservationNotFound(reservationID)
	}

	err = l.withAccount(ctx, reservation.CustomerID, func(account *domain.CreditAccount) error {
		returned := reservation.Amount.Sub(actualUsed)
		account.AvailableCredit = account.AvailableCredit.Add(returned)
		account.UsedCredit = account.UsedCredit.Add(actualUsed)
		return nil
	})
	if err != nil {
		return err
	}

	reservation.Status = domain.ReservationStatusCommitted
	if err := l.creditRepo.UpdateReservation(ctx, reservation); err != nil {
		return customError.WrapDatabaseError(err)
	}

	l.publishCredit(ctx, domain.EventTypeCreditCommitted, reservation, "")

	logger.Get().Info("credit committed",
		zap.String("customer_id", reservation.CustomerID),
		zap.String("reservation_id", reservationID),
		zap.String("actual_used", actualUsed.String()))

	return nil
}

// Extend pushes an active reservation's expiry forward. The loan-creation
// saga calls this on completion so the hold keeps backing the loan until
// payoff instead of falling to the sweep.
func (l *CreditLedger) Extend(ctx context.Context, reservationID string, newExpiry time.Time) error {
	reservation, err := l.getReservation(ctx, reservationID)
	if err != nil {
		return err
	}

	lock := l.customerLock(reservation.CustomerID)
	lock.Lock()
	defer lock.Unlock()

	reservation, err = l.getReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	if reservation.Status != domain.ReservationStatusActive {
		return customError.WrapReservationNotFound(reservationID)
	}

	reservation.ExpiresAt = newExpiry
	if err := l.creditRepo.UpdateReservation(ctx, reservation); err != nil {
		return customError.WrapDatabaseError(err)
	}

	return nil
}

// SweepExpired expires every active reservation past its deadline and
// returns the held credit. Orphans left by crashed sagas end here.
func (l *CreditLedger) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := l.creditRepo.ListExpiredActive(ctx, now)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}

	swept := 0
	for _, reservation := range expired {
		if err := l.expireOne(ctx, reservation.ID); err != nil {
			logger.Get().Error("failed to expire reservation",
				zap.String("reservation_id", reservation.ID),
				zap.Error(err))
			continue
		}
		swept++
	}

	return swept, nil
}

func (l *CreditLedger) expireOne(ctx context.Context, reservationID string) error {
	reservation, err := l.getReservation(ctx, reservationID)
	if err != nil {
		return err
	}

	lock := l.customerLock(reservation.CustomerID)
	lock.Lock()
	defer lock.Unlock()

	reservation, err = l.getReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	if reservation.Status != domain.ReservationStatusActive {
		return nil
	}

	err = l.withAccount(ctx, reservation.CustomerID, func(account *domain.CreditAccount) error {
		account.AvailableCredit = account.AvailableCredit.Add(reservation.Amount)
		return nil
	})
	if err != nil {
		return err
	}

	reservation.Status = domain.ReservationStatusExpired
	if err := l.creditRepo.UpdateReservation(ctx, reservation); err != nil {
		return customError.WrapDatabaseError(err)
	}

	l.publishCredit(ctx, domain.EventTypeCreditReleased, reservation, "expired")

	logger.Get().Warn("reservation expired",
		zap.String("customer_id", reservation.CustomerID),
		zap.String("reservation_id", reservationID))

	return nil
}

// withAccount loads the account, applies mutate and writes it back with an
// optimistic version check, retrying on conflicts with other instances.
func (l *CreditLedger) withAccount(ctx context.Context, customerID string, mutate func(*domain.CreditAccount) error) error {
	for attempt := 0; attempt < casRetries; attempt++ {
		account, err := l.creditRepo.GetAccount(ctx, customerID)
		if err != nil {
			return customError.WrapDatabaseError(err)
		}

		version := account.Version
		if err := mutate(account); err != nil {
			return err
		}

		err = l.creditRepo.UpdateAccount(ctx, account, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, customError.ErrVersionConflict) {
			return customError.WrapDatabaseError(err)
		}
	}

	return customError.ErrVersionConflict
}

func (l *CreditLedger) getReservation(ctx context.Context, reservationID string) (*domain.CreditReservation, error) {
	reservation, err := l.creditRepo.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, customError.WrapReservationNotFound(reservationID)
	}
	return reservation, nil
}

func (l *CreditLedger) publishCredit(ctx context.Context, eventType string, reservation *domain.CreditReservation, reason string) {
	event := &domain.CreditEvent{
		BaseEvent:     domain.BaseEvent{EventType: eventType},
		CustomerID:    reservation.CustomerID,
		ReservationID: reservation.ID,
		Amount:        reservation.Amount,
		Reason:        reason,
	}
	if err := l.publisher.PublishCreditEvent(ctx, event); err != nil {
		logger.Get().Warn("failed to publish credit event",
			zap.String("event_type", eventType),
			zap.String("reservation_id", reservation.ID),
			zap.Error(err))
	}
}

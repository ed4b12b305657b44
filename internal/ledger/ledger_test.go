package ledger

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lendcore/loan-engine/internal/broker"
	"github.com/lendcore/loan-engine/internal/domain"
	customError "github.com/lendcore/loan-engine/pkg/errors"
)

// memCreditRepo is an in-memory CreditRepository with real version checking,
// so the CAS retry path behaves like the SQL implementation.
type memCreditRepo struct {
	mu           sync.Mutex
	accounts     map[string]*domain.CreditAccount
	reservations map[string]*domain.CreditReservation

	// failUpdates injects this many version conflicts before writes succeed.
	failUpdates int
	// failInserts injects this many reservation insert failures.
	failInserts int
}

func newMemCreditRepo() *memCreditRepo {
	return &memCreditRepo{
		accounts:     make(map[string]*domain.CreditAccount),
		reservations: make(map[string]*domain.CreditReservation),
	}
}

func (r *memCreditRepo) addAccount(customerID string, limit decimal.Decimal) {
	r.accounts[customerID] = &domain.CreditAccount{
		CustomerID:      customerID,
		CreditLimit:     limit,
		AvailableCredit: limit,
		UsedCredit:      decimal.Zero,
		Version:         1,
	}
}

func (r *memCreditRepo) GetAccount(ctx context.Context, customerID string) (*domain.CreditAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[customerID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *account
	return &copied, nil
}

func (r *memCreditRepo) UpdateAccount(ctx context.Context, account *domain.CreditAccount, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdates > 0 {
		r.failUpdates--
		return customError.ErrVersionConflict
	}
	stored, ok := r.accounts[account.CustomerID]
	if !ok || stored.Version != expectedVersion {
		return customError.ErrVersionConflict
	}
	account.Version = expectedVersion + 1
	copied := *account
	r.accounts[account.CustomerID] = &copied
	return nil
}

func (r *memCreditRepo) CreateReservation(ctx context.Context, reservation *domain.CreditReservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failInserts > 0 {
		r.failInserts--
		return errors.New("insert failed")
	}
	copied := *reservation
	r.reservations[reservation.ID] = &copied
	return nil
}

func (r *memCreditRepo) GetReservation(ctx context.Context, reservationID string) (*domain.CreditReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reservation, ok := r.reservations[reservationID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *reservation
	return &copied, nil
}

func (r *memCreditRepo) UpdateReservation(ctx context.Context, reservation *domain.CreditReservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *reservation
	r.reservations[reservation.ID] = &copied
	return nil
}

func (r *memCreditRepo) ListExpiredActive(ctx context.Context, now time.Time) ([]*domain.CreditReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.CreditReservation
	for _, reservation := range r.reservations {
		if reservation.Status == domain.ReservationStatusActive && reservation.ExpiresAt.Before(now) {
			copied := *reservation
			out = append(out, &copied)
		}
	}
	return out, nil
}

// assertConservation checks available + sum(active holds) + used == limit.
func assertConservation(t *testing.T, repo *memCreditRepo, customerID string) {
	t.Helper()
	repo.mu.Lock()
	defer repo.mu.Unlock()

	account := repo.accounts[customerID]
	held := decimal.Zero
	for _, reservation := range repo.reservations {
		if reservation.CustomerID == customerID && reservation.Status == domain.ReservationStatusActive {
			held = held.Add(reservation.Amount)
		}
	}
	total := account.AvailableCredit.Add(held).Add(account.UsedCredit)
	assert.True(t, total.Equal(account.CreditLimit),
		"conservation broken: available %s + held %s + used %s != limit %s",
		account.AvailableCredit, held, account.UsedCredit, account.CreditLimit)
}

func newTestLedger(repo *memCreditRepo) *CreditLedger {
	return NewCreditLedger(repo, broker.NopPublisher{})
}

func TestReserve_HoldsCredit(t *testing.T) {
	repo := newMemCreditRepo()
	repo.addAccount("cust-1", decimal.NewFromInt(50000))
	l := newTestLedger(repo)

	reservation, err := l.Reserve(context.Background(), "cust-1", decimal.NewFromInt(25000), "loan", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusActive, reservation.Status)

	account, _ := repo.GetAccount(context.Background(), "cust-1")
	assert.True(t, account.AvailableCredit.Equal(decimal.NewFromInt(25000)))
	assertConservation(t, repo, "cust-1")
}

func TestReserve_InsufficientCredit(t *testing.T) {
	repo := newMemCreditRepo()
	repo.addAccount("cust-1", decimal.NewFromInt(10000))
	l := newTestLedger(repo)

	_, err := l.Reserve(context.Background(), "cust-1", decimal.NewFromInt(10001), "loan", time.Minute)
	require.Error(t, err)
	assert.True(t, errors.Is(err, customError.ErrInsufficientCredit))
	assert.True(t, customError.IsBusiness(err))

	account, _ := repo.GetAccount(context.Background(), "cust-1")
	assert.True(t, account.AvailableCredit.Equal(decimal.NewFromInt(10000)))
	assertConservation(t, repo, "cust-1")
}

func TestRelease_RestoresCreditAndIsIdempotent(t *testing.T) {
	repo := newMemCreditRepo()
	repo.addAccount("cust-1", decimal.NewFromInt(50000))
	l := newTestLedger(repo)

	reservation, err := l.Reserve(context.Background(), "cust-1", decimal.NewFromInt(20000), "loan", time.Minute)
	require.NoError(t, err)

	require.NoError(t, l.Release(context.Background(), reservation.ID, "saga_compensation"))
	account, _ := repo.GetAccount(context.Background(), "cust-1")
	assert.True(t, account.AvailableCredit.Equal(decimal.NewFromInt(50000)))

	// Second release must not double-credit the account.
	require.NoError(t, l.Release(context.Background(), reservation.ID, "saga_compensation"))
	account, _ = repo.GetAccount(context.Background(), "cust-1")
	assert.True(t, account.AvailableCredit.Equal(decimal.NewFromInt(50000)))
	assertConservation(t, repo, "cust-1")
}

func TestRelease_UnknownReservation(t *testing.T) {
	repo := newMemCreditRepo()
	repo.addAccount("cust-1", decimal.NewFromInt(50000))
	l := newTestLedger(repo)

	err := l.Release(context.Background(), "nope", "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, customError.ErrReservationNotFound))
}

func TestCommit_ZeroUsageRestoresFullHold(t *testing.T) {
	repo := newMemCreditRepo()
	repo.addAccount("cust-1", decimal.NewFromInt(50000))
	l := newTestLedger(repo)

	reservation, err := l.Reserve(context.Background(), "cust-1", decimal.NewFromInt(25000), "loan", time.Minute)
	require.NoError(t, err)

	// Payoff path: nothing remains in use, the full hold returns.
	require.NoError(t, l.Commit(context.Background(), reservation.ID, decimal.Zero))

	account, _ := repo.GetAccount(context.Background(), "cust-1")
	assert.True(t, account.AvailableCredit.Equal(decimal.NewFromInt(50000)))
	assert.True(t, account.UsedCredit.IsZero())

	stored, _ := repo.GetReservation(context.Background(), reservation.ID)
	assert.Equal(t, domain.ReservationStatusCommitted, stored.Status)

	// Replaying the commit is a no-op.
	require.NoError(t, l.Commit(context.Background(), reservation.ID, decimal.Zero))
	account, _ = repo.GetAccount(context.Background(), "cust-1")
	assert.True(t, account.AvailableCredit.Equal(decimal.NewFromInt(50000)))
	assertConservation(t, repo, "cust-1")
}

func TestCommit_PartialUsage(t *testing.T) {
	repo := newMemCreditRepo()
	repo.addAccount("cust-1", decimal.NewFromInt(50000))
	l := newTestLedger(repo)

	reservation, err := l.Reserve(context.Background(), "cust-1", decimal.NewFromInt(25000), "loan", time.Minute)
	require.NoError(t, err)

	require.NoError(t, l.Commit(context.Background(), reservation.ID, decimal.NewFromInt(10000)))

	account, _ := repo.GetAccount(context.Background(), "cust-1")
	assert.True(t, account.AvailableCredit.Equal(decimal.NewFromInt(40000)))
	assert.True(t, account.UsedCredit.Equal(decimal.NewFromInt(10000)))
	assertConservation(t, repo, "cust-1")
}

func TestExtend_MovesExpiry(t *testing.T) {
	repo := newMemCreditRepo()
	repo.addAccount("cust-1", decimal.NewFromInt(50000))
	l := newTestLedger(repo)

	reservation, err := l.Reserve(context.Background(), "cust-1", decimal.NewFromInt(25000), "loan", time.Minute)
	require.NoError(t, err)

	until := time.Now().Add(365 * 24 * time.Hour)
	require.NoError(t, l.Extend(context.Background(), reservation.ID, until))

	stored, _ := repo.GetReservation(context.Background(), reservation.ID)
	assert.True(t, stored.ExpiresAt.Equal(until))

	// A released reservation cannot be extended.
	require.NoError(t, l.Release(context.Background(), reservation.ID, "done"))
	err = l.Extend(context.Background(), reservation.ID, until.Add(time.Hour))
	assert.True(t, errors.Is(err, customError.ErrReservationNotFound))
}

func TestSweepExpired_ReclaimsOrphans(t *testing.T) {
	repo := newMemCreditRepo()
	repo.addAccount("cust-1", decimal.NewFromInt(50000))
	l := newTestLedger(repo)

	expired, err := l.Reserve(context.Background(), "cust-1", decimal.NewFromInt(10000), "loan", time.Millisecond)
	require.NoError(t, err)
	alive, err := l.Reserve(context.Background(), "cust-1", decimal.NewFromInt(5000), "loan", time.Hour)
	require.NoError(t, err)

	swept, err := l.SweepExpired(context.Background(), time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	storedExpired, _ := repo.GetReservation(context.Background(), expired.ID)
	assert.Equal(t, domain.ReservationStatusExpired, storedExpired.Status)
	storedAlive, _ := repo.GetReservation(context.Background(), alive.ID)
	assert.Equal(t, domain.ReservationStatusActive, storedAlive.Status)

	account, _ := repo.GetAccount(context.Background(), "cust-1")
	assert.True(t, account.AvailableCredit.Equal(decimal.NewFromInt(45000)))
	assertConservation(t, repo, "cust-1")
}

func TestReserve_InsertFailureRestoresCredit(t *testing.T) {
	repo := newMemCreditRepo()
	repo.addAccount("cust-1", decimal.NewFromInt(50000))
	repo.failInserts = 1
	l := newTestLedger(repo)

	_, err := l.Reserve(context.Background(), "cust-1", decimal.NewFromInt(25000), "loan", time.Minute)
	require.Error(t, err)

	// The decrement must be rolled back: no reservation row exists to ever
	// sweep the held amount back.
	account, _ := repo.GetAccount(context.Background(), "cust-1")
	assert.True(t, account.AvailableCredit.Equal(decimal.NewFromInt(50000)))
	assertConservation(t, repo, "cust-1")

	// The full limit is still reservable afterwards.
	reservation, err := l.Reserve(context.Background(), "cust-1", decimal.NewFromInt(50000), "loan", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusActive, reservation.Status)
	assertConservation(t, repo, "cust-1")
}

func TestReserve_RetriesVersionConflict(t *testing.T) {
	repo := newMemCreditRepo()
	repo.addAccount("cust-1", decimal.NewFromInt(50000))
	repo.failUpdates = 2
	l := newTestLedger(repo)

	_, err := l.Reserve(context.Background(), "cust-1", decimal.NewFromInt(1000), "loan", time.Minute)
	require.NoError(t, err)
	assertConservation(t, repo, "cust-1")
}

func TestReserve_ConcurrentHoldsConserveCredit(t *testing.T) {
	repo := newMemCreditRepo()
	repo.addAccount("cust-1", decimal.NewFromInt(10000))
	l := newTestLedger(repo)

	var wg sync.WaitGroup
	granted := make(chan struct{}, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Reserve(context.Background(), "cust-1", decimal.NewFromInt(1000), "loan", time.Minute)
			if err == nil {
				granted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(granted)

	count := 0
	for range granted {
		count++
	}
	// Only ten 1000-unit holds fit a 10000 limit.
	assert.Equal(t, 10, count)

	account, _ := repo.GetAccount(context.Background(), "cust-1")
	assert.True(t, account.AvailableCredit.IsZero())
	assertConservation(t, repo, "cust-1")
}

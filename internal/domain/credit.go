package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ReservationStatusActive    = "active"
	ReservationStatusReleased  = "released"
	ReservationStatusCommitted = "committed"
	ReservationStatusExpired   = "expired"
)

// CreditAccount tracks a customer's credit line. AvailableCredit plus the sum
// of active reservation amounts plus committed usage always equals
// CreditLimit. Version backs the optimistic concurrency check: every write
// must carry the version it read.
type CreditAccount struct {
	CustomerID      string          `json:"customer_id" db:"customer_id"`
	CreditLimit     decimal.Decimal `json:"credit_limit" db:"credit_limit"`
	AvailableCredit decimal.Decimal `json:"available_credit" db:"available_credit"`
	UsedCredit      decimal.Decimal `json:"used_credit" db:"used_credit"`
	Version         int64           `json:"version" db:"version"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// CreditReservation is a temporary hold against available credit. Exactly one
// reservation backs one in-flight loan-creation saga; after the saga
// completes, the reservation keeps backing the active loan until payoff.
type CreditReservation struct {
	ID         string          `json:"id" db:"id"`
	CustomerID string          `json:"customer_id" db:"customer_id"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Purpose    string          `json:"purpose" db:"purpose"`
	Status     string          `json:"status" db:"status"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	ExpiresAt  time.Time       `json:"expires_at" db:"expires_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// CustomerProfile is the collaborator-side view of a customer used by the
// ValidateCustomer saga step and cached for breaker fallback.
type CustomerProfile struct {
	CustomerID  string `json:"customer_id" db:"customer_id"`
	Exists      bool   `json:"exists" db:"-"`
	Active      bool   `json:"active" db:"active"`
	CreditScore int    `json:"credit_score" db:"credit_score"`
}

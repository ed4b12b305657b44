package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrLoanNotFound            = errors.New("loan not found")
	ErrLoanNotActive           = errors.New("loan is not active")
	ErrInvalidScheduleInput    = errors.New("invalid schedule input")
	ErrInsufficientCredit      = errors.New("insufficient available credit")
	ErrReservationNotFound     = errors.New("credit reservation not found")
	ErrVersionConflict         = errors.New("credit account version conflict")
	ErrAmountMismatch          = errors.New("payment amount does not match any adjusted installment total")
	ErrAdvancePaymentLimit     = errors.New("payment exceeds the advance payment limit")
	ErrInstallmentAlreadyPaid  = errors.New("installment is already paid")
	ErrPaymentIDConflict       = errors.New("payment id was already used with different parameters")
	ErrInstallmentNotFound     = errors.New("installment not found")
	ErrSagaNotFound            = errors.New("saga not found")
	ErrCustomerNotFound        = errors.New("customer not found")
	ErrCustomerInactive        = errors.New("customer is not active")
	ErrCircuitOpen             = errors.New("circuit breaker is open")
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
)

// Error codes
const (
	ErrCodeLoanNotFound            = "LOAN_NOT_FOUND"
	ErrCodeLoanNotActive           = "LOAN_NOT_ACTIVE"
	ErrCodeInvalidScheduleInput    = "INVALID_SCHEDULE_INPUT"
	ErrCodeInsufficientCredit      = "INSUFFICIENT_CREDIT"
	ErrCodeReservationNotFound     = "RESERVATION_NOT_FOUND"
	ErrCodeAmountMismatch          = "AMOUNT_MISMATCH"
	ErrCodeAdvancePaymentLimit     = "ADVANCE_PAYMENT_LIMIT_EXCEEDED"
	ErrCodeInstallmentAlreadyPaid  = "INSTALLMENT_ALREADY_PAID"
	ErrCodePaymentIDConflict       = "PAYMENT_ID_CONFLICT"
	ErrCodeInstallmentNotFound     = "INSTALLMENT_NOT_FOUND"
	ErrCodeSagaNotFound            = "SAGA_NOT_FOUND"
	ErrCodeCustomerNotFound        = "CUSTOMER_NOT_FOUND"
	ErrCodeCustomerInactive        = "CUSTOMER_INACTIVE"
	ErrCodeCircuitOpen             = "CIRCUIT_OPEN"
	ErrCodeCollaboratorUnavailable = "COLLABORATOR_UNAVAILABLE"
	ErrCodeDatabaseError           = "DATABASE_ERROR"
	ErrCodeCacheError              = "CACHE_ERROR"
)

// BusinessError is a business-rule violation. Business errors are surfaced
// to the caller and are never retried.
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// SystemError is an infrastructure failure (datastore, cache). It is not a
// business-rule violation: retry layers may retry it and handlers report it
// as an internal error with the detail withheld.
type SystemError struct {
	Code string
	Err  error
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *SystemError) Unwrap() error {
	return e.Err
}

// IsBusiness reports whether err is a business-rule violation. The retry and
// circuit-breaker layers use this to avoid retrying rejections.
func IsBusiness(err error) bool {
	var be *BusinessError
	return errors.As(err, &be)
}

// CodeOf returns the business error code, or empty string.
func CodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// Wrap common errors with business context

func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("loan %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapLoanNotActive(loanID, status string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotActive,
		fmt.Sprintf("loan %s has status %s", loanID, status),
		ErrLoanNotActive,
	)
}

func WrapInvalidScheduleInput(reason string) *BusinessError {
	return NewBusinessError(ErrCodeInvalidScheduleInput, reason, ErrInvalidScheduleInput)
}

func WrapInsufficientCredit(customerID, requested, available string) *BusinessError {
	return NewBusinessError(
		ErrCodeInsufficientCredit,
		fmt.Sprintf("customer %s requested %s but only %s is available", customerID, requested, available),
		ErrInsufficientCredit,
	)
}

func WrapReservationNotFound(reservationID string) *BusinessError {
	return NewBusinessError(
		ErrCodeReservationNotFound,
		fmt.Sprintf("reservation %s not found", reservationID),
		ErrReservationNotFound,
	)
}

func WrapAmountMismatch(expected, actual string) *BusinessError {
	return NewBusinessError(
		ErrCodeAmountMismatch,
		fmt.Sprintf("payment amount %s does not match expected adjusted total %s", actual, expected),
		ErrAmountMismatch,
	)
}

func WrapAdvancePaymentLimit(installmentNumber, limitDays int) *BusinessError {
	return NewBusinessError(
		ErrCodeAdvancePaymentLimit,
		fmt.Sprintf("installment %d is due more than %d days ahead of the payment date", installmentNumber, limitDays),
		ErrAdvancePaymentLimit,
	)
}

func WrapInstallmentAlreadyPaid(installmentNumber int) *BusinessError {
	return NewBusinessError(
		ErrCodeInstallmentAlreadyPaid,
		fmt.Sprintf("installment %d is already paid", installmentNumber),
		ErrInstallmentAlreadyPaid,
	)
}

func WrapPaymentIDConflict(paymentID string) *BusinessError {
	return NewBusinessError(
		ErrCodePaymentIDConflict,
		fmt.Sprintf("payment %s was already processed against a different loan or amount", paymentID),
		ErrPaymentIDConflict,
	)
}

func WrapInstallmentNotFound(installmentNumber int) *BusinessError {
	return NewBusinessError(
		ErrCodeInstallmentNotFound,
		fmt.Sprintf("installment %d does not exist on this loan", installmentNumber),
		ErrInstallmentNotFound,
	)
}

func WrapSagaNotFound(sagaID string) *BusinessError {
	return NewBusinessError(
		ErrCodeSagaNotFound,
		fmt.Sprintf("saga %s not found", sagaID),
		ErrSagaNotFound,
	)
}

func WrapCustomerNotFound(customerID string) *BusinessError {
	return NewBusinessError(
		ErrCodeCustomerNotFound,
		fmt.Sprintf("customer %s not found", customerID),
		ErrCustomerNotFound,
	)
}

func WrapCustomerInactive(customerID string) *BusinessError {
	return NewBusinessError(
		ErrCodeCustomerInactive,
		fmt.Sprintf("customer %s is not active", customerID),
		ErrCustomerInactive,
	)
}

func WrapDatabaseError(err error) *SystemError {
	return &SystemError{Code: ErrCodeDatabaseError, Err: err}
}

func WrapCacheError(err error) *SystemError {
	return &SystemError{Code: ErrCodeCacheError, Err: err}
}

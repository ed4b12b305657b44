package handler

import (
	"errors"
	"net/http"

	customError "github.com/lendcore/loan-engine/pkg/errors"
	"github.com/lendcore/loan-engine/pkg/response"
)

// writeError maps the business taxonomy onto HTTP statuses. Anything that is
// not a business error is a 500 with the detail withheld.
func writeError(w http.ResponseWriter, err error) {
	var be *customError.BusinessError
	if !errors.As(err, &be) {
		if errors.Is(err, customError.ErrCircuitOpen) || errors.Is(err, customError.ErrCollaboratorUnavailable) {
			response.ServiceUnavailable(w, "service temporarily unavailable", nil)
			return
		}
		response.InternalServerError(w, "internal error", nil)
		return
	}

	status := http.StatusBadRequest
	switch be.Code {
	case customError.ErrCodeLoanNotFound,
		customError.ErrCodeSagaNotFound,
		customError.ErrCodeCustomerNotFound,
		customError.ErrCodeInstallmentNotFound,
		customError.ErrCodeReservationNotFound:
		status = http.StatusNotFound
	case customError.ErrCodeInsufficientCredit,
		customError.ErrCodeAmountMismatch,
		customError.ErrCodeAdvancePaymentLimit,
		customError.ErrCodeInstallmentAlreadyPaid,
		customError.ErrCodeLoanNotActive,
		customError.ErrCodeCustomerInactive:
		status = http.StatusUnprocessableEntity
	case customError.ErrCodePaymentIDConflict:
		status = http.StatusConflict
	case customError.ErrCodeCircuitOpen, customError.ErrCodeCollaboratorUnavailable:
		status = http.StatusServiceUnavailable
	}

	response.ErrorCode(w, status, be.Code, be.Message, nil)
}

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/lendcore/loan-engine/internal/domain"
	"github.com/lendcore/loan-engine/internal/service"
	"github.com/lendcore/loan-engine/pkg/response"
)

type LoanHandler struct {
	service   *service.LoanService
	validator *validator.Validate
}

func NewLoanHandler(service *service.LoanService) *LoanHandler {
	return &LoanHandler{
		service:   service,
		validator: validator.New(),
	}
}

// CreateLoan accepts a loan application and starts the creation saga. The
// response is a tracking handle, not the loan: creation is asynchronous.
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	resp, err := h.service.CreateLoan(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Accepted(w, resp)
}

// GetSaga returns the current state of a loan-creation saga.
func (h *LoanHandler) GetSaga(w http.ResponseWriter, r *http.Request) {
	sagaID := mux.Vars(r)["sagaId"]

	saga, err := h.service.GetSagaState(r.Context(), sagaID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, saga)
}

// GetSchedule returns the loan's installment schedule.
func (h *LoanHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["loanId"]

	schedule, err := h.service.GetSchedule(r.Context(), loanID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, schedule)
}

// GetOutstanding returns the total amount still owed on the loan.
func (h *LoanHandler) GetOutstanding(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["loanId"]

	outstanding, err := h.service.GetOutstanding(r.Context(), loanID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, map[string]interface{}{
		"loan_id":     loanID,
		"outstanding": outstanding,
	})
}

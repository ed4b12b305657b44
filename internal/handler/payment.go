package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/lendcore/loan-engine/internal/domain"
	"github.com/lendcore/loan-engine/internal/service"
	"github.com/lendcore/loan-engine/pkg/response"
)

type PaymentHandler struct {
	service   *service.PaymentService
	validator *validator.Validate
}

func NewPaymentHandler(service *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		service:   service,
		validator: validator.New(),
	}
}

// ProcessPayment applies a payment to a loan. Resubmitting the same
// payment_id returns the original outcome.
func (h *PaymentHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req domain.ProcessPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	result, err := h.service.ProcessPayment(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, result)
}

// CalculatePayment quotes the adjusted amount due without applying anything.
func (h *PaymentHandler) CalculatePayment(w http.ResponseWriter, r *http.Request) {
	var req domain.CalculatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	quote, err := h.service.CalculatePayment(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, quote)
}

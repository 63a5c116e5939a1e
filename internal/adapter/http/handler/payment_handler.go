package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/iho/mpay/internal/adapter/http/dto"
	"github.com/iho/mpay/internal/usecase"
)

// PaymentHandler handles payment-related HTTP requests.
type PaymentHandler struct {
	paymentUC *usecase.PaymentUseCase
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentUC *usecase.PaymentUseCase) *PaymentHandler {
	return &PaymentHandler{paymentUC: paymentUC}
}

// Create records a payment.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.PayRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	id, err := h.paymentUC.Pay(r.Context(), req.ToUseCaseInput(actingUser(r)))
	if err != nil {
		writeDomainError(w, "failed to record payment", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.PaymentResponse{ID: id})
}

// Import records a batch of payments atomically.
func (h *PaymentHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req dto.ImportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	ids, err := h.paymentUC.Import(r.Context(), req.ToUseCaseInput(actingUser(r)))
	if err != nil {
		writeDomainError(w, "failed to import payments", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ImportResponse{IDs: ids})
}

// Get retrieves a transaction by ID.
func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction ID", err.Error())
		return
	}

	tx, err := h.paymentUC.GetTransaction(r.Context(), id)
	if err != nil {
		writeDomainError(w, "failed to get transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(tx))
}

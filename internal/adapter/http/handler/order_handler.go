package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iho/mpay/internal/adapter/http/dto"
	"github.com/iho/mpay/internal/usecase"
)

// OrderHandler handles standing order HTTP requests.
type OrderHandler struct {
	orderUC     *usecase.OrderUseCase
	schedulerUC *usecase.SchedulerUseCase
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderUC *usecase.OrderUseCase, schedulerUC *usecase.SchedulerUseCase) *OrderHandler {
	return &OrderHandler{orderUC: orderUC, schedulerUC: schedulerUC}
}

// Create creates a standing order.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	order, err := h.orderUC.CreateOrder(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, "failed to create order", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.OrderFromDomain(order))
}

// List lists standing orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderUC.ListOrders(r.Context())
	if err != nil {
		writeDomainError(w, "failed to list orders", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.OrdersFromDomain(orders))
}

// Get retrieves a standing order by name.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderUC.GetOrder(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, "failed to get order", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.OrderFromDomain(order))
}

// Disable stops an order from producing further transactions.
func (h *OrderHandler) Disable(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderUC.DisableOrder(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, "failed to disable order", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.OrderFromDomain(order))
}

// Delete removes an order that never produced a transaction.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.orderUC.DeleteOrder(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeDomainError(w, "failed to delete order", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Run materializes due occurrences. An empty body runs as of now.
func (h *OrderHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req dto.RunDueRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
	}

	var asOf time.Time
	if req.AsOf != nil {
		asOf = *req.AsOf
	}

	report, err := h.schedulerUC.RunDue(r.Context(), asOf)
	if err != nil {
		writeDomainError(w, "failed to run due orders", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RunReportFromUseCase(report))
}

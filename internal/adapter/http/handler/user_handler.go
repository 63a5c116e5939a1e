package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/mpay/internal/adapter/http/dto"
	"github.com/iho/mpay/internal/usecase"
)

// UserHandler handles user-related HTTP requests.
type UserHandler struct {
	userUC    *usecase.UserUseCase
	balanceUC *usecase.BalanceUseCase
	paymentUC *usecase.PaymentUseCase
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userUC *usecase.UserUseCase, balanceUC *usecase.BalanceUseCase, paymentUC *usecase.PaymentUseCase) *UserHandler {
	return &UserHandler{userUC: userUC, balanceUC: balanceUC, paymentUC: paymentUC}
}

// Create creates a new user.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	user, err := h.userUC.CreateUser(r.Context(), req.Name)
	if err != nil {
		writeDomainError(w, "failed to create user", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.UserFromDomain(user))
}

// List lists all users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userUC.ListUsers(r.Context())
	if err != nil {
		writeDomainError(w, "failed to list users", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.UsersFromDomain(users))
}

// Get retrieves a user by name.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.userUC.GetUser(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, "failed to get user", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.UserFromDomain(user))
}

// Deactivate blocks new payments to and from a user.
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.userUC.DeactivateUser(r.Context(), name); err != nil {
		writeDomainError(w, "failed to deactivate user", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Balance returns the balance of a user. With ?cached=true it reads
// through the reporting cache.
func (h *UserHandler) Balance(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	get := h.balanceUC.Balance
	if parseBoolQuery(r, "cached") {
		get = h.balanceUC.CachedBalance
	}

	balance, err := get(r.Context(), name)
	if err != nil {
		writeDomainError(w, "failed to get balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceResponse{User: name, Balance: balance})
}

// History lists the transactions of a user, newest first.
func (h *UserHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := min(parseIntQuery(r, "limit", 50), maxPageSize)
	offset := parseIntQuery(r, "offset", 0)

	txs, err := h.paymentUC.ListTransactions(r.Context(), chi.URLParam(r, "name"), limit, offset)
	if err != nil {
		writeDomainError(w, "failed to list transactions", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionsFromDomain(txs))
}

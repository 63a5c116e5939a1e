package handler

import (
	"net/http"

	"github.com/iho/mpay/internal/adapter/http/dto"
	"github.com/iho/mpay/internal/usecase"
)

// BalanceHandler serves derived balances.
type BalanceHandler struct {
	balanceUC *usecase.BalanceUseCase
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(balanceUC *usecase.BalanceUseCase) *BalanceHandler {
	return &BalanceHandler{balanceUC: balanceUC}
}

// List returns every user's balance.
func (h *BalanceHandler) List(w http.ResponseWriter, r *http.Request) {
	get := h.balanceUC.Balances
	if parseBoolQuery(r, "cached") {
		get = h.balanceUC.CachedBalances
	}

	balances, err := get(r.Context())
	if err != nil {
		writeDomainError(w, "failed to get balances", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalancesFromDomain(balances))
}

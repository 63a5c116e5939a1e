package handler

import (
	"net/http"

	"github.com/iho/mpay/internal/adapter/http/dto"
	"github.com/iho/mpay/internal/usecase"
)

// LedgerHandler serves ledger-wide consistency checks.
type LedgerHandler struct {
	checkerUC *usecase.CheckerUseCase
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(checkerUC *usecase.CheckerUseCase) *LedgerHandler {
	return &LedgerHandler{checkerUC: checkerUC}
}

// Check runs the consistency checker. Violations are reported in the body
// with status 200; the ok field tells whether the ledger is clean.
func (h *LedgerHandler) Check(w http.ResponseWriter, r *http.Request) {
	violations, err := h.checkerUC.Check(r.Context())
	if err != nil {
		writeDomainError(w, "failed to check ledger", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CheckFromDomain(violations))
}

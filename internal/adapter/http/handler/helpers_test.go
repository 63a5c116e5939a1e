package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/iho/mpay/internal/adapter/http/dto"
	"github.com/iho/mpay/internal/domain"
)

func TestParseIntQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/alice/transactions?limit=50", nil)
	if got := parseIntQuery(req, "limit", 10); got != 50 {
		t.Fatalf("expected limit=50, got %d", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/users/alice/transactions?limit=invalid", nil)
	if got := parseIntQuery(req, "limit", 10); got != 10 {
		t.Fatalf("expected fallback to default, got %d", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/users/alice/transactions?offset=-3", nil)
	if got := parseIntQuery(req, "offset", 0); got != 0 {
		t.Fatalf("expected negative value to fall back to default, got %d", got)
	}

	req.URL = &url.URL{RawQuery: ""}
	if got := parseIntQuery(req, "limit", 25); got != 25 {
		t.Fatalf("expected default when missing, got %d", got)
	}
}

func TestParseBoolQuery(t *testing.T) {
	for query, want := range map[string]bool{
		"cached=true": true,
		"cached=1":    true,
		"cached=no":   false,
		"":            false,
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/balances?"+query, nil)
		if got := parseBoolQuery(req, "cached"); got != want {
			t.Fatalf("%q: expected %v, got %v", query, want, got)
		}
	}
}

func TestActingUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", nil)
	req.Header.Set(ActingUserHeader, "  alice ")

	if got := actingUser(req); got != "alice" {
		t.Fatalf("expected trimmed acting user, got %q", got)
	}
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"user not found", domain.ErrUserNotFound, http.StatusNotFound},
		{"wrapped order not found", fmt.Errorf("disable: %w", domain.ErrOrderNotFound), http.StatusNotFound},
		{"user exists", domain.ErrUserExists, http.StatusConflict},
		{"order has transactions", domain.ErrOrderHasTransactions, http.StatusConflict},
		{"same user", domain.ErrSameUser, http.StatusBadRequest},
		{"invalid rule", domain.ErrInvalidRule, http.StatusBadRequest},
		{"concurrency conflict", domain.ErrConcurrencyConflict, http.StatusConflict},
		{"store unavailable", domain.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapDomainError(tt.err); got != tt.expected {
				t.Fatalf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	payload := map[string]string{"status": "ok"}

	writeJSON(rr, http.StatusCreated, payload)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}

	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected content-type application/json, got %s", ct)
	}

	var decoded map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if decoded["status"] != "ok" {
		t.Fatalf("expected payload to round-trip, got %+v", decoded)
	}
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()

	writeError(rr, http.StatusBadRequest, "bad request", "detail")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	var resp dto.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if resp.Error != "bad request" {
		t.Fatalf("expected error message to propagate, got %+v", resp)
	}
}

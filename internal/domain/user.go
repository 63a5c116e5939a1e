package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a participant of the shared ledger.
// Balances are never stored, they are derived from transactions.
type User struct {
	CreatedAt time.Time
	Name      string
	ID        int64
	Active    bool
}

// UserBalance is the derived balance of a single user.
type UserBalance struct {
	Name    string
	UserID  int64
	Balance decimal.Decimal
}

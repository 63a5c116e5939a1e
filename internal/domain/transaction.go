package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one immutable transfer of money between two users.
// Direction is carried by FromUserID and ToUserID, Amount is always positive.
type Transaction struct {
	CreatedAt        time.Time
	DueAt            time.Time
	Note             *string
	OriginalAmount   *decimal.Decimal
	OriginalCurrency *string
	AgentID          *int64
	StandingOrderID  *int64
	TagIDs           []int64
	ID               int64
	FromUserID       int64
	ToUserID         int64
	CreatedByID      int64
	Amount           decimal.Decimal
}

// Validate checks the per-row invariants of a transaction.
func (t *Transaction) Validate() error {
	if t.FromUserID == t.ToUserID {
		return ErrSameUser
	}

	if err := ValidateAmount(t.Amount); err != nil {
		return err
	}

	if err := ValidateNote(t.Note); err != nil {
		return err
	}

	if (t.OriginalAmount == nil) != (t.OriginalCurrency == nil) {
		return ErrOriginalPair
	}

	if t.OriginalAmount != nil && !t.OriginalAmount.IsPositive() {
		return ErrInvalidAmount
	}

	if t.DueAt.After(t.CreatedAt) {
		return ErrDueInFuture
	}

	return nil
}

// SignedAmount returns the effect of the transaction on the balance of userID:
// positive for the recipient, negative for the sender, zero otherwise.
func (t *Transaction) SignedAmount(userID int64) decimal.Decimal {
	switch userID {
	case t.ToUserID:
		return t.Amount
	case t.FromUserID:
		return t.Amount.Neg()
	default:
		return decimal.Zero
	}
}

// Directed turns a signed amount into a positive one, swapping sender and
// recipient when the amount is negative.
func Directed(from, to string, amount decimal.Decimal) (string, string, decimal.Decimal) {
	if amount.IsNegative() {
		return to, from, amount.Neg()
	}

	return from, to, amount
}

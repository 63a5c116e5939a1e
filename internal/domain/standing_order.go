package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderState describes whether a standing order still produces transactions.
type OrderState string

const (
	OrderPending   OrderState = "pending"
	OrderExhausted OrderState = "exhausted"
	OrderDisabled  OrderState = "disabled"
)

// StandingOrder is a recurring payment template.
//
// NextDueAt points at the first occurrence that has not been materialized yet.
// Every occurrence of Rule strictly before NextDueAt has exactly one
// transaction. CutoffAt is set when the order was disabled and holds the
// first occurrence that will never be materialized.
type StandingOrder struct {
	CreatedAt  time.Time
	NextDueAt  *time.Time
	CutoffAt   *time.Time
	Note       *string
	Name       string
	FromUser   string
	ToUser     string
	Rule       string
	ID         int64
	FromUserID int64
	ToUserID   int64
	Amount     decimal.Decimal
}

// State reports the order state derived from its pointers.
func (o *StandingOrder) State() OrderState {
	switch {
	case o.NextDueAt != nil:
		return OrderPending
	case o.CutoffAt != nil:
		return OrderDisabled
	default:
		return OrderExhausted
	}
}

// IsDue reports whether the order has an occurrence at or before asOf.
func (o *StandingOrder) IsDue(asOf time.Time) bool {
	return o.NextDueAt != nil && !o.NextDueAt.After(asOf)
}

// MaterializedBefore returns the exclusive upper bound of occurrences that
// must already have a transaction. Exhausted orders are bounded by now.
func (o *StandingOrder) MaterializedBefore(now time.Time) time.Time {
	switch {
	case o.NextDueAt != nil:
		return *o.NextDueAt
	case o.CutoffAt != nil:
		return *o.CutoffAt
	default:
		return now
	}
}

// Validate checks the static fields of an order.
func (o *StandingOrder) Validate() error {
	if o.FromUserID == o.ToUserID {
		return ErrSameUser
	}

	if err := ValidateAmount(o.Amount); err != nil {
		return err
	}

	if err := ValidateNote(o.Note); err != nil {
		return err
	}

	if o.Rule == "" || len(o.Rule) > MaxRuleLength {
		return ErrInvalidRule
	}

	return nil
}

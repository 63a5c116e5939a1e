package domain

import (
	"fmt"
	"strings"
)

// ViolationCode identifies the kind of consistency problem found in the ledger.
type ViolationCode string

const (
	ViolationBalanceMismatch      ViolationCode = "balance_mismatch"
	ViolationCacheMismatch        ViolationCode = "cache_mismatch"
	ViolationNonzeroTotal         ViolationCode = "nonzero_total"
	ViolationSelfTransfer         ViolationCode = "self_transfer"
	ViolationUnknownUser          ViolationCode = "unknown_user"
	ViolationNonPositiveAmount    ViolationCode = "non_positive_amount"
	ViolationOriginalMismatch     ViolationCode = "original_amount_mismatch"
	ViolationFutureDue            ViolationCode = "future_due"
	ViolationOccurrenceMissing    ViolationCode = "occurrence_missing"
	ViolationOccurrenceDuplicate  ViolationCode = "occurrence_duplicate"
	ViolationOccurrenceUnexpected ViolationCode = "occurrence_unexpected"
	ViolationInvalidRule          ViolationCode = "invalid_rule"
)

// Violation describes one independent consistency problem.
// It is data, not an error: the checker collects them and keeps going.
type Violation struct {
	Code           ViolationCode
	Message        string
	UserIDs        []int64
	TransactionIDs []int64
	OrderIDs       []int64
}

func (v Violation) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s: %s", v.Code, v.Message)

	if len(v.UserIDs) > 0 {
		fmt.Fprintf(&b, " users=%v", v.UserIDs)
	}

	if len(v.TransactionIDs) > 0 {
		fmt.Fprintf(&b, " transactions=%v", v.TransactionIDs)
	}

	if len(v.OrderIDs) > 0 {
		fmt.Fprintf(&b, " orders=%v", v.OrderIDs)
	}

	return b.String()
}

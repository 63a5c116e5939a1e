package domain

import (
	"errors"
	"fmt"
)

// Error classes. Every input error wraps ErrValidation so callers can branch
// on the class with errors.Is and still show the precise reason.
var (
	ErrValidation          = errors.New("validation failed")
	ErrConcurrencyConflict = errors.New("concurrent modification, retry the operation")
	ErrStoreUnavailable    = errors.New("ledger store unavailable")
)

var (
	// User errors
	ErrUserNotFound     = fmt.Errorf("%w: user does not exist", ErrValidation)
	ErrUserInactive     = fmt.Errorf("%w: user is deactivated", ErrValidation)
	ErrUserExists       = fmt.Errorf("%w: user already exists", ErrValidation)
	ErrInvalidUserName  = fmt.Errorf("%w: user name can only contain lowercase letters, numbers and underscore", ErrValidation)
	ErrActingUserNeeded = fmt.Errorf("%w: acting user is required", ErrValidation)

	// Transaction errors
	ErrSameUser            = fmt.Errorf("%w: sender and recipient must differ", ErrValidation)
	ErrInvalidAmount       = fmt.Errorf("%w: amount must be positive", ErrValidation)
	ErrAmountTooLarge      = fmt.Errorf("%w: amount exceeds maximum allowed", ErrValidation)
	ErrDueInFuture         = fmt.Errorf("%w: due time must not be in the future", ErrValidation)
	ErrNoteTooLong         = fmt.Errorf("%w: note exceeds %d characters", ErrValidation, MaxNoteLength)
	ErrInvalidCurrency     = fmt.Errorf("%w: unknown ISO 4217 currency code", ErrValidation)
	ErrOriginalPair        = fmt.Errorf("%w: original amount and currency must be given together", ErrValidation)
	ErrTransactionNotFound = fmt.Errorf("%w: transaction does not exist", ErrValidation)

	// Agent and tag errors
	ErrAgentNotFound      = fmt.Errorf("%w: agent does not exist", ErrValidation)
	ErrAgentExists        = fmt.Errorf("%w: agent already exists", ErrValidation)
	ErrInvalidAgentName   = fmt.Errorf("%w: agent name can only contain letters, numbers, dash and underscore", ErrValidation)
	ErrTagNotFound        = fmt.Errorf("%w: tag does not exist", ErrValidation)
	ErrTagExists          = fmt.Errorf("%w: tag already exists", ErrValidation)
	ErrInvalidTagName     = fmt.Errorf("%w: tag name can only contain letters, numbers, dash and underscore", ErrValidation)
	ErrParentTagNotFound  = fmt.Errorf("%w: parent tag does not exist", ErrValidation)
	ErrDescriptionTooLong = fmt.Errorf("%w: description exceeds %d characters", ErrValidation, MaxDescriptionLength)

	// Standing order errors
	ErrOrderNotFound        = fmt.Errorf("%w: standing order does not exist", ErrValidation)
	ErrOrderExists          = fmt.Errorf("%w: standing order already exists", ErrValidation)
	ErrInvalidOrderName     = fmt.Errorf("%w: order name can only contain letters, numbers, dash and underscore", ErrValidation)
	ErrInvalidRule          = fmt.Errorf("%w: malformed recurrence rule", ErrValidation)
	ErrOrderHasTransactions = fmt.Errorf("%w: standing order has materialized transactions, disable it instead", ErrValidation)
	ErrAsOfInFuture         = fmt.Errorf("%w: as-of time must not be in the future", ErrValidation)
)

// IsValidation reports whether err is caused by bad input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsRetryable reports whether the whole operation may be retried safely.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsNotFound reports whether err is a lookup miss of any entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrTagNotFound) ||
		errors.Is(err, ErrAgentNotFound) ||
		errors.Is(err, ErrTransactionNotFound)
}

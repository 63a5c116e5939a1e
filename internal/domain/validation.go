package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Validation constants
const (
	MaxUserNameLength    = 32
	MaxOrderNameLength   = 32
	MaxAgentNameLength   = 32
	MaxTagNameLength     = 32
	MaxNoteLength        = 255
	MaxDescriptionLength = 255
	MaxRuleLength        = 255
	MaxAmount            = "999999999.999" // NUMERIC(12,3)
	AmountScale          = 3
)

var (
	userNameRegex = regexp.MustCompile(`^[a-z0-9_]+$`)
	labelRegex    = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	maxAmount     = decimal.RequireFromString(MaxAmount)
)

// SanitizeUserName trims and validates a user name.
func SanitizeUserName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > MaxUserNameLength || !userNameRegex.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidUserName, name)
	}

	return name, nil
}

// SanitizeOrderName trims and validates a standing order name.
func SanitizeOrderName(name string) (string, error) {
	return sanitizeLabel(name, MaxOrderNameLength, ErrInvalidOrderName)
}

// SanitizeAgentName trims and validates an agent name.
func SanitizeAgentName(name string) (string, error) {
	return sanitizeLabel(name, MaxAgentNameLength, ErrInvalidAgentName)
}

// SanitizeTagName trims and validates a single tag path segment.
func SanitizeTagName(name string) (string, error) {
	return sanitizeLabel(name, MaxTagNameLength, ErrInvalidTagName)
}

func sanitizeLabel(name string, maxLen int, sentinel error) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxLen || !labelRegex.MatchString(name) {
		return "", fmt.Errorf("%w: %q", sentinel, name)
	}

	return name, nil
}

// ValidateAmount checks that amount is strictly positive and fits the store.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxAmount)
	}

	// Sub-unit precision beyond the column scale would be rounded silently.
	if !amount.Equal(amount.Round(AmountScale)) {
		return fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, AmountScale)
	}

	return nil
}

// ValidateNote validates an optional free-text note.
func ValidateNote(note *string) error {
	if note != nil && len(*note) > MaxNoteLength {
		return ErrNoteTooLong
	}

	return nil
}

// NormalizeCurrency upper-cases a currency code and checks it against ISO 4217.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 || money.GetCurrency(code) == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}

	return code, nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}

// SanitizeDescription trims an optional tag or agent description. Blank
// text means no description.
func SanitizeDescription(description string) (*string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, nil
	}

	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return nil, ErrDescriptionTooLong
	}

	return &description, nil
}

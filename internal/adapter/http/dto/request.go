package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/mpay/internal/usecase"
)

// CreateUserRequest represents a request to create a user.
type CreateUserRequest struct {
	Name string `json:"name"`
}

// PayRequest represents a request to record a payment. From defaults to
// the acting user.
type PayRequest struct {
	From             string           `json:"from"`
	To               string           `json:"to"`
	Amount           decimal.Decimal  `json:"amount"`
	DueAt            *time.Time       `json:"due_at,omitempty"`
	Note             *string          `json:"note,omitempty"`
	OriginalAmount   *decimal.Decimal `json:"original_amount,omitempty"`
	OriginalCurrency *string          `json:"original_currency,omitempty"`
	Agent            string           `json:"agent,omitempty"`
	Tags             []string         `json:"tags,omitempty"`
	CreateMissing    bool             `json:"create_missing,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *PayRequest) ToUseCaseInput(actingUser string) usecase.PayInput {
	from := r.From
	if from == "" {
		from = actingUser
	}

	return usecase.PayInput{
		From:             from,
		To:               r.To,
		Amount:           r.Amount,
		DueAt:            r.DueAt,
		Note:             r.Note,
		OriginalAmount:   r.OriginalAmount,
		OriginalCurrency: r.OriginalCurrency,
		Agent:            r.Agent,
		Tags:             r.Tags,
		CreateMissing:    r.CreateMissing,
		CreatedBy:        actingUser,
	}
}

// ImportRequest represents an atomic batch of payments between two users.
// The sign of each row amount picks the direction.
type ImportRequest struct {
	From          string          `json:"from"`
	To            string          `json:"to"`
	Agent         string          `json:"agent"`
	Tags          []string        `json:"tags,omitempty"`
	Rows          []ImportRowItem `json:"rows"`
	CreateMissing bool            `json:"create_missing,omitempty"`
}

// ImportRowItem represents a single row in an import.
type ImportRowItem struct {
	Amount decimal.Decimal `json:"amount"`
	DueAt  *time.Time      `json:"due_at,omitempty"`
	Note   *string         `json:"note,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *ImportRequest) ToUseCaseInput(actingUser string) usecase.ImportInput {
	rows := make([]usecase.ImportRow, len(r.Rows))
	for i, row := range r.Rows {
		rows[i] = usecase.ImportRow{Amount: row.Amount, DueAt: row.DueAt, Note: row.Note}
	}

	return usecase.ImportInput{
		From:          r.From,
		To:            r.To,
		Agent:         r.Agent,
		Tags:          r.Tags,
		Rows:          rows,
		CreateMissing: r.CreateMissing,
		CreatedBy:     actingUser,
	}
}

// CreateOrderRequest represents a request to create a standing order.
type CreateOrderRequest struct {
	Name   string          `json:"name"`
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
	Rule   string          `json:"rule"`
	Note   *string         `json:"note,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateOrderRequest) ToUseCaseInput() usecase.CreateOrderInput {
	return usecase.CreateOrderInput{
		Name:   r.Name,
		From:   r.From,
		To:     r.To,
		Amount: r.Amount,
		Rule:   r.Rule,
		Note:   r.Note,
	}
}

// RunDueRequest represents a request to materialize due occurrences.
// A missing as_of means now.
type RunDueRequest struct {
	AsOf *time.Time `json:"as_of,omitempty"`
}

// CreateTagRequest represents a request to create a tag by path.
type CreateTagRequest struct {
	Path        string `json:"path"`
	Description string `json:"description,omitempty"`
}

// CreateAgentRequest represents a request to create an agent.
type CreateAgentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

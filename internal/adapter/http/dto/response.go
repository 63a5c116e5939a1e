package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/mpay/internal/domain"
	"github.com/iho/mpay/internal/usecase"
)

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserFromDomain converts domain user to response.
func UserFromDomain(u *domain.User) *UserResponse {
	return &UserResponse{ID: u.ID, Name: u.Name, Active: u.Active, CreatedAt: u.CreatedAt}
}

// UsersFromDomain converts domain users to responses.
func UsersFromDomain(users []*domain.User) []*UserResponse {
	result := make([]*UserResponse, len(users))
	for i, u := range users {
		result[i] = UserFromDomain(u)
	}
	return result
}

// TransactionResponse represents a transaction in API responses.
type TransactionResponse struct {
	ID               int64            `json:"id"`
	FromUserID       int64            `json:"from_user_id"`
	ToUserID         int64            `json:"to_user_id"`
	Amount           decimal.Decimal  `json:"amount"`
	OriginalAmount   *decimal.Decimal `json:"original_amount,omitempty"`
	OriginalCurrency *string          `json:"original_currency,omitempty"`
	Note             *string          `json:"note,omitempty"`
	AgentID          *int64           `json:"agent_id,omitempty"`
	StandingOrderID  *int64           `json:"standing_order_id,omitempty"`
	TagIDs           []int64          `json:"tag_ids,omitempty"`
	DueAt            time.Time        `json:"due_at"`
	CreatedAt        time.Time        `json:"created_at"`
	CreatedByID      int64            `json:"created_by_id"`
}

// TransactionFromDomain converts domain transaction to response.
func TransactionFromDomain(t *domain.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:               t.ID,
		FromUserID:       t.FromUserID,
		ToUserID:         t.ToUserID,
		Amount:           t.Amount,
		OriginalAmount:   t.OriginalAmount,
		OriginalCurrency: t.OriginalCurrency,
		Note:             t.Note,
		AgentID:          t.AgentID,
		StandingOrderID:  t.StandingOrderID,
		TagIDs:           t.TagIDs,
		DueAt:            t.DueAt,
		CreatedAt:        t.CreatedAt,
		CreatedByID:      t.CreatedByID,
	}
}

// TransactionsFromDomain converts domain transactions to responses.
func TransactionsFromDomain(txs []*domain.Transaction) []*TransactionResponse {
	result := make([]*TransactionResponse, len(txs))
	for i, t := range txs {
		result[i] = TransactionFromDomain(t)
	}
	return result
}

// PaymentResponse is returned for a recorded payment.
type PaymentResponse struct {
	ID int64 `json:"id"`
}

// ImportResponse is returned for an import.
type ImportResponse struct {
	IDs []int64 `json:"ids"`
}

// BalanceResponse represents a derived balance.
type BalanceResponse struct {
	UserID  int64           `json:"user_id,omitempty"`
	User    string          `json:"user"`
	Balance decimal.Decimal `json:"balance"`
}

// BalancesFromDomain converts domain balances to responses.
func BalancesFromDomain(balances []domain.UserBalance) []BalanceResponse {
	result := make([]BalanceResponse, len(balances))
	for i, b := range balances {
		result[i] = BalanceResponse{UserID: b.UserID, User: b.Name, Balance: b.Balance}
	}
	return result
}

// OrderResponse represents a standing order in API responses.
type OrderResponse struct {
	ID        int64             `json:"id"`
	Name      string            `json:"name"`
	From      string            `json:"from"`
	To        string            `json:"to"`
	Amount    decimal.Decimal   `json:"amount"`
	Note      *string           `json:"note,omitempty"`
	Rule      string            `json:"rule"`
	State     domain.OrderState `json:"state"`
	NextDueAt *time.Time        `json:"next_due_at,omitempty"`
	CutoffAt  *time.Time        `json:"cutoff_at,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// OrderFromDomain converts domain order to response.
func OrderFromDomain(o *domain.StandingOrder) *OrderResponse {
	return &OrderResponse{
		ID:        o.ID,
		Name:      o.Name,
		From:      o.FromUser,
		To:        o.ToUser,
		Amount:    o.Amount,
		Note:      o.Note,
		Rule:      o.Rule,
		State:     o.State(),
		NextDueAt: o.NextDueAt,
		CutoffAt:  o.CutoffAt,
		CreatedAt: o.CreatedAt,
	}
}

// OrdersFromDomain converts domain orders to responses.
func OrdersFromDomain(orders []*domain.StandingOrder) []*OrderResponse {
	result := make([]*OrderResponse, len(orders))
	for i, o := range orders {
		result[i] = OrderFromDomain(o)
	}
	return result
}

// RunReportResponse summarizes a scheduler run.
type RunReportResponse struct {
	RunID        string             `json:"run_id"`
	AsOf         time.Time          `json:"as_of"`
	Materialized int                `json:"materialized"`
	Results      []OrderRunResponse `json:"results"`
}

// OrderRunResponse is the outcome for one order in a run.
type OrderRunResponse struct {
	OrderID        int64   `json:"order_id"`
	Name           string  `json:"name"`
	TransactionIDs []int64 `json:"transaction_ids"`
	Exhausted      bool    `json:"exhausted"`
	Error          string  `json:"error,omitempty"`
}

// RunReportFromUseCase converts a run report to response.
func RunReportFromUseCase(r *usecase.RunReport) *RunReportResponse {
	results := make([]OrderRunResponse, len(r.Results))
	for i, res := range r.Results {
		results[i] = OrderRunResponse{
			OrderID:        res.OrderID,
			Name:           res.Name,
			TransactionIDs: res.TransactionIDs,
			Exhausted:      res.Exhausted,
		}
		if res.Err != nil {
			results[i].Error = res.Err.Error()
		}
	}

	return &RunReportResponse{
		RunID:        r.RunID,
		AsOf:         r.AsOf,
		Materialized: r.Materialized(),
		Results:      results,
	}
}

// CheckResponse is the result of a consistency check.
type CheckResponse struct {
	OK         bool                `json:"ok"`
	Violations []ViolationResponse `json:"violations"`
}

// ViolationResponse represents one consistency problem.
type ViolationResponse struct {
	Code           domain.ViolationCode `json:"code"`
	Message        string               `json:"message"`
	UserIDs        []int64              `json:"user_ids,omitempty"`
	TransactionIDs []int64              `json:"transaction_ids,omitempty"`
	OrderIDs       []int64              `json:"order_ids,omitempty"`
}

// CheckFromDomain converts violations to response.
func CheckFromDomain(violations []domain.Violation) *CheckResponse {
	result := make([]ViolationResponse, len(violations))
	for i, v := range violations {
		result[i] = ViolationResponse{
			Code:           v.Code,
			Message:        v.Message,
			UserIDs:        v.UserIDs,
			TransactionIDs: v.TransactionIDs,
			OrderIDs:       v.OrderIDs,
		}
	}

	return &CheckResponse{OK: len(violations) == 0, Violations: result}
}

// TagResponse represents a tag in API responses.
type TagResponse struct {
	ID          int64     `json:"id"`
	ParentID    *int64    `json:"parent_id,omitempty"`
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TagFromDomain converts a domain tag to a response.
func TagFromDomain(t *domain.Tag) *TagResponse {
	return &TagResponse{
		ID:          t.ID,
		ParentID:    t.ParentID,
		Name:        t.Name,
		Path:        t.Path,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
	}
}

// TagsFromDomain converts domain tags to responses.
func TagsFromDomain(tags []*domain.Tag) []*TagResponse {
	result := make([]*TagResponse, len(tags))
	for i, t := range tags {
		result[i] = TagFromDomain(t)
	}
	return result
}

// TagNodeResponse represents a tag with its children in the tag tree.
type TagNodeResponse struct {
	*TagResponse
	Children []*TagNodeResponse `json:"children"`
}

// TagTreeFromDomain converts tag trees to responses.
func TagTreeFromDomain(nodes []*domain.TagNode) []*TagNodeResponse {
	result := make([]*TagNodeResponse, len(nodes))
	for i, n := range nodes {
		result[i] = &TagNodeResponse{
			TagResponse: TagFromDomain(n.Tag),
			Children:    TagTreeFromDomain(n.Children),
		}
	}
	return result
}

// AgentResponse represents an agent in API responses.
type AgentResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// AgentsFromDomain converts domain agents to responses.
func AgentsFromDomain(agents []*domain.Agent) []*AgentResponse {
	result := make([]*AgentResponse, len(agents))
	for i, a := range agents {
		result[i] = &AgentResponse{ID: a.ID, Name: a.Name, Description: a.Description, CreatedAt: a.CreatedAt}
	}
	return result
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

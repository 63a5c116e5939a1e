package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/mpay/internal/domain"
)

// Repository methods taking a Transaction run inside it. A nil Transaction
// runs the statement on its own connection.

// UserRepository defines data access for users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByName(ctx context.Context, tx Transaction, name string) (*domain.User, error)
	List(ctx context.Context, tx Transaction) ([]*domain.User, error)
	Deactivate(ctx context.Context, name string) error
}

// TransactionRepository defines append-only data access for ledger transactions.
type TransactionRepository interface {
	Create(ctx context.Context, tx Transaction, t *domain.Transaction) error
	GetByID(ctx context.Context, id int64) (*domain.Transaction, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*domain.Transaction, error)
	ListByOrder(ctx context.Context, tx Transaction, orderID int64) ([]*domain.Transaction, error)
	CountByOrder(ctx context.Context, tx Transaction, orderID int64) (int, error)
	// Scan calls fn for every transaction in id order.
	Scan(ctx context.Context, tx Transaction, fn func(*domain.Transaction) error) error
}

// OrderRepository defines data access for standing orders.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.StandingOrder) error
	GetByName(ctx context.Context, tx Transaction, name string) (*domain.StandingOrder, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id int64) (*domain.StandingOrder, error)
	ListDue(ctx context.Context, asOf time.Time) ([]*domain.StandingOrder, error)
	List(ctx context.Context, tx Transaction) ([]*domain.StandingOrder, error)
	UpdatePointers(ctx context.Context, tx Transaction, id int64, next, cutoff *time.Time) error
	Delete(ctx context.Context, tx Transaction, id int64) error
}

// TagRepository defines data access for the tag hierarchy.
type TagRepository interface {
	Create(ctx context.Context, tx Transaction, tag *domain.Tag) error
	GetChild(ctx context.Context, tx Transaction, parentID *int64, name string) (*domain.Tag, error)
	List(ctx context.Context) ([]*domain.Tag, error)
}

// AgentRepository defines data access for agents.
type AgentRepository interface {
	Create(ctx context.Context, tx Transaction, agent *domain.Agent) error
	GetByName(ctx context.Context, tx Transaction, name string) (*domain.Agent, error)
	List(ctx context.Context) ([]*domain.Agent, error)
}

// LedgerRepository defines ledger-wide aggregate reads.
type LedgerRepository interface {
	// Balances returns the derived balance of every user, zero for users
	// without transactions.
	Balances(ctx context.Context, tx Transaction) ([]domain.UserBalance, error)
	Balance(ctx context.Context, tx Transaction, userID int64) (decimal.Decimal, error)
}

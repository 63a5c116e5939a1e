package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	// Begin starts a read-write transaction with a bounded lock wait.
	Begin(ctx context.Context) (Transaction, error)
	// BeginSnapshot starts a read-only transaction that sees one snapshot.
	BeginSnapshot(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation that failed with a concurrency conflict.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// BalanceCache is a reporting copy of derived balances. The ledger never
// reads it to make decisions.
type BalanceCache interface {
	Get(ctx context.Context, userID int64) (decimal.Decimal, bool, error)
	// Version changes on every Invalidate of the user. Read it before
	// deriving the balance that is passed to Set.
	Version(ctx context.Context, userID int64) (int64, error)
	// Set stores balance only while the user's version still equals version,
	// so a value derived before an invalidation is dropped. It reports
	// whether the value was stored.
	Set(ctx context.Context, userID int64, balance decimal.Decimal, version int64) (bool, error)
	Invalidate(ctx context.Context, userIDs ...int64) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a key whose request did not complete.
	Release(ctx context.Context, key string) error
}

package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// CheckTimeout bounds a full consistency check, which reads every row.
	CheckTimeout = 5 * time.Minute

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// DefaultSchedulerAgent labels transactions materialized from standing orders.
	DefaultSchedulerAgent = "scheduler"

	// DefaultSystemUser is recorded as the creator of materialized transactions.
	DefaultSystemUser = "system"

	// DefaultSchedulerBatchSize caps the occurrences one order materializes
	// per database transaction, so a long catch-up fits DefaultTransactionTimeout.
	DefaultSchedulerBatchSize = 500
)

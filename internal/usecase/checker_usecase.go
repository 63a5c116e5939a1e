package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/mpay/internal/domain"
	"github.com/iho/mpay/internal/infrastructure/metrics"
	"github.com/iho/mpay/internal/recurrence"
)

// CheckerUseCase re-derives everything the ledger promises and reports
// every deviation it finds.
type CheckerUseCase struct {
	txManager  TransactionManager
	userRepo   UserRepository
	txRepo     TransactionRepository
	orderRepo  OrderRepository
	ledgerRepo LedgerRepository
	cache      BalanceCache
	clock      Clock
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewCheckerUseCase creates a new CheckerUseCase. cache and m are optional.
func NewCheckerUseCase(
	txManager TransactionManager,
	userRepo UserRepository,
	txRepo TransactionRepository,
	orderRepo OrderRepository,
	ledgerRepo LedgerRepository,
	cache BalanceCache,
	clock Clock,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *CheckerUseCase {
	return &CheckerUseCase{
		txManager:  txManager,
		userRepo:   userRepo,
		txRepo:     txRepo,
		orderRepo:  orderRepo,
		ledgerRepo: ledgerRepo,
		cache:      cache,
		clock:      clock,
		metrics:    m,
		logger:     logger.With().Str("component", "checker").Logger(),
	}
}

// Check reads one snapshot of the store and returns all violations found.
// An error is returned only when the store cannot be read.
func (uc *CheckerUseCase) Check(ctx context.Context) ([]domain.Violation, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, CheckTimeout)
	defer cancel()

	tx, err := uc.txManager.BeginSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	now := uc.clock.Now()
	c := &checkRun{now: now}

	users, err := uc.userRepo.List(ctx, tx)
	if err != nil {
		return nil, err
	}

	c.known = make(map[int64]bool, len(users))
	c.folded = make(map[int64]decimal.Decimal, len(users))

	for _, u := range users {
		c.known[u.ID] = true
		c.folded[u.ID] = decimal.Zero
	}

	c.byOrder = make(map[int64][]*domain.Transaction)

	if err := uc.txRepo.Scan(ctx, tx, c.visit); err != nil {
		return nil, err
	}

	balances, err := uc.ledgerRepo.Balances(ctx, tx)
	if err != nil {
		return nil, err
	}

	c.compareBalances(balances)
	uc.compareCache(ctx, c, balances)

	orders, err := uc.orderRepo.List(ctx, tx)
	if err != nil {
		return nil, err
	}

	for _, order := range orders {
		c.checkOrder(order)
	}

	if uc.metrics != nil {
		uc.metrics.CheckDuration.Observe(time.Since(start).Seconds())

		for _, v := range c.violations {
			uc.metrics.Violations.WithLabelValues(string(v.Code)).Inc()
		}
	}

	event := uc.logger.Info()
	if len(c.violations) > 0 {
		event = uc.logger.Warn()
	}

	event.
		Int("users", len(users)).
		Int("orders", len(orders)).
		Int("violations", len(c.violations)).
		Msg("consistency check finished")

	return c.violations, nil
}

func (uc *CheckerUseCase) compareCache(ctx context.Context, c *checkRun, balances []domain.UserBalance) {
	if uc.cache == nil {
		return
	}

	for _, b := range balances {
		cached, ok, err := uc.cache.Get(ctx, b.UserID)
		if err != nil {
			uc.logger.Warn().Err(err).Msg("balance cache unavailable, skipping cache comparison")
			return
		}

		if ok && !cached.Equal(b.Balance) {
			c.add(domain.Violation{
				Code:    domain.ViolationCacheMismatch,
				Message: fmt.Sprintf("cached balance of %s is %s, derived balance is %s", b.Name, cached, b.Balance),
				UserIDs: []int64{b.UserID},
			})
		}
	}
}

// checkRun accumulates state of one Check call.
type checkRun struct {
	now        time.Time
	known      map[int64]bool
	folded     map[int64]decimal.Decimal
	byOrder    map[int64][]*domain.Transaction
	violations []domain.Violation
}

func (c *checkRun) add(v domain.Violation) {
	c.violations = append(c.violations, v)
}

func (c *checkRun) visit(t *domain.Transaction) error {
	ids := []int64{t.ID}

	if t.FromUserID == t.ToUserID {
		c.add(domain.Violation{
			Code:           domain.ViolationSelfTransfer,
			Message:        fmt.Sprintf("transaction %d pays user %d to itself", t.ID, t.FromUserID),
			UserIDs:        []int64{t.FromUserID},
			TransactionIDs: ids,
		})
	}

	var unknown []int64
	for _, id := range []int64{t.FromUserID, t.ToUserID} {
		if !c.known[id] {
			unknown = append(unknown, id)
		}
	}

	if len(unknown) > 0 {
		c.add(domain.Violation{
			Code:           domain.ViolationUnknownUser,
			Message:        fmt.Sprintf("transaction %d references unknown users", t.ID),
			UserIDs:        unknown,
			TransactionIDs: ids,
		})
	}

	if !t.Amount.IsPositive() {
		c.add(domain.Violation{
			Code:           domain.ViolationNonPositiveAmount,
			Message:        fmt.Sprintf("transaction %d has amount %s", t.ID, t.Amount),
			TransactionIDs: ids,
		})
	}

	if (t.OriginalAmount == nil) != (t.OriginalCurrency == nil) ||
		(t.OriginalAmount != nil && !t.OriginalAmount.IsPositive()) {
		c.add(domain.Violation{
			Code:           domain.ViolationOriginalMismatch,
			Message:        fmt.Sprintf("transaction %d has an incomplete or non-positive original amount", t.ID),
			TransactionIDs: ids,
		})
	}

	if t.DueAt.After(t.CreatedAt) || t.DueAt.After(c.now) {
		c.add(domain.Violation{
			Code:           domain.ViolationFutureDue,
			Message:        fmt.Sprintf("transaction %d is due %s, after it was created", t.ID, t.DueAt.Format(time.RFC3339)),
			TransactionIDs: ids,
		})
	}

	if t.FromUserID != t.ToUserID {
		c.folded[t.ToUserID] = c.folded[t.ToUserID].Add(t.Amount)
		c.folded[t.FromUserID] = c.folded[t.FromUserID].Sub(t.Amount)
	}

	if t.StandingOrderID != nil {
		c.byOrder[*t.StandingOrderID] = append(c.byOrder[*t.StandingOrderID], t)
	}

	return nil
}

func (c *checkRun) compareBalances(balances []domain.UserBalance) {
	total := decimal.Zero

	for _, b := range balances {
		total = total.Add(b.Balance)

		folded := c.folded[b.UserID]
		if !folded.Equal(b.Balance) {
			c.add(domain.Violation{
				Code:    domain.ViolationBalanceMismatch,
				Message: fmt.Sprintf("balance of %s is %s by aggregate but %s by transaction scan", b.Name, b.Balance, folded),
				UserIDs: []int64{b.UserID},
			})
		}
	}

	if !total.IsZero() {
		c.add(domain.Violation{
			Code:    domain.ViolationNonzeroTotal,
			Message: fmt.Sprintf("balances sum to %s instead of 0", total),
		})
	}
}

// checkOrder compares the materialized occurrences of an order with the
// expansion of its rule up to the order's pointer.
func (c *checkRun) checkOrder(order *domain.StandingOrder) {
	orderIDs := []int64{order.ID}

	rule, err := recurrence.Parse(order.Rule)
	if err != nil {
		c.add(domain.Violation{
			Code:     domain.ViolationInvalidRule,
			Message:  fmt.Sprintf("order %s has an unparsable rule: %v", order.Name, err),
			OrderIDs: orderIDs,
		})

		return
	}

	var expected []time.Time
	if order.State() == domain.OrderExhausted {
		expected = rule.Between(time.Time{}, c.now)
	} else {
		expected = rule.Before(order.MaterializedBefore(c.now))
	}

	actual := make(map[int64][]int64)
	for _, t := range c.byOrder[order.ID] {
		key := t.DueAt.UnixMicro()
		actual[key] = append(actual[key], t.ID)
	}

	for _, due := range expected {
		key := due.UnixMicro()
		txIDs := actual[key]
		delete(actual, key)

		switch {
		case len(txIDs) == 0:
			c.add(domain.Violation{
				Code:     domain.ViolationOccurrenceMissing,
				Message:  fmt.Sprintf("order %s has no transaction for %s", order.Name, due.Format(time.RFC3339)),
				OrderIDs: orderIDs,
			})
		case len(txIDs) > 1:
			c.add(domain.Violation{
				Code:           domain.ViolationOccurrenceDuplicate,
				Message:        fmt.Sprintf("order %s has %d transactions for %s", order.Name, len(txIDs), due.Format(time.RFC3339)),
				OrderIDs:       orderIDs,
				TransactionIDs: txIDs,
			})
		}
	}

	keys := make([]int64, 0, len(actual))
	for key := range actual {
		keys = append(keys, key)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, key := range keys {
		c.add(domain.Violation{
			Code:           domain.ViolationOccurrenceUnexpected,
			Message:        fmt.Sprintf("order %s has transactions due %s outside its schedule", order.Name, time.UnixMicro(key).UTC().Format(time.RFC3339)),
			OrderIDs:       orderIDs,
			TransactionIDs: actual[key],
		})
	}
}

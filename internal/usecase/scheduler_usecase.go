package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/mpay/internal/domain"
	"github.com/iho/mpay/internal/infrastructure/metrics"
)

// SchedulerUseCase materializes due standing order occurrences.
type SchedulerUseCase struct {
	txManager  TransactionManager
	orderRepo  OrderRepository
	payments   *PaymentUseCase
	retrier    Retrier
	cache      BalanceCache
	clock      Clock
	idGen      IDGenerator
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	agent      string
	systemUser string
	batchSize  int
}

// SchedulerConfig names the labels put on materialized transactions.
// BatchSize bounds the occurrences written per database transaction.
type SchedulerConfig struct {
	Agent      string
	SystemUser string
	BatchSize  int
}

// NewSchedulerUseCase creates a new SchedulerUseCase.
// retrier, cache and m are optional.
func NewSchedulerUseCase(
	cfg SchedulerConfig,
	txManager TransactionManager,
	orderRepo OrderRepository,
	payments *PaymentUseCase,
	retrier Retrier,
	cache BalanceCache,
	clock Clock,
	idGen IDGenerator,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *SchedulerUseCase {
	if cfg.Agent == "" {
		cfg.Agent = DefaultSchedulerAgent
	}

	if cfg.SystemUser == "" {
		cfg.SystemUser = DefaultSystemUser
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultSchedulerBatchSize
	}

	return &SchedulerUseCase{
		txManager:  txManager,
		orderRepo:  orderRepo,
		payments:   payments,
		retrier:    retrier,
		cache:      cache,
		clock:      clock,
		idGen:      idGen,
		metrics:    m,
		logger:     logger.With().Str("component", "scheduler").Logger(),
		agent:      cfg.Agent,
		systemUser: cfg.SystemUser,
		batchSize:  cfg.BatchSize,
	}
}

// OrderResult is the outcome of running one standing order.
type OrderResult struct {
	Err            error
	Name           string
	TransactionIDs []int64
	OrderID        int64
	Batches        int
	Exhausted      bool
}

// Materialized returns the number of transactions written for the order.
func (r OrderResult) Materialized() int {
	return len(r.TransactionIDs)
}

// RunReport summarizes a RunDue call.
type RunReport struct {
	AsOf    time.Time
	RunID   string
	Results []OrderResult
}

// Materialized returns the number of transactions written by the run.
func (r *RunReport) Materialized() int {
	n := 0
	for _, res := range r.Results {
		n += res.Materialized()
	}

	return n
}

// Failed returns the results that ended with an error.
func (r *RunReport) Failed() []OrderResult {
	var failed []OrderResult

	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}

	return failed
}

// RunDue materializes every occurrence at or before asOf that has not been
// materialized yet. A zero asOf means now. Orders are processed
// independently: a failing order is reported and the run continues.
func (uc *SchedulerUseCase) RunDue(ctx context.Context, asOf time.Time) (*RunReport, error) {
	start := time.Now()
	now := uc.clock.Now()

	if asOf.IsZero() {
		asOf = now
	}

	asOf = asOf.UTC()
	if asOf.After(now) {
		return nil, domain.ErrAsOfInFuture
	}

	report := &RunReport{RunID: uc.idGen.Generate(), AsOf: asOf}
	log := uc.logger.With().Str("run_id", report.RunID).Time("as_of", asOf).Logger()

	orders, err := uc.orderRepo.ListDue(ctx, asOf)
	if err != nil {
		return nil, err
	}

	for _, order := range orders {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res := uc.runOrder(ctx, order, asOf)
		report.Results = append(report.Results, res)

		uc.record(log, res)
	}

	if uc.metrics != nil {
		uc.metrics.RunDuration.Observe(time.Since(start).Seconds())
	}

	log.Info().
		Int("orders", len(report.Results)).
		Int("materialized", report.Materialized()).
		Int("failed", len(report.Failed())).
		Msg("run finished")

	return report, nil
}

// runOrder catches one order up in batches. Each batch commits on its own,
// so an error keeps the batches already written and leaves the pointer on
// the first occurrence still missing.
func (uc *SchedulerUseCase) runOrder(ctx context.Context, candidate *domain.StandingOrder, asOf time.Time) OrderResult {
	res := OrderResult{OrderID: candidate.ID, Name: candidate.Name}

	touched := make(map[int64]bool)

	for {
		b, err := uc.runBatch(ctx, candidate.ID, asOf, touched)
		if err != nil {
			res.Err = err
			break
		}

		if len(b.ids) > 0 {
			res.Batches++
		}

		res.TransactionIDs = append(res.TransactionIDs, b.ids...)
		res.Exhausted = b.exhausted

		if !b.more {
			break
		}

		if err := ctx.Err(); err != nil {
			res.Err = err
			break
		}
	}

	if uc.cache != nil && len(touched) > 0 {
		ids := make([]int64, 0, len(touched))
		for id := range touched {
			ids = append(ids, id)
		}

		if err := uc.cache.Invalidate(ctx, ids...); err != nil {
			uc.logger.Warn().Err(err).Int64("order_id", candidate.ID).Msg("failed to invalidate balance cache")
		}
	}

	return res
}

type batch struct {
	ids       []int64
	exhausted bool
	more      bool
}

func (uc *SchedulerUseCase) runBatch(ctx context.Context, orderID int64, asOf time.Time, touched map[int64]bool) (batch, error) {
	var b batch

	err := uc.retry(ctx, func() error {
		b = batch{}

		txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
		defer cancel()

		tx, err := uc.txManager.Begin(txCtx)
		if err != nil {
			return err
		}
		defer tx.Rollback(txCtx)

		// The row lock is held until commit, so concurrent runners see the
		// advanced pointer and skip the occurrences written here.
		order, err := uc.orderRepo.GetByIDForUpdate(txCtx, tx, orderID)
		if err != nil {
			return err
		}

		if !order.IsDue(asOf) {
			return nil
		}

		rule, err := parseRule(order.Rule)
		if err != nil {
			return err
		}

		occurrences := rule.BetweenN(*order.NextDueAt, asOf, uc.batchSize)

		for _, due := range occurrences {
			t, err := uc.payments.PayTx(txCtx, tx, PayInput{
				From:            order.FromUser,
				To:              order.ToUser,
				Amount:          order.Amount,
				Note:            order.Note,
				DueAt:           &due,
				Agent:           uc.agent,
				CreatedBy:       uc.systemUser,
				StandingOrderID: &orderID,
				CreateMissing:   true,
			})
			if err != nil {
				return err
			}

			b.ids = append(b.ids, t.ID)
			touched[t.FromUserID] = true
			touched[t.ToUserID] = true
		}

		// A full batch leaves the pointer on the next missing occurrence.
		last := asOf
		if len(occurrences) == uc.batchSize {
			last = occurrences[len(occurrences)-1]
		}

		var next *time.Time
		if n, ok := rule.After(last); ok {
			next = &n
			b.more = !n.After(asOf)
		} else {
			b.exhausted = true
		}

		if err := uc.orderRepo.UpdatePointers(txCtx, tx, order.ID, next, nil); err != nil {
			return err
		}

		return tx.Commit(txCtx)
	})
	if err != nil {
		return batch{}, err
	}

	return b, nil
}

func (uc *SchedulerUseCase) record(log zerolog.Logger, res OrderResult) {
	if res.Err != nil {
		log.Error().Err(res.Err).
			Int64("order_id", res.OrderID).
			Str("order", res.Name).
			Int("materialized", res.Materialized()).
			Msg("standing order failed")

		if uc.metrics != nil {
			uc.metrics.OrderFailures.WithLabelValues(metrics.ErrorType(res.Err)).Inc()
			uc.metrics.OccurrencesMaterialized.Add(float64(res.Materialized()))
		}

		return
	}

	log.Info().
		Int64("order_id", res.OrderID).
		Str("order", res.Name).
		Int("materialized", res.Materialized()).
		Int("batches", res.Batches).
		Bool("exhausted", res.Exhausted).
		Msg("standing order processed")

	if uc.metrics != nil {
		uc.metrics.OccurrencesMaterialized.Add(float64(res.Materialized()))

		if res.Exhausted {
			uc.metrics.OrdersExhausted.Inc()
		}
	}
}

func (uc *SchedulerUseCase) retry(ctx context.Context, op func() error) error {
	if uc.retrier == nil {
		return op()
	}

	return uc.retrier.Retry(ctx, op)
}

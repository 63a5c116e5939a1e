package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/mpay/internal/domain"
	"github.com/iho/mpay/internal/infrastructure/metrics"
)

// PaymentUseCase records transactions between users.
type PaymentUseCase struct {
	txManager TransactionManager
	userRepo  UserRepository
	txRepo    TransactionRepository
	tagRepo   TagRepository
	agentRepo AgentRepository
	retrier   Retrier
	cache     BalanceCache
	clock     Clock
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewPaymentUseCase creates a new PaymentUseCase.
// retrier, cache and m are optional.
func NewPaymentUseCase(
	txManager TransactionManager,
	userRepo UserRepository,
	txRepo TransactionRepository,
	tagRepo TagRepository,
	agentRepo AgentRepository,
	retrier Retrier,
	cache BalanceCache,
	clock Clock,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *PaymentUseCase {
	return &PaymentUseCase{
		txManager: txManager,
		userRepo:  userRepo,
		txRepo:    txRepo,
		tagRepo:   tagRepo,
		agentRepo: agentRepo,
		retrier:   retrier,
		cache:     cache,
		clock:     clock,
		metrics:   m,
		logger:    logger.With().Str("component", "payments").Logger(),
	}
}

// PayInput represents input for recording one payment.
type PayInput struct {
	DueAt            *time.Time
	Note             *string
	OriginalAmount   *decimal.Decimal
	OriginalCurrency *string
	StandingOrderID  *int64
	From             string
	To               string
	Agent            string
	CreatedBy        string
	Tags             []string
	Amount           decimal.Decimal
	CreateMissing    bool
}

// Pay records a single payment in its own transaction and returns its id.
func (uc *PaymentUseCase) Pay(ctx context.Context, input PayInput) (int64, error) {
	start := time.Now()

	var recorded *domain.Transaction

	err := uc.retry(ctx, func() error {
		txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
		defer cancel()

		tx, err := uc.txManager.Begin(txCtx)
		if err != nil {
			return err
		}
		defer tx.Rollback(txCtx)

		t, err := uc.PayTx(txCtx, tx, input)
		if err != nil {
			return err
		}

		if err := tx.Commit(txCtx); err != nil {
			return err
		}

		recorded = t

		return nil
	})
	if err != nil {
		if uc.metrics != nil {
			uc.metrics.PaymentErrors.WithLabelValues(metrics.ErrorType(err)).Inc()
		}

		return 0, err
	}

	uc.invalidate(ctx, recorded.FromUserID, recorded.ToUserID)

	if uc.metrics != nil {
		uc.metrics.PaymentsCreated.Inc()
		uc.metrics.PaymentDuration.Observe(time.Since(start).Seconds())
		uc.metrics.PaymentAmount.Observe(recorded.Amount.InexactFloat64())
	}

	uc.logger.Info().
		Int64("transaction_id", recorded.ID).
		Str("from", input.From).
		Str("to", input.To).
		Str("amount", recorded.Amount.String()).
		Msg("payment recorded")

	return recorded.ID, nil
}

// PayTx validates input and inserts one transaction inside tx.
// Nothing is written when validation fails.
func (uc *PaymentUseCase) PayTx(ctx context.Context, tx Transaction, input PayInput) (*domain.Transaction, error) {
	now := uc.clock.Now()

	from, err := domain.SanitizeUserName(input.From)
	if err != nil {
		return nil, err
	}

	to, err := domain.SanitizeUserName(input.To)
	if err != nil {
		return nil, err
	}

	if from == to {
		return nil, domain.ErrSameUser
	}

	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}

	if err := domain.ValidateNote(input.Note); err != nil {
		return nil, err
	}

	dueAt := now
	if input.DueAt != nil {
		dueAt = input.DueAt.UTC()
	}

	if dueAt.After(now) {
		return nil, domain.ErrDueInFuture
	}

	t := &domain.Transaction{
		Amount:          input.Amount,
		Note:            input.Note,
		StandingOrderID: input.StandingOrderID,
		DueAt:           dueAt,
		CreatedAt:       now,
	}

	if err := uc.applyOriginal(t, input); err != nil {
		return nil, err
	}

	fromUser, err := lookupUser(ctx, uc.userRepo, tx, from, true)
	if err != nil {
		return nil, fmt.Errorf("sender %q: %w", from, err)
	}

	toUser, err := lookupUser(ctx, uc.userRepo, tx, to, true)
	if err != nil {
		return nil, fmt.Errorf("recipient %q: %w", to, err)
	}

	t.FromUserID = fromUser.ID
	t.ToUserID = toUser.ID
	t.CreatedByID = fromUser.ID

	if input.CreatedBy != "" && input.CreatedBy != from {
		creator, err := lookupUser(ctx, uc.userRepo, tx, input.CreatedBy, false)
		if err != nil {
			return nil, fmt.Errorf("acting user %q: %w", input.CreatedBy, err)
		}

		t.CreatedByID = creator.ID
	}

	if input.Agent != "" {
		agent, err := resolveAgent(ctx, uc.agentRepo, tx, input.Agent, input.CreateMissing, now)
		if err != nil {
			return nil, err
		}

		t.AgentID = &agent.ID
	}

	seen := make(map[int64]bool, len(input.Tags))
	for _, path := range input.Tags {
		tag, err := resolveTag(ctx, uc.tagRepo, tx, path, input.CreateMissing, now)
		if err != nil {
			return nil, err
		}

		if !seen[tag.ID] {
			seen[tag.ID] = true
			t.TagIDs = append(t.TagIDs, tag.ID)
		}
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	if err := uc.txRepo.Create(ctx, tx, t); err != nil {
		return nil, err
	}

	return t, nil
}

func (uc *PaymentUseCase) applyOriginal(t *domain.Transaction, input PayInput) error {
	if (input.OriginalAmount == nil) != (input.OriginalCurrency == nil) {
		return domain.ErrOriginalPair
	}

	if input.OriginalAmount == nil {
		return nil
	}

	if !input.OriginalAmount.IsPositive() {
		return fmt.Errorf("%w: original amount must be positive", domain.ErrInvalidAmount)
	}

	code, err := domain.NormalizeCurrency(*input.OriginalCurrency)
	if err != nil {
		return err
	}

	t.OriginalAmount = input.OriginalAmount
	t.OriginalCurrency = &code

	return nil
}

// ImportRow is one line of a batch import. The sign of Amount decides the
// direction: positive pays from the batch sender to the batch recipient.
type ImportRow struct {
	DueAt  *time.Time
	Note   *string
	Amount decimal.Decimal
}

// ImportInput represents a batch of payments between two users.
type ImportInput struct {
	From          string
	To            string
	Agent         string
	CreatedBy     string
	Tags          []string
	Rows          []ImportRow
	CreateMissing bool
}

// Import records all rows atomically: either every row is committed or none.
func (uc *PaymentUseCase) Import(ctx context.Context, input ImportInput) ([]int64, error) {
	if len(input.Rows) == 0 {
		return nil, nil
	}

	var ids []int64

	touched := make(map[int64]bool)

	err := uc.retry(ctx, func() error {
		ids = ids[:0]

		tx, err := uc.txManager.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		for i, row := range input.Rows {
			from, to, amount := domain.Directed(input.From, input.To, row.Amount)

			t, err := uc.PayTx(ctx, tx, PayInput{
				From:          from,
				To:            to,
				Amount:        amount,
				Note:          row.Note,
				DueAt:         row.DueAt,
				Agent:         input.Agent,
				Tags:          input.Tags,
				CreatedBy:     input.CreatedBy,
				CreateMissing: input.CreateMissing,
			})
			if err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}

			ids = append(ids, t.ID)
			touched[t.FromUserID] = true
			touched[t.ToUserID] = true
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}

	userIDs := make([]int64, 0, len(touched))
	for id := range touched {
		userIDs = append(userIDs, id)
	}

	uc.invalidate(ctx, userIDs...)

	uc.logger.Info().Int("rows", len(ids)).Str("from", input.From).Str("to", input.To).Msg("batch imported")

	return ids, nil
}

// ListTransactions returns the history of a user, newest first.
func (uc *PaymentUseCase) ListTransactions(ctx context.Context, userName string, limit, offset int) ([]*domain.Transaction, error) {
	user, err := lookupUser(ctx, uc.userRepo, nil, userName, false)
	if err != nil {
		return nil, err
	}

	limit, offset = domain.ValidatePagination(limit, offset)

	return uc.txRepo.ListByUser(ctx, user.ID, limit, offset)
}

// GetTransaction retrieves one transaction by id.
func (uc *PaymentUseCase) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	return uc.txRepo.GetByID(ctx, id)
}

func (uc *PaymentUseCase) retry(ctx context.Context, op func() error) error {
	if uc.retrier == nil {
		return op()
	}

	return uc.retrier.Retry(ctx, op)
}

// invalidate drops reporting cache entries after a commit. Cache failures
// never fail a payment.
func (uc *PaymentUseCase) invalidate(ctx context.Context, userIDs ...int64) {
	if uc.cache == nil || len(userIDs) == 0 {
		return
	}

	if err := uc.cache.Invalidate(ctx, userIDs...); err != nil {
		uc.logger.Warn().Err(err).Ints64("user_ids", userIDs).Msg("failed to invalidate balance cache")
	}
}

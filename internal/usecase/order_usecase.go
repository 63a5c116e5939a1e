package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/mpay/internal/domain"
	"github.com/iho/mpay/internal/recurrence"
)

// OrderUseCase administers standing orders.
type OrderUseCase struct {
	txManager TransactionManager
	orderRepo OrderRepository
	userRepo  UserRepository
	txRepo    TransactionRepository
	clock     Clock
	logger    zerolog.Logger
}

// NewOrderUseCase creates a new OrderUseCase.
func NewOrderUseCase(
	txManager TransactionManager,
	orderRepo OrderRepository,
	userRepo UserRepository,
	txRepo TransactionRepository,
	clock Clock,
	logger zerolog.Logger,
) *OrderUseCase {
	return &OrderUseCase{
		txManager: txManager,
		orderRepo: orderRepo,
		userRepo:  userRepo,
		txRepo:    txRepo,
		clock:     clock,
		logger:    logger.With().Str("component", "orders").Logger(),
	}
}

// CreateOrderInput represents input for creating a standing order.
type CreateOrderInput struct {
	Note   *string
	Name   string
	From   string
	To     string
	Rule   string
	Amount decimal.Decimal
}

// CreateOrder stores a new standing order pointing at the first occurrence
// of its rule. A rule without occurrences yields an exhausted order.
func (uc *OrderUseCase) CreateOrder(ctx context.Context, input CreateOrderInput) (*domain.StandingOrder, error) {
	name, err := domain.SanitizeOrderName(input.Name)
	if err != nil {
		return nil, err
	}

	rule, err := parseRule(input.Rule)
	if err != nil {
		return nil, err
	}

	fromUser, err := lookupUser(ctx, uc.userRepo, nil, input.From, true)
	if err != nil {
		return nil, fmt.Errorf("sender %q: %w", input.From, err)
	}

	toUser, err := lookupUser(ctx, uc.userRepo, nil, input.To, true)
	if err != nil {
		return nil, fmt.Errorf("recipient %q: %w", input.To, err)
	}

	order := &domain.StandingOrder{
		Name:       name,
		FromUserID: fromUser.ID,
		ToUserID:   toUser.ID,
		FromUser:   fromUser.Name,
		ToUser:     toUser.Name,
		Amount:     input.Amount,
		Note:       input.Note,
		Rule:       input.Rule,
		CreatedAt:  uc.clock.Now(),
	}

	if err := order.Validate(); err != nil {
		return nil, err
	}

	if first, ok := rule.First(); ok {
		order.NextDueAt = &first
	}

	if err := uc.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}

	uc.logger.Info().
		Int64("order_id", order.ID).
		Str("name", order.Name).
		Str("state", string(order.State())).
		Msg("standing order created")

	return order, nil
}

// GetOrder retrieves a standing order by name.
func (uc *OrderUseCase) GetOrder(ctx context.Context, name string) (*domain.StandingOrder, error) {
	name, err := domain.SanitizeOrderName(name)
	if err != nil {
		return nil, err
	}

	return uc.orderRepo.GetByName(ctx, nil, name)
}

// ListOrders lists all standing orders.
func (uc *OrderUseCase) ListOrders(ctx context.Context) ([]*domain.StandingOrder, error) {
	return uc.orderRepo.List(ctx, nil)
}

// DisableOrder stops an order for good. The pending pointer becomes the
// cutoff so that already materialized occurrences stay verifiable.
// Disabling an order that is not pending is a no-op.
func (uc *OrderUseCase) DisableOrder(ctx context.Context, name string) (*domain.StandingOrder, error) {
	var order *domain.StandingOrder

	err := uc.withLockedOrder(ctx, name, func(tx Transaction, locked *domain.StandingOrder) error {
		order = locked

		if locked.NextDueAt == nil {
			return nil
		}

		cutoff := *locked.NextDueAt
		if err := uc.orderRepo.UpdatePointers(ctx, tx, locked.ID, nil, &cutoff); err != nil {
			return err
		}

		order.NextDueAt = nil
		order.CutoffAt = &cutoff

		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info().Int64("order_id", order.ID).Str("name", order.Name).Msg("standing order disabled")

	return order, nil
}

// DeleteOrder removes an order that never produced a transaction.
// Orders with history can only be disabled.
func (uc *OrderUseCase) DeleteOrder(ctx context.Context, name string) error {
	return uc.withLockedOrder(ctx, name, func(tx Transaction, order *domain.StandingOrder) error {
		count, err := uc.txRepo.CountByOrder(ctx, tx, order.ID)
		if err != nil {
			return err
		}

		if count > 0 {
			return domain.ErrOrderHasTransactions
		}

		return uc.orderRepo.Delete(ctx, tx, order.ID)
	})
}

func (uc *OrderUseCase) withLockedOrder(ctx context.Context, name string, fn func(Transaction, *domain.StandingOrder) error) error {
	name, err := domain.SanitizeOrderName(name)
	if err != nil {
		return err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	order, err := uc.orderRepo.GetByName(ctx, tx, name)
	if err != nil {
		return err
	}

	locked, err := uc.orderRepo.GetByIDForUpdate(ctx, tx, order.ID)
	if err != nil {
		return err
	}

	if err := fn(tx, locked); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func parseRule(text string) (*recurrence.Rule, error) {
	if text == "" || len(text) > domain.MaxRuleLength {
		return nil, domain.ErrInvalidRule
	}

	rule, err := recurrence.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRule, err)
	}

	return rule, nil
}

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/mpay/internal/domain"
	"github.com/iho/mpay/internal/usecase"
	"github.com/iho/mpay/internal/usecase/mocks"
)

func codes(violations []domain.Violation) []domain.ViolationCode {
	out := make([]domain.ViolationCode, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.Code)
	}

	return out
}

// skewedLedger reports an aggregate that disagrees with the rows.
type skewedLedger struct {
	usecase.LedgerRepository
	userID int64
}

func (s skewedLedger) Balances(ctx context.Context, tx usecase.Transaction) ([]domain.UserBalance, error) {
	balances, err := s.LedgerRepository.Balances(ctx, tx)
	for i := range balances {
		if balances[i].UserID == s.userID {
			balances[i].Balance = balances[i].Balance.Add(decimal.NewFromInt(1))
		}
	}

	return balances, err
}

func TestCheckerUseCase_CleanLedger(t *testing.T) {
	e := newTestEnv(t, nil)
	e.addUsers("alice", "bob")
	e.createOrder(t, "rent", dailyRule)

	_, err := e.payments.Pay(t.Context(), usecase.PayInput{From: "bob", To: "alice", Amount: dec("4")})
	require.NoError(t, err)

	_, err = e.scheduler.RunDue(t.Context(), time.Time{})
	require.NoError(t, err)

	violations, err := e.checker.Check(t.Context())
	require.NoError(t, err)
	assert.Empty(t, violations)
	assert.Equal(t, 1, e.txm.Snapshots)
}

func TestCheckerUseCase_RowViolations(t *testing.T) {
	tests := []struct {
		name   string
		insert func(users map[string]*domain.User) domain.Transaction
		want   domain.ViolationCode
	}{
		{
			name: "self transfer",
			insert: func(u map[string]*domain.User) domain.Transaction {
				return domain.Transaction{FromUserID: u["alice"].ID, ToUserID: u["alice"].ID, CreatedByID: u["alice"].ID, Amount: dec("1"), DueAt: epoch, CreatedAt: epoch}
			},
			want: domain.ViolationSelfTransfer,
		},
		{
			name: "unknown user",
			insert: func(u map[string]*domain.User) domain.Transaction {
				return domain.Transaction{FromUserID: u["alice"].ID, ToUserID: 9999, CreatedByID: u["alice"].ID, Amount: dec("1"), DueAt: epoch, CreatedAt: epoch}
			},
			want: domain.ViolationUnknownUser,
		},
		{
			name: "zero amount",
			insert: func(u map[string]*domain.User) domain.Transaction {
				return domain.Transaction{FromUserID: u["alice"].ID, ToUserID: u["bob"].ID, CreatedByID: u["alice"].ID, Amount: decimal.Zero, DueAt: epoch, CreatedAt: epoch}
			},
			want: domain.ViolationNonPositiveAmount,
		},
		{
			name: "original amount without currency",
			insert: func(u map[string]*domain.User) domain.Transaction {
				return domain.Transaction{FromUserID: u["alice"].ID, ToUserID: u["bob"].ID, CreatedByID: u["alice"].ID, Amount: dec("1"), OriginalAmount: ptr(dec("2")), DueAt: epoch, CreatedAt: epoch}
			},
			want: domain.ViolationOriginalMismatch,
		},
		{
			name: "due after creation",
			insert: func(u map[string]*domain.User) domain.Transaction {
				return domain.Transaction{FromUserID: u["alice"].ID, ToUserID: u["bob"].ID, CreatedByID: u["alice"].ID, Amount: dec("1"), DueAt: epoch.Add(time.Hour), CreatedAt: epoch}
			},
			want: domain.ViolationFutureDue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, nil)
			users := e.addUsers("alice", "bob")

			id := e.ledger.Insert(tt.insert(users))

			violations, err := e.checker.Check(t.Context())
			require.NoError(t, err)
			require.Contains(t, codes(violations), tt.want)

			for _, v := range violations {
				if v.Code == tt.want {
					assert.Equal(t, []int64{id}, v.TransactionIDs)
				}
			}
		})
	}
}

func TestCheckerUseCase_BalanceViolations(t *testing.T) {
	e := newTestEnv(t, nil)
	users := e.addUsers("alice", "bob")

	_, err := e.payments.Pay(t.Context(), usecase.PayInput{From: "alice", To: "bob", Amount: dec("4")})
	require.NoError(t, err)

	checker := usecase.NewCheckerUseCase(
		e.txm, e.users, e.txs, e.orders,
		skewedLedger{LedgerRepository: e.ledgerR, userID: users["bob"].ID},
		nil, e.clock, nil, zerolog.Nop(),
	)

	violations, err := checker.Check(t.Context())
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.ViolationCode{domain.ViolationBalanceMismatch, domain.ViolationNonzeroTotal}, codes(violations))
	assert.Equal(t, []int64{users["bob"].ID}, violations[0].UserIDs)
}

func TestCheckerUseCase_OccurrenceViolations(t *testing.T) {
	setup := func(t *testing.T) (*testEnv, *domain.StandingOrder, map[string]*domain.User) {
		e := newTestEnv(t, nil)
		users := e.addUsers("alice", "bob")
		order := e.createOrder(t, "rent", dailyRule)

		_, err := e.scheduler.RunDue(t.Context(), at(12, 10))
		require.NoError(t, err)

		return e, order, users
	}

	occurrence := func(users map[string]*domain.User, orderID int64, due time.Time) domain.Transaction {
		return domain.Transaction{
			FromUserID:      users["alice"].ID,
			ToUserID:        users["bob"].ID,
			CreatedByID:     users["alice"].ID,
			Amount:          dec("2.5"),
			DueAt:           due,
			CreatedAt:       epoch,
			StandingOrderID: &orderID,
		}
	}

	t.Run("missing", func(t *testing.T) {
		e, order, _ := setup(t)
		next := at(15, 9)
		e.ledger.SetOrderPointers(order.ID, &next, nil)

		violations, err := e.checker.Check(t.Context())
		require.NoError(t, err)
		assert.Equal(t, []domain.ViolationCode{domain.ViolationOccurrenceMissing, domain.ViolationOccurrenceMissing}, codes(violations))
	})

	t.Run("duplicate", func(t *testing.T) {
		e, order, users := setup(t)
		e.ledger.Insert(occurrence(users, order.ID, at(11, 9)))
		e.ledger.Insert(occurrence(users, order.ID, at(10, 9)))

		violations, err := e.checker.Check(t.Context())
		require.NoError(t, err)
		assert.Equal(t, []domain.ViolationCode{domain.ViolationOccurrenceDuplicate, domain.ViolationOccurrenceDuplicate}, codes(violations))
		assert.Len(t, violations[1].TransactionIDs, 2)
	})

	t.Run("unexpected", func(t *testing.T) {
		e, order, users := setup(t)
		e.ledger.Insert(occurrence(users, order.ID, at(11, 10)))
		e.ledger.Insert(occurrence(users, order.ID, at(1, 10)))

		violations, err := e.checker.Check(t.Context())
		require.NoError(t, err)
		assert.Equal(t, []domain.ViolationCode{domain.ViolationOccurrenceUnexpected, domain.ViolationOccurrenceUnexpected}, codes(violations))
		assert.Contains(t, violations[0].Message, "2025-03-01T10:00:00Z")
	})

	t.Run("ahead of pointer", func(t *testing.T) {
		e, order, users := setup(t)
		e.ledger.Insert(occurrence(users, order.ID, at(13, 9)))
		e.ledger.Insert(occurrence(users, order.ID, at(13, 9)))

		violations, err := e.checker.Check(t.Context())
		require.NoError(t, err)
		assert.Equal(t, []domain.ViolationCode{domain.ViolationOccurrenceUnexpected}, codes(violations))
	})

	t.Run("invalid rule", func(t *testing.T) {
		e, order, _ := setup(t)
		e.ledger.SetOrderRule(order.ID, "garbage")

		violations, err := e.checker.Check(t.Context())
		require.NoError(t, err)
		assert.Equal(t, []domain.ViolationCode{domain.ViolationInvalidRule}, codes(violations))
		assert.Equal(t, []int64{order.ID}, violations[0].OrderIDs)
	})
}

func TestCheckerUseCase_Cache(t *testing.T) {
	t.Run("mismatch", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		cache := mocks.NewMockBalanceCache(ctrl)

		e := newTestEnv(t, cache)
		users := e.addUsers("alice", "bob")

		cache.EXPECT().Invalidate(gomock.Any(), gomock.Any()).Return(nil)
		cache.EXPECT().Get(gomock.Any(), users["bob"].ID).Return(dec("3"), true, nil)
		cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(decimal.Zero, false, nil).AnyTimes()

		_, err := e.payments.Pay(t.Context(), usecase.PayInput{From: "alice", To: "bob", Amount: dec("4")})
		require.NoError(t, err)

		violations, err := e.checker.Check(t.Context())
		require.NoError(t, err)
		require.Equal(t, []domain.ViolationCode{domain.ViolationCacheMismatch}, codes(violations))
		assert.Equal(t, []int64{users["bob"].ID}, violations[0].UserIDs)
	})

	t.Run("cache unavailable", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		cache := mocks.NewMockBalanceCache(ctrl)

		e := newTestEnv(t, cache)
		e.addUsers("alice", "bob")

		cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(decimal.Zero, false, errors.New("connection refused")).Times(1)

		violations, err := e.checker.Check(t.Context())
		require.NoError(t, err)
		assert.Empty(t, violations)
	})
}

func TestCheckerUseCase_StoreErrors(t *testing.T) {
	e := newTestEnv(t, nil)
	e.txs.ScanErr = domain.ErrStoreUnavailable

	_, err := e.checker.Check(t.Context())
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)

	e.txs.ScanErr = nil
	e.txm.BeginErr = domain.ErrStoreUnavailable

	_, err = e.checker.Check(t.Context())
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

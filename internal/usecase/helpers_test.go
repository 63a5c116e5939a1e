package usecase_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/mpay/internal/domain"
	"github.com/iho/mpay/internal/infrastructure/clock"
	"github.com/iho/mpay/internal/infrastructure/metrics"
	"github.com/iho/mpay/internal/usecase"
	"github.com/iho/mpay/internal/usecase/mocks"
)

var epoch = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

// testEnv wires every use case over one in-memory ledger.
type testEnv struct {
	ledger  *mocks.Ledger
	txm     *mocks.FakeTxManager
	users   *mocks.FakeUserRepository
	txs     *mocks.FakeTransactionRepository
	orders  *mocks.FakeOrderRepository
	tags    *mocks.FakeTagRepository
	agents  *mocks.FakeAgentRepository
	ledgerR *mocks.FakeLedgerRepository
	retrier *mocks.FakeRetrier
	clock   *clock.Fixed
	metrics *metrics.Metrics

	payments  *usecase.PaymentUseCase
	balances  *usecase.BalanceUseCase
	orderUC   *usecase.OrderUseCase
	scheduler *usecase.SchedulerUseCase
	checker   *usecase.CheckerUseCase
	userUC    *usecase.UserUseCase
	tagUC     *usecase.TagUseCase
}

func newTestEnv(t *testing.T, cache usecase.BalanceCache) *testEnv {
	t.Helper()

	l := mocks.NewLedger()
	e := &testEnv{
		ledger:  l,
		txm:     mocks.NewFakeTxManager(l),
		users:   mocks.NewFakeUserRepository(l),
		txs:     mocks.NewFakeTransactionRepository(l),
		orders:  mocks.NewFakeOrderRepository(l),
		tags:    mocks.NewFakeTagRepository(l),
		agents:  mocks.NewFakeAgentRepository(l),
		ledgerR: mocks.NewFakeLedgerRepository(l),
		retrier: &mocks.FakeRetrier{},
		clock:   clock.NewFixed(epoch),
		metrics: metrics.New(prometheus.NewRegistry()),
	}

	logger := zerolog.Nop()

	e.payments = usecase.NewPaymentUseCase(e.txm, e.users, e.txs, e.tags, e.agents, e.retrier, cache, e.clock, e.metrics, logger)
	e.balances = usecase.NewBalanceUseCase(e.users, e.ledgerR, cache, e.metrics, logger)
	e.orderUC = usecase.NewOrderUseCase(e.txm, e.orders, e.users, e.txs, e.clock, logger)
	e.scheduler = e.newScheduler(cache)
	e.checker = usecase.NewCheckerUseCase(e.txm, e.users, e.txs, e.orders, e.ledgerR, cache, e.clock, e.metrics, logger)
	e.userUC = usecase.NewUserUseCase(e.users, e.clock)
	e.tagUC = usecase.NewTagUseCase(e.txm, e.tags, e.agents, e.clock)

	l.AddUser(usecase.DefaultSystemUser)

	return e
}

func (e *testEnv) newScheduler(cache usecase.BalanceCache) *usecase.SchedulerUseCase {
	return usecase.NewSchedulerUseCase(
		usecase.SchedulerConfig{},
		e.txm, e.orders, e.payments, e.retrier, cache, e.clock,
		&mocks.SequenceIDGenerator{}, e.metrics, zerolog.Nop(),
	)
}

func (e *testEnv) addUsers(names ...string) map[string]*domain.User {
	out := make(map[string]*domain.User, len(names))
	for _, name := range names {
		out[name] = e.ledger.AddUser(name)
	}

	return out
}

func (e *testEnv) balanceOf(t *testing.T, name string) decimal.Decimal {
	t.Helper()

	b, err := e.balances.Balance(t.Context(), name)
	if err != nil {
		t.Fatalf("balance of %s: %v", name, err)
	}

	return b
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T {
	return &v
}

// Package testutil provides PostgreSQL fixtures for the integration tests.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/iho/mpay/internal/adapter/repository/postgres"
	"github.com/iho/mpay/internal/domain"
	"github.com/iho/mpay/internal/infrastructure/clock"
	"github.com/iho/mpay/internal/infrastructure/metrics"
	pg "github.com/iho/mpay/internal/infrastructure/postgres"
	"github.com/iho/mpay/internal/usecase"
)

// Epoch is the frozen "now" of every Env.
var Epoch = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

// TestDB provides a migrated database connection.
type TestDB struct {
	Pool *pgxpool.Pool
	URL  string
	t    *testing.T
}

// NewTestDB connects to DATABASE_URL and applies migrations. The test is
// skipped with -short or when DATABASE_URL is not set.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	if err := pg.NewMigrator(dbURL, zerolog.Nop()).Up(); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPool(ctx, pg.PoolConfig{DatabaseURL: dbURL, MaxConns: 20})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	db := &TestDB{Pool: pool, URL: dbURL, t: t}
	t.Cleanup(db.Cleanup)

	return db
}

// Cleanup closes the database connection.
func (db *TestDB) Cleanup() {
	db.Pool.Close()
}

// TruncateAll removes all data and seeds the system user again.
// TRUNCATE does not fire the row triggers that keep transactions append-only.
func (db *TestDB) TruncateAll(ctx context.Context) {
	db.t.Helper()

	_, err := db.Pool.Exec(ctx, `
		TRUNCATE TABLE transaction_tags, transactions, standing_orders, tags, agents, users RESTART IDENTITY CASCADE;
		INSERT INTO users (name) VALUES ('system');
	`)
	if err != nil {
		db.t.Fatalf("failed to truncate tables: %v", err)
	}
}

// Env wires every use case over the test database.
type Env struct {
	Clock     *clock.Fixed
	Metrics   *metrics.Metrics
	TxManager *postgres.TxManager
	Users     *usecase.UserUseCase
	Payments  *usecase.PaymentUseCase
	Balances  *usecase.BalanceUseCase
	Orders    *usecase.OrderUseCase
	Scheduler *usecase.SchedulerUseCase
	Checker   *usecase.CheckerUseCase
	Tags      *usecase.TagUseCase
}

// NewEnv builds use cases with a clock frozen at Epoch.
func (db *TestDB) NewEnv() *Env {
	clk := clock.NewFixed(Epoch)
	m := metrics.New(prometheus.NewRegistry())
	log := zerolog.Nop()

	txManager := postgres.NewTxManager(db.Pool, 2*time.Second)
	userRepo := postgres.NewUserRepository(db.Pool)
	txRepo := postgres.NewTransactionRepository(db.Pool)
	orderRepo := postgres.NewOrderRepository(db.Pool)
	tagRepo := postgres.NewTagRepository(db.Pool)
	agentRepo := postgres.NewAgentRepository(db.Pool)
	ledgerRepo := postgres.NewLedgerRepository(db.Pool)
	retrier := postgres.NewRetrier(log, m)

	payments := usecase.NewPaymentUseCase(txManager, userRepo, txRepo, tagRepo, agentRepo, retrier, nil, clk, m, log)

	return &Env{
		Clock:     clk,
		Metrics:   m,
		TxManager: txManager,
		Users:     usecase.NewUserUseCase(userRepo, clk),
		Payments:  payments,
		Balances:  usecase.NewBalanceUseCase(userRepo, ledgerRepo, nil, m, log),
		Orders:    usecase.NewOrderUseCase(txManager, orderRepo, userRepo, txRepo, clk, log),
		Scheduler: usecase.NewSchedulerUseCase(
			usecase.SchedulerConfig{}, txManager, orderRepo, payments, retrier, nil, clk,
			postgres.NewRunIDGenerator(clk), m, log,
		),
		Checker: usecase.NewCheckerUseCase(txManager, userRepo, txRepo, orderRepo, ledgerRepo, nil, clk, m, log),
		Tags:    usecase.NewTagUseCase(txManager, tagRepo, agentRepo, clk),
	}
}

// CreateUsers creates users by name.
func (e *Env) CreateUsers(t *testing.T, names ...string) map[string]*domain.User {
	t.Helper()

	out := make(map[string]*domain.User, len(names))
	for _, name := range names {
		u, err := e.Users.CreateUser(context.Background(), name)
		if err != nil {
			t.Fatalf("failed to create user %s: %v", name, err)
		}
		out[name] = u
	}

	return out
}

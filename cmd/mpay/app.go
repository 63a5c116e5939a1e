package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	postgresRepo "github.com/iho/mpay/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/mpay/internal/adapter/repository/redis"
	"github.com/iho/mpay/internal/infrastructure/clock"
	"github.com/iho/mpay/internal/infrastructure/config"
	"github.com/iho/mpay/internal/infrastructure/postgres"
	"github.com/iho/mpay/internal/infrastructure/redis"
	"github.com/iho/mpay/internal/usecase"
)

// app bundles the use cases behind the commands.
type app struct {
	users     *usecase.UserUseCase
	payments  *usecase.PaymentUseCase
	balances  *usecase.BalanceUseCase
	orders    *usecase.OrderUseCase
	scheduler *usecase.SchedulerUseCase
	checker   *usecase.CheckerUseCase
	tags      *usecase.TagUseCase

	close func()
}

// repositories is the storage an app is built on.
type repositories struct {
	txManager usecase.TransactionManager
	users     usecase.UserRepository
	txs       usecase.TransactionRepository
	orders    usecase.OrderRepository
	tags      usecase.TagRepository
	agents    usecase.AgentRepository
	ledger    usecase.LedgerRepository
	retrier   usecase.Retrier
	cache     usecase.BalanceCache
	idGen     usecase.IDGenerator
	clock     usecase.Clock
}

func newApp(cfg *config.Config, repos repositories, log zerolog.Logger) *app {
	payments := usecase.NewPaymentUseCase(
		repos.txManager, repos.users, repos.txs, repos.tags, repos.agents,
		repos.retrier, repos.cache, repos.clock, nil, log,
	)

	return &app{
		users:    usecase.NewUserUseCase(repos.users, repos.clock),
		payments: payments,
		balances: usecase.NewBalanceUseCase(repos.users, repos.ledger, repos.cache, nil, log),
		orders:   usecase.NewOrderUseCase(repos.txManager, repos.orders, repos.users, repos.txs, repos.clock, log),
		scheduler: usecase.NewSchedulerUseCase(
			usecase.SchedulerConfig{Agent: cfg.SchedulerAgent, SystemUser: cfg.SystemUser, BatchSize: cfg.SchedulerBatch},
			repos.txManager, repos.orders, payments, repos.retrier, repos.cache, repos.clock,
			repos.idGen, nil, log,
		),
		checker: usecase.NewCheckerUseCase(
			repos.txManager, repos.users, repos.txs, repos.orders, repos.ledger,
			repos.cache, repos.clock, nil, log,
		),
		tags: usecase.NewTagUseCase(repos.txManager, repos.tags, repos.agents, repos.clock),
	}
}

// openApp connects to PostgreSQL and, when configured, Redis.
func openApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	clk := clock.System{}
	repos := repositories{
		txManager: postgresRepo.NewTxManager(pool, cfg.LockTimeout),
		users:     postgresRepo.NewUserRepository(pool),
		txs:       postgresRepo.NewTransactionRepository(pool),
		orders:    postgresRepo.NewOrderRepository(pool),
		tags:      postgresRepo.NewTagRepository(pool),
		agents:    postgresRepo.NewAgentRepository(pool),
		ledger:    postgresRepo.NewLedgerRepository(pool),
		retrier:   postgresRepo.NewRetrier(log, nil),
		idGen:     postgresRepo.NewRunIDGenerator(clk),
		clock:     clk,
	}

	closers := []func(){pool.Close}

	client, err := redis.NewClient(ctx, cfg.RedisURL)
	switch {
	case errors.Is(err, redis.ErrDisabled):
	case err != nil:
		// The cache only serves reporting, so the ledger stays usable.
		log.Warn().Err(err).Msg("redis unavailable, balances are read from postgres")
	default:
		repos.cache = redisRepo.NewBalanceCache(client, cfg.CacheTTL)
		closers = append(closers, func() { _ = client.Close() })
	}

	a := newApp(cfg, repos, log)
	a.close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	return a, nil
}

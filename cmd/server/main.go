package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/mpay/internal/adapter/http"
	"github.com/iho/mpay/internal/adapter/http/handler"
	"github.com/iho/mpay/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/mpay/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/mpay/internal/adapter/repository/redis"
	"github.com/iho/mpay/internal/infrastructure/clock"
	"github.com/iho/mpay/internal/infrastructure/config"
	"github.com/iho/mpay/internal/infrastructure/logger"
	"github.com/iho/mpay/internal/infrastructure/metrics"
	"github.com/iho/mpay/internal/infrastructure/postgres"
	"github.com/iho/mpay/internal/infrastructure/redis"
	"github.com/iho/mpay/internal/infrastructure/worker"
	"github.com/iho/mpay/internal/usecase"
)

func main() {
	cfg, err := config.LoadFile(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if cfg.MigrateOnStart {
		if err := postgres.NewMigrator(cfg.DatabaseURL, log).Up(); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// Connect to PostgreSQL
	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	// Connect to Redis; the cache and idempotency keys are optional
	var (
		cache            usecase.BalanceCache
		idempotencyStore usecase.IdempotencyStore
		redisPinger      handler.Pinger
	)

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	switch {
	case errors.Is(err, redis.ErrDisabled):
		log.Info().Msg("redis disabled")
	case err != nil:
		return fmt.Errorf("connect to redis: %w", err)
	default:
		defer redisClient.Close()
		log.Info().Msg("connected to redis")

		cache = redisRepo.NewBalanceCache(redisClient, cfg.CacheTTL)
		idempotencyStore = redisRepo.NewIdempotencyStore(redisClient)
		redisPinger = redisPing(redisClient)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	clk := clock.System{}

	// Initialize repositories
	txManager := postgresRepo.NewTxManager(pool, cfg.LockTimeout)
	userRepo := postgresRepo.NewUserRepository(pool)
	txRepo := postgresRepo.NewTransactionRepository(pool)
	orderRepo := postgresRepo.NewOrderRepository(pool)
	tagRepo := postgresRepo.NewTagRepository(pool)
	agentRepo := postgresRepo.NewAgentRepository(pool)
	ledgerRepo := postgresRepo.NewLedgerRepository(pool)
	retrier := postgresRepo.NewRetrier(log, m)

	// Initialize use cases
	paymentUC := usecase.NewPaymentUseCase(txManager, userRepo, txRepo, tagRepo, agentRepo, retrier, cache, clk, m, log)
	balanceUC := usecase.NewBalanceUseCase(userRepo, ledgerRepo, cache, m, log)
	orderUC := usecase.NewOrderUseCase(txManager, orderRepo, userRepo, txRepo, clk, log)
	schedulerUC := usecase.NewSchedulerUseCase(
		usecase.SchedulerConfig{Agent: cfg.SchedulerAgent, SystemUser: cfg.SystemUser, BatchSize: cfg.SchedulerBatch},
		txManager, orderRepo, paymentUC, retrier, cache, clk,
		postgresRepo.NewRunIDGenerator(clk), m, log,
	)
	checkerUC := usecase.NewCheckerUseCase(txManager, userRepo, txRepo, orderRepo, ledgerRepo, cache, clk, m, log)
	userUC := usecase.NewUserUseCase(userRepo, clk)
	tagUC := usecase.NewTagUseCase(txManager, tagRepo, agentRepo, clk)

	rateLimiter := newRateLimiter(cfg)
	if rateLimiter != nil {
		go sweepRateLimiter(ctx, rateLimiter)
	}

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		UserHandler:      handler.NewUserHandler(userUC, balanceUC, paymentUC),
		PaymentHandler:   handler.NewPaymentHandler(paymentUC),
		BalanceHandler:   handler.NewBalanceHandler(balanceUC),
		OrderHandler:     handler.NewOrderHandler(orderUC, schedulerUC),
		LedgerHandler:    handler.NewLedgerHandler(checkerUC),
		TagHandler:       handler.NewTagHandler(tagUC),
		HealthHandler:    handler.NewHealthHandler(pool, redisPinger),
		IdempotencyStore: idempotencyStore,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		Metrics:          m,
		MetricsHandler:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		RateLimiter:      rateLimiter,
		Logger:           log,
	})

	server := &http.Server{
		Addr:         serverAddr(cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	if cfg.SchedulerEnabled {
		scheduler := worker.NewScheduler(worker.Config{
			Runner:   schedulerUC,
			Logger:   log,
			Interval: cfg.SchedulerInterval,
		})

		go func() {
			if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("scheduler stopped")
			}
		}()
	}

	errCh := make(chan error, 1)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info().Msg("server stopped")

	return nil
}

func serverAddr(port string) string {
	return fmt.Sprintf(":%s", port)
}

// newRateLimiter returns nil when rate limiting is switched off.
func newRateLimiter(cfg *config.Config) *middleware.RateLimiter {
	if cfg.RateLimitRPS <= 0 {
		return nil
	}

	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	return middleware.NewRateLimiter(cfg.RateLimitRPS, burst)
}

func redisPing(client *goredis.Client) handler.PingFunc {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// sweepInterval is how often idle rate limiter entries are dropped.
const sweepInterval = 10 * time.Minute

func sweepRateLimiter(ctx context.Context, rl *middleware.RateLimiter) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Cleanup(sweepInterval)
		}
	}
}

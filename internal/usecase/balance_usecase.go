package usecase

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/mpay/internal/domain"
	"github.com/iho/mpay/internal/infrastructure/metrics"
)

// BalanceUseCase derives balances from the transaction log.
type BalanceUseCase struct {
	userRepo   UserRepository
	ledgerRepo LedgerRepository
	cache      BalanceCache
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewBalanceUseCase creates a new BalanceUseCase. cache and m are optional.
func NewBalanceUseCase(userRepo UserRepository, ledgerRepo LedgerRepository, cache BalanceCache, m *metrics.Metrics, logger zerolog.Logger) *BalanceUseCase {
	return &BalanceUseCase{
		userRepo:   userRepo,
		ledgerRepo: ledgerRepo,
		cache:      cache,
		metrics:    m,
		logger:     logger.With().Str("component", "balances").Logger(),
	}
}

// Balance returns the signed sum of all transactions touching the user.
func (uc *BalanceUseCase) Balance(ctx context.Context, userName string) (decimal.Decimal, error) {
	user, err := lookupUser(ctx, uc.userRepo, nil, userName, false)
	if err != nil {
		return decimal.Zero, err
	}

	return uc.ledgerRepo.Balance(ctx, nil, user.ID)
}

// Balances returns the balance of every user in one aggregate query.
func (uc *BalanceUseCase) Balances(ctx context.Context) ([]domain.UserBalance, error) {
	return uc.ledgerRepo.Balances(ctx, nil)
}

// CachedBalance reads a balance through the reporting cache. Without a
// cache it is the same as Balance.
func (uc *BalanceUseCase) CachedBalance(ctx context.Context, userName string) (decimal.Decimal, error) {
	user, err := lookupUser(ctx, uc.userRepo, nil, userName, false)
	if err != nil {
		return decimal.Zero, err
	}

	return uc.cached(ctx, user.ID)
}

// CachedBalances reads every user's balance through the reporting cache.
func (uc *BalanceUseCase) CachedBalances(ctx context.Context) ([]domain.UserBalance, error) {
	if uc.cache == nil {
		return uc.Balances(ctx)
	}

	users, err := uc.userRepo.List(ctx, nil)
	if err != nil {
		return nil, err
	}

	balances := make([]domain.UserBalance, 0, len(users))

	for _, user := range users {
		balance, err := uc.cached(ctx, user.ID)
		if err != nil {
			return nil, err
		}

		balances = append(balances, domain.UserBalance{UserID: user.ID, Name: user.Name, Balance: balance})
	}

	return balances, nil
}

func (uc *BalanceUseCase) cached(ctx context.Context, userID int64) (decimal.Decimal, error) {
	if uc.cache == nil {
		return uc.ledgerRepo.Balance(ctx, nil, userID)
	}

	balance, ok, err := uc.cache.Get(ctx, userID)
	if err != nil {
		uc.logger.Warn().Err(err).Int64("user_id", userID).Msg("balance cache read failed")
	}

	if err == nil && ok {
		if uc.metrics != nil {
			uc.metrics.CacheHits.Inc()
		}

		return balance, nil
	}

	if uc.metrics != nil {
		uc.metrics.CacheMisses.Inc()
	}

	version, versionErr := uc.cache.Version(ctx, userID)
	if versionErr != nil {
		uc.logger.Warn().Err(versionErr).Int64("user_id", userID).Msg("balance cache version read failed")
	}

	balance, err = uc.ledgerRepo.Balance(ctx, nil, userID)
	if err != nil {
		return decimal.Zero, err
	}

	if versionErr != nil {
		return balance, nil
	}

	if _, err := uc.cache.Set(ctx, userID, balance, version); err != nil {
		uc.logger.Warn().Err(err).Int64("user_id", userID).Msg("balance cache write failed")
	}

	return balance, nil
}

package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// setIfVersion writes KEYS[2] only while the counter at KEYS[1] (missing
// counts as 0) equals ARGV[1]. ARGV[3] is the TTL in milliseconds, 0 for none.
var setIfVersion = redis.NewScript(`
local current = redis.call('GET', KEYS[1]) or '0'
if current ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`)

// BalanceCache implements usecase.BalanceCache using Redis. Each user
// balance lives under its own key with a TTL, next to a version counter
// that Invalidate increments.
type BalanceCache struct {
	client        redis.UniversalClient
	prefix        string
	versionPrefix string
	ttl           time.Duration
}

// NewBalanceCache creates a new BalanceCache.
func NewBalanceCache(client redis.UniversalClient, ttl time.Duration) *BalanceCache {
	return &BalanceCache{
		client:        client,
		prefix:        "mpay:balance:",
		versionPrefix: "mpay:balance-version:",
		ttl:           ttl,
	}
}

func (c *BalanceCache) key(userID int64) string {
	return c.prefix + strconv.FormatInt(userID, 10)
}

func (c *BalanceCache) versionKey(userID int64) string {
	return c.versionPrefix + strconv.FormatInt(userID, 10)
}

// Get returns the cached balance of a user. The second result is false on
// a miss.
func (c *BalanceCache) Get(ctx context.Context, userID int64) (decimal.Decimal, bool, error) {
	val, err := c.client.Get(ctx, c.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}

	if err != nil {
		return decimal.Zero, false, err
	}

	balance, err := decimal.NewFromString(val)
	if err != nil {
		// Unreadable entries count as misses and are dropped.
		_ = c.client.Del(ctx, c.key(userID)).Err()
		return decimal.Zero, false, nil
	}

	return balance, true, nil
}

// Version returns the invalidation counter of a user, 0 if never invalidated.
func (c *BalanceCache) Version(ctx context.Context, userID int64) (int64, error) {
	version, err := c.client.Get(ctx, c.versionKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}

	return version, err
}

// Set stores a balance with the configured TTL unless the user was
// invalidated since version was read.
func (c *BalanceCache) Set(ctx context.Context, userID int64, balance decimal.Decimal, version int64) (bool, error) {
	stored, err := setIfVersion.Run(ctx, c.client,
		[]string{c.versionKey(userID), c.key(userID)},
		strconv.FormatInt(version, 10), balance.String(), c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}

	return stored == 1, nil
}

// Invalidate removes the cached balances of the given users and bumps their
// versions in one transaction.
func (c *BalanceCache) Invalidate(ctx context.Context, userIDs ...int64) error {
	if len(userIDs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, c.key(id))
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range userIDs {
			pipe.Incr(ctx, c.versionKey(id))
		}

		pipe.Del(ctx, keys...)

		return nil
	})

	return err
}

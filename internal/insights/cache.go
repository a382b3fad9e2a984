package insights

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/finance-tracker/internal/model"
	"github.com/nimasrn/finance-tracker/pkg/redis"
)

const cacheKeyPrefix = "insights:"

// Cache stores generated insight text per strategy and month.
type Cache struct {
	redis redis.RedisAdapter
	ttl   time.Duration
}

func NewCache(r redis.RedisAdapter, ttl time.Duration) *Cache {
	return &Cache{redis: r, ttl: ttl}
}

func CacheKey(strategy string, month model.Month) string {
	return cacheKeyPrefix + strategy + ":" + month.String()
}

func (c *Cache) Get(ctx context.Context, strategy string, month model.Month) (string, bool, error) {
	b, err := c.redis.Get(ctx, CacheKey(strategy, month))
	if errors.Is(err, redis.NilError) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

// Set stores text unless it is a fallback, which would otherwise hide a
// recovered text generation service until the entry expires.
func (c *Cache) Set(ctx context.Context, strategy string, month model.Month, text string) error {
	if IsFallback(text) {
		return nil
	}
	return c.redis.Set(ctx, CacheKey(strategy, month), []byte(text), c.ttl)
}

// Invalidate drops the cached text of every strategy for the given months.
func (c *Cache) Invalidate(ctx context.Context, months ...model.Month) error {
	keys := make([]string, 0, len(months)*2)
	for _, m := range months {
		keys = append(keys, CacheKey(StrategyRuleBased, m), CacheKey(StrategyGenerative, m))
	}
	return c.redis.Del(ctx, keys...)
}

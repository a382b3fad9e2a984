package insights

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/finance-tracker/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)
	return NewCache(adapter, ttl), mr
}

func TestCache(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t, time.Minute)
	march := month("2024-03")

	t.Run("miss", func(t *testing.T) {
		_, ok, err := c.Get(ctx, StrategyRuleBased, march)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set and get with ttl", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, StrategyRuleBased, march, "cached text"))

		text, ok, err := c.Get(ctx, StrategyRuleBased, march)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "cached text", text)
		assert.Equal(t, time.Minute, mr.TTL("insights:rule:2024-03"))

		mr.FastForward(2 * time.Minute)
		_, ok, err = c.Get(ctx, StrategyRuleBased, march)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("fallback text is not stored", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, StrategyGenerative, march, FallbackPrefix+"whatever"))
		assert.False(t, mr.Exists("insights:llm:2024-03"))
	})

	t.Run("invalidate drops every strategy", func(t *testing.T) {
		april := month("2024-04")
		require.NoError(t, c.Set(ctx, StrategyRuleBased, march, "a"))
		require.NoError(t, c.Set(ctx, StrategyGenerative, april, "b"))
		require.NoError(t, c.Set(ctx, StrategyRuleBased, month("2024-05"), "c"))

		require.NoError(t, c.Invalidate(ctx, march, april))

		assert.False(t, mr.Exists("insights:rule:2024-03"))
		assert.False(t, mr.Exists("insights:llm:2024-04"))
		assert.True(t, mr.Exists("insights:rule:2024-05"))
	})
}

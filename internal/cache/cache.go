package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

func ConnectRedis(addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}

// OddsCache holds rendered market views for display reads. Entries are
// deleted whenever the engine commits a write to the market, so readers see
// at worst a briefly stale pool, never a wrong one for long.
type OddsCache struct {
	r *redis.Client
}

func NewOddsCache(r *redis.Client) *OddsCache {
	return &OddsCache{r: r}
}

func keyMarket(marketID string) string { return "market:odds:" + marketID }

func (c *OddsCache) GetMarket(ctx context.Context, marketID string, dst any) (bool, error) {
	b, err := c.r.Get(ctx, keyMarket(marketID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *OddsCache) SetMarket(ctx context.Context, marketID string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.r.Set(ctx, keyMarket(marketID), b, ttl).Err()
}

func (c *OddsCache) Invalidate(ctx context.Context, marketID string) error {
	return c.r.Del(ctx, keyMarket(marketID)).Err()
}

// Package catalog puts a Redis read-through cache in front of product
// lookups made on every order placement.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/Quint4n4/MenuInteractivo/internal/kiosk"
	"github.com/Quint4n4/MenuInteractivo/internal/metrics"
)

const (
	PRODUCT_CACHE_PREFIX = "kiosk:catalog:product:"
	CACHE_TTL_SHORT      = 5 * time.Minute
)

func productKey(id int64) string {
	return fmt.Sprintf("%s%d", PRODUCT_CACHE_PREFIX, id)
}

type Cached struct {
	inner   kiosk.Catalog
	redis   *redis.Client
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

var _ kiosk.Catalog = (*Cached)(nil)

func NewCached(inner kiosk.Catalog, rdb *redis.Client, ttl time.Duration, logger *zap.Logger, m *metrics.Metrics) *Cached {
	if ttl <= 0 {
		ttl = CACHE_TTL_SHORT
	}
	return &Cached{inner: inner, redis: rdb, ttl: ttl, logger: logger, metrics: m}
}

// Products serves what it can from Redis and loads the rest from inner.
// Redis failures degrade to a direct lookup and never fail the call.
func (c *Cached) Products(ctx context.Context, ids []int64) (map[int64]kiosk.Product, error) {
	ids = kiosk.SortedUnique(ids)
	out := make(map[int64]kiosk.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}

	var missing []int64
	vals, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn("catalog cache read failed", zap.Error(err))
		missing = ids
	} else {
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				missing = append(missing, ids[i])
				continue
			}
			var p kiosk.Product
			if err := json.Unmarshal([]byte(s), &p); err != nil {
				missing = append(missing, ids[i])
				continue
			}
			out[ids[i]] = p
		}
	}
	c.count("hit", len(ids)-len(missing))
	c.count("miss", len(missing))

	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := c.inner.Products(ctx, missing)
	if err != nil {
		return nil, err
	}

	if len(loaded) == 0 {
		return out, nil
	}
	pipe := c.redis.Pipeline()
	for id, p := range loaded {
		out[id] = p
		body, err := json.Marshal(p)
		if err != nil {
			continue
		}
		pipe.Set(ctx, productKey(id), body, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("catalog cache write failed", zap.Error(err))
	}
	return out, nil
}

// Invalidate drops cached entries after a catalog or rating change.
func (c *Cached) Invalidate(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}
	return c.redis.Del(ctx, keys...).Err()
}

func (c *Cached) count(result string, n int) {
	if c.metrics == nil || n == 0 {
		return
	}
	c.metrics.CatalogCacheHits.WithLabelValues(result).Add(float64(n))
}

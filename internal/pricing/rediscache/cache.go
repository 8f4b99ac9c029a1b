// Package rediscache puts a Redis read-through cache in front of any
// [pricing.Lookup].
//
// Hits and misses are both cached for the configured TTL so that repeated
// lookups of unknown products do not reach the backing store. Redis is best
// effort: when it is unavailable, lookups go straight to the backing store.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrWong99/voxorder/internal/order"
	"github.com/MrWong99/voxorder/internal/pricing"
)

const (
	// DefaultTTL is used when New is given a non-positive TTL.
	DefaultTTL = 5 * time.Minute

	defaultPrefix = "voxorder:price:"

	// missing is stored for products the backing lookup does not know.
	missing = "-"
)

var _ pricing.Lookup = (*Cache)(nil)

// Option configures a [Cache].
type Option func(*Cache)

// WithPrefix sets the key prefix. Default: "voxorder:price:".
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// Cache is a read-through price cache. It is safe for concurrent use.
type Cache struct {
	client redis.Cmdable
	next   pricing.Lookup
	ttl    time.Duration
	prefix string
}

// New returns a Cache that stores results of next in client for ttl.
func New(client redis.Cmdable, next pricing.Lookup, ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		client: client,
		next:   next,
		ttl:    ttl,
		prefix: defaultPrefix,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Dial parses a redis:// URL, connects and verifies the connection.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("rediscache: parse url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("rediscache: ping: %w", err)
	}
	return client, nil
}

// Price implements [pricing.Lookup].
func (c *Cache) Price(ctx context.Context, key string) (float64, bool, error) {
	k := order.Key(key)

	raw, err := c.client.Get(ctx, c.prefix+k).Result()
	switch {
	case err == nil:
		if price, ok, derr := decode(raw); derr == nil {
			return price, ok, nil
		}
		slog.Warn("rediscache: discarding corrupt entry", "key", k, "value", raw)
	case errors.Is(err, redis.Nil):
	default:
		slog.Warn("rediscache: get failed, bypassing cache", "key", k, "err", err)
	}

	price, ok, err := c.next.Price(ctx, k)
	if err != nil {
		return 0, false, err
	}
	if serr := c.client.Set(ctx, c.prefix+k, encode(price, ok), c.ttl).Err(); serr != nil {
		slog.Warn("rediscache: set failed", "key", k, "err", serr)
	}
	return price, ok, nil
}

// Invalidate removes the cached entries for products.
func (c *Cache) Invalidate(ctx context.Context, products ...string) error {
	if len(products) == 0 {
		return nil
	}
	keys := make([]string, len(products))
	for i, p := range products {
		keys[i] = c.prefix + order.Key(p)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("rediscache: invalidate: %w", err)
	}
	return nil
}

func encode(price float64, ok bool) string {
	if !ok {
		return missing
	}
	return strconv.FormatFloat(price, 'f', -1, 64)
}

func decode(raw string) (float64, bool, error) {
	if raw == missing {
		return 0, false, nil
	}
	p, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, err
	}
	return p, true, nil
}

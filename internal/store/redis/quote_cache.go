// Package redis holds the redis-backed quote cache used by the price job
// to avoid re-querying the price API for tokens already quoted this hour.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const quoteTTL = 2 * time.Hour

type QuoteCache struct {
	client *redis.Client
}

func NewQuoteCache(url string) (*QuoteCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &QuoteCache{client: client}, nil
}

func (c *QuoteCache) Close() error {
	return c.client.Close()
}

func quoteKey(chain, token string, hour time.Time) string {
	return fmt.Sprintf("quote:%s:%s:%d", chain, token, hour.Unix())
}

// Get returns the cached USD quote for (chain, token, hour), or false when
// absent. Cache errors are reported so callers can fall through to the API.
func (c *QuoteCache) Get(ctx context.Context, chain, token string, hour time.Time) (float64, bool, error) {
	val, err := c.client.Get(ctx, quoteKey(chain, token, hour)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get quote: %w", err)
	}
	usd, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse cached quote %q: %w", val, err)
	}
	return usd, true, nil
}

func (c *QuoteCache) Set(ctx context.Context, chain, token string, hour time.Time, usd float64) error {
	err := c.client.Set(ctx, quoteKey(chain, token, hour),
		strconv.FormatFloat(usd, 'f', -1, 64), quoteTTL).Err()
	if err != nil {
		return fmt.Errorf("set quote: %w", err)
	}
	return nil
}

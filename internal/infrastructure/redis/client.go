package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pingTimeout = 5 * time.Second

	// The cache sits in front of the transaction store, so slow calls are
	// cut short and the resolver falls through to Postgres.
	cacheReadTimeout  = 500 * time.Millisecond
	cacheWriteTimeout = 500 * time.Millisecond
	cacheMaxRetries   = 1
)

// NewClient creates a client from a redis:// URL and verifies it with a ping.
// Timeouts not set in the URL default to short cache-friendly values.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	applyCacheDefaults(opts)

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis %s: %w", opts.Addr, err)
	}

	return client, nil
}

func applyCacheDefaults(opts *redis.Options) {
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cacheReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cacheWriteTimeout
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = cacheMaxRetries
	}
}

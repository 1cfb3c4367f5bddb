// Package redis owns the shared Redis connection for the gateway's
// token and lockout stores.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"sterihub/internal/platform/config"
)

// Client wraps go-redis so callers hold one place to close.
type Client struct {
	*redis.Client
}

// New connects using the configured URL and verifies the connection with a
// ping bounded by the dial timeout. A nil Client with nil error means Redis
// is not configured and callers should fall back to in-memory stores.
func New(ctx context.Context, cfg config.Redis) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{Client: client}, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.Client.Close()
}

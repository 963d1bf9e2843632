// Package redis connects the run guard's Redis backend.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"matchcore/internal/platform/config"
)

// New connects to cfg.URL and verifies the connection. It returns a nil
// client when no URL is configured.
func New(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	applyPool(opts, cfg)

	client := redis.NewClient(opts)
	if err := Health(ctx, client); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// applyPool overrides URL defaults with explicitly configured values.
func applyPool(opts *redis.Options, cfg config.RedisConfig) {
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
}

// Health pings the server.
func Health(ctx context.Context, client redis.UniversalClient) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

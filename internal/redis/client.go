package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/cassiomorais/switchboard/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewClient connects to Redis with a bounded retry loop.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	var err error
	for i := 0; i < cfg.ConnectRetries; i++ {
		if err = client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.ConnectRetryDelay):
		}
	}
	return nil, fmt.Errorf("connect to redis after %d retries: %w", cfg.ConnectRetries, err)
}

package database

import (
	"context"
	"time"

	"inmopresence/config"

	"github.com/redis/go-redis/v9"
)

// NewRedis connects to redis for the cross-instance presence relay.
// Returns nil when no address is configured; callers treat a nil client
// as "relay disabled".
func NewRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/costura/pkg/cache"
)

// NewCache connects to Redis when redisURL is set and disables caching otherwise.
func NewCache(ctx context.Context, logger *slog.Logger, redisURL string, ttl time.Duration) cache.Cache {
	if redisURL == "" {
		logger.InfoContext(ctx, "Calculation cache disabled")

		return cache.Noop{}
	}

	c, err := cache.NewRedisCache(ctx, redisURL, ttl)
	if err != nil {
		panic(fmt.Errorf("failed to connect to redis: %w", err))
	}

	return c
}

package ratelimit

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/tech-arch1tect/newsdesk/config"
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewStore builds the configured backend. The returned closer releases the Redis
// connection or stops the in-memory sweep.
func NewStore(cfg *config.RateLimitConfig) (Store, func() error, error) {
	switch cfg.Store {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return NewRedisStore(client, cfg.KeyPrefix), client.Close, nil
	case "memory", "":
		store := NewMemoryStore()
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported rate limit store: %s", cfg.Store)
	}
}

func ProvideRateLimitStore(lc fx.Lifecycle, cfg *config.Config, logger *logging.Service) (Store, error) {
	store, closer, err := NewStore(&cfg.RateLimit)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if rs, ok := store.(*RedisStore); ok {
				if err := rs.client.Ping(ctx).Err(); err != nil {
					logger.Warn("rate limit redis unreachable", zap.String("addr", cfg.RateLimit.RedisAddr), zap.Error(err))
				}
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return closer()
		},
	})

	logger.Info("rate limit store configured", zap.String("store", cfg.RateLimit.Store))
	return store, nil
}

var Module = fx.Options(
	fx.Provide(ProvideRateLimitStore),
)

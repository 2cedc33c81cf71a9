package revocation

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/tech-arch1tect/newsdesk/config"
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func NewStore(cfg *config.RevocationConfig, db *gorm.DB) (Store, error) {
	switch cfg.Store {
	case "database", "":
		if db == nil {
			return nil, fmt.Errorf("revocation store %q requires a database", cfg.Store)
		}
		return NewGormStore(db), nil
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return NewRedisStore(client, cfg.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unsupported revocation store: %s", cfg.Store)
	}
}

// ProvideRevocationService returns nil when revocation is disabled; consumers treat a
// nil service as "nothing is revoked".
func ProvideRevocationService(lc fx.Lifecycle, cfg *config.Config, db *gorm.DB, logger *logging.Service) (*Service, error) {
	logger = logger.Named("revocation")
	if !cfg.Revocation.Enabled {
		logger.Info("token revocation disabled")
		return nil, nil
	}

	store, err := NewStore(&cfg.Revocation, db)
	if err != nil {
		return nil, err
	}

	if rs, ok := store.(*RedisStore); ok {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := rs.Ping(ctx); err != nil {
					logger.Warn("revocation redis unreachable", zap.String("addr", cfg.Revocation.RedisAddr), zap.Error(err))
				}
				return nil
			},
			OnStop: func(context.Context) error {
				return rs.Close()
			},
		})
	}

	logger.Info("token revocation configured", zap.String("store", cfg.Revocation.Store))
	return NewService(store, logger), nil
}

var Options = fx.Options(
	fx.Provide(ProvideRevocationService),
)

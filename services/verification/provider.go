package verification

import (
	"fmt"

	"github.com/tech-arch1tect/newsdesk/config"
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func NewStore(cfg *config.Config, db *gorm.DB) (Store, error) {
	switch cfg.Verification.Store {
	case "database":
		if db == nil {
			return nil, fmt.Errorf("verification store %q requires a database", cfg.Verification.Store)
		}
		return NewGormStore(db), nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported verification store: %s", cfg.Verification.Store)
	}
}

func ProvideVerificationService(cfg *config.Config, db *gorm.DB, sender Sender, logger *logging.Service) (*Service, error) {
	store, err := NewStore(cfg, db)
	if err != nil {
		return nil, err
	}

	logger = logger.Named("verification")
	logger.Info("verification service configured",
		zap.String("store", cfg.Verification.Store),
		zap.Duration("code_expiry", cfg.Verification.CodeExpiry),
		zap.Duration("cooldown", cfg.Verification.Cooldown),
		zap.Int("max_attempts", cfg.Verification.MaxAttempts))

	return NewService(store, sender, cfg.Verification, logger), nil
}

type OptionalObserver struct {
	fx.In
	Observer Observer `optional:"true"`
}

func WireObserver(svc *Service, opt OptionalObserver) {
	if svc != nil && opt.Observer != nil {
		svc.SetObserver(opt.Observer)
	}
}

var Options = fx.Options(
	fx.Provide(ProvideVerificationService),
	fx.Invoke(WireObserver),
)

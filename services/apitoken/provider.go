package apitoken

import (
	"github.com/tech-arch1tect/newsdesk/config"
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideAPITokenService(db *gorm.DB, cfg *config.Config, owners OwnerLookup, logger *logging.Service) *Service {
	return NewService(db, cfg, owners, logger.Named("apitoken"))
}

var Options = fx.Options(
	fx.Provide(ProvideAPITokenService),
)

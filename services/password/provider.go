package password

import (
	"github.com/tech-arch1tect/newsdesk/config"
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"go.uber.org/fx"
)

func ProvidePasswordService(cfg *config.Config, logger *logging.Service) *Service {
	return NewService(cfg.Auth.BcryptCost, logger.Named("password"))
}

var Module = fx.Options(
	fx.Provide(ProvidePasswordService),
)

package user

import (
	"github.com/tech-arch1tect/newsdesk/config"
	"github.com/tech-arch1tect/newsdesk/services/apitoken"
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"github.com/tech-arch1tect/newsdesk/services/password"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideUserService(db *gorm.DB, passwords *password.Service, cfg *config.Config, logger *logging.Service) *Service {
	return NewService(db, passwords, cfg, logger.Named("user"))
}

var Options = fx.Options(
	fx.Provide(
		ProvideUserService,
		fx.Annotate(
			func(s *Service) *Service { return s },
			fx.As(new(apitoken.OwnerLookup)),
		),
	),
)

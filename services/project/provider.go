package project

import (
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideProjectService(db *gorm.DB, logger *logging.Service) *Service {
	return NewService(db, logger.Named("project"))
}

var Options = fx.Options(
	fx.Provide(ProvideProjectService),
)

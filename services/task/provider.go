package task

import (
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"github.com/tech-arch1tect/newsdesk/services/project"
	"github.com/tech-arch1tect/newsdesk/services/user"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideTaskService(db *gorm.DB, projects *project.Service, users *user.Service, logger *logging.Service) *Service {
	return NewService(db, projects, users, logger.Named("task"))
}

var Options = fx.Options(
	fx.Provide(ProvideTaskService),
)

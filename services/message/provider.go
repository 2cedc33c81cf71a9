package message

import (
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"github.com/tech-arch1tect/newsdesk/services/user"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideMessageService(db *gorm.DB, users *user.Service, logger *logging.Service) *Service {
	return NewService(db, users, logger.Named("message"))
}

var Options = fx.Options(
	fx.Provide(ProvideMessageService),
)

package api

import (
	"github.com/tech-arch1tect/newsdesk/config"
	"github.com/tech-arch1tect/newsdesk/middleware/auth"
	"github.com/tech-arch1tect/newsdesk/middleware/ratelimit"
	"github.com/tech-arch1tect/newsdesk/openapi"
	"github.com/tech-arch1tect/newsdesk/server"
	"github.com/tech-arch1tect/newsdesk/services/apitoken"
	"github.com/tech-arch1tect/newsdesk/services/jwt"
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"github.com/tech-arch1tect/newsdesk/services/message"
	"github.com/tech-arch1tect/newsdesk/services/project"
	"github.com/tech-arch1tect/newsdesk/services/revocation"
	"github.com/tech-arch1tect/newsdesk/services/task"
	"github.com/tech-arch1tect/newsdesk/services/user"
	"github.com/tech-arch1tect/newsdesk/services/verification"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Server            *server.Server
	Config            *config.Config
	Auth              auth.Config
	Users             *user.Service
	JWT               *jwt.Service
	APITokens         *apitoken.Service
	Verifications     *verification.Service
	Projects          *project.Service
	Tasks             *task.Service
	Messages          *message.Service
	Revocations       *revocation.Service `optional:"true"`
	RateLimit         ratelimit.Store
	RateLimitObserver ratelimit.Observer `optional:"true"`
	Logger            *logging.Service
}

func ProvideRoutes(p Params) *openapi.Document {
	docs := Register(p.Server, Deps{
		Config:            p.Config,
		Auth:              p.Auth,
		Users:             p.Users,
		JWT:               p.JWT,
		APITokens:         p.APITokens,
		Verifications:     p.Verifications,
		Projects:          p.Projects,
		Tasks:             p.Tasks,
		Messages:          p.Messages,
		Revocations:       p.Revocations,
		RateLimit:         p.RateLimit,
		RateLimitObserver: p.RateLimitObserver,
		Logger:            p.Logger,
	})
	p.Logger.Info("api routes registered", zap.Int("paths", docs.Spec().Paths.Len()))
	return docs
}

var Options = fx.Options(
	fx.Provide(ProvideRoutes),
	fx.Invoke(func(*openapi.Document) {}),
)

package auth

import (
	"github.com/tech-arch1tect/newsdesk/config"
	"github.com/tech-arch1tect/newsdesk/services/apitoken"
	"github.com/tech-arch1tect/newsdesk/services/jwt"
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"github.com/tech-arch1tect/newsdesk/services/revocation"
	"github.com/tech-arch1tect/newsdesk/services/user"
	"go.uber.org/fx"
)

type ConfigParams struct {
	fx.In

	Config    *config.Config
	JWT       *jwt.Service
	APITokens *apitoken.Service   `optional:"true"`
	Revoked   *revocation.Service `optional:"true"`
	Users     *user.Service       `optional:"true"`
	Observer  AttemptObserver     `optional:"true"`
	Logger    *logging.Service
}

func ProvideConfig(p ConfigParams) Config {
	cfg := Config{
		JWT:        p.JWT,
		CookieName: p.Config.Auth.CookieName,
		Observer:   p.Observer,
		Logger:     p.Logger.Named("auth"),
	}
	if p.APITokens != nil {
		cfg.APITokens = p.APITokens
	}
	if p.Revoked != nil {
		cfg.Revoked = p.Revoked
	}
	if p.Users != nil {
		cfg.Accounts = p.Users
	}
	return cfg
}

var Options = fx.Options(
	fx.Provide(ProvideConfig),
)

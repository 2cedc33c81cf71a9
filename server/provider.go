package server

import (
	"context"

	"github.com/tech-arch1tect/newsdesk/config"
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"go.uber.org/fx"
)

func ProvideServer(cfg *config.Config, logger *logging.Service) *Server {
	return New(cfg, logger.Named("http"))
}

func NewProvider() fx.Option {
	return fx.Options(
		fx.Provide(ProvideServer),
		fx.Invoke(func(lc fx.Lifecycle, srv *Server, cfg *config.Config) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go srv.Start()
					return nil
				},
				OnStop: func(ctx context.Context) error {
					if cfg.Server.ShutdownTimeout > 0 {
						var cancel context.CancelFunc
						ctx, cancel = context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
						defer cancel()
					}
					return srv.Shutdown(ctx)
				},
			})
		}),
	)
}

package metrics

import (
	"github.com/tech-arch1tect/newsdesk/config"
	"github.com/tech-arch1tect/newsdesk/middleware/auth"
	"github.com/tech-arch1tect/newsdesk/middleware/ratelimit"
	"github.com/tech-arch1tect/newsdesk/server"
	"github.com/tech-arch1tect/newsdesk/services/jobs"
	"github.com/tech-arch1tect/newsdesk/services/verification"
	"go.uber.org/fx"
)

func RegisterRoutes(srv *server.Server, m *Metrics, cfg *config.Config) {
	srv.Use(m.Middleware(cfg.Metrics.Path, "/health"))
	srv.Get(cfg.Metrics.Path, m.Handler())
}

// Options is only installed when metrics are enabled; the observers it exposes are
// optional everywhere they are consumed.
var Options = fx.Options(
	fx.Provide(
		NewDefaultMetrics,
		fx.Annotate(
			func(m *Metrics) *Metrics { return m },
			fx.As(new(auth.AttemptObserver)),
			fx.As(new(verification.Observer)),
			fx.As(new(jobs.Observer)),
			fx.As(new(ratelimit.Observer)),
		),
	),
	fx.Invoke(RegisterRoutes),
)

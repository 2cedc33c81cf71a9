package jobs

import (
	"context"

	"github.com/tech-arch1tect/newsdesk/config"
	"github.com/tech-arch1tect/newsdesk/services/apitoken"
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"github.com/tech-arch1tect/newsdesk/services/revocation"
	"github.com/tech-arch1tect/newsdesk/services/verification"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	APITokenCleanupJob     = "api_token_cleanup"
	VerificationCleanupJob = "verification_cleanup"
	RevocationCleanupJob   = "revocation_cleanup"
)

type SchedulerParams struct {
	fx.In

	Lifecycle     fx.Lifecycle
	Config        *config.Config
	APITokens     *apitoken.Service
	Verifications *verification.Service
	Revocations   *revocation.Service `optional:"true"`
	Observer      Observer            `optional:"true"`
	Logger        *logging.Service
}

func ProvideScheduler(p SchedulerParams) (*Scheduler, error) {
	logger := p.Logger.Named("jobs")
	scheduler := NewScheduler(logger)
	if p.Observer != nil {
		scheduler.SetObserver(p.Observer)
	}

	if err := scheduler.Register(Job{
		Name:     APITokenCleanupJob,
		Schedule: p.Config.APIToken.CleanupSchedule,
		Run:      p.APITokens.CleanupExpiredTokens,
	}); err != nil {
		return nil, err
	}
	if err := scheduler.Register(Job{
		Name:     VerificationCleanupJob,
		Schedule: p.Config.Verification.CleanupSchedule,
		Run:      p.Verifications.CleanupExpired,
	}); err != nil {
		return nil, err
	}
	if p.Revocations != nil {
		if err := scheduler.Register(Job{
			Name:     RevocationCleanupJob,
			Schedule: p.Config.Revocation.CleanupSchedule,
			Run:      p.Revocations.CleanupExpired,
		}); err != nil {
			return nil, err
		}
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			scheduler.Start()
			go func() {
				if err := scheduler.RunAll(context.Background()); err != nil {
					logger.Warn("startup cleanup failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: scheduler.Stop,
	})

	return scheduler, nil
}

var Options = fx.Options(
	fx.Provide(ProvideScheduler),
	fx.Invoke(func(*Scheduler) {}),
)

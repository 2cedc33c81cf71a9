package app

import (
	"fmt"

	"github.com/tech-arch1tect/newsdesk/api"
	"github.com/tech-arch1tect/newsdesk/config"
	"github.com/tech-arch1tect/newsdesk/database"
	"github.com/tech-arch1tect/newsdesk/middleware/auth"
	"github.com/tech-arch1tect/newsdesk/middleware/ratelimit"
	"github.com/tech-arch1tect/newsdesk/openapi"
	"github.com/tech-arch1tect/newsdesk/server"
	"github.com/tech-arch1tect/newsdesk/services/apitoken"
	"github.com/tech-arch1tect/newsdesk/services/jobs"
	"github.com/tech-arch1tect/newsdesk/services/jwt"
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"github.com/tech-arch1tect/newsdesk/services/mail"
	"github.com/tech-arch1tect/newsdesk/services/message"
	"github.com/tech-arch1tect/newsdesk/services/metrics"
	"github.com/tech-arch1tect/newsdesk/services/password"
	"github.com/tech-arch1tect/newsdesk/services/project"
	"github.com/tech-arch1tect/newsdesk/services/revocation"
	"github.com/tech-arch1tect/newsdesk/services/task"
	"github.com/tech-arch1tect/newsdesk/services/user"
	"github.com/tech-arch1tect/newsdesk/services/verification"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"gorm.io/gorm"
)

// Models lists every table the application migrates.
func Models() []any {
	return []any{
		&user.User{},
		&apitoken.APIToken{},
		&verification.Code{},
		&project.Project{},
		&task.Task{},
		&message.Conversation{},
		&message.Participant{},
		&message.Message{},
		&revocation.RevokedToken{},
	}
}

type AppBuilder struct {
	config    *config.Config
	models    []any
	fxOptions []fx.Option
	errors    []error
	noJobs    bool
}

func NewApp() *AppBuilder {
	return &AppBuilder{
		models:    make([]any, 0),
		fxOptions: make([]fx.Option, 0),
		errors:    make([]error, 0),
	}
}

func (b *AppBuilder) WithConfig(cfg *config.Config) *AppBuilder {
	if cfg == nil {
		b.addError("config cannot be nil")
		return b
	}
	b.config = cfg
	return b
}

func (b *AppBuilder) WithAutoConfig() *AppBuilder {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		b.addError(fmt.Sprintf("failed to load config: %v", err))
		return b
	}
	b.config = cfg
	return b
}

// WithModels migrates extra models alongside the built-in ones.
func (b *AppBuilder) WithModels(models ...any) *AppBuilder {
	b.models = append(b.models, models...)
	return b
}

// WithoutJobs skips the cleanup scheduler.
func (b *AppBuilder) WithoutJobs() *AppBuilder {
	b.noJobs = true
	return b
}

func (b *AppBuilder) WithFxOptions(opts ...fx.Option) *AppBuilder {
	b.fxOptions = append(b.fxOptions, opts...)
	return b
}

func (b *AppBuilder) Build() (*App, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	if b.config == nil {
		if err := b.WithAutoConfig().validate(); err != nil {
			return nil, err
		}
	}

	logger, err := b.createLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	app := &App{
		config: b.config,
		logger: logger,
	}

	options := b.buildFxOptions(logger)
	options = append(options, fx.Invoke(func(srv *server.Server, db *gorm.DB, docs *openapi.Document) {
		app.server = srv
		app.db = db
		app.docs = docs
	}))

	app.fx = fx.New(options...)
	if err := app.fx.Err(); err != nil {
		return nil, fmt.Errorf("failed to assemble application: %w", err)
	}
	return app, nil
}

func (b *AppBuilder) addError(msg string) {
	b.errors = append(b.errors, fmt.Errorf("%s", msg))
}

func (b *AppBuilder) validate() error {
	if len(b.errors) > 0 {
		return fmt.Errorf("configuration errors: %v", b.errors)
	}
	return nil
}

func (b *AppBuilder) createLogger() (*logging.Service, error) {
	if b.config == nil {
		return nil, fmt.Errorf("config required for logger creation")
	}

	return logging.NewService(logging.Config{
		Level:      logging.LogLevel(b.config.Log.Level),
		Format:     b.config.Log.Format,
		OutputPath: b.config.Log.Output,
	})
}

func (b *AppBuilder) buildFxOptions(logger *logging.Service) []fx.Option {
	options := []fx.Option{
		fx.Supply(b.config),
		fx.Supply(logger),
		fx.Supply(database.WithModels(append(Models(), b.models...)...)),
		fxLogger(b.config, logger),
		database.Module,
		password.Module,
		jwt.Options,
		user.Options,
		apitoken.Options,
		project.Options,
		task.Options,
		message.Options,
		senderOption(b.config),
		verification.Options,
		ratelimit.Module,
		revocation.Options,
		auth.Options,
		server.NewProvider(),
		api.Options,
	}

	if b.config.Metrics.Enabled {
		options = append(options, metrics.Options)
	}
	if !b.noJobs {
		options = append(options, jobs.Options)
	}

	return append(options, b.fxOptions...)
}

// senderOption delivers verification codes by SMTP when mail is enabled and to the log
// otherwise.
func senderOption(cfg *config.Config) fx.Option {
	if cfg.Mail.Enabled {
		return fx.Options(
			mail.Module,
			fx.Provide(fx.Annotate(
				func(m *mail.Service) *mail.Service { return m },
				fx.As(new(verification.Sender)),
			)),
		)
	}
	return fx.Provide(fx.Annotate(
		func(logger *logging.Service) *verification.LogSender {
			return verification.NewLogSender(logger.Named("verification"))
		},
		fx.As(new(verification.Sender)),
	))
}

func fxLogger(cfg *config.Config, logger *logging.Service) fx.Option {
	if cfg.Log.Level != string(logging.Debug) || logger.Logger() == nil {
		return fx.NopLogger
	}
	return fx.WithLogger(func() fxevent.Logger {
		return &fxevent.ZapLogger{Logger: logger.Named("fx").Logger()}
	})
}

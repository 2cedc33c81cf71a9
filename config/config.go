package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App          AppConfig          `envPrefix:"APP_"`
	Server       ServerConfig       `envPrefix:"SERVER_"`
	Log          LogConfig          `envPrefix:"LOG_"`
	Database     DatabaseConfig     `envPrefix:"DATABASE_"`
	Auth         AuthConfig         `envPrefix:"AUTH_"`
	JWT          JWTConfig          `envPrefix:"JWT_"`
	APIToken     APITokenConfig     `envPrefix:"API_TOKEN_"`
	Revocation   RevocationConfig   `envPrefix:"REVOCATION_"`
	CSRF         CSRFConfig         `envPrefix:"CSRF_"`
	Verification VerificationConfig `envPrefix:"VERIFICATION_"`
	Mail         MailConfig         `envPrefix:"MAIL_"`
	RateLimit    RateLimitConfig    `envPrefix:"RATE_LIMIT_"`
	Metrics      MetricsConfig      `envPrefix:"METRICS_"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"newsdesk"`
	URL  string `env:"URL" envDefault:"http://localhost:8080"`
	Env  string `env:"ENV" envDefault:"development"`
}

type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	Host            string        `env:"HOST" envDefault:"localhost"`
	TrustedProxies  []string      `env:"TRUSTED_PROXIES" envSeparator:","`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"newsdesk.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type AuthConfig struct {
	BcryptCost              int    `env:"BCRYPT_COST" envDefault:"12"`
	CookieName              string `env:"COOKIE_NAME" envDefault:"auth_token"`
	CookieSecure            bool   `env:"COOKIE_SECURE" envDefault:"false"`
	RateLimitAttempts       int    `env:"RATE_LIMIT_ATTEMPTS" envDefault:"5"`
	RateLimitWindowMinutes  int    `env:"RATE_LIMIT_WINDOW_MINUTES" envDefault:"15"`
	DefaultRole             string `env:"DEFAULT_ROLE" envDefault:"member"`
	RequireVerifiedForLogin bool   `env:"REQUIRE_VERIFIED_FOR_LOGIN" envDefault:"false"`
}

// CSRFConfig guards requests authenticated by the auth cookie. Bearer and API token
// callers are not checked.
type CSRFConfig struct {
	Enabled        bool   `env:"ENABLED" envDefault:"true"`
	TokenLength    uint8  `env:"TOKEN_LENGTH" envDefault:"32"`
	TokenLookup    string `env:"TOKEN_LOOKUP" envDefault:"header:X-CSRF-Token"`
	CookieName     string `env:"COOKIE_NAME" envDefault:"_csrf"`
	CookiePath     string `env:"COOKIE_PATH" envDefault:"/"`
	CookieMaxAge   int    `env:"COOKIE_MAX_AGE" envDefault:"86400"`
	CookieSecure   bool   `env:"COOKIE_SECURE" envDefault:"false"`
	CookieSameSite string `env:"COOKIE_SAME_SITE" envDefault:"strict"`
}

type JWTConfig struct {
	AccessSecret  string        `env:"ACCESS_SECRET"`
	RefreshSecret string        `env:"REFRESH_SECRET"`
	AccessExpiry  time.Duration `env:"ACCESS_EXPIRY" envDefault:"15m"`
	RefreshExpiry time.Duration `env:"REFRESH_EXPIRY" envDefault:"168h"`
	Issuer        string        `env:"ISSUER" envDefault:"newsdesk-api"`
	Audience      string        `env:"AUDIENCE" envDefault:"newsdesk-client"`
}

type APITokenConfig struct {
	CleanupSchedule string `env:"CLEANUP_SCHEDULE" envDefault:"@every 1h"`
	DefaultScope    string `env:"DEFAULT_SCOPE" envDefault:"read"`
}

type RevocationConfig struct {
	Enabled         bool   `env:"ENABLED" envDefault:"true"`
	Store           string `env:"STORE" envDefault:"database"`
	RedisAddr       string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword   string `env:"REDIS_PASSWORD"`
	RedisDB         int    `env:"REDIS_DB" envDefault:"0"`
	KeyPrefix       string `env:"KEY_PREFIX" envDefault:"newsdesk:revoked"`
	CleanupSchedule string `env:"CLEANUP_SCHEDULE" envDefault:"@every 1h"`
}

type VerificationConfig struct {
	Store           string        `env:"STORE" envDefault:"database"`
	CodeExpiry      time.Duration `env:"CODE_EXPIRY" envDefault:"10m"`
	Cooldown        time.Duration `env:"COOLDOWN" envDefault:"60s"`
	MaxAttempts     int           `env:"MAX_ATTEMPTS" envDefault:"3"`
	CleanupSchedule string        `env:"CLEANUP_SCHEDULE" envDefault:"@every 30m"`
}

type MailConfig struct {
	Enabled      bool   `env:"ENABLED" envDefault:"false"`
	Host         string `env:"HOST" envDefault:"localhost"`
	Port         int    `env:"PORT" envDefault:"587"`
	Username     string `env:"USERNAME"`
	Password     string `env:"PASSWORD"`
	Encryption   string `env:"ENCRYPTION" envDefault:"starttls"`
	FromAddress  string `env:"FROM_ADDRESS" envDefault:"no-reply@localhost"`
	FromName     string `env:"FROM_NAME" envDefault:"newsdesk"`
	TemplatesDir string `env:"TEMPLATES_DIR"`
}

type CountingMode string

const (
	CountAll      CountingMode = "all"
	CountFailures CountingMode = "failures"
	CountSuccess  CountingMode = "success"
)

type RateLimitConfig struct {
	Store         string `env:"STORE" envDefault:"memory"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	KeyPrefix     string `env:"KEY_PREFIX" envDefault:"newsdesk:ratelimit"`
}

type MetricsConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	Path    string `env:"PATH" envDefault:"/metrics"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	if err := env.Parse(cfg); err != nil {
		return err
	}

	if c, ok := cfg.(*Config); ok {
		return Validate(c)
	}
	return nil
}

func Validate(cfg *Config) error {
	if err := validateDatabaseConfig(&cfg.Database); err != nil {
		return err
	}
	if err := validateJWTConfig(&cfg.JWT); err != nil {
		return err
	}
	if err := validateVerificationConfig(&cfg.Verification); err != nil {
		return err
	}
	if err := validateRateLimitConfig(&cfg.RateLimit); err != nil {
		return err
	}
	if err := validateRevocationConfig(&cfg.Revocation); err != nil {
		return err
	}
	if cfg.Auth.RateLimitAttempts < 1 || cfg.Auth.RateLimitWindowMinutes < 1 {
		return fmt.Errorf("auth rate limit attempts and window must be positive")
	}
	return nil
}

func validateDatabaseConfig(cfg *DatabaseConfig) error {
	switch cfg.Driver {
	case "sqlite", "postgres", "postgresql", "mysql":
		return nil
	default:
		return fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres, mysql)", cfg.Driver)
	}
}

// Empty secrets are allowed; the JWT service substitutes insecure defaults and warns.
func validateJWTConfig(cfg *JWTConfig) error {
	if cfg.AccessSecret != "" && cfg.AccessSecret == cfg.RefreshSecret {
		return fmt.Errorf("JWT access and refresh secrets must differ")
	}
	if cfg.AccessExpiry <= 0 || cfg.RefreshExpiry <= 0 {
		return fmt.Errorf("JWT expiry durations must be positive")
	}
	if cfg.RefreshExpiry < cfg.AccessExpiry {
		return fmt.Errorf("JWT refresh expiry cannot be shorter than access expiry")
	}
	return nil
}

func validateVerificationConfig(cfg *VerificationConfig) error {
	switch cfg.Store {
	case "database", "memory":
	default:
		return fmt.Errorf("verification store must be: database or memory")
	}
	if cfg.MaxAttempts < 1 {
		return fmt.Errorf("verification max attempts must be at least 1")
	}
	if cfg.CodeExpiry <= 0 {
		return fmt.Errorf("verification code expiry must be positive")
	}
	if cfg.Cooldown < 0 {
		return fmt.Errorf("verification cooldown cannot be negative")
	}
	return nil
}

func validateRateLimitConfig(cfg *RateLimitConfig) error {
	switch cfg.Store {
	case "memory", "redis":
		return nil
	default:
		return fmt.Errorf("rate limit store must be: memory or redis")
	}
}

func validateRevocationConfig(cfg *RevocationConfig) error {
	if !cfg.Enabled {
		return nil
	}
	switch cfg.Store {
	case "database", "memory", "redis":
		return nil
	default:
		return fmt.Errorf("revocation store must be: database, memory or redis")
	}
}

package testutils

import (
	"time"

	"github.com/tech-arch1tect/newsdesk/config"
	"golang.org/x/crypto/bcrypt"
)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "newsdesk-test",
			URL:  "http://localhost:8080",
			Env:  "test",
		},
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            "0",
			ShutdownTimeout: time.Second,
		},
		Log: config.LogConfig{
			Level:  "error",
			Format: "json",
		},
		Auth: config.AuthConfig{
			BcryptCost:             bcrypt.MinCost,
			CookieName:             "auth_token",
			RateLimitAttempts:      5,
			RateLimitWindowMinutes: 15,
			DefaultRole:            "member",
		},
		JWT: config.JWTConfig{
			AccessSecret:  "test-access-secret-32-chars-long!",
			RefreshSecret: "test-refresh-secret-32-chars-long",
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 7 * 24 * time.Hour,
			Issuer:        "newsdesk-api",
			Audience:      "newsdesk-client",
		},
		APIToken: config.APITokenConfig{
			CleanupSchedule: "@every 1h",
			DefaultScope:    "read",
		},
		Verification: config.VerificationConfig{
			Store:           "memory",
			CodeExpiry:      10 * time.Minute,
			Cooldown:        time.Minute,
			MaxAttempts:     3,
			CleanupSchedule: "@every 30m",
		},
		Revocation: config.RevocationConfig{
			Enabled:         true,
			Store:           "memory",
			KeyPrefix:       "newsdesk:revoked",
			CleanupSchedule: "@every 1h",
		},
		CSRF: config.CSRFConfig{
			Enabled:        true,
			TokenLength:    32,
			TokenLookup:    "header:X-CSRF-Token",
			CookieName:     "_csrf",
			CookiePath:     "/",
			CookieMaxAge:   3600,
			CookieSameSite: "strict",
		},
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			DSN:         ":memory:",
			AutoMigrate: true,
		},
		RateLimit: config.RateLimitConfig{
			Store:     "memory",
			KeyPrefix: "newsdesk:ratelimit",
		},
		Metrics: config.MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
		},
	}
}

var TestPasswords = struct {
	Valid    string
	TooShort string
	NoUpper  string
	Common   string
}{
	Valid:    "Newsroom#2024",
	TooShort: "short1",
	NoUpper:  "newsroom#2024",
	Common:   "Password123!",
}

var TestUsers = struct {
	Reporter struct {
		Username string
		Email    string
		Password string
	}
	Editor struct {
		Username string
		Email    string
		Password string
	}
}{
	Reporter: struct {
		Username string
		Email    string
		Password string
	}{
		Username: "reporter",
		Email:    "reporter@example.com",
		Password: "Newsroom#2024",
	},
	Editor: struct {
		Username string
		Email    string
		Password string
	}{
		Username: "editor",
		Email:    "editor@example.com",
		Password: "Deadline!Edit9",
	},
}

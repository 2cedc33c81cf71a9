package ratelimit

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/newsdesk/apperror"
	"github.com/tech-arch1tect/newsdesk/config"
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"go.uber.org/zap"
)

// Observer is notified of every request rejected by a limiter.
type Observer interface {
	RateLimitRejected(c echo.Context)
}

type Config struct {
	Store          Store
	Rate           int
	Period         time.Duration
	CountMode      config.CountingMode
	KeyGenerator   func(c echo.Context) string
	OnLimitReached func(c echo.Context, retryAfter int) error
	// OnReject runs before OnLimitReached, e.g. to count rejections.
	OnReject func(c echo.Context)
	Logger   *logging.Service
}

func Middleware(cfg *Config) echo.MiddlewareFunc {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}

	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}

	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}

	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = DefaultKeyGenerator
	}

	if cfg.OnLimitReached == nil {
		cfg.OnLimitReached = DefaultOnLimitReached
	}

	if cfg.CountMode == "" {
		cfg.CountMode = config.CountAll
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := cfg.KeyGenerator(c)
			now := time.Now()
			resetTime := now.Add(cfg.Period)

			count, existingResetTime, exists, err := cfg.Store.Get(ctx, key)
			if err != nil {
				// fail open
				cfg.Logger.Warn("rate limit store unavailable", zap.String("key", key), zap.Error(err))
				return next(c)
			}
			if exists {
				resetTime = existingResetTime
			}

			if count >= cfg.Rate {
				setHeaders(c, cfg.Rate, 0, resetTime)
				retryAfter := retryAfterSeconds(resetTime, now)
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))

				if cfg.OnReject != nil {
					cfg.OnReject(c)
				}
				return cfg.OnLimitReached(c, retryAfter)
			}

			var newCount int
			if cfg.CountMode == config.CountAll {
				newCount, resetTime, err = cfg.Store.Increment(ctx, key, resetTime)
				if err != nil {
					cfg.Logger.Warn("rate limit increment failed", zap.String("key", key), zap.Error(err))
					return next(c)
				}
			} else {
				newCount = count + 1
			}

			setHeaders(c, cfg.Rate, max(cfg.Rate-newCount, 0), resetTime)

			err = next(c)

			if cfg.CountMode != config.CountAll && shouldCount(cfg.CountMode, responseStatus(c, err)) {
				if _, _, incErr := cfg.Store.Increment(ctx, key, resetTime); incErr != nil {
					cfg.Logger.Warn("rate limit increment failed", zap.String("key", key), zap.Error(incErr))
				}
			}

			return err
		}
	}
}

// AuthRateLimit limits authentication attempts per client IP within a fixed window.
func AuthRateLimit(store Store, maxAttempts, windowMinutes int, onReject ...func(c echo.Context)) echo.MiddlewareFunc {
	cfg := &Config{
		Store:  store,
		Rate:   maxAttempts,
		Period: time.Duration(windowMinutes) * time.Minute,
		KeyGenerator: func(c echo.Context) string {
			return "auth:" + clientIP(c)
		},
		OnLimitReached: func(c echo.Context, retryAfter int) error {
			return apperror.TooManyRequests(
				fmt.Sprintf("Too many authentication attempts. Please try again in %d seconds", retryAfter),
				retryAfter)
		},
	}
	if len(onReject) > 0 {
		cfg.OnReject = onReject[0]
	}
	return Middleware(cfg)
}

func shouldCount(mode config.CountingMode, status int) bool {
	switch mode {
	case config.CountFailures:
		return status >= 400
	case config.CountSuccess:
		return status < 400
	default:
		return true
	}
}

// responseStatus resolves the final status, including errors that the central error
// handler has not written yet.
func responseStatus(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	if appErr, ok := apperror.As(err); ok {
		return appErr.Status()
	}
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return 500
}

func setHeaders(c echo.Context, limit, remaining int, resetTime time.Time) {
	h := c.Response().Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))
}

func retryAfterSeconds(resetTime, now time.Time) int {
	seconds := int(math.Ceil(resetTime.Sub(now).Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}

func clientIP(c echo.Context) string {
	realIP := c.RealIP()
	if realIP == "" || realIP == "unknown" {
		realIP = "fallback"
	}
	return realIP
}

func DefaultKeyGenerator(c echo.Context) string {
	return "rate_limit:" + clientIP(c)
}

func DefaultOnLimitReached(c echo.Context, retryAfter int) error {
	return apperror.TooManyRequests("Too many requests, please try again later", retryAfter)
}

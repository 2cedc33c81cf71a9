// Package csrf applies double-submit CSRF protection to cookie sessions.
package csrf

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/tech-arch1tect/newsdesk/apperror"
	"github.com/tech-arch1tect/newsdesk/config"
)

const (
	ContextKey = "csrf"
	HeaderName = "X-CSRF-Token"
)

// Middleware checks the CSRF token only for requests that rely on the auth cookie.
// Requests carrying an Authorization header, or no auth cookie at all, pass through.
func Middleware(cfg *config.CSRFConfig, authCookie string) echo.MiddlewareFunc {
	if !cfg.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}

	var sameSite http.SameSite
	switch cfg.CookieSameSite {
	case "strict":
		sameSite = http.SameSiteStrictMode
	case "lax":
		sameSite = http.SameSiteLaxMode
	case "none":
		sameSite = http.SameSiteNoneMode
	default:
		sameSite = http.SameSiteDefaultMode
	}

	lookup := cfg.TokenLookup
	if lookup == "" {
		lookup = "header:" + HeaderName
	}

	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		Skipper: func(c echo.Context) bool {
			return !cookieSession(c, authCookie)
		},
		TokenLength:    cfg.TokenLength,
		TokenLookup:    lookup,
		ContextKey:     ContextKey,
		CookieName:     cfg.CookieName,
		CookiePath:     cfg.CookiePath,
		CookieMaxAge:   cfg.CookieMaxAge,
		CookieSecure:   cfg.CookieSecure,
		CookieHTTPOnly: false,
		CookieSameSite: sameSite,
		ErrorHandler: func(err error, c echo.Context) error {
			return apperror.Forbidden("Invalid CSRF token").Wrap(err)
		},
	})
}

func cookieSession(c echo.Context, authCookie string) bool {
	if c.Request().Header.Get(echo.HeaderAuthorization) != "" {
		return false
	}
	cookie, err := c.Cookie(authCookie)
	return err == nil && cookie.Value != ""
}

// GetToken returns the token issued for this request, or "" when the request was not
// checked.
func GetToken(c echo.Context) string {
	if token, ok := c.Get(ContextKey).(string); ok {
		return token
	}
	return ""
}

package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/newsdesk/apperror"
	"github.com/tech-arch1tect/newsdesk/services/apitoken"
	"github.com/tech-arch1tect/newsdesk/services/jwt"
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"github.com/tech-arch1tect/newsdesk/services/user"
	"go.uber.org/zap"
)

const IdentityKey = "_auth_identity"

const DefaultCookieName = "auth_token"

type Method string

const (
	MethodJWT      Method = "jwt"
	MethodAPIToken Method = "api_token"
)

type Identity struct {
	UserID     uint     `json:"userId"`
	Email      string   `json:"email"`
	Role       string   `json:"role"`
	AuthMethod Method   `json:"authMethod"`
	Scope      []string `json:"scope,omitempty"`

	// TokenID and ExpiresAt describe the presented JWT so it can be revoked.
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

func (i *Identity) IsAdmin() bool {
	return i.Role == user.RoleAdmin
}

// HasScope reports whether the identity may act within scope. JWT sessions carry every
// scope; API tokens carry what they were issued with, and "admin" implies the rest.
func (i *Identity) HasScope(scope string) bool {
	if i.AuthMethod != MethodAPIToken {
		return true
	}
	return slices.Contains(i.Scope, scope) || slices.Contains(i.Scope, "admin")
}

type AccessVerifier interface {
	VerifyAccessToken(token string) (*jwt.AccessClaims, error)
}

type TokenValidator interface {
	Validate(ctx context.Context, token, ip string) (*apitoken.Identity, error)
}

type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// AccountLookup reloads the account behind a JWT so deactivated users lose access
// before their tokens expire.
type AccountLookup interface {
	LookupOwner(ctx context.Context, userID uint) (*apitoken.Owner, error)
}

// AttemptObserver receives one call per credential check.
type AttemptObserver interface {
	AuthAttempt(method, outcome string)
}

type Config struct {
	JWT        AccessVerifier
	APITokens  TokenValidator
	Revoked    RevocationChecker
	Accounts   AccountLookup
	CookieName string
	Observer   AttemptObserver
	Logger     *logging.Service
}

func (cfg *Config) cookieName() string {
	if cfg.CookieName == "" {
		return DefaultCookieName
	}
	return cfg.CookieName
}

func (cfg *Config) observe(method Method, outcome string) {
	if cfg.Observer != nil {
		cfg.Observer.AuthAttempt(string(method), outcome)
	}
}

// Authenticate requires a valid credential from the Authorization header or, failing
// that, the auth cookie.
func Authenticate(cfg Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := extractCredential(c, cfg.cookieName())
			if !ok {
				return apperror.Unauthorized("Access token required")
			}

			identity, err := resolve(c, &cfg, token)
			if err != nil {
				return err
			}

			c.Set(IdentityKey, identity)
			return next(c)
		}
	}
}

// Optional attaches an identity when a valid credential is present and otherwise lets
// the request through anonymously.
func Optional(cfg Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := extractCredential(c, cfg.cookieName())
			if !ok {
				return next(c)
			}

			identity, err := resolve(c, &cfg, token)
			if err != nil {
				cfg.Logger.Debug("optional authentication failed", zap.Error(err))
				return next(c)
			}

			c.Set(IdentityKey, identity)
			return next(c)
		}
	}
}

func extractCredential(c echo.Context, cookieName string) (string, bool) {
	if token, ok := jwt.ExtractTokenFromHeader(c.Request().Header.Get(echo.HeaderAuthorization)); ok {
		return token, true
	}
	if cookie, err := c.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}

func resolve(c echo.Context, cfg *Config, token string) (*Identity, error) {
	if apitoken.IsAPIToken(token) {
		return resolveAPIToken(c, cfg, token)
	}
	return resolveJWT(c.Request().Context(), cfg, token)
}

func resolveAPIToken(c echo.Context, cfg *Config, token string) (*Identity, error) {
	if cfg.APITokens == nil {
		cfg.observe(MethodAPIToken, "invalid")
		return nil, apperror.Unauthorized("Invalid API token")
	}

	tokenIdentity, err := cfg.APITokens.Validate(c.Request().Context(), token, c.RealIP())
	if err != nil {
		cfg.observe(MethodAPIToken, "error")
		return nil, err
	}
	if tokenIdentity == nil {
		cfg.observe(MethodAPIToken, "invalid")
		return nil, apperror.Unauthorized("Invalid API token")
	}

	cfg.observe(MethodAPIToken, "success")
	return &Identity{
		UserID:     tokenIdentity.UserID,
		Email:      tokenIdentity.Email,
		Role:       tokenIdentity.Role,
		AuthMethod: MethodAPIToken,
		Scope:      tokenIdentity.Scope,
	}, nil
}

func resolveJWT(ctx context.Context, cfg *Config, token string) (*Identity, error) {
	if cfg.JWT == nil {
		cfg.observe(MethodJWT, "invalid")
		return nil, apperror.Unauthorized("Invalid token")
	}

	claims, err := cfg.JWT.VerifyAccessToken(token)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrExpiredToken):
			cfg.observe(MethodJWT, "expired")
			return nil, apperror.Unauthorized("Token has expired").Wrap(err)
		case errors.Is(err, jwt.ErrMalformedToken):
			cfg.observe(MethodJWT, "malformed")
			return nil, apperror.Unauthorized("Malformed token").Wrap(err)
		default:
			cfg.observe(MethodJWT, "invalid")
			return nil, apperror.Unauthorized("Invalid token").Wrap(err)
		}
	}

	if cfg.Revoked != nil {
		revoked, err := cfg.Revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			cfg.Logger.Error("revocation lookup failed", zap.Uint("user_id", claims.UserID), zap.Error(err))
			return nil, apperror.Internal("failed to check token revocation", err)
		}
		if revoked {
			cfg.observe(MethodJWT, "revoked")
			return nil, apperror.Unauthorized("Token has been revoked")
		}
	}

	if cfg.Accounts != nil {
		account, err := cfg.Accounts.LookupOwner(ctx, claims.UserID)
		if err != nil {
			cfg.Logger.Error("account lookup failed", zap.Uint("user_id", claims.UserID), zap.Error(err))
			return nil, apperror.Internal("failed to load account", err)
		}
		if account == nil || !account.IsActive {
			cfg.observe(MethodJWT, "inactive")
			return nil, apperror.Unauthorized("Account is no longer active")
		}
	}

	cfg.observe(MethodJWT, "success")
	identity := &Identity{
		UserID:     claims.UserID,
		Email:      claims.Email,
		Role:       claims.Role,
		AuthMethod: MethodJWT,
		TokenID:    claims.ID,
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}

// Authorize must run after Authenticate.
func Authorize(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity := GetIdentity(c)
			if identity == nil {
				return apperror.Unauthorized("Authentication required")
			}
			if !slices.Contains(roles, identity.Role) {
				return apperror.Forbidden("Insufficient permissions")
			}
			return next(c)
		}
	}
}

// OwnerResolver returns the owning user of the resource a request addresses.
type OwnerResolver func(c echo.Context) (uint, error)

// OwnerOrAdmin lets admins through unconditionally and everyone else only when the
// resolver names them as owner. Resolver errors are returned as is.
func OwnerOrAdmin(resolve OwnerResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity := GetIdentity(c)
			if identity == nil {
				return apperror.Unauthorized("Authentication required")
			}
			if identity.IsAdmin() {
				return next(c)
			}

			ownerID, err := resolve(c)
			if err != nil {
				return err
			}
			if ownerID != identity.UserID {
				return apperror.Forbidden("Access denied")
			}
			return next(c)
		}
	}
}

// EnforceScope requires "read" on safe methods and "write" on everything else. It only
// restricts API token identities.
func EnforceScope() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity := GetIdentity(c)
			if identity == nil {
				return next(c)
			}

			required := "write"
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				required = "read"
			}
			if !identity.HasScope(required) {
				return apperror.Forbidden("API token lacks the " + required + " scope")
			}
			return next(c)
		}
	}
}

func GetIdentity(c echo.Context) *Identity {
	if identity, ok := c.Get(IdentityKey).(*Identity); ok {
		return identity
	}
	return nil
}

// MustIdentity is for handlers mounted behind Authenticate.
func MustIdentity(c echo.Context) (*Identity, error) {
	identity := GetIdentity(c)
	if identity == nil {
		return nil, apperror.Unauthorized("Authentication required")
	}
	return identity, nil
}

// LogFields adds the caller to request logs.
func LogFields(c echo.Context) []zap.Field {
	identity := GetIdentity(c)
	if identity == nil {
		return nil
	}
	return []zap.Field{
		zap.Uint("user_id", identity.UserID),
		zap.String("auth_method", string(identity.AuthMethod)),
	}
}

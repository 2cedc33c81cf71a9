package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/newsdesk/apperror"
	"github.com/tech-arch1tect/newsdesk/services/apitoken"
	"github.com/tech-arch1tect/newsdesk/services/jwt"
	"github.com/tech-arch1tect/newsdesk/testutils"
	"go.uber.org/zap"
)

type stubTokens struct {
	identities map[string]*apitoken.Identity
	err        error
	lastIP     string
}

func (s *stubTokens) Validate(_ context.Context, token, ip string) (*apitoken.Identity, error) {
	s.lastIP = ip
	if s.err != nil {
		return nil, s.err
	}
	return s.identities[token], nil
}

type recordingObserver struct {
	attempts []string
}

func (r *recordingObserver) AuthAttempt(method, outcome string) {
	r.attempts = append(r.attempts, method+":"+outcome)
}

const testAPIToken = "nst_0123456789abcdef"

func setupConfig(t *testing.T) (Config, *jwt.Service, *recordingObserver) {
	t.Helper()
	jwtService := jwt.NewService(testutils.GetTestConfig(), nil)
	observer := &recordingObserver{}
	tokens := &stubTokens{identities: map[string]*apitoken.Identity{
		testAPIToken: {UserID: 9, Email: "bot@example.com", Role: "member", Scope: []string{"read"}, TokenID: 3},
	}}
	return Config{JWT: jwtService, APITokens: tokens, Observer: observer}, jwtService, observer
}

func newContext(req *http.Request) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func requireAppError(t *testing.T, err error, kind apperror.Kind, message string) {
	t.Helper()
	appErr, ok := apperror.As(err)
	require.True(t, ok, "expected app error, got %v", err)
	assert.Equal(t, kind, appErr.Kind)
	assert.Equal(t, message, appErr.Message)
}

func TestAuthenticate(t *testing.T) {
	cfg, jwtService, observer := setupConfig(t)
	middleware := Authenticate(cfg)

	t.Run("missing credential", func(t *testing.T) {
		c, _ := newContext(httptest.NewRequest(http.MethodGet, "/", nil))

		err := middleware(okHandler)(c)

		requireAppError(t, err, apperror.KindUnauthorized, "Access token required")
	})

	t.Run("non bearer scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic abc")
		c, _ := newContext(req)

		err := middleware(okHandler)(c)

		requireAppError(t, err, apperror.KindUnauthorized, "Access token required")
	})

	t.Run("valid access token in header", func(t *testing.T) {
		token, err := jwtService.GenerateAccessToken(jwt.Payload{UserID: 42, Email: "reporter@example.com", Role: "manager"})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		c, rec := newContext(req)

		require.NoError(t, middleware(okHandler)(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		identity := GetIdentity(c)
		require.NotNil(t, identity)
		assert.Equal(t, uint(42), identity.UserID)
		assert.Equal(t, "manager", identity.Role)
		assert.Equal(t, MethodJWT, identity.AuthMethod)
		assert.NotEmpty(t, identity.TokenID)
		assert.True(t, identity.ExpiresAt.After(time.Now()))
		assert.Contains(t, observer.attempts, "jwt:success")
	})

	t.Run("valid access token in cookie", func(t *testing.T) {
		token, err := jwtService.GenerateAccessToken(jwt.Payload{UserID: 7, Role: "member"})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: token})
		c, _ := newContext(req)

		require.NoError(t, middleware(okHandler)(c))
		assert.Equal(t, uint(7), GetIdentity(c).UserID)
	})

	t.Run("refresh token rejected as access token", func(t *testing.T) {
		refresh, err := jwtService.GenerateRefreshToken(42)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+refresh)
		c, _ := newContext(req)

		err = middleware(okHandler)(c)

		requireAppError(t, err, apperror.KindUnauthorized, "Invalid token")
		assert.Nil(t, GetIdentity(c))
	})

	t.Run("malformed token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		c, _ := newContext(req)

		err := middleware(okHandler)(c)

		requireAppError(t, err, apperror.KindUnauthorized, "Malformed token")
	})

	t.Run("expired token", func(t *testing.T) {
		cfg := testutils.GetTestConfig()
		cfg.JWT.AccessExpiry = time.Millisecond
		shortLived := jwt.NewService(cfg, nil)
		token, err := shortLived.GenerateAccessToken(jwt.Payload{UserID: 1})
		require.NoError(t, err)
		time.Sleep(1100 * time.Millisecond)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		c, _ := newContext(req)

		err = Authenticate(Config{JWT: shortLived})(okHandler)(c)

		requireAppError(t, err, apperror.KindUnauthorized, "Token has expired")
	})

	t.Run("valid API token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+testAPIToken)
		c, _ := newContext(req)

		require.NoError(t, middleware(okHandler)(c))

		identity := GetIdentity(c)
		require.NotNil(t, identity)
		assert.Equal(t, uint(9), identity.UserID)
		assert.Equal(t, MethodAPIToken, identity.AuthMethod)
		assert.Equal(t, []string{"read"}, identity.Scope)
		assert.Contains(t, observer.attempts, "api_token:success")
	})

	t.Run("unknown API token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nst_unknown")
		c, _ := newContext(req)

		err := middleware(okHandler)(c)

		requireAppError(t, err, apperror.KindUnauthorized, "Invalid API token")
	})

	t.Run("API token without validator", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+testAPIToken)
		c, _ := newContext(req)

		err := Authenticate(Config{JWT: jwtService})(okHandler)(c)

		requireAppError(t, err, apperror.KindUnauthorized, "Invalid API token")
	})

	t.Run("API token store failure propagates", func(t *testing.T) {
		failing := &stubTokens{err: apperror.Internal("Failed to validate API token", errors.New("db down"))}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+testAPIToken)
		c, _ := newContext(req)

		err := Authenticate(Config{JWT: jwtService, APITokens: failing})(okHandler)(c)

		assert.True(t, apperror.Is(err, apperror.KindInternal))
	})
}

type stubRevocations struct {
	revoked map[string]bool
	err     error
}

func (s *stubRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	return s.revoked[jti], s.err
}

func TestAuthenticate_Revocation(t *testing.T) {
	cfg, jwtService, observer := setupConfig(t)
	token, err := jwtService.GenerateAccessToken(jwt.Payload{UserID: 5, Email: "desk@example.com", Role: "member"})
	require.NoError(t, err)
	claims, err := jwtService.VerifyAccessToken(token)
	require.NoError(t, err)

	request := func() echo.Context {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		c, _ := newContext(req)
		return c
	}

	t.Run("revoked token", func(t *testing.T) {
		cfg.Revoked = &stubRevocations{revoked: map[string]bool{claims.ID: true}}

		err := Authenticate(cfg)(okHandler)(request())

		requireAppError(t, err, apperror.KindUnauthorized, "Token has been revoked")
		assert.Contains(t, observer.attempts, "jwt:revoked")
	})

	t.Run("other token ids pass", func(t *testing.T) {
		cfg.Revoked = &stubRevocations{revoked: map[string]bool{"someone-else": true}}

		assert.NoError(t, Authenticate(cfg)(okHandler)(request()))
	})

	t.Run("lookup failure", func(t *testing.T) {
		cfg.Revoked = &stubRevocations{err: errors.New("redis down")}

		err := Authenticate(cfg)(okHandler)(request())

		assert.True(t, apperror.Is(err, apperror.KindInternal))
	})

	t.Run("API tokens skip the check", func(t *testing.T) {
		cfg.Revoked = &stubRevocations{err: errors.New("redis down")}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+testAPIToken)
		c, _ := newContext(req)

		assert.NoError(t, Authenticate(cfg)(okHandler)(c))
	})
}

type stubAccounts struct {
	accounts map[uint]*apitoken.Owner
	err      error
}

func (s *stubAccounts) LookupOwner(_ context.Context, userID uint) (*apitoken.Owner, error) {
	return s.accounts[userID], s.err
}

func TestAuthenticate_InactiveAccount(t *testing.T) {
	cfg, jwtService, observer := setupConfig(t)
	token, err := jwtService.GenerateAccessToken(jwt.Payload{UserID: 5, Email: "desk@example.com", Role: "member"})
	require.NoError(t, err)

	request := func() echo.Context {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		c, _ := newContext(req)
		return c
	}

	t.Run("active account passes", func(t *testing.T) {
		cfg.Accounts = &stubAccounts{accounts: map[uint]*apitoken.Owner{5: {ID: 5, IsActive: true}}}

		assert.NoError(t, Authenticate(cfg)(okHandler)(request()))
	})

	t.Run("deactivated account", func(t *testing.T) {
		cfg.Accounts = &stubAccounts{accounts: map[uint]*apitoken.Owner{5: {ID: 5, IsActive: false}}}

		err := Authenticate(cfg)(okHandler)(request())

		requireAppError(t, err, apperror.KindUnauthorized, "Account is no longer active")
		assert.Contains(t, observer.attempts, "jwt:inactive")
	})

	t.Run("missing account", func(t *testing.T) {
		cfg.Accounts = &stubAccounts{accounts: map[uint]*apitoken.Owner{}}

		err := Authenticate(cfg)(okHandler)(request())

		requireAppError(t, err, apperror.KindUnauthorized, "Account is no longer active")
	})

	t.Run("lookup failure", func(t *testing.T) {
		cfg.Accounts = &stubAccounts{err: errors.New("db down")}

		err := Authenticate(cfg)(okHandler)(request())

		assert.True(t, apperror.Is(err, apperror.KindInternal))
	})
}

func TestOptional(t *testing.T) {
	cfg, jwtService, _ := setupConfig(t)
	middleware := Optional(cfg)

	t.Run("anonymous", func(t *testing.T) {
		c, rec := newContext(httptest.NewRequest(http.MethodGet, "/", nil))

		require.NoError(t, middleware(okHandler)(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, GetIdentity(c))
	})

	t.Run("invalid credential stays anonymous", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		c, rec := newContext(req)

		require.NoError(t, middleware(okHandler)(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, GetIdentity(c))
	})

	t.Run("valid credential attaches identity", func(t *testing.T) {
		token, err := jwtService.GenerateAccessToken(jwt.Payload{UserID: 5, Role: "viewer"})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		c, _ := newContext(req)

		require.NoError(t, middleware(okHandler)(c))
		require.NotNil(t, GetIdentity(c))
		assert.Equal(t, uint(5), GetIdentity(c).UserID)
	})
}

func withIdentity(identity *Identity) echo.Context {
	c, _ := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
	if identity != nil {
		c.Set(IdentityKey, identity)
	}
	return c
}

func TestAuthorize(t *testing.T) {
	middleware := Authorize("admin", "manager")

	err := middleware(okHandler)(withIdentity(nil))
	requireAppError(t, err, apperror.KindUnauthorized, "Authentication required")

	err = middleware(okHandler)(withIdentity(&Identity{UserID: 1, Role: "member"}))
	requireAppError(t, err, apperror.KindForbidden, "Insufficient permissions")

	assert.NoError(t, middleware(okHandler)(withIdentity(&Identity{UserID: 1, Role: "manager"})))
}

func TestOwnerOrAdmin(t *testing.T) {
	owner := func(id uint) OwnerResolver {
		return func(echo.Context) (uint, error) { return id, nil }
	}

	t.Run("owner", func(t *testing.T) {
		err := OwnerOrAdmin(owner(3))(okHandler)(withIdentity(&Identity{UserID: 3, Role: "member"}))
		assert.NoError(t, err)
	})

	t.Run("other member", func(t *testing.T) {
		err := OwnerOrAdmin(owner(3))(okHandler)(withIdentity(&Identity{UserID: 4, Role: "member"}))
		requireAppError(t, err, apperror.KindForbidden, "Access denied")
	})

	t.Run("admin skips resolver", func(t *testing.T) {
		called := false
		resolver := func(echo.Context) (uint, error) {
			called = true
			return 3, nil
		}
		err := OwnerOrAdmin(resolver)(okHandler)(withIdentity(&Identity{UserID: 1, Role: "admin"}))
		assert.NoError(t, err)
		assert.False(t, called)
	})

	t.Run("resolver error propagates", func(t *testing.T) {
		resolver := func(echo.Context) (uint, error) { return 0, apperror.NotFound("Project not found") }
		err := OwnerOrAdmin(resolver)(okHandler)(withIdentity(&Identity{UserID: 4, Role: "member"}))
		requireAppError(t, err, apperror.KindNotFound, "Project not found")
	})

	t.Run("anonymous", func(t *testing.T) {
		err := OwnerOrAdmin(owner(3))(okHandler)(withIdentity(nil))
		requireAppError(t, err, apperror.KindUnauthorized, "Authentication required")
	})
}

func TestEnforceScope(t *testing.T) {
	readOnly := &Identity{UserID: 1, AuthMethod: MethodAPIToken, Scope: []string{"read"}}

	get, _ := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
	get.Set(IdentityKey, readOnly)
	assert.NoError(t, EnforceScope()(okHandler)(get))

	post, _ := newContext(httptest.NewRequest(http.MethodPost, "/", nil))
	post.Set(IdentityKey, readOnly)
	err := EnforceScope()(okHandler)(post)
	requireAppError(t, err, apperror.KindForbidden, "API token lacks the write scope")

	session, _ := newContext(httptest.NewRequest(http.MethodDelete, "/", nil))
	session.Set(IdentityKey, &Identity{UserID: 1, AuthMethod: MethodJWT})
	assert.NoError(t, EnforceScope()(okHandler)(session))

	admin := &Identity{AuthMethod: MethodAPIToken, Scope: []string{"admin"}}
	assert.True(t, admin.HasScope("write"))
}

func TestMustIdentity(t *testing.T) {
	_, err := MustIdentity(withIdentity(nil))
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))

	identity, err := MustIdentity(withIdentity(&Identity{UserID: 2}))
	require.NoError(t, err)
	assert.Equal(t, uint(2), identity.UserID)
}

func TestLogFields(t *testing.T) {
	assert.Nil(t, LogFields(withIdentity(nil)))

	fields := LogFields(withIdentity(&Identity{UserID: 2, AuthMethod: MethodJWT}))
	assert.Equal(t, []zap.Field{zap.Uint("user_id", 2), zap.String("auth_method", "jwt")}, fields)
}

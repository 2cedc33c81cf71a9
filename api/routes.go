// Package api binds the newsdesk services to HTTP routes. Every route is registered
// together with its OpenAPI operation.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/newsdesk/apperror"
	"github.com/tech-arch1tect/newsdesk/config"
	"github.com/tech-arch1tect/newsdesk/middleware/auth"
	"github.com/tech-arch1tect/newsdesk/middleware/csrf"
	"github.com/tech-arch1tect/newsdesk/middleware/ratelimit"
	"github.com/tech-arch1tect/newsdesk/openapi"
	"github.com/tech-arch1tect/newsdesk/server"
	"github.com/tech-arch1tect/newsdesk/services/apitoken"
	"github.com/tech-arch1tect/newsdesk/services/jwt"
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"github.com/tech-arch1tect/newsdesk/services/message"
	"github.com/tech-arch1tect/newsdesk/services/project"
	"github.com/tech-arch1tect/newsdesk/services/revocation"
	"github.com/tech-arch1tect/newsdesk/services/task"
	"github.com/tech-arch1tect/newsdesk/services/user"
	"github.com/tech-arch1tect/newsdesk/services/verification"
)

const (
	bearerScheme = "bearerAuth"
	cookieScheme = "cookieAuth"
)

type Deps struct {
	Config        *config.Config
	Auth          auth.Config
	Users         *user.Service
	JWT           *jwt.Service
	APITokens     *apitoken.Service
	Verifications *verification.Service
	Projects      *project.Service
	Tasks         *task.Service
	Messages      *message.Service
	// Revocations may be nil when revocation is disabled.
	Revocations *revocation.Service
	RateLimit   ratelimit.Store
	// RateLimitObserver is optional.
	RateLimitObserver ratelimit.Observer
	Logger            *logging.Service
}

type router struct {
	e    *echo.Echo
	docs *openapi.Document
}

func (r *router) handle(method, path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *openapi.Operation {
	r.e.Add(method, path, h, m...)
	return r.docs.Operation(method, path)
}

func (r *router) secured(method, path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *openapi.Operation {
	return r.handle(method, path, h, m...).
		Secured(bearerScheme, cookieScheme).
		Errors(http.StatusUnauthorized, http.StatusForbidden)
}

func NewDocument(cfg *config.Config) *openapi.Document {
	return openapi.New(cfg.App.Name+" API", "1.0.0").
		Describe("Authentication, tasks, projects and messaging for the newsdesk platform.").
		Server(cfg.App.URL, cfg.App.Env).
		BearerAuth(bearerScheme, "JWT access token or API token ("+apitoken.Prefix+"...)").
		CookieAuth(cookieScheme, cfg.Auth.CookieName, "Access token cookie set by login").
		Tag("auth", "Registration, sessions and email verification").
		Tag("tokens", "Personal API tokens").
		Tag("users", "User administration").
		Tag("projects", "Projects").
		Tag("tasks", "Tasks").
		Tag("conversations", "Direct and group messaging").
		Tag("content", "Published articles")
}

// Register mounts every API route on srv and returns the document describing them.
func Register(srv *server.Server, d Deps) *openapi.Document {
	docs := NewDocument(d.Config)
	r := &router{e: srv.Echo(), docs: docs}
	logger := d.Logger.Named("api")

	cookieName := d.Auth.CookieName
	if cookieName == "" {
		cookieName = auth.DefaultCookieName
	}

	srv.Use(logging.RequestLoggerSkipPaths(logger, []string{"/health", d.Config.Metrics.Path}, auth.LogFields))
	srv.Use(csrf.Middleware(&d.Config.CSRF, cookieName))

	var onReject []func(echo.Context)
	if d.RateLimitObserver != nil {
		onReject = append(onReject, d.RateLimitObserver.RateLimitRejected)
	}
	limited := ratelimit.AuthRateLimit(d.RateLimit, d.Config.Auth.RateLimitAttempts, d.Config.Auth.RateLimitWindowMinutes, onReject...)
	authenticated := auth.Authenticate(d.Auth)
	scoped := auth.EnforceScope()

	authHandler := &AuthHandler{
		users:         d.Users,
		tokens:        d.JWT,
		verifications: d.Verifications,
		revocations:   d.Revocations,
		cookieName:    cookieName,
		cookieSecure:  d.Config.Auth.CookieSecure,
		logger:        logger,
	}
	registerAuthRoutes(r, authHandler, limited, authenticated, scoped, auth.Optional(d.Auth))

	tokens := &TokenHandler{tokens: d.APITokens}
	r.secured(http.MethodGet, "/api/tokens", tokens.List, authenticated, scoped).
		Summary("List your API tokens").Tags("tokens").
		Response(http.StatusOK, []apitoken.APIToken{}, "Tokens without their secret").Register()
	r.secured(http.MethodPost, "/api/tokens", tokens.Create, authenticated, scoped).
		Summary("Create an API token").Tags("tokens").
		Body(apitoken.CreateInput{}).
		Response(http.StatusCreated, apitoken.Created{}, "The plaintext token, shown only once").
		Errors(http.StatusBadRequest, http.StatusConflict).Register()
	r.secured(http.MethodDelete, "/api/tokens/:id", tokens.Revoke, authenticated, scoped).
		Summary("Revoke an API token").Tags("tokens").
		Response(http.StatusOK, messageResponse{}, "Revoked").
		Errors(http.StatusNotFound).Register()

	users := &UserHandler{users: d.Users}
	admin := auth.Authorize(user.RoleAdmin)
	r.secured(http.MethodPut, "/api/users/:id/role", users.SetRole, authenticated, scoped, admin).
		Summary("Change a user's role").Tags("users").
		Body(roleRequest{}).
		Response(http.StatusOK, user.User{}, "Updated user").
		Errors(http.StatusBadRequest, http.StatusNotFound).Register()
	r.secured(http.MethodDelete, "/api/users/:id", users.Deactivate, authenticated, scoped, admin).
		Summary("Deactivate a user").Tags("users").
		Response(http.StatusOK, messageResponse{}, "Deactivated").
		Errors(http.StatusBadRequest, http.StatusNotFound).Register()

	projects := &ProjectHandler{projects: d.Projects}
	owner := auth.OwnerOrAdmin(projects.OwnerOf)
	r.secured(http.MethodGet, "/api/projects", projects.List, authenticated, scoped).
		Summary("List projects").Tags("projects").
		Query("status", "active, completed or archived").
		Query("limit", "Page size").Query("offset", "Page offset").
		Response(http.StatusOK, []project.Project{}, "Your projects; admins see all").Register()
	r.secured(http.MethodPost, "/api/projects", projects.Create, authenticated, scoped,
		auth.Authorize(user.RoleAdmin, user.RoleManager, user.RoleMember)).
		Summary("Create a project").Tags("projects").
		Body(project.CreateInput{}).
		Response(http.StatusCreated, project.Project{}, "Created").
		Errors(http.StatusBadRequest).Register()
	r.secured(http.MethodGet, "/api/projects/:id", projects.Get, authenticated, scoped, owner).
		Summary("Get a project").Tags("projects").
		Response(http.StatusOK, project.Project{}, "The project").
		Errors(http.StatusNotFound).Register()
	r.secured(http.MethodPut, "/api/projects/:id", projects.Update, authenticated, scoped, owner).
		Summary("Update a project").Tags("projects").
		Body(project.UpdateInput{}).
		Response(http.StatusOK, project.Project{}, "Updated").
		Errors(http.StatusBadRequest, http.StatusNotFound).Register()
	r.secured(http.MethodDelete, "/api/projects/:id", projects.Delete, authenticated, scoped, owner).
		Summary("Delete a project").Tags("projects").
		Response(http.StatusOK, messageResponse{}, "Deleted").
		Errors(http.StatusNotFound).Register()

	tasks := &TaskHandler{tasks: d.Tasks}
	r.secured(http.MethodGet, "/api/tasks", tasks.List, authenticated, scoped).
		Summary("List visible tasks").Tags("tasks").
		Query("status", "todo, in_progress, review or done").
		Query("priority", "low, medium, high or urgent").
		Query("project_id", "Project filter").Query("assignee_id", "Assignee filter").
		Query("limit", "Page size").Query("offset", "Page offset").
		Response(http.StatusOK, []task.Task{}, "Tasks you created or are assigned; admins see all").
		Errors(http.StatusBadRequest).Register()
	r.secured(http.MethodPost, "/api/tasks", tasks.Create, authenticated, scoped).
		Summary("Create a task").Tags("tasks").
		Body(task.CreateInput{}).
		Response(http.StatusCreated, task.Task{}, "Created").
		Errors(http.StatusBadRequest).Register()
	r.secured(http.MethodGet, "/api/tasks/:id", tasks.Get, authenticated, scoped).
		Summary("Get a task").Tags("tasks").
		Response(http.StatusOK, task.Task{}, "The task").
		Errors(http.StatusNotFound).Register()
	r.secured(http.MethodPut, "/api/tasks/:id", tasks.Update, authenticated, scoped).
		Summary("Update a task").Tags("tasks").
		Body(task.UpdateInput{}).
		Response(http.StatusOK, task.Task{}, "Updated").
		Errors(http.StatusBadRequest, http.StatusNotFound).Register()
	r.secured(http.MethodDelete, "/api/tasks/:id", tasks.Delete, authenticated, scoped).
		Summary("Delete a task").Tags("tasks").
		Response(http.StatusOK, messageResponse{}, "Deleted").
		Errors(http.StatusNotFound).Register()

	conversations := &ConversationHandler{messages: d.Messages}
	r.secured(http.MethodGet, "/api/conversations", conversations.List, authenticated, scoped).
		Summary("List your conversations").Tags("conversations").
		Response(http.StatusOK, []message.Conversation{}, "Most recently active first").Register()
	r.secured(http.MethodPost, "/api/conversations", conversations.CreateGroup, authenticated, scoped).
		Summary("Create a group conversation").Tags("conversations").
		Body(message.GroupInput{}).
		Response(http.StatusCreated, message.Conversation{}, "Created").
		Errors(http.StatusBadRequest).Register()
	r.secured(http.MethodPost, "/api/conversations/direct", conversations.OpenDirect, authenticated, scoped).
		Summary("Open a direct conversation").Tags("conversations").
		Body(directRequest{}).
		Response(http.StatusOK, message.Conversation{}, "Existing conversation").
		Response(http.StatusCreated, message.Conversation{}, "New conversation").
		Errors(http.StatusBadRequest).Register()
	r.secured(http.MethodGet, "/api/conversations/:id/messages", conversations.Messages, authenticated, scoped).
		Summary("Read messages").Tags("conversations").
		Query("limit", "Page size, at most 100").
		Query("before_id", "Return messages older than this id").
		Response(http.StatusOK, message.MessagePage{}, "Oldest first").
		Errors(http.StatusNotFound).Register()
	r.secured(http.MethodPost, "/api/conversations/:id/messages", conversations.Send, authenticated, scoped).
		Summary("Send a message").Tags("conversations").
		Body(sendMessageRequest{}).
		Response(http.StatusCreated, message.Message{}, "Sent").
		Errors(http.StatusBadRequest, http.StatusNotFound).Register()

	r.handle(http.MethodGet, "/api/content", contentNotImplemented).
		Summary("Published content").Tags("content").
		Errors(http.StatusNotImplemented).Register()

	r.handle(http.MethodGet, "/openapi.json", docs.JSONHandler()).Summary("This document (JSON)").Register()
	r.handle(http.MethodGet, "/openapi.yaml", docs.YAMLHandler()).Summary("This document (YAML)").Register()

	return docs
}

func registerAuthRoutes(r *router, h *AuthHandler, limited, authenticated, scoped, optional echo.MiddlewareFunc) {
	r.handle(http.MethodPost, "/api/auth/register", h.Register, limited).
		Summary("Register an account").Tags("auth").
		Body(user.RegisterInput{}).
		Response(http.StatusCreated, registerResponse{}, "Registered; a verification code was sent").
		Errors(http.StatusBadRequest, http.StatusConflict, http.StatusTooManyRequests).Register()
	r.handle(http.MethodPost, "/api/auth/login", h.Login, limited).
		Summary("Sign in").Tags("auth").
		Body(loginRequest{}).
		Response(http.StatusOK, sessionResponse{}, "Signed in; sets the auth cookie").
		Errors(http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests).Register()
	r.handle(http.MethodPost, "/api/auth/refresh", h.Refresh).
		Summary("Exchange a refresh token").Tags("auth").
		Body(refreshRequest{}).
		Response(http.StatusOK, jwt.TokenPair{}, "New token pair").
		Errors(http.StatusUnauthorized).Register()
	r.handle(http.MethodPost, "/api/auth/logout", h.Logout, optional).
		Summary("Sign out and revoke the presented tokens").Tags("auth").
		OptionalBody(refreshRequest{}).
		Response(http.StatusOK, messageResponse{}, "Cookie cleared").Register()
	r.secured(http.MethodGet, "/api/auth/csrf", h.CSRFToken, authenticated).
		Summary("CSRF token for cookie sessions").Tags("auth").
		Description("Cookie-authenticated writes must echo this token in the "+csrf.HeaderName+" header. Bearer callers receive an empty token.").
		Response(http.StatusOK, csrfResponse{}, "The token").Register()
	r.secured(http.MethodGet, "/api/auth/me", h.Me, authenticated, scoped).
		Summary("Current user").Tags("auth").
		Response(http.StatusOK, user.User{}, "The signed-in user").Register()
	r.secured(http.MethodPut, "/api/auth/profile", h.UpdateProfile, authenticated, scoped).
		Summary("Update your profile").Tags("auth").
		Body(user.ProfileInput{}).
		Response(http.StatusOK, user.User{}, "Updated user").
		Errors(http.StatusBadRequest).Register()
	r.secured(http.MethodPost, "/api/auth/change-password", h.ChangePassword, authenticated, scoped).
		Summary("Change your password").Tags("auth").
		Body(changePasswordRequest{}).
		Response(http.StatusOK, messageResponse{}, "Changed").
		Errors(http.StatusBadRequest).Register()
	r.handle(http.MethodPost, "/api/auth/verification/send", h.SendCode, limited).
		Summary("Email a verification code").Tags("auth").
		Body(sendCodeRequest{}).
		Response(http.StatusOK, verification.SendResult{}, "Code sent").
		Errors(http.StatusBadRequest, http.StatusTooManyRequests).Register()
	r.handle(http.MethodPost, "/api/auth/verification/verify", h.VerifyCode, limited).
		Summary("Check a verification code").Tags("auth").
		Body(verifyCodeRequest{}).
		Response(http.StatusOK, verification.VerifyResult{}, "Code accepted").
		Errors(http.StatusBadRequest, http.StatusNotFound, http.StatusTooManyRequests).Register()
	r.handle(http.MethodPost, "/api/auth/password-reset", h.ResetPassword, limited).
		Summary("Reset a password with an emailed code").Tags("auth").
		Body(passwordResetRequest{}).
		Response(http.StatusOK, messageResponse{}, "Password reset").
		Errors(http.StatusBadRequest, http.StatusNotFound, http.StatusTooManyRequests).Register()
	r.handle(http.MethodGet, "/api/auth/verify-email", h.VerifyEmailToken, limited).
		Summary("Confirm an email address with a link token").Tags("auth").
		Query("token", "Token from the registration email").
		Response(http.StatusOK, user.User{}, "Verified user").
		Errors(http.StatusBadRequest, http.StatusNotFound).Register()
}

func contentNotImplemented(echo.Context) error {
	return apperror.NotImplemented("Content is served by the publishing backend")
}

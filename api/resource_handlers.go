package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/newsdesk/apperror"
	"github.com/tech-arch1tect/newsdesk/middleware/auth"
	"github.com/tech-arch1tect/newsdesk/response"
	"github.com/tech-arch1tect/newsdesk/services/apitoken"
	"github.com/tech-arch1tect/newsdesk/services/project"
	"github.com/tech-arch1tect/newsdesk/services/task"
	"github.com/tech-arch1tect/newsdesk/services/user"
)

type TokenHandler struct {
	tokens *apitoken.Service
}

func (h *TokenHandler) List(c echo.Context) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}

	tokens, err := h.tokens.List(c.Request().Context(), identity.UserID)
	if err != nil {
		return err
	}
	return response.Success(c, http.StatusOK, tokens)
}

func (h *TokenHandler) Create(c echo.Context) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}

	var input apitoken.CreateInput
	if err := bind(c, &input); err != nil {
		return err
	}

	created, err := h.tokens.Create(c.Request().Context(), identity.UserID, input)
	if err != nil {
		return err
	}
	return response.Success(c, http.StatusCreated, created)
}

func (h *TokenHandler) Revoke(c echo.Context) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}

	if err := h.tokens.Revoke(c.Request().Context(), identity.UserID, id); err != nil {
		return err
	}
	return response.Success(c, http.StatusOK, messageResponse{Message: "Token revoked"})
}

type UserHandler struct {
	users *user.Service
}

type roleRequest struct {
	Role string `json:"role"`
}

func (h *UserHandler) SetRole(c echo.Context) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}

	var req roleRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	u, err := h.users.SetRole(c.Request().Context(), identity.UserID, id, req.Role)
	if err != nil {
		return err
	}
	return response.Success(c, http.StatusOK, u)
}

func (h *UserHandler) Deactivate(c echo.Context) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}

	if err := h.users.Deactivate(c.Request().Context(), identity.UserID, id); err != nil {
		return err
	}
	return response.Success(c, http.StatusOK, messageResponse{Message: "User deactivated"})
}

type ProjectHandler struct {
	projects *project.Service
}

// OwnerOf resolves the owner of the project named by the :id parameter.
func (h *ProjectHandler) OwnerOf(c echo.Context) (uint, error) {
	id, err := idParam(c)
	if err != nil {
		return 0, err
	}
	return h.projects.OwnerOf(c.Request().Context(), id)
}

func (h *ProjectHandler) List(c echo.Context) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	page, err := pageQuery(c)
	if err != nil {
		return err
	}

	projects, total, err := h.projects.List(c.Request().Context(), identity.UserID, identity.IsAdmin(), project.ListFilter{
		Status: c.QueryParam("status"),
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		return err
	}
	return response.WithMeta(c, http.StatusOK, projects, pageMeta(page, total))
}

func (h *ProjectHandler) Create(c echo.Context) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}

	var input project.CreateInput
	if err := bind(c, &input); err != nil {
		return err
	}

	p, err := h.projects.Create(c.Request().Context(), identity.UserID, input)
	if err != nil {
		return err
	}
	return response.Success(c, http.StatusCreated, p)
}

func (h *ProjectHandler) Get(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}

	p, err := h.projects.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.Success(c, http.StatusOK, p)
}

func (h *ProjectHandler) Update(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}

	var input project.UpdateInput
	if err := bind(c, &input); err != nil {
		return err
	}

	p, err := h.projects.Update(c.Request().Context(), id, input)
	if err != nil {
		return err
	}
	return response.Success(c, http.StatusOK, p)
}

func (h *ProjectHandler) Delete(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}

	if err := h.projects.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return response.Success(c, http.StatusOK, messageResponse{Message: "Project deleted"})
}

type TaskHandler struct {
	tasks *task.Service
}

func (h *TaskHandler) List(c echo.Context) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	page, err := pageQuery(c)
	if err != nil {
		return err
	}

	filter := task.ListFilter{
		Status:   c.QueryParam("status"),
		Priority: c.QueryParam("priority"),
		Limit:    page.Limit,
		Offset:   page.Offset,
	}
	if err := echo.QueryParamsBinder(c).
		Uint("project_id", &filter.ProjectID).
		Uint("assignee_id", &filter.AssigneeID).
		BindError(); err != nil {
		return apperror.BadRequest("project_id and assignee_id must be positive integers").Wrap(err)
	}

	tasks, total, err := h.tasks.List(c.Request().Context(), actor(identity), filter)
	if err != nil {
		return err
	}
	return response.WithMeta(c, http.StatusOK, tasks, pageMeta(page, total))
}

func (h *TaskHandler) Create(c echo.Context) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}

	var input task.CreateInput
	if err := bind(c, &input); err != nil {
		return err
	}

	t, err := h.tasks.Create(c.Request().Context(), actor(identity), input)
	if err != nil {
		return err
	}
	return response.Success(c, http.StatusCreated, t)
}

func (h *TaskHandler) Get(c echo.Context) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}

	t, err := h.tasks.Get(c.Request().Context(), actor(identity), id)
	if err != nil {
		return err
	}
	return response.Success(c, http.StatusOK, t)
}

func (h *TaskHandler) Update(c echo.Context) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}

	var input task.UpdateInput
	if err := bind(c, &input); err != nil {
		return err
	}

	t, err := h.tasks.Update(c.Request().Context(), actor(identity), id, input)
	if err != nil {
		return err
	}
	return response.Success(c, http.StatusOK, t)
}

func (h *TaskHandler) Delete(c echo.Context) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}

	if err := h.tasks.Delete(c.Request().Context(), actor(identity), id); err != nil {
		return err
	}
	return response.Success(c, http.StatusOK, messageResponse{Message: "Task deleted"})
}

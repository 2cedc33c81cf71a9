package api

import (
	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/newsdesk/apperror"
	"github.com/tech-arch1tect/newsdesk/internal/pagination"
	"github.com/tech-arch1tect/newsdesk/middleware/auth"
	"github.com/tech-arch1tect/newsdesk/response"
	"github.com/tech-arch1tect/newsdesk/services/task"
)

func bind(c echo.Context, dest any) error {
	if err := c.Bind(dest); err != nil {
		return apperror.BadRequest("Invalid request body").Wrap(err)
	}
	return nil
}

func idParam(c echo.Context) (uint, error) {
	var id uint
	if err := echo.PathParamsBinder(c).MustUint("id", &id).BindError(); err != nil || id == 0 {
		return 0, apperror.BadRequest("Invalid id")
	}
	return id, nil
}

func pageQuery(c echo.Context) (pagination.Page, error) {
	var page pagination.Page
	if err := echo.QueryParamsBinder(c).
		Int("limit", &page.Limit).
		Int("offset", &page.Offset).
		BindError(); err != nil {
		return page, apperror.BadRequest("limit and offset must be integers").Wrap(err)
	}
	return page.Normalize(), nil
}

func pageMeta(page pagination.Page, total int64) response.Pagination {
	return response.Pagination{
		Limit:   page.Limit,
		Offset:  page.Offset,
		Total:   total,
		HasMore: page.HasMore(total),
	}
}

func actor(identity *auth.Identity) task.Actor {
	return task.Actor{UserID: identity.UserID, IsAdmin: identity.IsAdmin()}
}

type messageResponse struct {
	Message string `json:"message"`
}

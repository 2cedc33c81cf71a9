package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/newsdesk/apperror"
	"github.com/tech-arch1tect/newsdesk/middleware/auth"
	"github.com/tech-arch1tect/newsdesk/response"
	"github.com/tech-arch1tect/newsdesk/services/message"
)

type ConversationHandler struct {
	messages *message.Service
}

type directRequest struct {
	UserID uint `json:"userId"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (h *ConversationHandler) List(c echo.Context) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}

	conversations, err := h.messages.List(c.Request().Context(), identity.UserID)
	if err != nil {
		return err
	}
	return response.Success(c, http.StatusOK, conversations)
}

func (h *ConversationHandler) CreateGroup(c echo.Context) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}

	var input message.GroupInput
	if err := bind(c, &input); err != nil {
		return err
	}

	conv, err := h.messages.CreateGroup(c.Request().Context(), identity.UserID, input)
	if err != nil {
		return err
	}
	return response.Success(c, http.StatusCreated, conv)
}

// OpenDirect answers 201 when the conversation was created and 200 when it existed.
func (h *ConversationHandler) OpenDirect(c echo.Context) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}

	var req directRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	conv, created, err := h.messages.OpenDirect(c.Request().Context(), identity.UserID, req.UserID)
	if err != nil {
		return err
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return response.Success(c, status, conv)
}

func (h *ConversationHandler) Messages(c echo.Context) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}

	var page message.Page
	if err := echo.QueryParamsBinder(c).
		Int("limit", &page.Limit).
		Uint("before_id", &page.BeforeID).
		BindError(); err != nil {
		return apperror.BadRequest("limit and before_id must be integers").Wrap(err)
	}

	result, err := h.messages.Messages(c.Request().Context(), identity.UserID, id, page)
	if err != nil {
		return err
	}
	return response.Success(c, http.StatusOK, result)
}

func (h *ConversationHandler) Send(c echo.Context) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}

	var req sendMessageRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	msg, err := h.messages.Send(c.Request().Context(), identity.UserID, id, req.Content)
	if err != nil {
		return err
	}
	return response.Success(c, http.StatusCreated, msg)
}

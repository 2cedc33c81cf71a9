package response

import (
	"time"

	"github.com/labstack/echo/v4"
)

type Envelope struct {
	Success   bool         `json:"success"`
	Data      any          `json:"data,omitempty"`
	Meta      any          `json:"meta,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
	Timestamp string       `json:"timestamp"`
}

type ErrorDetail struct {
	Message string `json:"message"`
}

type Pagination struct {
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset,omitempty"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"hasMore"`
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func Success(c echo.Context, status int, data any) error {
	return c.JSON(status, Envelope{Success: true, Data: data, Timestamp: now()})
}

func WithMeta(c echo.Context, status int, data, meta any) error {
	return c.JSON(status, Envelope{Success: true, Data: data, Meta: meta, Timestamp: now()})
}

func Fail(c echo.Context, status int, message string) error {
	return c.JSON(status, Envelope{
		Success:   false,
		Error:     &ErrorDetail{Message: message},
		Timestamp: now(),
	})
}

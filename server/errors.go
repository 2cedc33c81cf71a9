package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/newsdesk/apperror"
	"github.com/tech-arch1tect/newsdesk/response"
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"go.uber.org/zap"
)

const internalErrorMessage = "Internal server error"

// ErrorHandler writes every handler error in the failure envelope. Causes of internal
// errors are logged and never sent to the client.
func ErrorHandler(logger *logging.Service) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, message := http.StatusInternalServerError, internalErrorMessage

		if appErr, ok := apperror.As(err); ok {
			status = appErr.Status()
			message = appErr.Message
			if appErr.RetryAfter > 0 {
				c.Response().Header().Set("Retry-After", strconv.Itoa(appErr.RetryAfter))
			}
			if appErr.Kind == apperror.KindInternal {
				message = internalErrorMessage
				logRequestError(logger, c, err)
			}
		} else if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
			if status >= http.StatusInternalServerError {
				logRequestError(logger, c, err)
			} else {
				message = httpErrorMessage(he)
			}
		} else {
			logRequestError(logger, c, err)
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = response.Fail(c, status, message)
		}
		if writeErr != nil {
			logger.Error("failed to write error response", zap.Error(writeErr))
		}
	}
}

func httpErrorMessage(he *echo.HTTPError) string {
	switch msg := he.Message.(type) {
	case string:
		return msg
	case error:
		return msg.Error()
	case nil:
		return http.StatusText(he.Code)
	default:
		return fmt.Sprint(msg)
	}
}

func logRequestError(logger *logging.Service, c echo.Context, err error) {
	logger.Error("request failed",
		zap.Error(err),
		zap.String("method", c.Request().Method),
		zap.String("path", c.Request().URL.Path))
}

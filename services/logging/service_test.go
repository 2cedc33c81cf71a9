package logging

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(level zapcore.Level) (*Service, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return NewFromZap(zap.New(core)), logs
}

func TestNewService(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		service, err := NewService(Config{Level: Info, Format: "json", OutputPath: "stdout"})

		require.NoError(t, err)
		assert.NotNil(t, service.Logger())
	})

	t.Run("console", func(t *testing.T) {
		service, err := NewService(Config{Level: Debug, Format: "console"})

		require.NoError(t, err)
		assert.NotNil(t, service.Logger())
	})

	t.Run("file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "newsdesk.log")

		service, err := NewService(Config{Level: Warn, Format: "json", OutputPath: logFile})
		require.NoError(t, err)

		service.Warn("written to file")
		_ = service.Sync()

		_, err = os.Stat(logFile)
		assert.NoError(t, err)
	})
}

func TestService_Levels(t *testing.T) {
	service, logs := newObserved(zapcore.DebugLevel)

	service.Debug("debug message")
	service.Info("info message", zap.String("key", "value"))
	service.Warn("warn message")
	service.Error("error message")

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "value", entries[1].ContextMap()["key"])
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}

func TestService_Named(t *testing.T) {
	service, logs := newObserved(zapcore.InfoLevel)

	service.Named("apitoken").With(zap.Uint("user_id", 7)).Info("token created")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "apitoken", fields["component"])
	assert.EqualValues(t, 7, fields["user_id"])
}

func TestService_NilSafety(t *testing.T) {
	var service *Service

	assert.NotPanics(t, func() {
		service.Debug("x")
		service.Info("x")
		service.Warn("x")
		service.Error("x")
		assert.Nil(t, service.Named("x"))
		assert.Nil(t, service.Logger())
		assert.NoError(t, service.Sync())
	})
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLogLevel(Debug))
	assert.Equal(t, zapcore.InfoLevel, parseLogLevel(Info))
	assert.Equal(t, zapcore.WarnLevel, parseLogLevel(Warn))
	assert.Equal(t, zapcore.ErrorLevel, parseLogLevel(Error))
	assert.Equal(t, zapcore.InfoLevel, parseLogLevel("verbose"))
}

func TestRequestLogger(t *testing.T) {
	service, logs := newObserved(zapcore.InfoLevel)
	e := echo.New()

	withUser := func(c echo.Context) []zap.Field {
		return []zap.Field{zap.String("user", "42")}
	}
	handler := RequestLoggerSkipPaths(service, []string{"/health"}, withUser)(func(c echo.Context) error {
		return c.NoContent(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "client error", entry.Message)
	assert.Equal(t, "42", entry.ContextMap()["user"])
	assert.Equal(t, "/api/tasks", entry.ContextMap()["uri"])
}

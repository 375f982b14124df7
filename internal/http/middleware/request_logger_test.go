package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jmehdipour/titletester/internal/model"
	echo "github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	e := echo.New()
	e.Use(echoMid.RequestID(), RequestLogger(zap.New(core)))
	e.GET("/ok", func(c echo.Context) error {
		c.Set(ctxIdentity, model.Identity{UID: "u1"})
		return c.NoContent(http.StatusOK)
	})
	e.GET("/denied", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
	})
	e.GET("/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusInternalServerError)
	})

	for _, path := range []string{"/ok", "/denied", "/boom"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "u1", fields["uid"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
	assert.NotEmpty(t, fields["request_id"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, int64(http.StatusUnauthorized), entries[1].ContextMap()["status"])
	assert.Contains(t, entries[1].ContextMap(), "error")

	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}

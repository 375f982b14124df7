package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

func rootHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"service":        "TitleTesterPro v6 API",
			"version":        apiVersion,
			"status":         "healthy",
			"authentication": "Firebase",
		})
	}
}

func healthHandler(now func() time.Time) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":    "healthy",
			"service":   "ttprov6-api",
			"version":   apiVersion,
			"timestamp": now().UTC().Format(time.RFC3339),
		})
	}
}

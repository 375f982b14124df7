package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func connectYouTubeHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"message": "YouTube OAuth connection endpoint",
			"user":    callerEmail(c),
			"status":  notImplemented,
		})
	}
}

func listChannelsHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"channels": []any{},
			"user":     callerEmail(c),
			"status":   notImplemented,
		})
	}
}

func listVideosHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"videos":     []any{},
			"channel_id": nullable(c.QueryParam("channel_id")),
			"user":       callerEmail(c),
			"status":     notImplemented,
		})
	}
}

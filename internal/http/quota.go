package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func quotaStatusHandler(q QuotaReporter) echo.HandlerFunc {
	return func(c echo.Context) error {
		if q == nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "Quota tracking unavailable")
		}
		return c.JSON(http.StatusOK, map[string]any{
			"quota": q.Status(c.Request().Context()),
		})
	}
}

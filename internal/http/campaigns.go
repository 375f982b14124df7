package http

import (
	"net/http"
	"strings"

	"github.com/jmehdipour/titletester/internal/http/middleware"
	"github.com/labstack/echo/v4"
)

const notImplemented = "not_implemented"

type createCampaignReq struct {
	Name    string   `json:"name"`
	VideoID string   `json:"video_id"`
	Titles  []string `json:"titles"`
}

// callerEmail is the "user" field of placeholder payloads; null when the
// token carried no email.
func callerEmail(c echo.Context) *string {
	id, _ := middleware.IdentityFromCtx(c)
	return nullable(id.Email)
}

func listCampaignsHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"campaigns": []any{},
			"user":      callerEmail(c),
			"status":    notImplemented,
		})
	}
}

func createCampaignHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createCampaignReq
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "bad request")
		}
		req.Name = strings.TrimSpace(req.Name)
		req.VideoID = strings.TrimSpace(req.VideoID)
		if req.Name == "" || req.VideoID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "name and video_id are required")
		}

		return c.JSON(http.StatusOK, map[string]any{
			"message":       "Campaign creation endpoint",
			"campaign_name": req.Name,
			"user":          callerEmail(c),
			"status":        notImplemented,
		})
	}
}

func getCampaignHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"campaign_id": c.Param("id"),
			"user":        callerEmail(c),
			"status":      notImplemented,
		})
	}
}

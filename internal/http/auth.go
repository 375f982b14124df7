package http

import (
	"net/http"
	"strings"

	"github.com/jmehdipour/titletester/internal/http/middleware"
	"github.com/jmehdipour/titletester/internal/identity"
	"github.com/jmehdipour/titletester/internal/model"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type loginReq struct {
	IDToken string `json:"idToken"`
}

// userView is the public projection of an identity. Absent strings render
// as null.
type userView struct {
	UID           string  `json:"uid"`
	Email         *string `json:"email"`
	DisplayName   *string `json:"display_name"`
	PhotoURL      *string `json:"photo_url"`
	EmailVerified bool    `json:"email_verified"`
}

func newUserView(id model.Identity) userView {
	return userView{
		UID:           id.UID,
		Email:         nullable(id.Email),
		DisplayName:   nullable(id.DisplayName),
		PhotoURL:      nullable(id.PhotoURL),
		EmailVerified: id.EmailVerified,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func loginHandler(v middleware.IdentityVerifier, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req loginReq
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "bad request")
		}
		if strings.TrimSpace(req.IDToken) == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "idToken is required")
		}

		id, err := v.Verify(c.Request().Context(), req.IDToken)
		if err != nil {
			if identity.KindOf(err) != "" {
				return err
			}
			log.Error("login error", zap.Error(err))
			return echo.NewHTTPError(http.StatusBadRequest, "Login failed")
		}

		log.Info("user logged in", zap.String("uid", id.UID), zap.String("email", id.Email))
		return c.JSON(http.StatusOK, map[string]any{
			"success": true,
			"user":    newUserView(id),
			"message": "Login successful",
		})
	}
}

// profileHandler serves both /profile and /me.
func profileHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := middleware.IdentityFromCtx(c)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
		}
		return c.JSON(http.StatusOK, newUserView(id))
	}
}

type verifierStatus interface {
	Status() identity.Status
}

func authStatusHandler(v verifierStatus) echo.HandlerFunc {
	return func(c echo.Context) error {
		st := v.Status()
		body := map[string]any{
			"status":      "healthy",
			"service":     "firebase",
			"initialized": st.Initialized,
			"version":     apiVersion,
		}
		if st.Strategy != "" {
			body["strategy"] = st.Strategy
		}
		return c.JSON(http.StatusOK, body)
	}
}

// logoutHandler is a stateless acknowledgement; ID tokens live on the client.
func logoutHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"success": true,
			"message": "Logout successful. Please clear client-side tokens.",
		})
	}
}
